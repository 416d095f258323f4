package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cardroom/domain/apperrors"
	"cardroom/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// Intent is one unit of table work executed by the table's mailbox
type Intent func(ctx context.Context) error

type request struct {
	ctx    context.Context
	intent Intent
	done   chan error
}

type mailbox struct {
	tableID int64
	queue   chan *request
	pending int // guarded by TableDispatcher.mu
}

// TableDispatcher serializes all work for a table through a per-table
// mailbox. Mailboxes start on first use and retire after idleTimeout
// without work. Different tables run in parallel.
type TableDispatcher struct {
	mu          sync.Mutex
	mailboxes   map[int64]*mailbox
	idleTimeout time.Duration
	depth       int
	closed      bool
	quit        chan struct{}
	wg          sync.WaitGroup
}

// NewTableDispatcher creates a dispatcher
func NewTableDispatcher(idleTimeout time.Duration, depth int) *TableDispatcher {
	if depth < 1 {
		depth = 1
	}
	return &TableDispatcher{
		mailboxes:   make(map[int64]*mailbox),
		idleTimeout: idleTimeout,
		depth:       depth,
		quit:        make(chan struct{}),
	}
}

// Submit queues an intent on the table's mailbox and waits for its result.
// It returns ctx.Err() if the context ends first and apperrors.ErrDispatcherClosed
// once Close has been called.
func (d *TableDispatcher) Submit(ctx context.Context, tableID int64, intent Intent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mb, err := d.reserve(tableID)
	if err != nil {
		return err
	}

	req := &request{ctx: ctx, intent: intent, done: make(chan error, 1)}
	select {
	case mb.queue <- req:
		observability.GetMetrics().UpdateDispatcherQueueDepth(1)
	case <-ctx.Done():
		d.release(mb)
		return ctx.Err()
	case <-d.quit:
		d.release(mb)
		return closedError(tableID)
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.quit:
		select {
		case err := <-req.done:
			return err
		default:
			return closedError(tableID)
		}
	}
}

// reserve returns the table's mailbox, starting it if needed, and counts the
// caller as pending so the mailbox cannot retire underneath it
func (d *TableDispatcher) reserve(tableID int64) (*mailbox, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, closedError(tableID)
	}

	mb, ok := d.mailboxes[tableID]
	if !ok {
		mb = &mailbox{tableID: tableID, queue: make(chan *request, d.depth)}
		d.mailboxes[tableID] = mb
		d.wg.Add(1)
		go d.run(mb)

		log.WithField("tableID", tableID).Debug("Started table mailbox")
	}
	mb.pending++
	return mb, nil
}

func (d *TableDispatcher) release(mb *mailbox) {
	d.mu.Lock()
	mb.pending--
	d.mu.Unlock()
}

// run executes the mailbox's intents one at a time
func (d *TableDispatcher) run(mb *mailbox) {
	defer d.wg.Done()

	idle := time.NewTimer(d.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case req := <-mb.queue:
			observability.GetMetrics().UpdateDispatcherQueueDepth(-1)
			d.release(mb)
			d.execute(mb.tableID, req)

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idleTimeout)

		case <-idle.C:
			if d.retire(mb) {
				return
			}
			idle.Reset(d.idleTimeout)

		case <-d.quit:
			d.drain(mb)
			d.mu.Lock()
			delete(d.mailboxes, mb.tableID)
			d.mu.Unlock()
			return
		}
	}
}

func (d *TableDispatcher) execute(tableID int64, req *request) {
	if err := req.ctx.Err(); err != nil {
		req.done <- err
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"tableID": tableID,
				"panic":   r,
			}).Error("Table intent panicked")
			req.done <- fmt.Errorf("table %d intent panicked: %v", tableID, r)
		}
	}()

	req.done <- req.intent(req.ctx)
}

// retire removes an idle mailbox unless a submitter is about to use it
func (d *TableDispatcher) retire(mb *mailbox) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if mb.pending > 0 || len(mb.queue) > 0 {
		return false
	}
	delete(d.mailboxes, mb.tableID)

	log.WithField("tableID", mb.tableID).Debug("Retired idle table mailbox")
	return true
}

// drain rejects whatever is still queued after Close
func (d *TableDispatcher) drain(mb *mailbox) {
	for {
		select {
		case req := <-mb.queue:
			observability.GetMetrics().UpdateDispatcherQueueDepth(-1)
			req.done <- closedError(mb.tableID)
		default:
			return
		}
	}
}

// ActiveMailboxes returns the number of running mailboxes
func (d *TableDispatcher) ActiveMailboxes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mailboxes)
}

// Close stops accepting intents and waits for running intents to finish.
// Queued intents that have not started fail with ErrDispatcherClosed.
func (d *TableDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.quit)
	d.mu.Unlock()

	d.wg.Wait()
	log.Info("Table dispatcher closed")
}

func closedError(tableID int64) error {
	return apperrors.Newf(apperrors.CodeDispatcherClosed, "dispatcher closed, table %d intent rejected", tableID)
}

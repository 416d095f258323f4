package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"
	"cardroom/events"

	log "github.com/sirupsen/logrus"
)

// TableCommandStream holds hand commands published by game front ends
const TableCommandStream = "table_commands"

// Table command subjects
const (
	SubjectStartHand    = "commands.hands.start"
	SubjectDecision     = "commands.hands.decision"
	SubjectCompleteHand = "commands.hands.complete"
	SubjectLeaveSeat    = "commands.seats.leave"
)

var errMalformedCommand = errors.New("malformed table command")

// MessageHandler handles the raw bytes of one message
type MessageHandler func(ctx context.Context, data []byte) error

// Subscriber delivers messages from a durable subscription
type Subscriber interface {
	Subscribe(subject string, handler func([]byte) error) error
}

// TableCommands is the part of the table coordinator driven by front ends
type TableCommands interface {
	StartHand(ctx context.Context, tableID int64) (*entities.Hand, error)
	RecordDecision(ctx context.Context, tableID, handID, userID int64, timedOut bool) (*interfaces.TimeoutDecision, error)
	CompleteHand(ctx context.Context, tableID, handID int64, result interfaces.HandResult) (*interfaces.HandOutcome, error)
	LeaveSeat(ctx context.Context, tableID, seatID int64) error
}

// StartHandCommand deals a new hand at a table
type StartHandCommand struct {
	TableID int64 `json:"table_id"`
}

// DecisionCommand reports a player's action or timeout in the running hand
type DecisionCommand struct {
	TableID  int64 `json:"table_id"`
	HandID   int64 `json:"hand_id"`
	UserID   int64 `json:"user_id"`
	TimedOut bool  `json:"timed_out"`
}

// CompleteHandCommand settles a finished hand
type CompleteHandCommand struct {
	TableID       int64           `json:"table_id"`
	HandID        int64           `json:"hand_id"`
	Contributions map[int64]int64 `json:"contributions"`
	Folded        []int64         `json:"folded"`
}

// LeaveSeatCommand cashes a player out of their seat
type LeaveSeatCommand struct {
	TableID int64 `json:"table_id"`
	SeatID  int64 `json:"seat_id"`
}

// TableCommandConsumer routes table commands from JetStream to the coordinator
type TableCommandConsumer struct {
	commands TableCommands
	timeout  time.Duration
	handlers map[string]MessageHandler
	mu       sync.RWMutex
}

// NewTableCommandConsumer creates a consumer with a handler for every command subject
func NewTableCommandConsumer(commands TableCommands, timeout time.Duration) *TableCommandConsumer {
	c := &TableCommandConsumer{
		commands: commands,
		timeout:  timeout,
		handlers: make(map[string]MessageHandler),
	}

	c.RegisterHandler(SubjectStartHand, c.handleStartHand)
	c.RegisterHandler(SubjectDecision, c.handleDecision)
	c.RegisterHandler(SubjectCompleteHand, c.handleCompleteHand)
	c.RegisterHandler(SubjectLeaveSeat, c.handleLeaveSeat)
	return c
}

// RegisterHandler registers a handler for a subject
func (c *TableCommandConsumer) RegisterHandler(subject string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[subject] = handler
	log.WithField("subject", subject).Debug("Registered table command handler")
}

// Subjects returns the registered subjects in sorted order
func (c *TableCommandConsumer) Subjects() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	subjects := make([]string, 0, len(c.handlers))
	for subject := range c.handlers {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects
}

// Start subscribes to every registered subject
func (c *TableCommandConsumer) Start(subscriber Subscriber) error {
	subjects := c.Subjects()
	for _, subject := range subjects {
		subject := subject
		if err := subscriber.Subscribe(subject, func(data []byte) error {
			return c.dispatch(subject, data)
		}); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
	}

	log.WithField("subjects", subjects).Info("Table command consumer started")
	return nil
}

// dispatch runs the subject's handler. Malformed commands and domain
// rejections are acknowledged; a closed dispatcher and infrastructure
// failures are returned so the message is redelivered.
func (c *TableCommandConsumer) dispatch(subject string, data []byte) error {
	c.mu.RLock()
	handler, exists := c.handlers[subject]
	c.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no handler registered for subject: %s", subject)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	err := handler(ctx, data)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errMalformedCommand):
		log.WithFields(log.Fields{"subject": subject, "error": err}).Warn("Dropping malformed table command")
		return nil
	case errors.Is(err, apperrors.ErrDispatcherClosed):
		return err
	case apperrors.CodeOf(err) != "":
		log.WithFields(log.Fields{
			"subject": subject,
			"code":    apperrors.CodeOf(err),
			"error":   err,
		}).Warn("Table command rejected")
		return nil
	default:
		return err
	}
}

func decodeCommand(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformedCommand, err)
	}
	return nil
}

func (c *TableCommandConsumer) handleStartHand(ctx context.Context, data []byte) error {
	var cmd StartHandCommand
	if err := decodeCommand(data, &cmd); err != nil {
		return err
	}
	if cmd.TableID <= 0 {
		return fmt.Errorf("%w: table_id is required", errMalformedCommand)
	}

	hand, err := c.commands.StartHand(ctx, cmd.TableID)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"table_id": cmd.TableID,
		"hand_id":  hand.ID,
	}).Info("Hand started from command")
	return nil
}

func (c *TableCommandConsumer) handleDecision(ctx context.Context, data []byte) error {
	var cmd DecisionCommand
	if err := decodeCommand(data, &cmd); err != nil {
		return err
	}
	if cmd.TableID <= 0 || cmd.HandID <= 0 || cmd.UserID <= 0 {
		return fmt.Errorf("%w: table_id, hand_id and user_id are required", errMalformedCommand)
	}

	decision, err := c.commands.RecordDecision(ctx, cmd.TableID, cmd.HandID, cmd.UserID, cmd.TimedOut)
	if err != nil {
		return err
	}

	if decision != nil && decision.Action != events.TimeoutActionNone {
		log.WithFields(log.Fields{
			"table_id": cmd.TableID,
			"user_id":  cmd.UserID,
			"action":   decision.Action,
		}).Info("Timeout enforced from command")
	}
	return nil
}

func (c *TableCommandConsumer) handleCompleteHand(ctx context.Context, data []byte) error {
	var cmd CompleteHandCommand
	if err := decodeCommand(data, &cmd); err != nil {
		return err
	}
	if cmd.TableID <= 0 || cmd.HandID <= 0 {
		return fmt.Errorf("%w: table_id and hand_id are required", errMalformedCommand)
	}

	outcome, err := c.commands.CompleteHand(ctx, cmd.TableID, cmd.HandID, interfaces.HandResult{
		Contributions: cmd.Contributions,
		Folded:        cmd.Folded,
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"table_id": cmd.TableID,
		"hand_id":  cmd.HandID,
		"paid":     outcome.TotalPaid(),
	}).Info("Hand completed from command")
	return nil
}

func (c *TableCommandConsumer) handleLeaveSeat(ctx context.Context, data []byte) error {
	var cmd LeaveSeatCommand
	if err := decodeCommand(data, &cmd); err != nil {
		return err
	}
	if cmd.TableID <= 0 || cmd.SeatID <= 0 {
		return fmt.Errorf("%w: table_id and seat_id are required", errMalformedCommand)
	}

	return c.commands.LeaveSeat(ctx, cmd.TableID, cmd.SeatID)
}

// TableCommandSubjects lists the subjects of the table command stream
func TableCommandSubjects() []string {
	return []string{SubjectStartHand, SubjectDecision, SubjectCompleteHand, SubjectLeaveSeat}
}

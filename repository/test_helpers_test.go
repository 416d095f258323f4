package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"cardroom/application"
	"cardroom/config"
	"cardroom/database"
	"cardroom/domain/entities"
	"cardroom/events"
	"cardroom/repository/testutil"

	"github.com/stretchr/testify/require"
)

// recordingPublisher is a transactional publisher that keeps flushed events
type recordingPublisher struct {
	mu        sync.Mutex
	pending   []events.Event
	published []events.Event
}

func (p *recordingPublisher) Publish(event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, event)
	return nil
}

func (p *recordingPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, p.pending...)
	p.pending = nil
	return nil
}

func (p *recordingPublisher) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
}

func (p *recordingPublisher) Published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.published...)
}

// withTestConfig installs the default test config for services under test
func withTestConfig(t *testing.T) *config.Config {
	cfg := config.NewTestConfig()
	config.SetTestConfig(cfg)
	t.Cleanup(config.ResetConfig)
	return cfg
}

// inTx runs fn in its own unit of work, committing on success
func inTx(ctx context.Context, db *database.DB, publisher application.TransactionalPublisher, fn func(uow application.UnitOfWork) error) error {
	uow := NewUnitOfWorkFactory(db).CreateWithPublisher(publisher)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}
	return uow.Commit()
}

// seedUser inserts a user with both wallets
func seedUser(t *testing.T, testDB *testutil.TestDatabase, externalID string) *entities.User {
	t.Helper()
	ctx := context.Background()

	user := testutil.CreateTestUser(externalID)
	err := inTx(ctx, testDB.DB, &recordingPublisher{}, func(uow application.UnitOfWork) error {
		if err := uow.UserRepository().Create(ctx, user); err != nil {
			return err
		}
		for _, currency := range entities.AllCurrencies {
			if err := uow.WalletRepository().Ensure(ctx, user.ID, currency); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return user
}

// seedTable inserts a table outside any unit of work
func seedTable(t *testing.T, testDB *testutil.TestDatabase, table *entities.Table) *entities.Table {
	t.Helper()
	require.NoError(t, NewTableRepository(testDB.DB).Create(context.Background(), table))
	return table
}

func externalID(prefix string, i int) string {
	return fmt.Sprintf("%s-%d", prefix, i)
}

//go:build integration

// Run with: go test -tags integration ./internal/repository/...
package repository_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"comandapos/internal/infra"
	"comandapos/internal/model"
	"comandapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newPostgresLedger(t *testing.T) *repository.LedgerStore {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("comandapos_test"),
		tcPostgres.WithUsername("comandapos"),
		tcPostgres.WithPassword("comandapos"),
		testcontainers.WithWaitStrategy(
			tcPostgres.BasicWaitStrategies()...,
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDatabase(dsn)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))
	// Idempotent.
	require.NoError(t, infra.RunMigrations(db))
	require.True(t, infra.HasSessionTable(db))

	return repository.NewLedgerStore(db)
}

func TestPostgres_OneOpenSessionUnderContention(t *testing.T) {
	ledger := newPostgresLedger(t)
	ctx := context.Background()
	collab := uuid.New()

	var wg sync.WaitGroup
	var inserted, duplicates atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.Sessions.Insert(ctx, &model.CashSession{
				CollaboratorID: collab,
				OpenedAt:       time.Now(),
				OpeningFloat:   decimal.NewFromInt(50),
				Status:         model.SessionOpen,
			})
			switch {
			case err == nil:
				inserted.Add(1)
			case assert.ErrorIs(t, err, repository.ErrDuplicate):
				duplicates.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserted.Load())
	assert.Equal(t, int32(9), duplicates.Load())
}

func TestPostgres_ReconciliationWindowQuery(t *testing.T) {
	ledger := newPostgresLedger(t)
	ctx := context.Background()
	collab := uuid.New()
	opened := time.Now().Add(-time.Hour).UTC()
	cash := model.PaymentCash

	before := &model.Order{CollaboratorID: collab, Status: model.OrderFinalized, PaymentMethod: &cash, Total: decimal.NewFromInt(9)}
	require.NoError(t, ledger.Orders.Insert(ctx, before))
	_, err := ledger.Orders.Update(ctx, before.ID, map[string]any{"updated_at": opened.Add(-time.Minute)})
	require.NoError(t, err)

	inside := &model.Order{CollaboratorID: collab, Status: model.OrderFinalized, PaymentMethod: &cash, Total: decimal.NewFromInt(21)}
	require.NoError(t, ledger.Orders.Insert(ctx, inside))

	rows, err := ledger.Orders.Query(ctx, repository.Where("collaborator_id", collab).
		AndEq("status", model.OrderFinalized).
		AndGte("updated_at", opened).
		AndLte("updated_at", time.Now().Add(time.Minute)))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, inside.ID, rows[0].ID)
}

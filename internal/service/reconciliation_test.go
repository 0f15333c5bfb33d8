package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"comandapos/internal/model"
	"comandapos/internal/repository"
	"comandapos/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeOf(t *testing.T, env *testEnv, collab uuid.UUID) ActiveSession {
	t.Helper()
	a, err := env.resolver.ResolveActiveSession(context.Background(), collab)
	require.NoError(t, err)
	require.NotNil(t, a)
	return *a
}

// One cash sale of 30, one pix sale of 20, float of 100, no withdrawals.
func TestReconciliation_CashAndPix(t *testing.T) {
	env := newTestEnv(t)
	collab := uuid.New()
	env.mustOpen(t, collab, "100.00")
	env.finalizedOrder(t, collab, "30.00", ptr(model.PaymentCash))
	env.finalizedOrder(t, collab, "20.00", ptr(model.PaymentPix))

	sum, err := env.recon.Compute(context.Background(), activeOf(t, env, collab), time.Now())
	require.NoError(t, err)

	require.Len(t, sum.ByPaymentMethod, 2)
	assert.True(t, sum.ByPaymentMethod[model.PaymentCash].Equal(dec("30")))
	assert.True(t, sum.ByPaymentMethod[model.PaymentPix].Equal(dec("20")))
	assert.True(t, sum.TotalIn.Equal(dec("100")))
	assert.True(t, sum.TotalOut.IsZero())
	assert.True(t, sum.NetCash.Equal(dec("130")))
	assert.True(t, sum.GrandTotal.Equal(dec("50")))
	assert.Equal(t, 2, sum.OrderCount)
	assert.Len(t, sum.Orders, 2)
	assert.Len(t, sum.Movements, 1)
}

func TestReconciliation_UnspecifiedBucketAndZeroTotals(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	collab := uuid.New()
	env.mustOpen(t, collab, "0")
	ledger := env.store.Ledger()
	now := time.Now().UTC()

	require.NoError(t, ledger.Orders.Insert(ctx, &model.Order{CollaboratorID: collab, Status: model.OrderFinalized, Total: dec("12.30"), UpdatedAt: now}))
	require.NoError(t, ledger.Orders.Insert(ctx, &model.Order{CollaboratorID: collab, Status: model.OrderFinalized, PaymentMethod: ptr("voucher"), Total: dec("7.70"), UpdatedAt: now}))
	require.NoError(t, ledger.Orders.Insert(ctx, &model.Order{CollaboratorID: collab, Status: model.OrderFinalized, PaymentMethod: ptr(model.PaymentDebitCard), Total: dec("0"), UpdatedAt: now}))

	sum, err := env.recon.Compute(ctx, activeOf(t, env, collab), now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, sum.ByPaymentMethod[model.PaymentUnspecified].Equal(dec("20")))
	assert.True(t, sum.ByPaymentMethod[model.PaymentDebitCard].IsZero())
	assert.Equal(t, 3, sum.OrderCount)
	assert.True(t, sum.GrandTotal.Equal(dec("20")))
	assert.True(t, sum.NetCash.IsZero())
}

func TestReconciliation_WindowAndOwnership(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	collab, other := uuid.New(), uuid.New()
	env.mustOpen(t, collab, "50")
	active := activeOf(t, env, collab)
	ledger := env.store.Ledger()
	cash := ptr(model.PaymentCash)

	// Before the session, after asOf, another collaborator, still open.
	require.NoError(t, ledger.Orders.Insert(ctx, &model.Order{CollaboratorID: collab, Status: model.OrderFinalized, PaymentMethod: cash, Total: dec("1"), UpdatedAt: active.OpenedAt.Add(-time.Second)}))
	require.NoError(t, ledger.Orders.Insert(ctx, &model.Order{CollaboratorID: collab, Status: model.OrderFinalized, PaymentMethod: cash, Total: dec("2"), UpdatedAt: active.OpenedAt.Add(time.Hour)}))
	require.NoError(t, ledger.Orders.Insert(ctx, &model.Order{CollaboratorID: other, Status: model.OrderFinalized, PaymentMethod: cash, Total: dec("4"), UpdatedAt: active.OpenedAt.Add(time.Minute)}))
	require.NoError(t, ledger.Orders.Insert(ctx, &model.Order{CollaboratorID: collab, Status: model.OrderOpen, Total: dec("8"), UpdatedAt: active.OpenedAt.Add(time.Minute)}))
	// Boundary: exactly at asOf is included.
	asOf := active.OpenedAt.Add(30 * time.Minute)
	require.NoError(t, ledger.Orders.Insert(ctx, &model.Order{CollaboratorID: collab, Status: model.OrderFinalized, PaymentMethod: cash, Total: dec("16"), UpdatedAt: asOf}))
	require.NoError(t, ledger.Movements.Insert(ctx, &model.CashMovement{ResponsibleID: collab, Type: model.MovementOut, Amount: dec("10"), Description: model.DescriptionWithdrawal, CreatedAt: active.OpenedAt.Add(time.Minute)}))

	sum, err := env.recon.Compute(ctx, active, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.OrderCount)
	assert.True(t, sum.GrandTotal.Equal(dec("16")))
	assert.True(t, sum.TotalIn.Equal(dec("50")))
	assert.True(t, sum.TotalOut.Equal(dec("10")))
	assert.True(t, sum.NetCash.Equal(dec("56")))
}

func TestReconciliation_ExactDecimalArithmetic(t *testing.T) {
	env := newTestEnv(t)
	collab := uuid.New()
	env.mustOpen(t, collab, "0.10")
	for i := 0; i < 3; i++ {
		env.finalizedOrder(t, collab, "0.10", ptr(model.PaymentCash))
	}
	sum, err := env.recon.Compute(context.Background(), activeOf(t, env, collab), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "0.30", sum.GrandTotal.StringFixed(2))
	assert.True(t, sum.NetCash.Equal(dec("0.4")))
}

func TestReconciliation_PartialFetchFailureAborts(t *testing.T) {
	for _, table := range []string{repository.TableOrders, repository.TableCashMovements} {
		t.Run(table, func(t *testing.T) {
			env := newTestEnv(t)
			collab := uuid.New()
			env.mustOpen(t, collab, "10")
			active := activeOf(t, env, collab)
			boom := errors.New("read failed")
			env.store.InjectFault(memory.Fault{Op: memory.OpQuery, Table: table, Err: boom})

			sum, err := env.recon.Compute(context.Background(), active, time.Now())
			assert.Nil(t, sum)
			assert.ErrorIs(t, err, ErrReconciliationFailed)
			assert.ErrorIs(t, err, boom)
		})
	}
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"comandapos/internal/config"
	"comandapos/internal/model"
	"comandapos/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store    *memory.Store
	catalog  *memory.Catalog
	resolver SessionResolver
	recon    ReconciliationEngine
	caja     CajaService
	orders   OrderService
	reports  *fakeReports
	locks    *KeyedMutex
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	ledger := store.Ledger()
	catalog := memory.NewCatalog()
	resolver := NewSessionResolver(ledger, config.ResolutionStatus)
	recon := NewReconciliationEngine(ledger)
	reports := &fakeReports{}
	locks := NewKeyedMutex()
	return &testEnv{
		store:    store,
		catalog:  catalog,
		resolver: resolver,
		recon:    recon,
		caja:     NewCajaService(ledger, resolver, recon, reports, locks),
		orders:   NewOrderService(ledger, NewCatalogService(catalog, nil, 0), resolver, locks),
		locks:    locks,
		reports:  reports,
	}
}

func (e *testEnv) product(name, price string) model.Product {
	return e.catalog.Put(model.Product{Name: name, SalePrice: decimal.RequireFromString(price), StockQuantity: 10})
}

func (e *testEnv) mustOpen(t *testing.T, collab uuid.UUID, float string) *model.CashSession {
	t.Helper()
	s, err := e.caja.Open(context.Background(), collab, decimal.RequireFromString(float))
	require.NoError(t, err)
	return s
}

// finalizedOrder creates an order with a single line and finalizes it.
func (e *testEnv) finalizedOrder(t *testing.T, collab uuid.UUID, price string, method *string) *model.Order {
	t.Helper()
	ctx := context.Background()
	p := e.product("item "+price, price)
	o, err := e.orders.CreateOrder(ctx, collab, nil, nil)
	require.NoError(t, err)
	_, err = e.orders.AddItem(ctx, o.ID, p.ID)
	require.NoError(t, err)
	res, err := e.orders.AttemptFinalize(ctx, o.ID, method)
	require.NoError(t, err)
	require.Equal(t, OutcomeFinalized, res.Outcome)
	return res.Order
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

type fakeReports struct {
	mu        sync.Mutex
	summaries []*model.ReconciliationSummary
	err       error
}

func (f *fakeReports) EnqueueClosingReport(_ context.Context, _ *model.CashSession, s *model.ReconciliationSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
	return f.err
}

// fixedClock returns a settable clock for resolver tests.
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

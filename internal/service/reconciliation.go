package service

import (
	"context"
	"time"

	"comandapos/internal/model"
	"comandapos/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ReconciliationEngine computes the expected position of a cash session.
type ReconciliationEngine interface {
	Compute(ctx context.Context, session ActiveSession, asOf time.Time) (*model.ReconciliationSummary, error)
}

type reconciliationEngine struct {
	ledger *repository.LedgerStore
}

func NewReconciliationEngine(ledger *repository.LedgerStore) ReconciliationEngine {
	return &reconciliationEngine{ledger: ledger}
}

// Compute sums the collaborator's finalized orders (by updated_at) and
// movements (by created_at) inside [OpenedAt, asOf]. Both reads run
// concurrently; either failing aborts the whole computation.
func (e *reconciliationEngine) Compute(ctx context.Context, session ActiveSession, asOf time.Time) (*model.ReconciliationSummary, error) {
	var (
		orders    []model.Order
		movements []model.CashMovement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = e.ledger.Orders.Query(gctx, repository.Where("collaborator_id", session.CollaboratorID).
			AndEq("status", model.OrderFinalized).
			AndGte("updated_at", session.OpenedAt).
			AndLte("updated_at", asOf).
			Order("updated_at", false))
		return err
	})
	g.Go(func() error {
		var err error
		movements, err = e.ledger.Movements.Query(gctx, repository.Where("responsible_id", session.CollaboratorID).
			AndGte("created_at", session.OpenedAt).
			AndLte("created_at", asOf).
			Order("created_at", false))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, opErr("reconcile", session.SessionID, ErrReconciliationFailed, err)
	}
	return summarize(session, asOf, orders, movements), nil
}

func summarize(session ActiveSession, asOf time.Time, orders []model.Order, movements []model.CashMovement) *model.ReconciliationSummary {
	s := &model.ReconciliationSummary{
		SessionID:       session.SessionID,
		CollaboratorID:  session.CollaboratorID,
		OpenedAt:        session.OpenedAt,
		AsOf:            asOf,
		OpeningFloat:    session.OpeningFloat,
		ByPaymentMethod: make(map[string]decimal.Decimal),
		TotalIn:         decimal.Zero,
		TotalOut:        decimal.Zero,
		GrandTotal:      decimal.Zero,
		OrderCount:      len(orders),
		Orders:          orders,
		Movements:       movements,
	}

	cashSales := decimal.Zero
	for _, o := range orders {
		method := model.PaymentUnspecified
		if o.PaymentMethod != nil && model.ValidPaymentMethod(*o.PaymentMethod) {
			method = *o.PaymentMethod
		}
		s.ByPaymentMethod[method] = s.ByPaymentMethod[method].Add(o.Total)
		s.GrandTotal = s.GrandTotal.Add(o.Total)
		if method == model.PaymentCash {
			cashSales = cashSales.Add(o.Total)
		}
	}
	for _, m := range movements {
		switch m.Type {
		case model.MovementIn:
			s.TotalIn = s.TotalIn.Add(m.Amount)
		case model.MovementOut:
			s.TotalOut = s.TotalOut.Add(m.Amount)
		}
	}
	s.NetCash = cashSales.Add(s.TotalIn).Sub(s.TotalOut)
	return s
}

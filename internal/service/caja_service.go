package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"comandapos/internal/model"
	"comandapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ReportEnqueuer receives the final summary of a closed session. Enqueueing
// is best effort: a failure is logged and never fails the close.
type ReportEnqueuer interface {
	EnqueueClosingReport(ctx context.Context, session *model.CashSession, summary *model.ReconciliationSummary) error
}

// CloseResult is the closed session plus the summary its closing amount was
// derived from.
type CloseResult struct {
	Session *model.CashSession           `json:"session"`
	Summary *model.ReconciliationSummary `json:"summary"`
}

// CajaService drives the cash session lifecycle. Every method takes the
// acting collaborator explicitly.
type CajaService interface {
	Open(ctx context.Context, collaboratorID uuid.UUID, openingFloat decimal.Decimal) (*model.CashSession, error)
	Close(ctx context.Context, collaboratorID, sessionID uuid.UUID) (*CloseResult, error)
	RegisterMovement(ctx context.Context, collaboratorID uuid.UUID, movementType string, amount decimal.Decimal, description string) (*model.CashMovement, error)
	ActiveSession(ctx context.Context, collaboratorID uuid.UUID) (*ActiveSession, error)
	Summary(ctx context.Context, collaboratorID uuid.UUID) (*model.ReconciliationSummary, error)
	History(ctx context.Context, collaboratorID uuid.UUID, limit int) ([]model.CashSession, error)
}

type cajaService struct {
	ledger   *repository.LedgerStore
	resolver SessionResolver
	recon    ReconciliationEngine
	reports  ReportEnqueuer
	locks    *KeyedMutex
	now      func() time.Time
}

// NewCajaService wires the lifecycle controller. reports may be nil. locks
// should be the instance given to NewOrderService; nil gets a private one.
func NewCajaService(ledger *repository.LedgerStore, resolver SessionResolver, recon ReconciliationEngine, reports ReportEnqueuer, locks *KeyedMutex) CajaService {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &cajaService{
		ledger:   ledger,
		resolver: resolver,
		recon:    recon,
		reports:  reports,
		locks:    locks,
		now:      utcNow,
	}
}

// ── Open ──────────────────────────────────────────────────────────────────────

func (s *cajaService) Open(ctx context.Context, collaboratorID uuid.UUID, openingFloat decimal.Decimal) (*model.CashSession, error) {
	if openingFloat.IsNegative() {
		return nil, validationErr("open session", "opening float must be >= 0, got %s", openingFloat)
	}

	unlock := s.locks.Lock(collaboratorID)
	defer unlock()

	// Always re-resolve: another register may have opened since the caller looked.
	active, err := s.resolver.ResolveActiveSession(ctx, collaboratorID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, opErr("open session", active.SessionID, ErrAlreadyOpen, nil)
	}

	now := s.now()
	sess := &model.CashSession{
		CollaboratorID: collaboratorID,
		OpenedAt:       now,
		OpeningFloat:   openingFloat,
		Status:         model.SessionOpen,
	}
	if err := s.ledger.Sessions.Insert(ctx, sess); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, opErr("open session", collaboratorID, ErrAlreadyOpen, err)
		}
		return nil, opErr("open session", collaboratorID, ErrStore, err)
	}

	opening := &model.CashMovement{
		ResponsibleID: collaboratorID,
		Type:          model.MovementIn,
		Amount:        openingFloat,
		Description:   model.DescriptionDrawerOpened,
		CreatedAt:     now,
	}
	if err := s.ledger.Movements.Insert(ctx, opening); err != nil {
		oe := &OpError{Op: "open session", EntityID: sess.ID, Kind: ErrOpenFailed, Err: err}
		// Rollback runs to completion even if the request was cancelled.
		if derr := s.ledger.Sessions.Delete(context.WithoutCancel(ctx), sess.ID); derr != nil {
			oe.Compensation = derr
			log.Error().Err(derr).Str("session_id", sess.ID.String()).Str("collaborator_id", collaboratorID.String()).
				Msg("caja: open rollback failed, session left open without opening movement")
		}
		return nil, oe
	}

	log.Info().Str("session_id", sess.ID.String()).Str("collaborator_id", collaboratorID.String()).
		Str("opening_float", openingFloat.StringFixed(2)).Msg("caja: session opened")
	return sess, nil
}

// ── Close ─────────────────────────────────────────────────────────────────────
// The Out movement is written before the session is marked closed. If the
// session update fails the movement is deleted once; if that delete fails too
// the close is reported as inconsistent and must be fixed by hand.

func (s *cajaService) Close(ctx context.Context, collaboratorID, sessionID uuid.UUID) (*CloseResult, error) {
	unlock := s.locks.Lock(collaboratorID)
	defer unlock()

	sess, err := s.ledger.Sessions.QueryOne(ctx, repository.Where("id", sessionID))
	if err != nil {
		return nil, storeErr("close session", sessionID, err)
	}
	if sess.CollaboratorID != collaboratorID {
		return nil, opErr("close session", sessionID, ErrSessionNotOwned, nil)
	}
	if !sess.IsOpen() {
		return nil, opErr("close session", sessionID, ErrSessionNotOpen, nil)
	}

	now := s.now()
	summary, err := s.recon.Compute(ctx, ActiveSession{
		SessionID:      sess.ID,
		CollaboratorID: sess.CollaboratorID,
		OpenedAt:       sess.OpenedAt,
		OpeningFloat:   sess.OpeningFloat,
	}, now)
	if err != nil {
		return nil, err
	}
	closingAmount := summary.NetCash
	// Sangrias are capped at the drawer balance, so this only trips on rows
	// written outside this service.
	if closingAmount.IsNegative() {
		log.Error().Str("session_id", sessionID.String()).Str("net_cash", closingAmount.StringFixed(2)).
			Msg("caja: negative drawer balance, refusing to close")
		return nil, &OpError{Op: "close session", EntityID: sessionID, Kind: ErrInsufficientCash,
			Err: fmt.Errorf("net cash is %s", closingAmount.StringFixed(2))}
	}

	closing := &model.CashMovement{
		ResponsibleID: collaboratorID,
		Type:          model.MovementOut,
		Amount:        closingAmount,
		Description:   model.DescriptionDrawerClosed,
		CreatedAt:     now,
	}
	if err := s.ledger.Movements.Insert(ctx, closing); err != nil {
		return nil, opErr("close session", sessionID, ErrStore, err)
	}

	closed, err := s.ledger.Sessions.Update(ctx, sessionID, map[string]any{
		"status":         model.SessionClosed,
		"closing_amount": closingAmount,
		"closed_at":      now,
	})
	if err != nil {
		derr := s.ledger.Movements.Delete(context.WithoutCancel(ctx), closing.ID)
		if derr == nil {
			return nil, opErr("close session", sessionID, ErrStore, err)
		}
		log.Error().
			Err(err).
			AnErr("rollback_err", derr).
			Str("session_id", sessionID.String()).
			Str("movement_id", closing.ID.String()).
			Str("closing_amount", closingAmount.StringFixed(2)).
			Msg("caja: CLOSE INCONSISTENT, session still open with an orphan closing movement")
		return nil, &OpError{Op: "close session", EntityID: sessionID, Kind: ErrCloseInconsistent, Err: err, Compensation: derr}
	}

	log.Info().Str("session_id", sessionID.String()).Str("closing_amount", closingAmount.StringFixed(2)).
		Int("orders", summary.OrderCount).Msg("caja: session closed")

	if s.reports != nil {
		if err := s.reports.EnqueueClosingReport(ctx, closed, summary); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("caja: closing report not enqueued")
		}
	}
	return &CloseResult{Session: closed, Summary: summary}, nil
}

// ── RegisterMovement ──────────────────────────────────────────────────────────
// Manual suprimento (In) or sangria (Out) during an open shift. A sangria can
// not take more than the drawer holds.

func (s *cajaService) RegisterMovement(ctx context.Context, collaboratorID uuid.UUID, movementType string, amount decimal.Decimal, description string) (*model.CashMovement, error) {
	const op = "register movement"
	switch movementType {
	case model.MovementIn:
		if description == "" {
			description = model.DescriptionSupplement
		}
	case model.MovementOut:
		if description == "" {
			description = model.DescriptionWithdrawal
		}
	default:
		return nil, validationErr(op, "movement type must be %q or %q", model.MovementIn, model.MovementOut)
	}
	if !amount.IsPositive() {
		return nil, validationErr(op, "amount must be > 0, got %s", amount)
	}

	unlock := s.locks.Lock(collaboratorID)
	defer unlock()

	active, err := s.resolver.ResolveActiveSession(ctx, collaboratorID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, opErr(op, collaboratorID, ErrSessionNotOpen, nil)
	}

	now := s.now()
	if movementType == model.MovementOut {
		summary, err := s.recon.Compute(ctx, *active, now)
		if err != nil {
			return nil, err
		}
		if amount.GreaterThan(summary.NetCash) {
			return nil, &OpError{Op: op, EntityID: active.SessionID, Kind: ErrInsufficientCash,
				Err: fmt.Errorf("withdrawal %s exceeds drawer balance %s", amount.StringFixed(2), summary.NetCash.StringFixed(2))}
		}
	}

	mv := &model.CashMovement{
		ResponsibleID: collaboratorID,
		Type:          movementType,
		Amount:        amount,
		Description:   description,
		CreatedAt:     now,
	}
	if err := s.ledger.Movements.Insert(ctx, mv); err != nil {
		return nil, opErr(op, collaboratorID, ErrStore, err)
	}
	return mv, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *cajaService) ActiveSession(ctx context.Context, collaboratorID uuid.UUID) (*ActiveSession, error) {
	return s.resolver.ResolveActiveSession(ctx, collaboratorID)
}

// Summary reconciles the collaborator's open session up to now.
func (s *cajaService) Summary(ctx context.Context, collaboratorID uuid.UUID) (*model.ReconciliationSummary, error) {
	active, err := s.resolver.ResolveActiveSession(ctx, collaboratorID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, opErr("summary", collaboratorID, ErrSessionNotOpen, nil)
	}
	return s.recon.Compute(ctx, *active, s.now())
}

// HistoryLimit is the page size History actually uses for a requested limit.
func HistoryLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 30
	}
	return limit
}

func (s *cajaService) History(ctx context.Context, collaboratorID uuid.UUID, limit int) ([]model.CashSession, error) {
	limit = HistoryLimit(limit)
	rows, err := s.ledger.Sessions.Query(ctx, repository.Where("collaborator_id", collaboratorID).
		Order("opened_at", true).
		Take(limit))
	if err != nil {
		return nil, opErr("history", collaboratorID, ErrStore, err)
	}
	return rows, nil
}

package service

import (
	"context"
	"errors"
	"time"

	"comandapos/internal/config"
	"comandapos/internal/model"
	"comandapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ActiveSession is the open cash session of a collaborator as seen by the
// resolver. SessionID is uuid.Nil when the session was inferred from the
// legacy movement log.
type ActiveSession struct {
	SessionID      uuid.UUID       `json:"session_id"`
	CollaboratorID uuid.UUID       `json:"collaborator_id"`
	OpenedAt       time.Time       `json:"opened_at"`
	OpeningFloat   decimal.Decimal `json:"opening_float"`
	Inferred       bool            `json:"inferred"`
}

// SessionResolver answers "does this collaborator have an open drawer".
// A nil session with a nil error means no. Read failures are returned as
// ErrResolutionFailed and are never treated as "closed".
type SessionResolver interface {
	ResolveActiveSession(ctx context.Context, collaboratorID uuid.UUID) (*ActiveSession, error)
}

type sessionResolver struct {
	ledger *repository.LedgerStore
	mode   string
	now    func() time.Time
	loc    *time.Location
}

// NewSessionResolver builds a resolver for one of the config.Resolution*
// modes. Unknown modes behave as config.ResolutionAuto.
func NewSessionResolver(ledger *repository.LedgerStore, mode string) SessionResolver {
	return &sessionResolver{ledger: ledger, mode: mode, now: utcNow, loc: time.Local}
}

func (r *sessionResolver) ResolveActiveSession(ctx context.Context, collaboratorID uuid.UUID) (*ActiveSession, error) {
	switch r.mode {
	case config.ResolutionStatus:
		return r.byStatus(ctx, collaboratorID)
	case config.ResolutionEvents:
		return r.byEvents(ctx, collaboratorID)
	}
	s, err := r.byStatus(ctx, collaboratorID)
	if errors.Is(err, repository.ErrUnsupported) {
		return r.byEvents(ctx, collaboratorID)
	}
	return s, err
}

func (r *sessionResolver) byStatus(ctx context.Context, collaboratorID uuid.UUID) (*ActiveSession, error) {
	row, err := r.ledger.Sessions.QueryOne(ctx, repository.Where("collaborator_id", collaboratorID).
		AndEq("status", model.SessionOpen).
		Order("opened_at", true))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, opErr("resolve session", collaboratorID, ErrResolutionFailed, err)
	}
	return &ActiveSession{
		SessionID:      row.ID,
		CollaboratorID: row.CollaboratorID,
		OpenedAt:       row.OpenedAt,
		OpeningFloat:   row.OpeningFloat,
	}, nil
}

// byEvents infers an open drawer from today's movements: open iff the latest
// In is strictly newer than the latest Out (or there is no Out). The window
// starts at the first In after that Out.
func (r *sessionResolver) byEvents(ctx context.Context, collaboratorID uuid.UUID) (*ActiveSession, error) {
	now := r.now()
	local := now.In(r.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc).UTC()

	moves, err := r.ledger.Movements.Query(ctx, repository.Where("responsible_id", collaboratorID).
		AndGte("created_at", dayStart).
		AndLte("created_at", now).
		Order("created_at", false))
	if err != nil {
		return nil, opErr("resolve session", collaboratorID, ErrResolutionFailed, err)
	}

	var lastIn, lastOut *model.CashMovement
	for i := range moves {
		switch moves[i].Type {
		case model.MovementIn:
			lastIn = &moves[i]
		case model.MovementOut:
			lastOut = &moves[i]
		}
	}
	if lastIn == nil || (lastOut != nil && !lastIn.CreatedAt.After(lastOut.CreatedAt)) {
		return nil, nil
	}

	first := lastIn
	for i := range moves {
		m := &moves[i]
		if m.Type == model.MovementIn && (lastOut == nil || m.CreatedAt.After(lastOut.CreatedAt)) {
			first = m
			break
		}
	}
	return &ActiveSession{
		CollaboratorID: collaboratorID,
		OpenedAt:       first.CreatedAt,
		OpeningFloat:   first.Amount,
		Inferred:       true,
	}, nil
}

// utcNow is the clock of every service. Timestamps are stored in UTC with
// microsecond precision so they compare equal after a database round-trip.
func utcNow() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

package dto

import (
	"time"

	"comandapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCaixaRequest struct {
	OpeningFloat decimal.Decimal `json:"opening_float" validate:"min=0"`
}

// MovimentoRequest is a suprimento (entrada) or sangria (saida).
type MovimentoRequest struct {
	Type        string          `json:"type"        validate:"required,oneof=entrada saida"`
	Amount      decimal.Decimal `json:"amount"      validate:"required,gt=0"`
	Description string          `json:"description" validate:"omitempty,max=255"`
}

// HistoricoFilter is bound from the query string of GET /v1/caja/historico.
type HistoricoFilter struct {
	Limit int `form:"limit,default=30" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SessaoResponse struct {
	ID             string           `json:"id"`
	CollaboratorID string           `json:"collaborator_id"`
	Status         string           `json:"status"`
	OpeningFloat   decimal.Decimal  `json:"opening_float"`
	ClosingAmount  *decimal.Decimal `json:"closing_amount"`
	OpenedAt       time.Time        `json:"opened_at"`
	ClosedAt       *time.Time       `json:"closed_at"`
}

func NewSessaoResponse(s *model.CashSession) SessaoResponse {
	return SessaoResponse{
		ID:             s.ID.String(),
		CollaboratorID: s.CollaboratorID.String(),
		Status:         s.Status,
		OpeningFloat:   s.OpeningFloat,
		ClosingAmount:  s.ClosingAmount,
		OpenedAt:       s.OpenedAt,
		ClosedAt:       s.ClosedAt,
	}
}

// ResumoResponse is the reconciliation of a session. Amounts are exact.
type ResumoResponse struct {
	SessionID       string                     `json:"session_id,omitempty"`
	OpenedAt        time.Time                  `json:"opened_at"`
	AsOf            time.Time                  `json:"as_of"`
	OpeningFloat    decimal.Decimal            `json:"opening_float"`
	ByPaymentMethod map[string]decimal.Decimal `json:"by_payment_method"`
	TotalIn         decimal.Decimal            `json:"total_in"`
	TotalOut        decimal.Decimal            `json:"total_out"`
	NetCash         decimal.Decimal            `json:"net_cash"`
	GrandTotal      decimal.Decimal            `json:"grand_total"`
	OrderCount      int                        `json:"order_count"`
}

func NewResumoResponse(s *model.ReconciliationSummary) ResumoResponse {
	r := ResumoResponse{
		OpenedAt:        s.OpenedAt,
		AsOf:            s.AsOf,
		OpeningFloat:    s.OpeningFloat,
		ByPaymentMethod: s.ByPaymentMethod,
		TotalIn:         s.TotalIn,
		TotalOut:        s.TotalOut,
		NetCash:         s.NetCash,
		GrandTotal:      s.GrandTotal,
		OrderCount:      s.OrderCount,
	}
	if s.SessionID != uuid.Nil {
		r.SessionID = s.SessionID.String()
	}
	return r
}

type FechamentoResponse struct {
	Session SessaoResponse `json:"session"`
	Summary ResumoResponse `json:"summary"`
}

type MovimentoResponse struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

func NewMovimentoResponse(m *model.CashMovement) MovimentoResponse {
	return MovimentoResponse{
		ID:          m.ID.String(),
		Type:        m.Type,
		Amount:      m.Amount,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

// CaixaAtivaResponse describes the open drawer. SessionID is empty when the
// session was inferred from the movement log.
type CaixaAtivaResponse struct {
	SessionID    string          `json:"session_id,omitempty"`
	OpenedAt     time.Time       `json:"opened_at"`
	OpeningFloat decimal.Decimal `json:"opening_float"`
	Inferred     bool            `json:"inferred"`
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReconciliationSummary is the expected cash/total position of a session.
// Amounts are exact; round only when displaying.
type ReconciliationSummary struct {
	SessionID       uuid.UUID                  `json:"session_id"`
	CollaboratorID  uuid.UUID                  `json:"collaborator_id"`
	OpenedAt        time.Time                  `json:"opened_at"`
	AsOf            time.Time                  `json:"as_of"`
	OpeningFloat    decimal.Decimal            `json:"opening_float"`
	ByPaymentMethod map[string]decimal.Decimal `json:"by_payment_method"`
	TotalIn         decimal.Decimal            `json:"total_in"`
	TotalOut        decimal.Decimal            `json:"total_out"`
	NetCash         decimal.Decimal            `json:"net_cash"`
	GrandTotal      decimal.Decimal            `json:"grand_total"`
	OrderCount      int                        `json:"order_count"`

	// Detail lines for the printable report.
	Orders    []Order        `json:"orders"`
	Movements []CashMovement `json:"movements"`
}

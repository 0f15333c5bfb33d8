package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Session status values. The literals match the legacy store so old rows
// stay readable.
const (
	SessionOpen   = "aberto"
	SessionClosed = "fechado"
)

// Movement types: entrada = cash in (suprimento), saida = cash out (sangria).
const (
	MovementIn  = "entrada"
	MovementOut = "saida"
)

// Descriptions written by the session lifecycle. The legacy event resolver
// and the reports recognise the opening movement by this text.
const (
	DescriptionDrawerOpened = "drawer opened"
	DescriptionDrawerClosed = "drawer closed"
	DescriptionSupplement   = "Suprimento"
	DescriptionWithdrawal   = "Sangria"
)

// CashSession is one collaborator's cash-drawer shift.
// At most one row per collaborator may be in SessionOpen; the store enforces
// it with a partial unique index (see infra.RunMigrations).
type CashSession struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CollaboratorID uuid.UUID        `gorm:"type:uuid;not null;index" json:"collaborator_id"`
	OpenedAt       time.Time        `gorm:"not null" json:"opened_at"`
	ClosedAt       *time.Time       `json:"closed_at"`
	OpeningFloat   decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"opening_float"`
	ClosingAmount  *decimal.Decimal `gorm:"type:decimal(12,2)" json:"closing_amount"`
	Status         string           `gorm:"type:varchar(20);not null;default:'aberto'" json:"status"`
}

func (CashSession) TableName() string { return "cash_sessions" }

func (s *CashSession) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// IsOpen reports whether the session still accepts sales and movements.
func (s *CashSession) IsOpen() bool { return s.Status == SessionOpen }

// CashMovement is an immutable event in the cash ledger.
// Movements are never updated; the only delete is the compensating rollback
// of a paired write that failed.
type CashMovement struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ResponsibleID uuid.UUID       `gorm:"type:uuid;not null;index" json:"responsible_id"`
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Description   string          `gorm:"not null" json:"description"`
	CreatedAt     time.Time       `gorm:"not null;index" json:"created_at"`
}

func (CashMovement) TableName() string { return "cash_movements" }

func (m *CashMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order status values (legacy literals).
const (
	OrderOpen      = "aberta"
	OrderFinalized = "finalizada"
)

// Payment methods accepted at finalize time.
const (
	PaymentCash       = "dinheiro"
	PaymentPix        = "pix"
	PaymentCreditCard = "cartao_credito"
	PaymentDebitCard  = "cartao_debito"
)

// PaymentUnspecified is the reconciliation bucket for finalized orders whose
// method is missing or unknown.
const PaymentUnspecified = "unspecified"

// ValidPaymentMethod reports whether m is one of the four accepted methods.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentPix, PaymentCreditCard, PaymentDebitCard:
		return true
	}
	return false
}

// Order is a customer tab (comanda) or a quick sale.
// Total always equals the sum of the persisted item subtotals; PaymentMethod
// stays nil until the order is finalized.
type Order struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CollaboratorID uuid.UUID       `gorm:"type:uuid;not null;index" json:"collaborator_id"`
	CustomerName   *string         `json:"customer_name"`
	TabNumber      *string         `gorm:"type:varchar(20)" json:"tab_number"`
	Status         string          `gorm:"type:varchar(20);not null;default:'aberta';index" json:"status"`
	PaymentMethod  *string         `gorm:"type:varchar(20)" json:"payment_method"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	CreatedAt      time.Time       `json:"created_at"`
	// UpdatedAt is stamped at finalize time; reconciliation windows key off it.
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem is one product line of an Order.
// ProductName and UnitPrice are snapshots taken when the line was added
// (name and price at time of sale), not references to the catalog.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	ProductName string          `gorm:"not null" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// LineSubtotal is quantity * unit price, unrounded.
func LineSubtotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

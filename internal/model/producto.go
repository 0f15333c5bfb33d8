package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. The core only reads it: the sale price is
// snapshotted into order items and stock is shown at render time.
type Product struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string          `gorm:"index;not null" json:"name"`
	CategoryID    *uuid.UUID      `gorm:"type:uuid;index" json:"category_id"`
	SalePrice     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"sale_price"`
	Cost          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"cost"`
	StockQuantity int             `gorm:"not null;default:0" json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (Product) TableName() string { return "products" }

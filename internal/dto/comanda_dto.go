package dto

import (
	"time"

	"comandapos/internal/model"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CriarComandaRequest struct {
	CustomerName *string `json:"customer_name" validate:"omitempty,max=120"`
	TabNumber    *string `json:"tab_number"    validate:"omitempty,max=20"`
}

type AdicionarItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// FinalizarRequest carries the payment method. It may be omitted when the
// comanda is empty.
type FinalizarRequest struct {
	PaymentMethod *string `json:"payment_method" validate:"omitempty,oneof=dinheiro pix cartao_credito cartao_debito"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemComandaResponse struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type ComandaResponse struct {
	ID             string                `json:"id"`
	CollaboratorID string                `json:"collaborator_id"`
	CustomerName   *string               `json:"customer_name"`
	TabNumber      *string               `json:"tab_number"`
	Status         string                `json:"status"`
	PaymentMethod  *string               `json:"payment_method"`
	Total          decimal.Decimal       `json:"total"`
	Items          []ItemComandaResponse `json:"items"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func NewComandaResponse(o *model.Order) ComandaResponse {
	items := make([]ItemComandaResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemComandaResponse{
			ProductID:   it.ProductID.String(),
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
		})
	}
	return ComandaResponse{
		ID:             o.ID.String(),
		CollaboratorID: o.CollaboratorID.String(),
		CustomerName:   o.CustomerName,
		TabNumber:      o.TabNumber,
		Status:         o.Status,
		PaymentMethod:  o.PaymentMethod,
		Total:          o.Total,
		Items:          items,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

// FinalizarResponse: Outcome is "finalized" or "closed_empty"; Order is
// absent for closed_empty.
type FinalizarResponse struct {
	Outcome string           `json:"outcome"`
	Order   *ComandaResponse `json:"order,omitempty"`
}

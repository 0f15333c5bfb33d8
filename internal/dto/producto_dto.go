package dto

import (
	"comandapos/internal/model"

	"github.com/shopspring/decimal"
)

type ProdutoResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	StockQuantity int             `json:"stock_quantity"`
	Category      *string         `json:"category"`
}

func NewProdutoResponse(p *model.Product) ProdutoResponse {
	r := ProdutoResponse{
		ID:            p.ID.String(),
		Name:          p.Name,
		SalePrice:     p.SalePrice,
		StockQuantity: p.StockQuantity,
	}
	if p.Category != nil {
		name := p.Category.Name
		r.Category = &name
	}
	return r
}

package dto

// ItemVendaRequest is one line of a counter sale.
type ItemVendaRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"   validate:"required,min=1"`
}

type VendaRapidaRequest struct {
	PaymentMethod string             `json:"payment_method" validate:"required,oneof=dinheiro pix cartao_credito cartao_debito"`
	Items         []ItemVendaRequest `json:"items"          validate:"required,min=1,dive"`
}

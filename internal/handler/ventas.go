package handler

import (
	"net/http"

	"comandapos/internal/dto"
	"comandapos/internal/middleware"
	"comandapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type VentasHandler struct{ svc service.OrderService }

func NewVentasHandler(svc service.OrderService) *VentasHandler { return &VentasHandler{svc: svc} }

// VendaRapida godoc
// @Summary Registra uma venda de balcão já finalizada
// @Tags vendas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.VendaRapidaRequest true "Itens e forma de pagamento"
// @Success 201 {object} dto.ComandaResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/vendas/rapida [post]
func (h *VentasHandler) VendaRapida(c *gin.Context) {
	var req dto.VendaRapidaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	lines := make([]service.CheckoutLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, service.CheckoutLine{ProductID: uuid.MustParse(it.ProductID), Quantity: it.Quantity})
	}
	o, err := h.svc.QuickCheckout(c.Request.Context(), middleware.CollaboratorID(c), req.PaymentMethod, lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewComandaResponse(o))
}

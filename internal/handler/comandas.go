package handler

import (
	"context"
	"net/http"

	"comandapos/internal/dto"
	"comandapos/internal/middleware"
	"comandapos/internal/model"
	"comandapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ComandasHandler struct{ svc service.OrderService }

func NewComandasHandler(svc service.OrderService) *ComandasHandler {
	return &ComandasHandler{svc: svc}
}

// Criar godoc
// @Summary Abre uma comanda
// @Tags comandas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CriarComandaRequest false "Cliente e número da mesa"
// @Success 201 {object} dto.ComandaResponse
// @Router /v1/comandas [post]
func (h *ComandasHandler) Criar(c *gin.Context) {
	var req dto.CriarComandaRequest
	if c.Request.ContentLength != 0 && !bindAndValidate(c, &req) {
		return
	}
	o, err := h.svc.CreateOrder(c.Request.Context(), middleware.CollaboratorID(c), req.CustomerName, req.TabNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewComandaResponse(o))
}

func (h *ComandasHandler) Listar(c *gin.Context) {
	orders, err := h.svc.ListOpenOrders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.ComandaResponse, 0, len(orders))
	for i := range orders {
		out = append(out, dto.NewComandaResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h *ComandasHandler) Obter(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	o, err := h.svc.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewComandaResponse(o))
}

// AdicionarItem godoc
// @Summary Adiciona uma unidade de um produto à comanda
// @Tags comandas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID da comanda"
// @Param body body dto.AdicionarItemRequest true "Produto"
// @Success 200 {object} dto.ComandaResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/comandas/{id}/itens [post]
func (h *ComandasHandler) AdicionarItem(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AdicionarItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	productID := uuid.MustParse(req.ProductID)
	h.respond(c, func() (*model.Order, error) {
		return h.svc.AddItem(c.Request.Context(), id, productID)
	})
}

func (h *ComandasHandler) IncrementarItem(c *gin.Context) {
	h.itemOp(c, h.svc.IncrementItem)
}

func (h *ComandasHandler) DecrementarItem(c *gin.Context) {
	h.itemOp(c, h.svc.DecrementItem)
}

func (h *ComandasHandler) RemoverItem(c *gin.Context) {
	h.itemOp(c, h.svc.RemoveItem)
}

type itemFunc func(ctx context.Context, orderID, productID uuid.UUID) (*model.Order, error)

func (h *ComandasHandler) itemOp(c *gin.Context, fn itemFunc) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	productID, ok := pathUUID(c, "produto_id")
	if !ok {
		return
	}
	h.respond(c, func() (*model.Order, error) {
		return fn(c.Request.Context(), id, productID)
	})
}

func (h *ComandasHandler) respond(c *gin.Context, fn func() (*model.Order, error)) {
	o, err := fn()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewComandaResponse(o))
}

// Finalizar godoc
// @Summary Finaliza a comanda; uma comanda vazia é descartada
// @Tags comandas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID da comanda"
// @Param body body dto.FinalizarRequest false "Forma de pagamento"
// @Success 200 {object} dto.FinalizarResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/comandas/{id}/finalizar [post]
func (h *ComandasHandler) Finalizar(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.FinalizarRequest
	if c.Request.ContentLength != 0 && !bindAndValidate(c, &req) {
		return
	}
	res, err := h.svc.AttemptFinalize(c.Request.Context(), id, req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := dto.FinalizarResponse{Outcome: string(res.Outcome)}
	if res.Order != nil {
		o := dto.NewComandaResponse(res.Order)
		resp.Order = &o
	}
	c.JSON(http.StatusOK, resp)
}

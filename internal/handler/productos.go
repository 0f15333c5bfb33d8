package handler

import (
	"net/http"

	"comandapos/internal/dto"
	"comandapos/internal/service"

	"github.com/gin-gonic/gin"
)

type ProductosHandler struct{ svc service.CatalogService }

func NewProductosHandler(svc service.CatalogService) *ProductosHandler {
	return &ProductosHandler{svc: svc}
}

// Listar godoc
// @Summary Produtos com estoque disponível
// @Tags produtos
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.ProdutoResponse
// @Router /v1/productos [get]
func (h *ProductosHandler) Listar(c *gin.Context) {
	products, err := h.svc.ListAvailableProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.ProdutoResponse, 0, len(products))
	for i := range products {
		out = append(out, dto.NewProdutoResponse(&products[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

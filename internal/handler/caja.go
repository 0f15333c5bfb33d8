package handler

import (
	"fmt"
	"net/http"

	"comandapos/internal/apierror"
	"comandapos/internal/dto"
	"comandapos/internal/infra"
	"comandapos/internal/middleware"
	"comandapos/internal/service"

	"github.com/gin-gonic/gin"
)

type CajaHandler struct {
	svc      service.CajaService
	business string
}

func NewCajaHandler(svc service.CajaService, business string) *CajaHandler {
	return &CajaHandler{svc: svc, business: business}
}

// Abrir godoc
// @Summary Abre o caixa do colaborador autenticado
// @Tags caixa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirCaixaRequest true "Fundo de troco"
// @Success 201 {object} dto.SessaoResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/caja/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCaixaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	sess, err := h.svc.Open(c.Request.Context(), middleware.CollaboratorID(c), req.OpeningFloat)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewSessaoResponse(sess))
}

// Fechar godoc
// @Summary Fecha o caixa com o saldo esperado em dinheiro
// @Tags caixa
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID da sessão"
// @Success 200 {object} dto.FechamentoResponse
// @Failure 409 {object} apierror.APIError
// @Failure 500 {object} apierror.APIError
// @Router /v1/caja/{id}/fechar [post]
func (h *CajaHandler) Fechar(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Close(c.Request.Context(), middleware.CollaboratorID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FechamentoResponse{
		Session: dto.NewSessaoResponse(res.Session),
		Summary: dto.NewResumoResponse(res.Summary),
	})
}

// GetAtiva returns the open drawer of the authenticated collaborator.
func (h *CajaHandler) GetAtiva(c *gin.Context) {
	active, err := h.svc.ActiveSession(c.Request.Context(), middleware.CollaboratorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if active == nil {
		c.JSON(http.StatusNotFound, apierror.WithCode("session_not_open", "nenhum caixa aberto"))
		return
	}
	resp := dto.CaixaAtivaResponse{
		OpenedAt:     active.OpenedAt,
		OpeningFloat: active.OpeningFloat,
		Inferred:     active.Inferred,
	}
	if !active.Inferred {
		resp.SessionID = active.SessionID.String()
	}
	c.JSON(http.StatusOK, resp)
}

// Resumo godoc
// @Summary Conciliação do caixa aberto até agora
// @Tags caixa
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ResumoResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/resumo [get]
func (h *CajaHandler) Resumo(c *gin.Context) {
	s, err := h.svc.Summary(c.Request.Context(), middleware.CollaboratorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewResumoResponse(s))
}

// Relatorio renders the current reconciliation as a PDF download.
func (h *CajaHandler) Relatorio(c *gin.Context) {
	claims := middleware.GetClaims(c)
	s, err := h.svc.Summary(c.Request.Context(), middleware.CollaboratorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	name := claims.Name
	if name == "" {
		name = claims.CollaboratorID
	}
	pdf, err := infra.RenderReconciliationPDF(s, infra.ReportIdentity{Business: h.business, Collaborator: name})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="caixa-%s.pdf"`, s.AsOf.Format("20060102-1504")))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// RegistrarMovimento godoc
// @Summary Registra suprimento ou sangria no caixa aberto
// @Tags caixa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MovimentoRequest true "Movimento"
// @Success 201 {object} dto.MovimentoResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/caja/movimento [post]
func (h *CajaHandler) RegistrarMovimento(c *gin.Context) {
	var req dto.MovimentoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	mv, err := h.svc.RegisterMovement(c.Request.Context(), middleware.CollaboratorID(c), req.Type, req.Amount, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewMovimentoResponse(mv))
}

// Historico returns the collaborator's sessions, newest first.
func (h *CajaHandler) Historico(c *gin.Context) {
	var filter dto.HistoricoFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_query", err.Error()))
		return
	}
	if !validateStruct(c, &filter) {
		return
	}
	limit := service.HistoryLimit(filter.Limit)
	rows, err := h.svc.History(c.Request.Context(), middleware.CollaboratorID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.SessaoResponse, 0, len(rows))
	for i := range rows {
		out = append(out, dto.NewSessaoResponse(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "limit": limit})
}

package handler

import (
	"errors"
	"net/http"
	"reflect"

	"comandapos/internal/apierror"
	"comandapos/internal/middleware"
	"comandapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Without this, tags like min=0 or gt=0 panic on decimal.Decimal fields.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds the JSON body and runs the validator tags. On failure
// it writes the response and returns false; the caller must return.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_json", "JSON inválido: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

func validateStruct(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// pathUUID parses a path parameter, writing a 400 when it is not a uuid.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_id", name+" inválido"))
		return uuid.Nil, false
	}
	return id, true
}

// errorStatus maps service errors to HTTP. Order matters: an inconsistent
// write is also a store error.
type errorStatus struct {
	kind   error
	status int
	code   string
}

var preconditionCodes = []errorStatus{
	{service.ErrAlreadyOpen, http.StatusConflict, "session_already_open"},
	{service.ErrSessionNotOpen, http.StatusConflict, "session_not_open"},
	{service.ErrSessionNotOwned, http.StatusConflict, "session_not_owned"},
	{service.ErrPaymentMethodRequired, http.StatusConflict, "payment_method_required"},
	{service.ErrOrderNotOpen, http.StatusConflict, "order_not_open"},
	{service.ErrInsufficientCash, http.StatusConflict, "insufficient_cash"},
}

// respondError writes the apierror envelope for err. Store details never
// reach the client; they are logged with the request id.
func respondError(c *gin.Context, err error) {
	var oe *service.OpError
	hasOp := errors.As(err, &oe)

	switch {
	case errors.Is(err, service.ErrValidation):
		detail := "dados inválidos"
		if hasOp && oe.Err != nil {
			detail = oe.Err.Error()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.WithCode("validation_error", detail))
		return
	case errors.Is(err, service.ErrPrecondition):
		for _, p := range preconditionCodes {
			if errors.Is(err, p.kind) {
				c.JSON(p.status, apierror.WithCode(p.code, p.kind.Error()))
				return
			}
		}
		c.JSON(http.StatusConflict, apierror.WithCode("precondition_failed", "operação não permitida no estado atual"))
		return
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, apierror.WithCode("not_found", "recurso não encontrado"))
		return
	}

	ev := log.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Str("path", c.FullPath())
	if hasOp {
		ev = ev.Str("op", oe.Op).Str("entity_id", oe.EntityID.String())
	}
	switch {
	case service.IsInconsistent(err):
		ev.Msg("partial write needs manual reconciliation")
		c.JSON(http.StatusInternalServerError, apierror.WithCode("requires_manual_reconciliation",
			"a operação foi aplicada parcialmente; é necessária conferência manual"))
	case errors.Is(err, service.ErrStore):
		ev.Msg("store unavailable")
		c.JSON(http.StatusServiceUnavailable, apierror.WithCode("store_unavailable", "serviço temporariamente indisponível"))
	default:
		ev.Msg("unexpected error")
		c.JSON(http.StatusInternalServerError, apierror.WithCode("internal_error", "erro interno do servidor"))
	}
}

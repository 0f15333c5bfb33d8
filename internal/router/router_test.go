package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"comandapos/internal/config"
	"comandapos/internal/middleware"
	"comandapos/internal/model"
	"comandapos/internal/repository/memory"
	"comandapos/internal/router"
	"comandapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

type testEnv struct {
	engine  *gin.Engine
	store   *memory.Store
	catalog *memory.Catalog
	token   string
	collab  uuid.UUID
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	ledger := store.Ledger()
	catalog := memory.NewCatalog()
	resolver := service.NewSessionResolver(ledger, config.ResolutionStatus)
	catalogSvc := service.NewCatalogService(catalog, nil, 0)
	locks := service.NewKeyedMutex()

	cfg := &config.Config{Env: "test", JWTSecret: testSecret, BusinessName: "Bar Teste", SessionResolution: config.ResolutionStatus}
	r := router.New(cfg, router.Deps{
		Caja:    service.NewCajaService(ledger, resolver, service.NewReconciliationEngine(ledger), nil, locks),
		Orders:  service.NewOrderService(ledger, catalogSvc, resolver, locks),
		Catalog: catalogSvc,
	})

	collab := uuid.New()
	token, err := middleware.IssueToken(testSecret, collab, "Ana", time.Hour)
	require.NoError(t, err)
	return &testEnv{engine: r, store: store, catalog: catalog, token: token, collab: collab}
}

func (e *testEnv) product(name, price string) model.Product {
	return e.catalog.Put(model.Product{Name: name, SalePrice: decimal.RequireFromString(price), StockQuantity: 5})
}

func do(t *testing.T, env *testEnv, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type apiErr struct {
	Code   string            `json:"code"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

type comanda struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Total  decimal.Decimal `json:"total"`
	Items  []struct {
		ProductID string          `json:"product_id"`
		Quantity  int             `json:"quantity"`
		Subtotal  decimal.Decimal `json:"subtotal"`
	} `json:"items"`
}

func TestAuthRequired(t *testing.T) {
	env := setupTestEnv(t)
	w := do(t, env, "GET", "/v1/caja/activa", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, env, "GET", "/v1/caja/activa", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := middleware.IssueToken("other-secret", env.collab, "", time.Hour)
	require.NoError(t, err)
	w = do(t, env, "GET", "/v1/caja/activa", nil, other)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestCaixaLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	w := do(t, env, "GET", "/v1/caja/activa", nil, env.token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, env, "POST", "/v1/caja/abrir", jsonBody(t, map[string]any{"opening_float": "100.00"}), env.token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sess struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeJSON(t, w, &sess)
	assert.Equal(t, model.SessionOpen, sess.Status)

	w = do(t, env, "POST", "/v1/caja/abrir", jsonBody(t, map[string]any{"opening_float": "5"}), env.token)
	assert.Equal(t, http.StatusConflict, w.Code)
	var e apiErr
	decodeJSON(t, w, &e)
	assert.Equal(t, "session_already_open", e.Code)

	w = do(t, env, "POST", "/v1/caja/movimento", jsonBody(t, map[string]any{"type": "saida", "amount": "25"}), env.token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, env, "POST", "/v1/caja/movimento", jsonBody(t, map[string]any{"type": "saida", "amount": "75.01"}), env.token)
	assert.Equal(t, http.StatusConflict, w.Code)
	decodeJSON(t, w, &e)
	assert.Equal(t, "insufficient_cash", e.Code)

	p := env.product("Cerveja", "12.50")
	w = do(t, env, "POST", "/v1/vendas/rapida", jsonBody(t, map[string]any{
		"payment_method": "dinheiro",
		"items":          []map[string]any{{"product_id": p.ID, "quantity": 2}},
	}), env.token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, env, "GET", "/v1/caja/resumo", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)
	var resumo struct {
		NetCash    decimal.Decimal `json:"net_cash"`
		GrandTotal decimal.Decimal `json:"grand_total"`
	}
	decodeJSON(t, w, &resumo)
	assert.True(t, resumo.NetCash.Equal(decimal.RequireFromString("100")), resumo.NetCash.String())
	assert.True(t, resumo.GrandTotal.Equal(decimal.RequireFromString("25")))

	w = do(t, env, "GET", "/v1/caja/relatorio.pdf", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	other, err := middleware.IssueToken(testSecret, uuid.New(), "", time.Hour)
	require.NoError(t, err)
	w = do(t, env, "POST", "/v1/caja/"+sess.ID+"/fechar", nil, other)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, env, "POST", "/v1/caja/"+sess.ID+"/fechar", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var closed struct {
		Session struct {
			Status        string           `json:"status"`
			ClosingAmount *decimal.Decimal `json:"closing_amount"`
		} `json:"session"`
	}
	decodeJSON(t, w, &closed)
	assert.Equal(t, model.SessionClosed, closed.Session.Status)
	require.NotNil(t, closed.Session.ClosingAmount)
	assert.True(t, closed.Session.ClosingAmount.Equal(decimal.RequireFromString("100")))

	w = do(t, env, "GET", "/v1/caja/historico?limit=5", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Data  []json.RawMessage `json:"data"`
		Limit int               `json:"limit"`
	}
	decodeJSON(t, w, &hist)
	assert.Len(t, hist.Data, 1)
	assert.Equal(t, 5, hist.Limit)

	w = do(t, env, "GET", "/v1/caja/resumo", nil, env.token)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCaixaValidation(t *testing.T) {
	env := setupTestEnv(t)

	w := do(t, env, "POST", "/v1/caja/abrir", jsonBody(t, map[string]any{"opening_float": "-1"}), env.token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var e apiErr
	decodeJSON(t, w, &e)
	assert.Equal(t, "min", e.Fields["OpeningFloat"])

	w = do(t, env, "POST", "/v1/caja/movimento", jsonBody(t, map[string]any{"type": "troco", "amount": "5"}), env.token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, env, "POST", "/v1/caja/movimento", jsonBody(t, map[string]any{"type": "entrada", "amount": "5"}), env.token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, env, "POST", "/v1/caja/not-a-uuid/fechar", nil, env.token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, env, "POST", "/v1/caja/"+uuid.NewString()+"/fechar", nil, env.token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, env, "GET", "/v1/caja/historico?limit=500", nil, env.token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestComandaFlow(t *testing.T) {
	env := setupTestEnv(t)
	p := env.product("Porção", "25.00")

	w := do(t, env, "POST", "/v1/comandas", jsonBody(t, map[string]any{"customer_name": "Mesa 4", "tab_number": "4"}), env.token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var c comanda
	decodeJSON(t, w, &c)
	base := "/v1/comandas/" + c.ID

	for i := 0; i < 2; i++ {
		w = do(t, env, "POST", base+"/itens", jsonBody(t, map[string]any{"product_id": p.ID}), env.token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	decodeJSON(t, w, &c)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.True(t, c.Total.Equal(decimal.RequireFromString("50")))

	w = do(t, env, "POST", base+"/itens/"+p.ID.String()+"/incrementar", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, env, "POST", base+"/itens/"+p.ID.String()+"/decrementar", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)
	decodeJSON(t, w, &c)
	assert.True(t, c.Total.Equal(decimal.RequireFromString("50")))

	w = do(t, env, "GET", "/v1/comandas", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []comanda `json:"data"`
	}
	decodeJSON(t, w, &list)
	assert.Len(t, list.Data, 1)

	w = do(t, env, "POST", base+"/finalizar", nil, env.token)
	assert.Equal(t, http.StatusConflict, w.Code)
	var e apiErr
	decodeJSON(t, w, &e)
	assert.Equal(t, "payment_method_required", e.Code)

	w = do(t, env, "POST", base+"/finalizar", jsonBody(t, map[string]any{"payment_method": "cheque"}), env.token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, env, "POST", base+"/finalizar", jsonBody(t, map[string]any{"payment_method": "pix"}), env.token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var fin struct {
		Outcome string   `json:"outcome"`
		Order   *comanda `json:"order"`
	}
	decodeJSON(t, w, &fin)
	assert.Equal(t, "finalized", fin.Outcome)
	require.NotNil(t, fin.Order)
	assert.Equal(t, model.OrderFinalized, fin.Order.Status)

	w = do(t, env, "DELETE", base+"/itens/"+p.ID.String(), nil, env.token)
	assert.Equal(t, http.StatusConflict, w.Code)
	decodeJSON(t, w, &e)
	assert.Equal(t, "order_not_open", e.Code)
}

func TestComandaEmptyFinalizeIsDiscarded(t *testing.T) {
	env := setupTestEnv(t)
	w := do(t, env, "POST", "/v1/comandas", nil, env.token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var c comanda
	decodeJSON(t, w, &c)

	w = do(t, env, "POST", "/v1/comandas/"+c.ID+"/finalizar", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)
	var fin struct {
		Outcome string          `json:"outcome"`
		Order   json.RawMessage `json:"order"`
	}
	decodeJSON(t, w, &fin)
	assert.Equal(t, "closed_empty", fin.Outcome)
	assert.Nil(t, fin.Order)

	w = do(t, env, "GET", "/v1/comandas/"+c.ID, nil, env.token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStoreFailuresMapToStatus(t *testing.T) {
	env := setupTestEnv(t)
	w := do(t, env, "POST", "/v1/caja/abrir", jsonBody(t, map[string]any{"opening_float": "10"}), env.token)
	require.Equal(t, http.StatusCreated, w.Code)
	var sess struct {
		ID string `json:"id"`
	}
	decodeJSON(t, w, &sess)

	env.store.InjectFault(memory.Fault{Op: memory.OpQuery, Table: "cash_movements", Times: 1, Err: assert.AnError})
	w = do(t, env, "GET", "/v1/caja/resumo", nil, env.token)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var e apiErr
	decodeJSON(t, w, &e)
	assert.Equal(t, "store_unavailable", e.Code)
	assert.NotContains(t, e.Detail, assert.AnError.Error())

	env.store.InjectFault(memory.Fault{Op: memory.OpUpdate, Table: "cash_sessions", Times: 1, Err: assert.AnError})
	env.store.InjectFault(memory.Fault{Op: memory.OpDelete, Table: "cash_movements", Times: 1, Err: assert.AnError})
	w = do(t, env, "POST", "/v1/caja/"+sess.ID+"/fechar", nil, env.token)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	decodeJSON(t, w, &e)
	assert.Equal(t, "requires_manual_reconciliation", e.Code)
}

func TestProdutosList(t *testing.T) {
	env := setupTestEnv(t)
	env.product("Agua", "4")
	env.catalog.Put(model.Product{Name: "Esgotado", SalePrice: decimal.RequireFromString("1")})

	w := do(t, env, "GET", "/v1/productos", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	decodeJSON(t, w, &resp)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Agua", resp.Data[0].Name)
}

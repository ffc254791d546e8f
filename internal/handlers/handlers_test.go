package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/multiregion-ecommerce/internal/idempotency"
	"github.com/imrishuroy/multiregion-ecommerce/internal/orderapi"
	"github.com/imrishuroy/multiregion-ecommerce/internal/orders"
	"github.com/imrishuroy/multiregion-ecommerce/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBody = `{"customerId":"c1","items":[{"id":"item1","quantity":2,"price":10.99},{"id":"item2","quantity":1,"price":29.99}]}`

func newService(t *testing.T) (*orderapi.Service, *testutil.Publisher) {
	t.Helper()
	dyn := testutil.NewDynamo(map[string]string{"orders": "orderId", "idempotency": "idempotency_key"})
	pub := &testutil.Publisher{}
	svc := orderapi.NewService(orderapi.Deps{
		Orders:      orders.NewStore(dyn, "orders"),
		Idempotency: idempotency.NewStore(dyn, "idempotency", 0),
		Publisher:   pub,
	})
	return svc, pub
}

func newTestRouter(t *testing.T) (*gin.Engine, *testutil.Publisher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, pub := newService(t)
	return NewRouter(HandlerConfig{Service: svc}), pub
}

func do(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestCreateThenGet(t *testing.T) {
	r, pub := newTestRouter(t)

	w := do(r, http.MethodPost, "/orders", validBody, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "PENDING", created["status"])
	assert.Equal(t, 51.97, created["totalAmount"])
	assert.Equal(t, "c1", created["customerId"])
	assert.Equal(t, 1, pub.Count())

	id, _ := created["orderId"].(string)
	require.NotEmpty(t, id)

	w = do(r, http.MethodGet, "/orders/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, "c1", got["customerId"])
	assert.Equal(t, "PENDING", got["status"])
}

func TestCreate_Errors(t *testing.T) {
	r, _ := newTestRouter(t)

	cases := []struct {
		body string
		code int
		msg  string
	}{
		{`{not json`, http.StatusBadRequest, "Invalid JSON"},
		{`{"items":[{"id":"a","quantity":1,"price":1}]}`, http.StatusBadRequest, "Missing required fields"},
		{`{"customerId":"c1"}`, http.StatusBadRequest, "Missing required fields"},
		{`{"customerId":"c1","items":[{"id":"a","quantity":0,"price":1}]}`, http.StatusBadRequest, "Invalid order items"},
		{`{"customerId":"c1","items":[{"id":"a","quantity":1,"price":1e200}]}`, http.StatusBadRequest, "Invalid order items"},
		{`{"customerId":"c1","items":[{"id":"a","quantity":1,"price":1e50000000}]}`, http.StatusBadRequest, "Invalid order items"},
	}
	for _, tc := range cases {
		w := do(r, http.MethodPost, "/orders", tc.body, nil)
		assert.Equal(t, tc.code, w.Code, tc.body)
		assert.Equal(t, tc.msg, decode(t, w)["error"], tc.body)
	}
}

func TestCreate_PublishFailureHidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, pub := newService(t)
	pub.Err = assert.AnError
	r := NewRouter(HandlerConfig{Service: svc})

	w := do(r, http.MethodPost, "/orders", validBody, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]interface{}{"error": "Internal server error"}, decode(t, w))
}

func TestCreate_IdempotencyReplay(t *testing.T) {
	r, pub := newTestRouter(t)
	h := map[string]string{idempotency.HeaderName: "abc"}

	first := do(r, http.MethodPost, "/orders", validBody, h)
	require.Equal(t, http.StatusOK, first.Code)
	second := do(r, http.MethodPost, "/orders", validBody, h)
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(replayedHeader))
	assert.Equal(t, 1, pub.Count())
}

func TestGet_NotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/orders/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Order not found", decode(t, w)["error"])
}

func TestUnknownRoutes_JSONErrors(t *testing.T) {
	r, _ := newTestRouter(t)

	cases := []struct {
		method string
		path   string
		code   int
		msg    string
	}{
		{http.MethodGet, "/orders/", http.StatusBadRequest, orderapi.MsgMissingOrderID},
		{http.MethodGet, "/orders", http.StatusBadRequest, orderapi.MsgMissingOrderID},
		{http.MethodGet, "/nowhere", http.StatusNotFound, msgRouteNotFound},
		{http.MethodDelete, "/orders/abc", http.StatusNotFound, msgRouteNotFound},
	}
	for _, tc := range cases {
		w := do(r, tc.method, tc.path, "", nil)
		assert.Equal(t, tc.code, w.Code, tc.path)
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json", tc.path)
		assert.Equal(t, tc.msg, decode(t, w)["error"], tc.path)
	}
}

func TestListByCustomer(t *testing.T) {
	r, _ := newTestRouter(t)
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/orders", validBody, nil).Code)
	}

	w := do(r, http.MethodGet, "/customers/c1/orders?limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list, ok := decode(t, w)["orders"].([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 2)

	w = do(r, http.MethodGet, "/customers/c1/orders?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodGet, "/customers/c1/orders?limit=1000", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORS(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/health", "", map[string]string{"Origin": "https://shop.example.com"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/valeevte/pricewatch/internal/apperr"
	"github.com/valeevte/pricewatch/internal/products"
)

type routeFunc func(r gin.IRouter)

func (f routeFunc) RegisterRoutes(r gin.IRouter) { f(r) }

type emptyReader struct{}

func (emptyReader) List(context.Context, products.ListFilter) ([]products.Product, error) {
	return []products.Product{}, nil
}

func (emptyReader) Get(context.Context, string) (*products.Detail, error) {
	return nil, apperr.NotFound("product not found")
}

func (emptyReader) Stats(context.Context) (*products.Stats, error) {
	return &products.Stats{}, nil
}

func newTestEngine(routes ...Routes) *gin.Engine {
	return New(Config{Version: "test", AllowOrigins: []string{"*"}}, zap.NewNop(), routes...)
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestNoRoute(t *testing.T) {
	w := serve(newTestEngine(), http.MethodGet, "/nowhere")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "endpoint not found", errorOf(t, w))
}

func TestPanicRecovery(t *testing.T) {
	r := newTestEngine(routeFunc(func(r gin.IRouter) {
		r.GET("/boom", func(*gin.Context) { panic("boom") })
	}))

	w := serve(r, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", errorOf(t, w))
}

func TestMissingCanonicalProduct(t *testing.T) {
	r := newTestEngine(products.NewHandler(emptyReader{}, nil, zap.NewNop()))

	w := serve(r, http.MethodGet, "/products/does-not-exist")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "product not found", errorOf(t, w))
}

func TestIndexAndMetrics(t *testing.T) {
	r := newTestEngine()

	w := serve(r, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, "test", body["version"])

	serve(r, http.MethodGet, "/")
	w = serve(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pricewatch_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	r := newTestEngine()

	req := httptest.NewRequest(http.MethodOptions, "/products", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRestrictedOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

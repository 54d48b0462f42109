package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyexpense/internal/auth"
	"dailyexpense/internal/core"
	"dailyexpense/internal/identity"
	"dailyexpense/internal/services"
	"dailyexpense/internal/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type failingPing struct{}

func (failingPing) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	t      *testing.T
	srv    *Server
	store  *memory.Store
	tokens *identity.TokenIssuer
}

func newTestServer(t *testing.T, mode identity.Mode, mutate ...func(*Options)) *testServer {
	t.Helper()
	st := memory.New()
	tokens := identity.NewTokenIssuer("test-secret", time.Hour)
	resolver, err := identity.New(mode, tokens)
	require.NoError(t, err)

	opts := Options{
		Expenses:           services.NewExpenseService(st, nil, time.Second),
		Identity:           resolver,
		Health:             st,
		Backend:            "memory",
		Env:                "test",
		RateLimitPerMinute: 1000,
	}
	if mode == identity.ModeToken {
		svc, err := auth.NewService(st, tokens, 4)
		require.NoError(t, err)
		opts.Auth = svc
	}
	for _, m := range mutate {
		m(&opts)
	}

	srv, err := NewServer(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{t: t, srv: srv, store: st, tokens: tokens}
}

func (ts *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	ts.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(w, req)
	return w
}

func device(id string) map[string]string {
	return map[string]string{identity.DeviceHeader: id}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)

	st := memory.New()
	resolver, err := identity.New(identity.ModeToken, identity.NewTokenIssuer("s", time.Hour))
	require.NoError(t, err)
	_, err = NewServer(Options{
		Expenses: services.NewExpenseService(st, nil, time.Second),
		Identity: resolver,
		Health:   st,
	})
	assert.Error(t, err, "token mode without auth service")
}

func TestBannerAndUnknownRoute(t *testing.T) {
	ts := newTestServer(t, identity.ModeDevice)

	w := ts.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Banner, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = ts.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route not found", decode[map[string]string](t, w)["msg"])
}

func TestDeviceScenario(t *testing.T) {
	ts := newTestServer(t, identity.ModeDevice)

	w := ts.do(http.MethodPost, "/api/expenses", `{"amount":100,"category":"Food","note":"lunch","date":"2024-03-01"}`, device("d1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[map[string]any](t, w)
	assert.Equal(t, "d1", first["user"])
	assert.Equal(t, float64(100), first["amount"])
	assert.Equal(t, "2024-03-01T00:00:00Z", first["date"])

	w = ts.do(http.MethodPost, "/api/expenses", `{"amount":50,"category":"Food","date":"2024-03-02"}`, device("d1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/api/expenses", "", device("d1"))
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]map[string]any](t, w)
	require.Len(t, list, 2)
	assert.Equal(t, float64(50), list[0]["amount"], "newest date first")

	w = ts.do(http.MethodGet, "/api/expenses/summary", "", device("d1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"_id":"Food","category":"Food","totalAmount":150}]`, w.Body.String())

	w = ts.do(http.MethodGet, "/api/expenses", "", device("d2"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = ts.do(http.MethodGet, "/api/expenses/summary", "", device("d2"))
	assert.JSONEq(t, `[]`, w.Body.String())

	id := first["_id"].(string)
	w = ts.do(http.MethodPut, "/api/expenses/"+id, `{"amount":120}`, device("d2"))
	assert.Equal(t, http.StatusNotFound, w.Code, "other devices cannot see the expense")
	assert.Equal(t, "Expense not found", decode[map[string]string](t, w)["msg"])

	w = ts.do(http.MethodPut, "/api/expenses/"+id, `{"amount":120,"note":""}`, device("d1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[map[string]any](t, w)
	assert.Equal(t, float64(120), updated["amount"])
	assert.Equal(t, "", updated["note"])
	assert.Equal(t, "Food", updated["category"])

	w = ts.do(http.MethodDelete, "/api/expenses/"+id, "", device("d1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"msg":"Expense removed"}`, w.Body.String())

	w = ts.do(http.MethodDelete, "/api/expenses/"+id, "", device("d1"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMissingDeviceID(t *testing.T) {
	ts := newTestServer(t, identity.ModeDevice)
	w := ts.do(http.MethodGet, "/api/expenses", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, identity.ErrMissingDeviceID.Error(), decode[map[string]string](t, w)["msg"])
}

func TestOpenModeSharesOwner(t *testing.T) {
	ts := newTestServer(t, identity.ModeOpen)
	w := ts.do(http.MethodPost, "/api/expenses", `{"amount":5}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	assert.Equal(t, identity.PublicOwner, created["user"])
	assert.Equal(t, "Others", created["category"])

	w = ts.do(http.MethodGet, "/api/expenses", "", device("ignored"))
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = ts.do(http.MethodPost, "/api/auth/login", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "auth routes exist only in token mode")
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t, identity.ModeDevice)

	tests := []struct {
		name string
		body string
	}{
		{"missing amount", `{"category":"Food"}`},
		{"empty body", ``},
		{"negative amount", `{"amount":-1}`},
		{"amount not numeric", `{"amount":"abc"}`},
		{"unknown category", `{"amount":1,"category":"Rent"}`},
		{"bad date", `{"amount":1,"date":"yesterday"}`},
		{"note too long", `{"amount":1,"note":"` + strings.Repeat("x", 201) + `"}`},
		{"malformed json", `{"amount":`},
		{"amount at cap", `{"amount":10000000}`},
		{"amount far above cap", `{"amount":200000000000000000}`},
		{"huge exponent", `{"amount":1e100000000}`},
		{"tiny negative", `{"amount":-0.001}`},
		{"comma separator", `{"amount":"1,23"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/api/expenses", tt.body, device("d1"))
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, w)["msg"])
		})
	}

	w := ts.do(http.MethodPost, "/api/expenses", `{"amount":10000000}`, device("d1"))
	assert.Equal(t, core.ErrAmountTooLarge.Error(), decode[map[string]string](t, w)["msg"])

	w = ts.do(http.MethodGet, "/api/expenses", "", device("d1"))
	assert.JSONEq(t, `[]`, w.Body.String(), "rejected writes store nothing")

	w = ts.do(http.MethodPost, "/api/expenses", `{"amount":9999999.99}`, device("d1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := decode[map[string]any](t, w)["_id"].(string)
	w = ts.do(http.MethodPut, "/api/expenses/"+id, `{"amount":1e100000000}`, device("d1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(http.MethodPut, "/api/expenses/"+id, `{"amount":10000000.01}`, device("d1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBodyTooLarge(t *testing.T) {
	ts := newTestServer(t, identity.ModeDevice)
	body := `{"amount":1,"note":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	w := ts.do(http.MethodPost, "/api/expenses", body, device("d1"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestTokenFlow(t *testing.T) {
	ts := newTestServer(t, identity.ModeToken)

	w := ts.do(http.MethodPost, "/api/auth/register", `{"username":"sam","email":"Sam@Example.com","password":"secret1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reg := decode[map[string]any](t, w)
	token, _ := reg["token"].(string)
	require.NotEmpty(t, token)
	user := reg["user"].(map[string]any)
	assert.Equal(t, "sam@example.com", user["email"])
	assert.NotContains(t, w.Body.String(), "password")

	w = ts.do(http.MethodPost, "/api/auth/register", `{"username":"other","email":"sam@example.com","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, "/api/auth/login", `{"email":"sam@example.com","password":"wrong!!"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid Credentials", decode[map[string]string](t, w)["msg"])

	w = ts.do(http.MethodPost, "/api/auth/login", `{"email":"sam@example.com","password":"secret1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token = decode[map[string]any](t, w)["token"].(string)
	auth := map[string]string{identity.TokenHeader: token}

	w = ts.do(http.MethodGet, "/api/auth/me", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sam", decode[map[string]any](t, w)["username"])

	w = ts.do(http.MethodPost, "/api/expenses", `{"amount":12.5,"category":"Snacks"}`, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, user["id"], decode[map[string]any](t, w)["user"])

	w = ts.do(http.MethodGet, "/api/expenses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, identity.ErrMissingToken.Error(), decode[map[string]string](t, w)["msg"])

	w = ts.do(http.MethodGet, "/api/expenses", "", map[string]string{identity.TokenHeader: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	orphan, err := ts.tokens.Issue("no-such-account")
	require.NoError(t, err)
	w = ts.do(http.MethodGet, "/api/auth/me", "", map[string]string{identity.TokenHeader: orphan})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, identity.ModeDevice)
	w := ts.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	h := decode[map[string]any](t, w)
	assert.Equal(t, "UP", h["status"])
	assert.Equal(t, "Connected", h["db"])
	assert.Equal(t, "memory", h["backend"])
	assert.Equal(t, "device", h["identity"])
	assert.NotContains(t, h, "dbError")

	down := newTestServer(t, identity.ModeDevice, func(o *Options) { o.Health = failingPing{} })
	w = down.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	h = decode[map[string]any](t, w)
	assert.Equal(t, "UP", h["status"])
	assert.Equal(t, "Disconnected", h["db"])
	assert.Equal(t, "connection refused", h["dbError"])
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, identity.ModeDevice)
	w := ts.do(http.MethodOptions, "/api/expenses", "", map[string]string{
		"Origin":                         "http://localhost:3000",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "content-type,x-device-id",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	restricted := newTestServer(t, identity.ModeDevice, func(o *Options) {
		o.CORSAllowedOrigins = []string{"http://app.test"}
	})
	w = restricted.do(http.MethodOptions, "/api/expenses", "", map[string]string{
		"Origin":                        "http://evil.test",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimitOnWrites(t *testing.T) {
	ts := newTestServer(t, identity.ModeDevice, func(o *Options) { o.RateLimitPerMinute = 2 })
	for i := 0; i < 2; i++ {
		w := ts.do(http.MethodPost, "/api/expenses", `{"amount":1}`, device("d1"))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := ts.do(http.MethodPost, "/api/expenses", `{"amount":1}`, device("d1"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests, please try again later.", decode[map[string]string](t, w)["msg"])

	w = ts.do(http.MethodGet, "/api/expenses", "", device("d1"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServerErrorBody(t *testing.T) {
	prod := newTestServer(t, identity.ModeDevice)
	dev := newTestServer(t, identity.ModeDevice, func(o *Options) { o.Env = "development" })

	for _, ts := range []*testServer{prod, dev} {
		ts.srv.Handler.(*gin.Engine).GET("/boom", func(c *gin.Context) { panic("kaboom") })
		ts.srv.Handler.(*gin.Engine).GET("/fail", func(c *gin.Context) { ts.srv.writeError(c, errors.New("disk on fire")) })
	}

	w := prod.do(http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"msg":"Server Error"}`, w.Body.String())

	w = dev.do(http.MethodGet, "/boom", "", nil)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "Server Error", body["msg"])
	assert.Equal(t, "kaboom", body["error"])
	assert.NotEmpty(t, body["stack"])

	w = prod.do(http.MethodGet, "/fail", "", nil)
	assert.JSONEq(t, `{"msg":"Server Error"}`, w.Body.String())

	w = dev.do(http.MethodGet, "/fail", "", nil)
	assert.Equal(t, "disk on fire", decode[map[string]string](t, w)["error"])
}

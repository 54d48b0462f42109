package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	applog "dailyexpense/internal/log"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(buf *bytes.Buffer, status int, seen *string) *gin.Engine {
	logger := applog.New(applog.Config{Output: buf})
	r := gin.New()
	r.Use(NewMiddleware(logger).Handler())
	r.GET("/x", func(c *gin.Context) {
		*seen = GetRequestID(c.Request.Context())
		applog.FromContext(c.Request.Context()).Info("inside handler")
		c.Status(status)
	})
	return r
}

func TestGenerateRequestID(t *testing.T) {
	id := GenerateRequestID()
	if !strings.HasPrefix(id, "req_") || len(id) != len("req_")+16 {
		t.Errorf("unexpected request id %q", id)
	}
	if GenerateRequestID() == id {
		t.Errorf("request ids should differ")
	}
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	r := newRouter(&buf, http.StatusOK, &seen)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	header := w.Header().Get(HeaderRequestID)
	if header == "" || header != seen {
		t.Fatalf("header %q should match context id %q", header, seen)
	}
	if !strings.Contains(buf.String(), "inside handler") || !strings.Contains(buf.String(), "request_id="+header) {
		t.Errorf("handler log should carry the request id: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "HTTP request completed") {
		t.Errorf("expected completion log: %q", buf.String())
	}
}

func TestMiddlewareKeepsValidIncomingID(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	r := newRouter(&buf, http.StatusOK, &seen)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "client-abc_123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if seen != "client-abc_123" {
		t.Errorf("expected incoming id to be kept, got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "bad id\nwith newline")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if !strings.HasPrefix(seen, "req_") {
		t.Errorf("expected unsafe id to be replaced, got %q", seen)
	}
}

func TestMiddlewareLevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusNotFound, "level=WARN"},
		{http.StatusInternalServerError, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		var seen string
		r := newRouter(&buf, tt.status, &seen)
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		var completed string
		for _, line := range strings.Split(buf.String(), "\n") {
			if strings.Contains(line, "HTTP request completed") {
				completed = line
			}
		}
		if !strings.Contains(completed, tt.level) {
			t.Errorf("status %d: expected %s in %q", tt.status, tt.level, completed)
		}
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
}

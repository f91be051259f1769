package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/ackwire/internal/auth"
	"github.com/danmuck/ackwire/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T, cfg AdminConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg.Logger = testlog.Start(t)
	return NewAdminRouter(cfg)
}

func TestAdminHealth(t *testing.T) {
	r := newTestRouter(t, AdminConfig{Node: "ackd"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusOK)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "ackd" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAdminReady(t *testing.T) {
	ready := false
	r := newTestRouter(t, AdminConfig{Node: "ackd", Ready: func() bool { return ready }})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("not ready status got=%d", rec.Code)
	}

	ready = true
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ready status got=%d", rec.Code)
	}
}

func TestAdminMetricsAndStats(t *testing.T) {
	r := newTestRouter(t, AdminConfig{
		Node:  "ackd",
		Stats: func() any { return gin.H{"connections": 2} },
	})
	RecordFrame(DirectionOut, "blocking", 28)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status got=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ackwire_frames_total") {
		t.Fatalf("metrics output missing ackwire_frames_total")
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"connections":2`) {
		t.Fatalf("stats got=%d %s", rec.Code, rec.Body.String())
	}
}

func TestAdminCORS(t *testing.T) {
	r := newTestRouter(t, AdminConfig{Node: "ackd", CorsOrigins: []string{" http://ui.local ", ""}})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://ui.local")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://ui.local" {
		t.Fatalf("allow origin got=%q", got)
	}
}

func TestAdminStatsRequiresToken(t *testing.T) {
	r := newTestRouter(t, AdminConfig{
		Node:      "ackd",
		Stats:     func() any { return gin.H{"connections": 0} },
		StatsAuth: auth.StaticToken{Token: "s3cret"},
	})
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic s3cret", want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "accepted", header: "Bearer s3cret", want: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status got=%d want=%d", rec.Code, tc.want)
			}
		})
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health should stay open, got=%d", rec.Code)
	}
}

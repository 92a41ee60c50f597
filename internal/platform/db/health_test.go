package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name        string
		pingErr     error
		wantCode    int
		wantStatus  string
		wantHealthy bool
	}{
		{"healthy", nil, http.StatusOK, "healthy", true},
		{"unreachable", errors.New("connection refused"), http.StatusServiceUnavailable, "unhealthy", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := healthHandler(
				func(context.Context) error { return tt.pingErr },
				func() *PoolStats { return &PoolStats{TotalConns: 2, MaxConns: 20, Healthy: true} },
			)
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/health/db", nil)
			rec := httptest.NewRecorder()
			if err := h(e.NewContext(req, rec)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			var body struct {
				Status string    `json:"status"`
				Pool   PoolStats `json:"pool"`
			}
			json.Unmarshal(rec.Body.Bytes(), &body)
			if body.Status != tt.wantStatus || body.Pool.Healthy != tt.wantHealthy {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}

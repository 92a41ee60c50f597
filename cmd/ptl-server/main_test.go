package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/ptl/internal/config"
	"github.com/ehr/ptl/internal/platform/middleware"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		Env:                "test",
		StoreBackend:       config.BackendMemory,
		DBMaxConns:         20,
		DBMinConns:         5,
		AlertChannel:       "ptl:breach-alerts",
		ReevaluateInterval: time.Hour,
		ReevaluateWorkers:  2,
		ResolverTimeout:    time.Second,
		ClockTolerance:     24 * time.Hour,
		AlertBuffer:        16,
		CORSOrigins:        []string{"http://localhost:3000"},
	}
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	a, err := newApp(context.Background(), memoryConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.ActorHeader, "dr.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRootCmd_Subcommands(t *testing.T) {
	want := map[string]bool{"serve": false, "migrate": false, "reevaluate": false, "seed": false, "resolve": false}
	for _, c := range rootCmd().Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestNewApp_RejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreBackend = "cassandra"
	if _, err := newApp(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNewApp_RejectsBadRedisURL(t *testing.T) {
	cfg := memoryConfig()
	cfg.RedisURL = "not a url"
	if _, err := newApp(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("expected error for malformed REDIS_URL")
	}
}

func TestNewApp_RejectsBadWebhookURL(t *testing.T) {
	cfg := memoryConfig()
	cfg.AlertWebhookURL = "ftp://alerts.example.com"
	if _, err := newApp(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("expected error for non-http webhook url")
	}
}

func TestRouter_Health(t *testing.T) {
	e := newTestApp(t).router()
	rec := do(t, e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on responses")
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected request id header")
	}
}

func TestRouter_EndToEnd(t *testing.T) {
	a := newTestApp(t)
	e := a.router()

	start := time.Now().UTC().Add(-13*24*time.Hour - time.Hour).Format(time.RFC3339)
	rec := do(t, e, http.MethodPost, "/api/v1/pathways/cancer",
		`{"patient_id":"943 476 5919","display_name":"Jane Roe","pathway_kind":"two-week-wait","priority":"two-week-wait","clock_start_date":"`+start+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, e, http.MethodPost, "/api/v1/mdt-discussions",
		`{"patient_id":"9434765919","meeting_date":"`+time.Now().UTC().Format(time.RFC3339)+`","specialty":"Breast"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("mdt: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, e, http.MethodGet, "/api/v1/patients/943-476-5919", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view struct {
		DisplayName string   `json:"display_name"`
		FoundIn     []string `json:"found_in"`
		Degraded    bool     `json:"degraded"`
		Cancer      struct {
			Assessment struct {
				Tier         string `json:"tier"`
				DaysToBreach int    `json:"days_to_breach"`
			} `json:"assessment"`
		} `json:"cancer"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if strings.Join(view.FoundIn, ",") != "Cancer,MDT" {
		t.Errorf("found_in = %v, want [Cancer MDT]", view.FoundIn)
	}
	if view.DisplayName != "Jane Roe" {
		t.Errorf("display_name = %q", view.DisplayName)
	}
	if view.Degraded {
		t.Error("expected a complete view")
	}
	if view.Cancer.Assessment.Tier != "imminent" || view.Cancer.Assessment.DaysToBreach != 1 {
		t.Errorf("assessment = %+v, want imminent with 1 day to breach", view.Cancer.Assessment)
	}

	rec = do(t, e, http.MethodGet, "/api/v1/patients/0000000000", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown patient: expected 404, got %d", rec.Code)
	}

	rec = do(t, e, http.MethodPost, "/api/v1/reevaluate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reevaluate: expected 200, got %d", rec.Code)
	}
	var tick struct {
		Evaluated int `json:"evaluated"`
		Alerts    int `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &tick); err != nil {
		t.Fatalf("decode tick: %v", err)
	}
	if tick.Evaluated != 1 || tick.Alerts != 1 {
		t.Errorf("tick = %+v, want 1 evaluated and 1 alert", tick)
	}

	// the dispatcher delivers to the recent-alerts buffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.dispatcher.Run(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for len(a.recent.Recent(10)) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	rec = do(t, e, http.MethodGet, "/api/v1/alerts", "")
	var alerts struct {
		Alerts []struct {
			NewTier string `json:"new_tier"`
		} `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &alerts); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if len(alerts.Alerts) != 1 || alerts.Alerts[0].NewTier != "imminent" {
		t.Errorf("alerts = %+v, want one imminent alert", alerts.Alerts)
	}
}

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/chrissnell/spmanalyzer/internal/session"
	"github.com/chrissnell/spmanalyzer/internal/session/sessiontest"
	"github.com/chrissnell/spmanalyzer/pkg/config"
	"go.opentelemetry.io/otel"
)

func testConfig(t *testing.T) *config.ConfigData {
	t.Helper()
	cfg := &config.ConfigData{
		History: config.HistoryData{
			Backend:    config.HistorySQLite,
			SQLitePath: filepath.Join(t.TempDir(), "history.db"),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestBuildServesAPI(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := New(testConfig(t), nil)
	c, err := a.build(ctx, &sync.WaitGroup{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	handler := c.controller.Handler()
	body, _ := json.Marshal(map[string]string{"txt_path": sessiontest.WriteExperiment(t)})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(string(body))))
	if rr.Code != http.StatusCreated {
		t.Fatalf("open session: %d %s", rr.Code, rr.Body.String())
	}
	if got := len(c.sessions.List()); got != 1 {
		t.Errorf("open sessions = %d, want 1", got)
	}

	c.close()
	if got := len(c.sessions.List()); got != 0 {
		t.Errorf("sessions after close = %d, want 0", got)
	}
}

func TestBuildRejectsUnknownHistoryBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Backend = "cassandra"
	if _, err := New(cfg, nil).build(context.Background(), &sync.WaitGroup{}); err == nil {
		t.Fatal("expected an error for an unknown history backend")
	}
}

func TestBuildExportsTraces(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := testConfig(t)
	cfg.Tracing = config.TracingData{Enabled: true, File: filepath.Join(t.TempDir(), "spans.json")}

	c, err := New(cfg, nil).build(context.Background(), &sync.WaitGroup{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	handler := c.controller.Handler()

	body, _ := json.Marshal(map[string]string{"txt_path": sessiontest.WriteExperiment(t)})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(string(body))))
	var sum session.Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil {
		t.Fatalf("open session: %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet,
		"/api/sessions/"+sum.ID+"/cits/"+sessiontest.Matrix+"/profile?x1=0&y1=0&x2=1&y2=1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("profile: %d %s", rr.Code, rr.Body.String())
	}

	c.close()
	data, err := os.ReadFile(cfg.Tracing.File)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "analysis.line_profile") {
		t.Errorf("trace file has no line profile span:\n%s", data)
	}
}

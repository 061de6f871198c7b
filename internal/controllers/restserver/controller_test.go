package restserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io/fs"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/chrissnell/spmanalyzer/internal/analysis"
	"github.com/chrissnell/spmanalyzer/internal/charts"
	"github.com/chrissnell/spmanalyzer/internal/history"
	"github.com/chrissnell/spmanalyzer/internal/render"
	"github.com/chrissnell/spmanalyzer/internal/session"
	"github.com/chrissnell/spmanalyzer/internal/session/sessiontest"
	"github.com/chrissnell/spmanalyzer/pkg/cits"
	"github.com/chrissnell/spmanalyzer/pkg/config"
	"github.com/chrissnell/spmanalyzer/pkg/responseformat"
	"github.com/chrissnell/spmanalyzer/pkg/topo"
	"github.com/vmihailenco/msgpack/v5"
)

type testServer struct {
	handler http.Handler
	txtPath string
}

func newTestServer(t *testing.T, dataRoot string) *testServer {
	t.Helper()
	cfg := config.AnalysisData{DefaultSampling: "bresenham", DefaultMaxCurves: 20, MinInterpolatePoints: 2, CacheSize: 4}
	reg := session.NewRegistry(cfg.CacheSize, dataRoot, nil)
	store, err := history.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := analysis.NewService(reg, store, cfg, nil)
	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, config.ServerData{}, svc, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return &testServer{handler: ctrl.Handler(), txtPath: sessiontest.WriteExperiment(t)}
}

func (s *testServer) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) open(t *testing.T) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"txt_path": s.txtPath})
	rr := s.do(t, http.MethodPost, "/api/sessions", string(body))
	if rr.Code != http.StatusCreated {
		t.Fatalf("open session: status %d: %s", rr.Code, rr.Body.String())
	}
	var sum session.Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.ID == "" {
		t.Fatal("summary has no session id")
	}
	return sum.ID
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, "")
	id := srv.open(t)

	rr := srv.do(t, http.MethodGet, "/api/sessions", "")
	var list []session.Summary
	decode(t, rr, &list)
	if len(list) != 1 || list[0].ID != id {
		t.Fatalf("sessions = %+v", list)
	}

	rr = srv.do(t, http.MethodGet, "/api/sessions/"+id+"/files", "")
	var files []session.FileInfo
	decode(t, rr, &files)
	if len(files) != 4 {
		t.Fatalf("got %d files, want 4", len(files))
	}

	rr = srv.do(t, http.MethodGet, "/api/sessions/"+id+"/files?signal=nothing", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("unmatched filter body = %q, want []", rr.Body.String())
	}

	rr = srv.do(t, http.MethodGet, "/api/sessions/"+id+"/memory", "")
	if rr.Code != http.StatusOK {
		t.Errorf("memory status = %d", rr.Code)
	}

	rr = srv.do(t, http.MethodDelete, "/api/sessions/"+id, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("close status = %d", rr.Code)
	}
	rr = srv.do(t, http.MethodGet, "/api/sessions/"+id, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("closed session status = %d, want 404", rr.Code)
	}
}

func TestGetProfile(t *testing.T) {
	srv := newTestServer(t, "")
	id := srv.open(t)
	base := fmt.Sprintf("/api/sessions/%s/cits/%s/profile?x1=0&y1=0&x2=1&y2=1", id, sessiontest.Matrix)

	rr := srv.do(t, http.MethodGet, base, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var p cits.LineProfile
	decode(t, rr, &p)
	want := [][]float64{{-10, -7}, {0, 3}, {10, 13}}
	if len(p.Spectra) != len(want) {
		t.Fatalf("spectra = %v", p.Spectra)
	}
	for i := range want {
		for j := range want[i] {
			if math.Abs(p.Spectra[i][j]-want[i][j]) > 1e-9 {
				t.Errorf("spectra[%d][%d] = %v, want %v", i, j, p.Spectra[i][j], want[i][j])
			}
		}
	}
	if math.Abs(p.PhysicalLengthNM-math.Sqrt(13)) > 1e-9 {
		t.Errorf("length = %v, want sqrt(13)", p.PhysicalLengthNM)
	}

	rr = srv.do(t, http.MethodGet, base+"&format=msgpack", "")
	if ct := rr.Header().Get("Content-Type"); ct != "application/x-msgpack" {
		t.Fatalf("content type = %q", ct)
	}
	var mp cits.LineProfile
	dec := msgpack.NewDecoder(bytes.NewReader(rr.Body.Bytes()))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&mp); err != nil {
		t.Fatalf("decode msgpack: %v", err)
	}
	if mp.NPositions() != 2 || mp.Method != cits.MethodBresenham {
		t.Errorf("msgpack profile = %+v", mp)
	}

	rr = srv.do(t, http.MethodGet, base+"&method=interpolate&points=4", "")
	decode(t, rr, &p)
	if p.NPositions() != 4 {
		t.Errorf("interpolated positions = %d, want 4", p.NPositions())
	}
}

func TestAnalysisEndpoints(t *testing.T) {
	srv := newTestServer(t, "")
	id := srv.open(t)
	cube := fmt.Sprintf("/api/sessions/%s/cits/%s", id, sessiontest.Matrix)
	line := "x1=0&y1=0&x2=1&y2=1"

	tests := []struct {
		name   string
		target string
	}{
		{"curves", cube + "/curves?" + line + "&max=2"},
		{"cross-section", cube + "/profile?x1=0&y1=1&x2=2&y2=1&across=2"},
		{"topo cross-section", fmt.Sprintf("/api/sessions/%s/topo/%s/profile?x1=0&y1=1&x2=2&y2=1&across=2", id, sessiontest.TopoFwd)},
		{"stats", cube + "/stats?" + line},
		{"alignment", cube + "/alignment?" + line},
		{"slice", cube + "/slice/1"},
		{"slice by value", cube + "/slice/0.4?by=value"},
		{"spectrum", cube + "/spectrum?x=1&y=0"},
		{"topography", fmt.Sprintf("/api/sessions/%s/topo/%s?flatten=plane", id, sessiontest.TopoFwd)},
		{"topo profile", fmt.Sprintf("/api/sessions/%s/topo/%s/profile?x1=0&y1=0&x2=1&y2=0", id, sessiontest.TopoFwd)},
		{"fft", fmt.Sprintf("/api/sessions/%s/topo/%s/fft", id, sessiontest.TopoFwd)},
		{"sts", fmt.Sprintf("/api/sessions/%s/sts/%s", id, sessiontest.Point)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.do(t, http.MethodGet, tt.target, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
			}
		})
	}

	var slice analysis.SliceResult
	decode(t, srv.do(t, http.MethodGet, cube+"/slice/0.4?by=value", ""), &slice)
	if slice.BiasSlice == nil || slice.BiasIndex != 1 || slice.Data[1][0] != 2 {
		t.Errorf("slice = %+v", slice.BiasSlice)
	}
	if slice.XRangeNM != 4 || slice.YRangeNM != 6 {
		t.Errorf("slice ranges = %v x %v, want 4 x 6", slice.XRangeNM, slice.YRangeNM)
	}

	var spec analysis.SpectrumResult
	decode(t, srv.do(t, http.MethodGet, cube+"/spectrum?x=1&y=0", ""), &spec)
	want := []float64{-9, 1, 11}
	for i, v := range want {
		if spec.PointSpectrum == nil || spec.Current[i] != v {
			t.Fatalf("spectrum = %+v, want current %v", spec.PointSpectrum, want)
		}
	}
}

func TestErrorStatus(t *testing.T) {
	srv := newTestServer(t, "")
	id := srv.open(t)
	cube := fmt.Sprintf("/api/sessions/%s/cits/%s", id, sessiontest.Matrix)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"unknown session", http.MethodGet, "/api/sessions/nope", "", http.StatusNotFound},
		{"unknown file", http.MethodGet, fmt.Sprintf("/api/sessions/%s/cits/missing/profile?x1=0&y1=0&x2=1&y2=1", id), "", http.StatusNotFound},
		{"missing coordinate", http.MethodGet, cube + "/profile?x1=0&y1=0&x2=1", "", http.StatusBadRequest},
		{"bad coordinate", http.MethodGet, cube + "/profile?x1=a&y1=0&x2=1&y2=1", "", http.StatusBadRequest},
		{"bad method", http.MethodGet, cube + "/profile?x1=0&y1=0&x2=1&y2=1&method=spline", "", http.StatusBadRequest},
		{"negative cross-section", http.MethodGet, cube + "/profile?x1=0&y1=0&x2=1&y2=1&across=-2", "", http.StatusBadRequest},
		{"too many points", http.MethodGet, cube + "/profile?x1=0&y1=0&x2=1&y2=1&method=interpolate&points=100000000", "", http.StatusBadRequest},
		{"points overflow", http.MethodGet, cube + "/curves?x1=0&y1=0&x2=1&y2=1&method=interpolate&points=4611686018427387903", "", http.StatusBadRequest},
		{"slice out of range", http.MethodGet, cube + "/slice/9", "", http.StatusBadRequest},
		{"slice selector", http.MethodGet, cube + "/slice/1?by=name", "", http.StatusBadRequest},
		{"wrong kind", http.MethodGet, fmt.Sprintf("/api/sessions/%s/topo/%s", id, sessiontest.Matrix), "", http.StatusBadRequest},
		{"sts threshold", http.MethodGet, fmt.Sprintf("/api/sessions/%s/sts/%s?threshold=2", id, sessiontest.Point), "", http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/sessions", "{}", http.StatusBadRequest},
		{"missing experiment", http.MethodPost, "/api/sessions", `{"txt_path":"/nonexistent/experiment.txt"}`, http.StatusNotFound},
		{"history limit", http.MethodGet, "/api/history?limit=x", "", http.StatusBadRequest},
		{"log type", http.MethodGet, "/api/logs?type=audit", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.do(t, tt.method, tt.target, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
			var body responseformat.ErrorBody
			decode(t, rr, &body)
			if body.Status != tt.want || body.Error == "" {
				t.Errorf("error body = %+v", body)
			}
		})
	}
}

func TestForbiddenPath(t *testing.T) {
	srv := newTestServer(t, t.TempDir())
	body, _ := json.Marshal(map[string]string{"txt_path": srv.txtPath})
	rr := srv.do(t, http.MethodPost, "/api/sessions", string(body))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rr.Code, rr.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", session.ErrUnknownSession), http.StatusNotFound},
		{fs.ErrNotExist, http.StatusNotFound},
		{session.ErrForbiddenPath, http.StatusForbidden},
		{cits.ErrEmptyCube, http.StatusUnprocessableEntity},
		{topo.ErrEmptyImage, http.StatusUnprocessableEntity},
		{render.ErrNoData, http.StatusUnprocessableEntity},
		{cits.ErrInvalidSamplingMethod, http.StatusBadRequest},
		{analysis.ErrInvalidRequest, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestChartDegradation(t *testing.T) {
	srv := newTestServer(t, "")
	id := srv.open(t)
	cube := fmt.Sprintf("/api/sessions/%s/cits/%s", id, sessiontest.Matrix)

	rr := srv.do(t, http.MethodGet, cube+"/profile?x1=0&y1=0&x2=1&y2=1&chart=1", "")
	var fig charts.Figure
	decode(t, rr, &fig)
	if rr.Code != http.StatusOK || len(fig.Data) != 1 || fig.Data[0].Type != "heatmap" {
		t.Fatalf("chart = %d %+v", rr.Code, fig)
	}

	rr = srv.do(t, http.MethodGet, cube+"/profile?x1=0&y1=0&x2=1&y2=1&method=spline&chart=1", "")
	fig = charts.Figure{}
	decode(t, rr, &fig)
	if rr.Code != http.StatusOK || !fig.Layout.Placeholder || fig.Layout.Annotation == "" {
		t.Fatalf("degraded chart = %d %+v", rr.Code, fig)
	}

	rr = srv.do(t, http.MethodGet, "/api/sessions/nope/cits/x/profile?x1=0&y1=0&x2=1&y2=1&chart=1", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown session chart status = %d, want 404", rr.Code)
	}
}

func TestPNGEndpoints(t *testing.T) {
	srv := newTestServer(t, "")
	id := srv.open(t)
	cube := fmt.Sprintf("/api/sessions/%s/cits/%s", id, sessiontest.Matrix)

	for _, target := range []string{
		cube + "/profile.png?x1=0&y1=0&x2=1&y2=1",
		cube + "/curves.png?x1=0&y1=0&x2=1&y2=1",
		cube + "/slice/0.png",
	} {
		rr := srv.do(t, http.MethodGet, target, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status %d: %s", target, rr.Code, rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s: content type = %q", target, ct)
		}
		if _, err := png.Decode(rr.Body); err != nil {
			t.Errorf("%s: decode png: %v", target, err)
		}
	}

	rr := srv.do(t, http.MethodGet, cube+"/profile.png?x1=0", "")
	if rr.Code != http.StatusBadRequest || !strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		t.Errorf("bad png request = %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}
}

func TestHistoryAndLogs(t *testing.T) {
	srv := newTestServer(t, "")
	id := srv.open(t)
	srv.do(t, http.MethodGet, fmt.Sprintf("/api/sessions/%s/cits/%s/stats?x1=0&y1=0&x2=1&y2=1", id, sessiontest.Matrix), "")

	var entries []history.Entry
	decode(t, srv.do(t, http.MethodGet, "/api/history?limit=5", ""), &entries)
	if len(entries) != 1 || entries[0].Operation != analysis.OpProfileStats || entries[0].SessionID != id {
		t.Fatalf("history = %+v", entries)
	}

	rr := srv.do(t, http.MethodGet, "/api/logs?limit=1000", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("logs status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "/api/history?limit=5") {
		t.Errorf("http log does not contain the history request: %s", rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "/api/logs") {
		t.Error("log requests should not be logged")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, "")
	srv.open(t)
	rr := srv.do(t, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}
	for _, name := range []string{"spmanalyzer_http_requests_total", "spmanalyzer_sessions_open"} {
		if !strings.Contains(rr.Body.String(), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

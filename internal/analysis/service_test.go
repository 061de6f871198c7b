package analysis

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/chrissnell/spmanalyzer/internal/history"
	"github.com/chrissnell/spmanalyzer/internal/session"
	"github.com/chrissnell/spmanalyzer/internal/session/sessiontest"
	"github.com/chrissnell/spmanalyzer/pkg/cits"
	"github.com/chrissnell/spmanalyzer/pkg/config"
	"github.com/chrissnell/spmanalyzer/pkg/geometry"
	"github.com/chrissnell/spmanalyzer/pkg/sts"
	"github.com/chrissnell/spmanalyzer/pkg/topo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const epsilon = 1e-9

type recorder struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (r *recorder) Record(_ context.Context, e history.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *recorder) Recent(_ context.Context, n int) ([]history.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []history.Entry{}
	for i := len(r.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.entries[i])
	}
	return out, nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) last() history.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[len(r.entries)-1]
}

func newService(t *testing.T) (*Service, *recorder, string) {
	t.Helper()
	cfg := config.AnalysisData{DefaultSampling: "bresenham", DefaultMaxCurves: 20, MinInterpolatePoints: 5, CacheSize: 4}
	reg := session.NewRegistry(cfg.CacheSize, "", nil)
	sess, err := reg.Open(sessiontest.WriteExperiment(t))
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	rec := &recorder{}
	return NewService(reg, rec, cfg, nil), rec, sess.ID
}

func TestLineProfile(t *testing.T) {
	svc, rec, id := newService(t)
	ctx := context.Background()

	p, err := svc.LineProfile(ctx, ProfileRequest{
		SessionID: id,
		File:      sessiontest.Matrix,
		Start:     geometry.Pt(0, 0),
		End:       geometry.Pt(1, 1),
	})
	if err != nil {
		t.Fatalf("LineProfile: %v", err)
	}
	if p.Method != cits.MethodBresenham || p.NPositions() != 2 {
		t.Fatalf("profile = %+v", p)
	}
	want := [][]float64{{-10, -7}, {0, 3}, {10, 13}}
	for b, row := range want {
		for i, v := range row {
			if p.Spectra[b][i] != v {
				t.Errorf("Spectra[%d][%d] = %g, expected %g", b, i, p.Spectra[b][i], v)
			}
		}
	}
	// 2 nm per pixel along x, 3 nm along y
	if math.Abs(p.PhysicalLengthNM-math.Sqrt(13)) > epsilon {
		t.Errorf("length = %g", p.PhysicalLengthNM)
	}

	e := rec.last()
	if e.Operation != OpLineProfile || e.SessionID != id || e.FileKey != sessiontest.Matrix || e.Error != "" {
		t.Errorf("history entry = %+v", e)
	}
}

func TestLineProfileInterpolateMinimum(t *testing.T) {
	svc, _, id := newService(t)
	p, err := svc.LineProfile(context.Background(), ProfileRequest{
		SessionID: id,
		File:      sessiontest.Matrix,
		Start:     geometry.Pt(0, 0),
		End:       geometry.Pt(1, 0),
		Method:    "interpolate",
		Points:    3,
	})
	if err != nil {
		t.Fatalf("LineProfile: %v", err)
	}
	if p.NPositions() != 5 {
		t.Errorf("positions = %d, expected the configured minimum 5", p.NPositions())
	}
}

func TestLineProfileErrors(t *testing.T) {
	svc, rec, id := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  ProfileRequest
		want error
	}{
		{"unknown session", ProfileRequest{SessionID: "nope", File: sessiontest.Matrix}, session.ErrUnknownSession},
		{"unknown file", ProfileRequest{SessionID: id, File: "missing"}, session.ErrNotFound},
		{"wrong kind", ProfileRequest{SessionID: id, File: sessiontest.TopoFwd}, session.ErrWrongKind},
		{"bad sampling", ProfileRequest{SessionID: id, File: sessiontest.Matrix, Method: "spline"}, cits.ErrInvalidSamplingMethod},
		{"bad endpoint", ProfileRequest{SessionID: id, File: sessiontest.Matrix, End: geometry.Pt(math.NaN(), 0)}, cits.ErrInvalidParameter},
		{"too many points", ProfileRequest{SessionID: id, File: sessiontest.Matrix, End: geometry.Pt(1, 1), Method: "interpolate", Points: config.DefaultMaxInterpolatePoints + 1}, cits.ErrInvalidParameter},
		{"points overflow", ProfileRequest{SessionID: id, File: sessiontest.Matrix, End: geometry.Pt(1, 1), Method: "interpolate", Points: math.MaxInt / 2}, cits.ErrInvalidParameter},
		{"negative cross-section", ProfileRequest{SessionID: id, File: sessiontest.Matrix, End: geometry.Pt(1, 1), Across: -1}, ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.LineProfile(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, expected %v", err, tt.want)
			}
			if rec.last().Error == "" {
				t.Error("failure not recorded in history")
			}
		})
	}
}

func TestLineProfileCrossSection(t *testing.T) {
	svc, _, id := newService(t)
	ctx := context.Background()

	// The horizontal line y=1 from x=0 to 2 is crossed at x=1 by a vertical
	// segment of 2 pixels, clamped to (1,0)-(1,1) on the 2x2 grid.
	p, err := svc.LineProfile(ctx, ProfileRequest{
		SessionID: id,
		File:      sessiontest.Matrix,
		Start:     geometry.Pt(0, 1),
		End:       geometry.Pt(2, 1),
		Across:    2,
	})
	if err != nil {
		t.Fatalf("LineProfile: %v", err)
	}
	if p.NPositions() != 2 {
		t.Fatalf("positions = %d, expected 2", p.NPositions())
	}
	for i, want := range []geometry.Point2D{geometry.Pt(1, 0), geometry.Pt(1, 1)} {
		if got := geometry.Pt(p.XCoords[i], p.YCoords[i]); got.Distance(want) > epsilon {
			t.Errorf("position %d = %v, expected %v", i, got, want)
		}
	}
	if p.Spectra[0][0] != -9 || p.Spectra[0][1] != -7 {
		t.Errorf("lowest bias row = %v, expected [-9 -7]", p.Spectra[0])
	}

	req := TopoRequest{SessionID: id, File: sessiontest.TopoBwd}
	across, err := svc.TopoProfile(ctx, TopoProfileRequest{TopoRequest: req, Start: geometry.Pt(0, 1), End: geometry.Pt(2, 1), Across: 2})
	if err != nil {
		t.Fatalf("TopoProfile across: %v", err)
	}
	direct, err := svc.TopoProfile(ctx, TopoProfileRequest{TopoRequest: req, Start: geometry.Pt(1, 0), End: geometry.Pt(1, 1)})
	if err != nil {
		t.Fatalf("TopoProfile: %v", err)
	}
	if len(across.Heights) != len(direct.Heights) {
		t.Fatalf("heights = %v, expected %v", across.Heights, direct.Heights)
	}
	for i := range direct.Heights {
		if across.Heights[i] != direct.Heights[i] {
			t.Errorf("height %d = %g, expected %g", i, across.Heights[i], direct.Heights[i])
		}
	}

	if _, err := svc.TopoProfile(ctx, TopoProfileRequest{TopoRequest: req, End: geometry.Pt(1, 0), Across: math.Inf(1)}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("infinite cross-section error = %v", err)
	}
}

func TestCurves(t *testing.T) {
	svc, _, id := newService(t)
	ctx := context.Background()
	base := ProfileRequest{SessionID: id, File: sessiontest.Matrix, Start: geometry.Pt(0, 0), End: geometry.Pt(1, 1)}

	res, err := svc.Curves(ctx, CurvesRequest{ProfileRequest: base, MaxCurves: 1})
	if err != nil {
		t.Fatalf("Curves: %v", err)
	}
	if len(res.Selection.Spectra) != 1 || res.Profile.NPositions() != 2 {
		t.Errorf("selection = %+v", res.Selection)
	}

	// zero falls back to the configured maximum
	res, err = svc.Curves(ctx, CurvesRequest{ProfileRequest: base})
	if err != nil {
		t.Fatalf("Curves default: %v", err)
	}
	if len(res.Selection.Spectra) != 2 {
		t.Errorf("default selection has %d curves", len(res.Selection.Spectra))
	}

	if _, err := svc.Curves(ctx, CurvesRequest{ProfileRequest: base, Select: "random"}); !errors.Is(err, cits.ErrInvalidParameter) {
		t.Errorf("bad select error = %v", err)
	}
}

func TestStatisticsAndAlignment(t *testing.T) {
	svc, _, id := newService(t)
	ctx := context.Background()
	base := ProfileRequest{SessionID: id, File: sessiontest.Matrix, Start: geometry.Pt(0, 0), End: geometry.Pt(1, 1)}

	st, err := svc.ProfileStatistics(ctx, base)
	if err != nil {
		t.Fatalf("ProfileStatistics: %v", err)
	}
	if st.Global.Min != -10 || st.Global.Max != 13 {
		t.Errorf("global = %+v", st.Global)
	}

	a, err := svc.Alignment(ctx, AlignRequest{ProfileRequest: base, Reference: -1})
	if err != nil {
		t.Fatalf("Alignment: %v", err)
	}
	if a.Reference != 1 || len(a.Shifts) != 2 || a.Shifts[1] != 0 {
		t.Errorf("alignment = %+v", a)
	}
	if _, err := svc.Alignment(ctx, AlignRequest{ProfileRequest: base, Align: "valley"}); !errors.Is(err, cits.ErrInvalidParameter) {
		t.Errorf("bad align error = %v", err)
	}
}

func TestBiasSlice(t *testing.T) {
	svc, _, id := newService(t)
	ctx := context.Background()

	res, err := svc.BiasSlice(ctx, SliceRequest{SessionID: id, File: sessiontest.Matrix, Bias: 0.4, ByValue: true})
	if err != nil {
		t.Fatalf("BiasSlice: %v", err)
	}
	if res.BiasIndex != 1 || res.Data[1][0] != 2 || res.XRangeNM != 4 || res.YRangeNM != 6 {
		t.Errorf("slice = %+v", res)
	}

	if _, err := svc.BiasSlice(ctx, SliceRequest{SessionID: id, File: sessiontest.Matrix, Index: 3}); !errors.Is(err, cits.ErrIndexOutOfRange) {
		t.Errorf("out of range error = %v", err)
	}
}

func TestPointSpectrum(t *testing.T) {
	svc, _, id := newService(t)
	res, err := svc.PointSpectrum(context.Background(), id, sessiontest.Matrix, 1, 0)
	if err != nil {
		t.Fatalf("PointSpectrum: %v", err)
	}
	want := []float64{-9, 1, 11}
	for i, v := range want {
		if res.Current[i] != v {
			t.Errorf("current = %v, expected %v", res.Current, want)
			break
		}
	}
	for i, g := range res.Conductance {
		if math.Abs(g-10) > epsilon {
			t.Errorf("conductance[%d] = %g, expected 10", i, g)
		}
	}
	if len(res.BiasAxis) != 3 {
		t.Errorf("bias axis = %v", res.BiasAxis)
	}
}

func TestTopography(t *testing.T) {
	svc, _, id := newService(t)
	ctx := context.Background()

	raw, err := svc.Topography(ctx, TopoRequest{SessionID: id, File: sessiontest.TopoFwd})
	if err != nil {
		t.Fatalf("Topography: %v", err)
	}
	if raw.Stats.Count != 4 {
		t.Errorf("stats = %+v", raw.Stats)
	}

	flat, err := svc.Topography(ctx, TopoRequest{SessionID: id, File: sessiontest.TopoFwd, Flatten: "linewise_mean"})
	if err != nil {
		t.Fatalf("Topography flattened: %v", err)
	}
	if math.Abs(flat.Stats.Mean) > epsilon {
		t.Errorf("flattened mean = %g", flat.Stats.Mean)
	}
	// the cached image is untouched
	again, _ := svc.Topography(ctx, TopoRequest{SessionID: id, File: sessiontest.TopoFwd})
	if again.Stats.Mean != raw.Stats.Mean {
		t.Errorf("cached image modified: mean %g -> %g", raw.Stats.Mean, again.Stats.Mean)
	}

	if _, err := svc.Topography(ctx, TopoRequest{SessionID: id, File: sessiontest.TopoFwd, Flatten: "magic"}); !errors.Is(err, topo.ErrInvalidParameter) {
		t.Errorf("bad flatten error = %v", err)
	}
}

func TestTopoProfileAndFFT(t *testing.T) {
	svc, _, id := newService(t)
	ctx := context.Background()
	req := TopoRequest{SessionID: id, File: sessiontest.TopoBwd}

	p, err := svc.TopoProfile(ctx, TopoProfileRequest{TopoRequest: req, Start: geometry.Pt(0, 0), End: geometry.Pt(1, 0)})
	if err != nil {
		t.Fatalf("TopoProfile: %v", err)
	}
	if len(p.Heights) != 2 || p.Method != topo.ProfileBresenham {
		t.Errorf("profile = %+v", p)
	}

	res, err := svc.PowerSpectrum(ctx, FFTRequest{TopoRequest: req, Window: "none"})
	if err != nil {
		t.Fatalf("PowerSpectrum: %v", err)
	}
	if res.Spectrum == nil || res.Radial == nil {
		t.Errorf("fft = %+v", res)
	}
	if _, err := svc.PowerSpectrum(ctx, FFTRequest{TopoRequest: req, Window: "kaiser"}); !errors.Is(err, topo.ErrInvalidParameter) {
		t.Errorf("bad window error = %v", err)
	}
}

func TestSTS(t *testing.T) {
	svc, _, id := newService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		point int
	}{
		{"point", 0},
		{"average", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.STS(ctx, STSRequest{SessionID: id, File: sessiontest.Point, Point: tt.point, Fit: true})
			if err != nil {
				t.Fatalf("STS: %v", err)
			}
			if res.Point != tt.point || res.Gap == nil || res.Peaks == nil {
				t.Errorf("result = %+v", res)
			}
			for i, g := range res.Conductance.DIDV {
				if math.Abs(g-2) > epsilon {
					t.Errorf("didv[%d] = %g, expected 2", i, g)
				}
			}
			// three samples are too few to fit
			if res.Fit != nil || res.FitError == "" {
				t.Errorf("fit = %+v, error %q", res.Fit, res.FitError)
			}
		})
	}

	if _, err := svc.STS(ctx, STSRequest{SessionID: id, File: sessiontest.Point, Point: 4}); !errors.Is(err, sts.ErrIndexOutOfRange) {
		t.Errorf("bad point error = %v", err)
	}
	if _, err := svc.STS(ctx, STSRequest{SessionID: id, File: sessiontest.Point, Threshold: 2}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("bad threshold error = %v", err)
	}

	res, err := svc.STS(ctx, STSRequest{SessionID: id, File: sessiontest.Point, Point: -1, Smooth: 3})
	if err != nil {
		t.Fatalf("smoothed STS: %v", err)
	}
	if len(res.Smoothed) != 3 || math.Abs(res.Smoothed[1]-2) > epsilon {
		t.Errorf("smoothed = %v", res.Smoothed)
	}
	if _, err := svc.STS(ctx, STSRequest{SessionID: id, File: sessiontest.Point, Smooth: 2}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("even kernel error = %v", err)
	}
}

func TestHistory(t *testing.T) {
	svc, _, id := newService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = svc.PointSpectrum(ctx, id, sessiontest.Matrix, i%2, 0)
	}
	entries, err := svc.History(ctx, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 || entries[0].Operation != OpPointSpectrum {
		t.Errorf("history = %+v", entries)
	}
}

func TestRunRecordsSpans(t *testing.T) {
	svc, _, id := newService(t)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())
	svc.SetTracerProvider(tp)

	ctx := context.Background()
	req := ProfileRequest{SessionID: id, File: sessiontest.Matrix, Start: geometry.Pt(0, 0), End: geometry.Pt(1, 1)}
	if _, err := svc.LineProfile(ctx, req); err != nil {
		t.Fatalf("LineProfile: %v", err)
	}
	req.File = "missing"
	if _, err := svc.LineProfile(ctx, req); err == nil {
		t.Fatal("expected an error for a missing file")
	}

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, expected 2", len(spans))
	}
	tests := []struct {
		file   string
		code   codes.Code
		events int
	}{
		{sessiontest.Matrix, codes.Ok, 0},
		{"missing", codes.Error, 1},
	}
	for i, tt := range tests {
		span := spans[i]
		if span.Name() != "analysis."+OpLineProfile {
			t.Errorf("span %d name = %q", i, span.Name())
		}
		if span.Status().Code != tt.code {
			t.Errorf("span %d status = %v, expected %v", i, span.Status().Code, tt.code)
		}
		if len(span.Events()) != tt.events {
			t.Errorf("span %d events = %d, expected %d", i, len(span.Events()), tt.events)
		}
		attrs := map[attribute.Key]string{}
		for _, kv := range span.Attributes() {
			attrs[kv.Key] = kv.Value.AsString()
		}
		if attrs["session_id"] != id || attrs["file"] != tt.file {
			t.Errorf("span %d attributes = %v", i, attrs)
		}
	}
}

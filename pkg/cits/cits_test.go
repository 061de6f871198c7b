package cits

import (
	"errors"
	"math"
	"testing"

	"github.com/chrissnell/spmanalyzer/pkg/geometry"
)

const epsilon = 1e-9

// scenarioCube is a 10x10 grid over 10 nm with bias [-1, 0, 1] and
// values[b][y][x] = b*100 + y*10 + x.
func scenarioCube(t *testing.T) *DataCube {
	t.Helper()
	bias := []float64{-1, 0, 1}
	values := make([]float64, 0, 300)
	for b := range bias {
		for y := 0; y < 10; y++ {
			for x := 0; x < 10; x++ {
				values = append(values, float64(b*100+y*10+x))
			}
		}
	}
	cube, err := NewDataCube(values, bias, 10, 10, 10, 10)
	if err != nil {
		t.Fatalf("NewDataCube: %v", err)
	}
	return cube
}

func TestNewDataCube(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		bias       []float64
		cols, rows int
		xr, yr     float64
		wantErr    bool
	}{
		{name: "valid", values: make([]float64, 12), bias: []float64{0, 1}, cols: 3, rows: 2, xr: 1, yr: 1},
		{name: "no bias", values: nil, bias: nil, cols: 3, rows: 2, xr: 1, yr: 1},
		{name: "length mismatch", values: make([]float64, 11), bias: []float64{0, 1}, cols: 3, rows: 2, xr: 1, yr: 1, wantErr: true},
		{name: "negative cols", values: nil, bias: []float64{0}, cols: -1, rows: 2, xr: 1, yr: 1, wantErr: true},
		{name: "zero range", values: make([]float64, 6), bias: []float64{0}, cols: 3, rows: 2, xr: 0, yr: 1, wantErr: true},
		{name: "infinite range", values: make([]float64, 6), bias: []float64{0}, cols: 3, rows: 2, xr: 1, yr: math.Inf(1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDataCube(tt.values, tt.bias, tt.cols, tt.rows, tt.xr, tt.yr)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDimension) {
					t.Errorf("error = %v, expected ErrInvalidDimension", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCubeAccessors(t *testing.T) {
	cube := scenarioCube(t)
	if got := cube.At(2, 3, 4); got != 234 {
		t.Errorf("At(2,3,4) = %g, expected 234", got)
	}
	col := cube.Column(7, 1)
	for b, want := range []float64{71, 171, 271} {
		if col[b] != want {
			t.Errorf("Column[%d] = %g, expected %g", b, col[b], want)
		}
	}
	if cols, rows := cube.GridSize(); cols != 10 || rows != 10 {
		t.Errorf("GridSize = %d, %d", cols, rows)
	}
	if idx, _ := cube.NearestBiasIndex(0.4); idx != 1 {
		t.Errorf("NearestBiasIndex(0.4) = %d, expected 1", idx)
	}
	if cube.SizeBytes() != 303*8 {
		t.Errorf("SizeBytes = %d", cube.SizeBytes())
	}
}

func TestExtractLineProfileDiagonal(t *testing.T) {
	cube := scenarioCube(t)
	p, err := ExtractLineProfile(cube, geometry.Pt(0, 0), geometry.Pt(9, 9), Rasterized{})
	if err != nil {
		t.Fatalf("ExtractLineProfile: %v", err)
	}
	if p.Method != MethodBresenham {
		t.Errorf("method = %q", p.Method)
	}
	if p.NPositions() != 10 {
		t.Fatalf("positions = %d, expected 10", p.NPositions())
	}

	first, _ := p.Spectrum(0)
	last, _ := p.Spectrum(9)
	for b := range first {
		if want := float64(b * 100); first[b] != want {
			t.Errorf("first[%d] = %g, expected %g", b, first[b], want)
		}
		if want := float64(b*100 + 99); last[b] != want {
			t.Errorf("last[%d] = %g, expected %g", b, last[b], want)
		}
	}

	for i, d := range p.DistancesNM {
		if want := float64(i) * math.Sqrt2; math.Abs(d-want) > epsilon {
			t.Errorf("distance[%d] = %g, expected %g", i, d, want)
		}
	}
	if math.Abs(p.PhysicalLengthNM-9*math.Sqrt2) > epsilon {
		t.Errorf("physical length = %g", p.PhysicalLengthNM)
	}
}

func TestExtractLineProfileInvariants(t *testing.T) {
	cube := scenarioCube(t)
	segments := [][2]geometry.Point2D{
		{geometry.Pt(0, 0), geometry.Pt(9, 9)},
		{geometry.Pt(9, 2), geometry.Pt(1, 7)},
		{geometry.Pt(0.3, 8.7), geometry.Pt(6.2, 0.4)},
		{geometry.Pt(4, 0), geometry.Pt(4, 9)},
		{geometry.Pt(-3, 5), geometry.Pt(14, 5)},
		{geometry.Pt(2, 2), geometry.Pt(2.2, 2.1)},
	}
	samplings := []Sampling{Rasterized{}, Interpolated{}, Interpolated{Points: 7}}

	for _, seg := range segments {
		for _, s := range samplings {
			p, err := ExtractLineProfile(cube, seg[0], seg[1], s)
			if err != nil {
				t.Fatalf("%v %T: %v", seg, s, err)
			}
			if len(p.Spectra) != len(cube.BiasAxis) {
				t.Errorf("%v %T: %d spectra rows, expected %d", seg, s, len(p.Spectra), len(cube.BiasAxis))
			}
			n := len(p.DistancesNM)
			if len(p.XCoords) != n || len(p.YCoords) != n {
				t.Errorf("%v %T: coords %d/%d, distances %d", seg, s, len(p.XCoords), len(p.YCoords), n)
			}
			for b, row := range p.Spectra {
				if len(row) != n {
					t.Errorf("%v %T: row %d has %d positions, expected %d", seg, s, b, len(row), n)
				}
			}
			if p.DistancesNM[0] != 0 {
				t.Errorf("%v %T: first distance %g", seg, s, p.DistancesNM[0])
			}
			for i := 1; i < n; i++ {
				if p.DistancesNM[i] < p.DistancesNM[i-1] {
					t.Errorf("%v %T: distances decrease at %d", seg, s, i)
				}
			}
			for i := range p.XCoords {
				if p.XCoords[i] < 0 || p.XCoords[i] > 9 || p.YCoords[i] < 0 || p.YCoords[i] > 9 {
					t.Errorf("%v %T: sample (%g, %g) outside grid", seg, s, p.XCoords[i], p.YCoords[i])
				}
			}
		}
	}
}

func TestExtractLineProfileBresenhamEndpoints(t *testing.T) {
	cube := scenarioCube(t)
	p, err := ExtractLineProfile(cube, geometry.Pt(1.4, 7.6), geometry.Pt(8.5, 2.2), nil)
	if err != nil {
		t.Fatalf("ExtractLineProfile: %v", err)
	}
	n := p.NPositions()
	if p.XCoords[0] != 1 || p.YCoords[0] != 8 {
		t.Errorf("first sample (%g, %g), expected (1, 8)", p.XCoords[0], p.YCoords[0])
	}
	if p.XCoords[n-1] != 9 || p.YCoords[n-1] != 2 {
		t.Errorf("last sample (%g, %g), expected (9, 2)", p.XCoords[n-1], p.YCoords[n-1])
	}
}

func TestExtractLineProfileDegenerate(t *testing.T) {
	cube := scenarioCube(t)
	for _, s := range []Sampling{Rasterized{}, Interpolated{}, Interpolated{Points: 50}} {
		p, err := ExtractLineProfile(cube, geometry.Pt(2, 2), geometry.Pt(2, 2), s)
		if err != nil {
			t.Fatalf("%T: %v", s, err)
		}
		if p.NPositions() != 1 || len(p.DistancesNM) != 1 || p.DistancesNM[0] != 0 {
			t.Errorf("%T: distances %v, expected [0]", s, p.DistancesNM)
		}
		if p.PhysicalLengthNM != 0 {
			t.Errorf("%T: physical length %g", s, p.PhysicalLengthNM)
		}
		for b, want := range []float64{22, 122, 222} {
			if p.Spectra[b][0] != want {
				t.Errorf("%T: spectra[%d][0] = %g, expected %g", s, b, p.Spectra[b][0], want)
			}
		}
	}
}

func TestExtractLineProfileInterpolate(t *testing.T) {
	cube := scenarioCube(t)
	p, err := ExtractLineProfile(cube, geometry.Pt(0, 0), geometry.Pt(9, 4.5), Interpolated{Points: 7})
	if err != nil {
		t.Fatalf("ExtractLineProfile: %v", err)
	}
	if p.Method != MethodInterpolate || p.NPositions() != 7 {
		t.Fatalf("method %q with %d positions", p.Method, p.NPositions())
	}
	// the field is linear so bilinear sampling is exact
	for i := range p.XCoords {
		for b, row := range p.Spectra {
			want := float64(b*100) + 10*p.YCoords[i] + p.XCoords[i]
			if math.Abs(row[i]-want) > epsilon {
				t.Errorf("spectra[%d][%d] = %g, expected %g", b, i, row[i], want)
			}
		}
	}
	if p.XCoords[6] != 9 || p.YCoords[6] != 4.5 {
		t.Errorf("last sample (%g, %g)", p.XCoords[6], p.YCoords[6])
	}
	if math.Abs(p.DistancesNM[6]-p.PhysicalLengthNM) > epsilon {
		t.Errorf("sampled length %g != physical length %g", p.DistancesNM[6], p.PhysicalLengthNM)
	}
}

func TestExtractLineProfileDefaultPointCount(t *testing.T) {
	cube := scenarioCube(t)
	p, err := ExtractLineProfile(cube, geometry.Pt(0, 0), geometry.Pt(3, 4), Interpolated{})
	if err != nil {
		t.Fatalf("ExtractLineProfile: %v", err)
	}
	if p.NPositions() != 10 {
		t.Errorf("positions = %d, expected 10", p.NPositions())
	}
}

func TestExtractLineProfileClamps(t *testing.T) {
	cube := scenarioCube(t)
	p, err := ExtractLineProfile(cube, geometry.Pt(-5, 2), geometry.Pt(20, 2), Rasterized{})
	if err != nil {
		t.Fatalf("ExtractLineProfile: %v", err)
	}
	if p.NPositions() != 10 || p.XCoords[0] != 0 || p.XCoords[9] != 9 {
		t.Errorf("clamped samples %v", p.XCoords)
	}
	if math.Abs(p.PhysicalLengthNM-9) > epsilon {
		t.Errorf("physical length = %g, expected 9", p.PhysicalLengthNM)
	}
}

func TestExtractLineProfileAnisotropic(t *testing.T) {
	values := make([]float64, 100)
	cube, err := NewDataCube(values, []float64{0}, 10, 10, 20, 5)
	if err != nil {
		t.Fatalf("NewDataCube: %v", err)
	}
	h, err := ExtractLineProfile(cube, geometry.Pt(0, 0), geometry.Pt(9, 0), Rasterized{})
	if err != nil {
		t.Fatalf("horizontal: %v", err)
	}
	if got := h.DistancesNM[9]; math.Abs(got-18) > epsilon {
		t.Errorf("horizontal length = %g, expected 18", got)
	}
	v, err := ExtractLineProfile(cube, geometry.Pt(0, 0), geometry.Pt(0, 9), Rasterized{})
	if err != nil {
		t.Fatalf("vertical: %v", err)
	}
	if got := v.DistancesNM[9]; math.Abs(got-4.5) > epsilon {
		t.Errorf("vertical length = %g, expected 4.5", got)
	}
}

func TestExtractLineProfileErrors(t *testing.T) {
	cube := scenarioCube(t)
	noBias, _ := NewDataCube(nil, nil, 10, 10, 10, 10)
	noPixels, _ := NewDataCube(nil, []float64{0, 1}, 0, 0, 10, 10)

	tests := []struct {
		name    string
		cube    *DataCube
		start   geometry.Point2D
		s       Sampling
		wantErr error
	}{
		{name: "nil cube", cube: nil, s: Rasterized{}, wantErr: ErrEmptyCube},
		{name: "no bias", cube: noBias, s: Rasterized{}, wantErr: ErrEmptyCube},
		{name: "no pixels", cube: noPixels, s: Interpolated{}, wantErr: ErrEmptyCube},
		{name: "NaN start", cube: cube, start: geometry.Pt(math.NaN(), 1), s: Rasterized{}, wantErr: ErrInvalidParameter},
		{name: "negative points", cube: cube, s: Interpolated{Points: -1}, wantErr: ErrInvalidParameter},
		{name: "points overflow allocation", cube: cube, s: Interpolated{Points: math.MaxInt / 2}, wantErr: ErrInvalidParameter},
		{name: "points over sample limit", cube: cube, s: Interpolated{Points: MaxProfileSamples/3 + 1}, wantErr: ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractLineProfile(tt.cube, tt.start, geometry.Pt(5, 5), tt.s)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, expected %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractLineProfileSampleLimit(t *testing.T) {
	cube := scenarioCube(t)
	n := MaxProfileSamples / cube.NBias()
	if _, err := ExtractLineProfile(cube, geometry.Pt(0, 0), geometry.Pt(9, 9), Interpolated{Points: 1000}); err != nil {
		t.Fatalf("1000 points: %v", err)
	}
	if _, err := ExtractLineProfile(cube, geometry.Pt(0, 0), geometry.Pt(9, 9), Interpolated{Points: n + 1}); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("%d points: error = %v, expected ErrInvalidParameter", n+1, err)
	}
}

func TestParseSampling(t *testing.T) {
	tests := []struct {
		tag     string
		points  int
		want    Sampling
		wantErr error
	}{
		{tag: "", want: Rasterized{}},
		{tag: "bresenham", want: Rasterized{}},
		{tag: "Interpolate", points: 30, want: Interpolated{Points: 30}},
		{tag: "interpolate", points: -2, wantErr: ErrInvalidParameter},
		{tag: "cubic", wantErr: ErrInvalidSamplingMethod},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseSampling(tt.tag, tt.points)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, expected %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSampling: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseSampling = %#v, expected %#v", got, tt.want)
			}
		})
	}
}

func TestSelectCurvesUniform(t *testing.T) {
	positions := make([]float64, 100)
	spectra := [][]float64{make([]float64, 100), make([]float64, 100)}
	for i := range positions {
		positions[i] = float64(i) * 0.5
		spectra[0][i] = float64(i)
		spectra[1][i] = float64(-i)
	}

	sel, err := SelectCurves(spectra, positions, 5, CurveUniform)
	if err != nil {
		t.Fatalf("SelectCurves: %v", err)
	}
	want := []int{0, 25, 50, 74, 99}
	if len(sel.Indices) != len(want) {
		t.Fatalf("indices = %v, expected %v", sel.Indices, want)
	}
	for i, idx := range want {
		if sel.Indices[i] != idx {
			t.Errorf("indices = %v, expected %v", sel.Indices, want)
			break
		}
		if sel.Positions[i] != positions[idx] {
			t.Errorf("position[%d] = %g, expected %g", i, sel.Positions[i], positions[idx])
		}
		if sel.Spectra[i][0] != float64(idx) || sel.Spectra[i][1] != float64(-idx) {
			t.Errorf("curve %d = %v", i, sel.Spectra[i])
		}
	}
}

func TestSelectCurvesBounds(t *testing.T) {
	for _, method := range []CurveMethod{CurveUniform, CurveEndpoints} {
		for n := 2; n <= 60; n++ {
			positions := make([]float64, n)
			for k := 2; k <= 25; k++ {
				sel, err := SelectCurves(nil, positions, k, method)
				if err != nil {
					t.Fatalf("%s n=%d k=%d: %v", method, n, k, err)
				}
				idx := sel.Indices
				if len(idx) > k || len(idx) > n {
					t.Errorf("%s n=%d k=%d: %d indices", method, n, k, len(idx))
				}
				if idx[0] != 0 || idx[len(idx)-1] != n-1 {
					t.Errorf("%s n=%d k=%d: indices %v miss an endpoint", method, n, k, idx)
				}
				for i := 1; i < len(idx); i++ {
					if idx[i] <= idx[i-1] {
						t.Errorf("%s n=%d k=%d: indices %v not strictly increasing", method, n, k, idx)
						break
					}
				}
				if method == CurveEndpoints && len(idx) != min(n, k) {
					t.Errorf("endpoints n=%d k=%d: %d indices, expected %d", n, k, len(idx), min(n, k))
				}
			}
		}
	}
}

func TestSelectCurvesEdgeCases(t *testing.T) {
	positions := []float64{0, 1, 2}
	if _, err := SelectCurves(nil, positions, 0, CurveUniform); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("max 0 error = %v", err)
	}
	if _, err := SelectCurves(nil, positions, 3, "random"); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("unknown method error = %v", err)
	}
	if _, err := SelectCurves([][]float64{{1, 2}}, positions, 3, CurveUniform); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("shape mismatch error = %v", err)
	}

	sel, err := SelectCurves(nil, positions, 1, CurveEndpoints)
	if err != nil || len(sel.Indices) != 1 || sel.Indices[0] != 0 {
		t.Errorf("single curve = %+v, %v", sel, err)
	}
	sel, err = SelectCurves(nil, nil, 5, CurveUniform)
	if err != nil || len(sel.Indices) != 0 {
		t.Errorf("empty selection = %+v, %v", sel, err)
	}
	sel, err = SelectCurves(nil, positions, 10, "")
	if err != nil || sel.Method != CurveUniform || len(sel.Indices) != 3 {
		t.Errorf("default selection = %+v, %v", sel, err)
	}
}

func TestProfileSelectCurves(t *testing.T) {
	cube := scenarioCube(t)
	p, err := ExtractLineProfile(cube, geometry.Pt(0, 0), geometry.Pt(9, 9), Rasterized{})
	if err != nil {
		t.Fatalf("ExtractLineProfile: %v", err)
	}
	sel, err := p.SelectCurves(DefaultMaxCurves, CurveUniform)
	if err != nil {
		t.Fatalf("SelectCurves: %v", err)
	}
	if len(sel.Indices) != 10 {
		t.Errorf("selected %d curves from 10 positions", len(sel.Indices))
	}
	if got := sel.Spectra[9]; got[0] != 99 || got[2] != 299 {
		t.Errorf("last curve = %v", got)
	}
}

func TestGetBiasSlice(t *testing.T) {
	cube := scenarioCube(t)
	s, err := GetBiasSlice(cube, 1)
	if err != nil {
		t.Fatalf("GetBiasSlice: %v", err)
	}
	if s.BiasValue != 0 || s.BiasIndex != 1 {
		t.Errorf("bias = %g at %d", s.BiasValue, s.BiasIndex)
	}
	for y, row := range s.Data {
		for x, v := range row {
			if want := float64(100 + y*10 + x); v != want {
				t.Fatalf("slice[%d][%d] = %g, expected %g", y, x, v, want)
			}
		}
	}

	for b := range cube.BiasAxis {
		s, err := GetBiasSlice(cube, b)
		if err != nil {
			t.Fatalf("GetBiasSlice(%d): %v", b, err)
		}
		for y := 0; y < cube.Rows; y++ {
			for x := 0; x < cube.Cols; x++ {
				if s.Data[y][x] != cube.At(b, y, x) {
					t.Fatalf("slice %d differs at (%d, %d)", b, x, y)
				}
			}
		}
	}

	// the slice is a copy
	s.Data[0][0] = -1
	if cube.At(2, 0, 0) != 200 {
		t.Error("modifying the slice changed the cube")
	}
}

func TestGetBiasSliceOutOfRange(t *testing.T) {
	cube := scenarioCube(t)
	for _, idx := range []int{-1, len(cube.BiasAxis)} {
		if _, err := GetBiasSlice(cube, idx); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("GetBiasSlice(%d) error = %v, expected ErrIndexOutOfRange", idx, err)
		}
	}
}

func TestGetPointSpectrum(t *testing.T) {
	cube := scenarioCube(t)
	ps, err := GetPointSpectrum(cube, 5, 5)
	if err != nil {
		t.Fatalf("GetPointSpectrum: %v", err)
	}
	for b, want := range []float64{55, 155, 255} {
		if ps.Current[b] != want {
			t.Errorf("current[%d] = %g, expected %g", b, ps.Current[b], want)
		}
	}
	if math.Abs(ps.Conductance[1]-100) > epsilon {
		t.Errorf("conductance[1] = %g, expected 100", ps.Conductance[1])
	}
	if ps.X != 5 || ps.Y != 5 {
		t.Errorf("position = (%d, %d)", ps.X, ps.Y)
	}

	for _, xy := range [][2]int{{-1, 0}, {0, -1}, {10, 0}, {0, 10}} {
		if _, err := GetPointSpectrum(cube, xy[0], xy[1]); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("GetPointSpectrum(%v) error = %v", xy, err)
		}
	}
}

func TestGetPointSpectrumLinearCurrent(t *testing.T) {
	const a, b = 3.0, -0.5
	bias := []float64{-2, -1, 0.5, 1, 3}
	values := make([]float64, len(bias)*4)
	for i, v := range bias {
		for p := 0; p < 4; p++ {
			values[i*4+p] = a*v + b
		}
	}
	cube, err := NewDataCube(values, bias, 2, 2, 1, 1)
	if err != nil {
		t.Fatalf("NewDataCube: %v", err)
	}
	ps, err := GetPointSpectrum(cube, 1, 0)
	if err != nil {
		t.Fatalf("GetPointSpectrum: %v", err)
	}
	for i, g := range ps.Conductance {
		if math.Abs(g-a) > epsilon {
			t.Errorf("conductance[%d] = %g, expected %g", i, g, a)
		}
	}
}

func TestGetPointSpectrumSingleBias(t *testing.T) {
	cube, err := NewDataCube([]float64{7}, []float64{0.2}, 1, 1, 1, 1)
	if err != nil {
		t.Fatalf("NewDataCube: %v", err)
	}
	ps, err := GetPointSpectrum(cube, 0, 0)
	if err != nil {
		t.Fatalf("GetPointSpectrum: %v", err)
	}
	if len(ps.Conductance) != 1 || ps.Conductance[0] != 0 {
		t.Errorf("conductance = %v, expected [0]", ps.Conductance)
	}
}

func TestProfileStatistics(t *testing.T) {
	p := &LineProfile{
		Spectra:     [][]float64{{1, 3}, {5, 7}},
		BiasAxis:    []float64{-1, 1},
		DistancesNM: []float64{0, 1},
	}
	st, err := ProfileStatistics(p)
	if err != nil {
		t.Fatalf("ProfileStatistics: %v", err)
	}
	if st.Global.Min != 1 || st.Global.Max != 7 || st.Global.Mean != 4 {
		t.Errorf("global = %+v", st.Global)
	}
	if math.Abs(st.Global.Std-math.Sqrt(5)) > epsilon {
		t.Errorf("global std = %g, expected %g", st.Global.Std, math.Sqrt(5))
	}
	if st.ByBias.Mean[0] != 2 || st.ByBias.Mean[1] != 6 || st.ByBias.Std[0] != 1 {
		t.Errorf("by bias = %+v", st.ByBias)
	}
	if st.ByPosition.Mean[0] != 3 || st.ByPosition.Mean[1] != 5 || st.ByPosition.Max[1] != 7 {
		t.Errorf("by position = %+v", st.ByPosition)
	}

	if _, err := ProfileStatistics(&LineProfile{}); !errors.Is(err, ErrEmptyCube) {
		t.Errorf("empty profile error = %v", err)
	}
}

func TestAlignEnergy(t *testing.T) {
	bias := []float64{-2, -1.5, -1, -0.5, 0, 0.5, 1, 1.5, 2}
	offsets := []float64{-0.25, 0, 0.5}
	p := &LineProfile{
		Spectra:     make([][]float64, len(bias)),
		BiasAxis:    bias,
		DistancesNM: []float64{0, 1, 2},
	}
	for b, v := range bias {
		p.Spectra[b] = make([]float64, len(offsets))
		for i, off := range offsets {
			p.Spectra[b][i] = v - off
		}
	}

	a, err := AlignEnergy(p, AlignZeroCrossing, -1)
	if err != nil {
		t.Fatalf("AlignEnergy: %v", err)
	}
	if a.Reference != 1 {
		t.Errorf("reference = %d, expected 1", a.Reference)
	}
	for i, want := range []float64{0.25, 0, -0.5} {
		if math.Abs(a.Shifts[i]-want) > epsilon {
			t.Errorf("shift[%d] = %g, expected %g", i, a.Shifts[i], want)
		}
	}

	a, err = AlignEnergy(p, AlignPeak, 0)
	if err != nil {
		t.Fatalf("AlignEnergy peak: %v", err)
	}
	// the reference peaks at +2 V, the others at -2 V
	for i, want := range []float64{0, 4, 4} {
		if math.Abs(a.Shifts[i]-want) > epsilon {
			t.Errorf("peak shift[%d] = %g, expected %g", i, a.Shifts[i], want)
		}
	}

	if _, err := AlignEnergy(p, AlignPeak, 3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("bad reference error = %v", err)
	}
	if _, err := AlignEnergy(p, "manual", 0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("bad method error = %v", err)
	}
}

package cits

import (
	"fmt"
	"math"

	"github.com/chrissnell/spmanalyzer/pkg/geometry"
)

// MaxProfileSamples bounds the number of values, bias steps times positions,
// a single interpolated profile may allocate.
const MaxProfileSamples = 1 << 28

// LineProfile is a distance x bias slice through a cube.
type LineProfile struct {
	// Spectra is indexed [bias][position].
	Spectra          [][]float64    `json:"spectra"`
	BiasAxis         []float64      `json:"bias_axis"`
	DistancesNM      []float64      `json:"distances_nm"`
	XCoords          []float64      `json:"x_coords"`
	YCoords          []float64      `json:"y_coords"`
	Method           SamplingMethod `json:"sampling_method"`
	PhysicalLengthNM float64        `json:"physical_length_nm"`
}

// NPositions returns the number of sampled positions.
func (p *LineProfile) NPositions() int {
	return len(p.DistancesNM)
}

// Spectrum returns a copy of the spectrum at position i.
func (p *LineProfile) Spectrum(i int) ([]float64, error) {
	if i < 0 || i >= p.NPositions() {
		return nil, fmt.Errorf("%w: position %d not in [0, %d)", ErrIndexOutOfRange, i, p.NPositions())
	}
	out := make([]float64, len(p.Spectra))
	for b, row := range p.Spectra {
		out[b] = row[i]
	}
	return out, nil
}

// ExtractLineProfile samples every bias step of cube along the segment from
// start to end, given in pixel coordinates. A nil sampling selects
// Rasterized.
//
// Endpoints outside the grid are clamped to [0, cols-1] x [0, rows-1] before
// sampling. PhysicalLengthNM is the straight-line length of the clamped
// segment, while DistancesNM follows the sampled points and may differ
// slightly under rasterization.
func ExtractLineProfile(cube *DataCube, start, end geometry.Point2D, s Sampling) (*LineProfile, error) {
	if cube.Empty() {
		return nil, emptyCubeError(cube)
	}
	if !start.IsFinite() || !end.IsFinite() {
		return nil, fmt.Errorf("%w: endpoints %v -> %v", ErrInvalidParameter, start, end)
	}
	scaleX, err := cube.PixelScaleX()
	if err != nil {
		return nil, err
	}
	scaleY, err := cube.PixelScaleY()
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = Rasterized{}
	}

	start = start.Clamp(cube.Cols, cube.Rows)
	end = end.Clamp(cube.Cols, cube.Rows)

	var (
		points  []geometry.Point2D
		spectra [][]float64
	)
	switch s := s.(type) {
	case Rasterized:
		pixels := geometry.Bresenham(start.Round(), end.Round())
		points = make([]geometry.Point2D, len(pixels))
		spectra = newSpectra(cube.NBias(), len(pixels))
		for i, px := range pixels {
			points[i] = px.ToFloat()
			for b := range spectra {
				spectra[b][i] = cube.At(b, px.Y, px.X)
			}
		}
	case Interpolated:
		if s.Points < 0 {
			return nil, fmt.Errorf("%w: point count %d", ErrInvalidParameter, s.Points)
		}
		n := s.Points
		switch {
		case start == end:
			n = 1
		case n == 0:
			n = defaultPoints(start, end)
		}
		if n > MaxProfileSamples/cube.NBias() {
			return nil, fmt.Errorf("%w: %d points over %d bias steps exceeds %d samples",
				ErrInvalidParameter, n, cube.NBias(), MaxProfileSamples)
		}
		points = geometry.LinePoints(start, end, n)
		spectra = newSpectra(cube.NBias(), n)
		column := make([]float64, cube.NBias())
		for i, p := range points {
			cube.bilinear(p, column)
			for b, v := range column {
				spectra[b][i] = v
			}
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidSamplingMethod, s)
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}

	return &LineProfile{
		Spectra:          spectra,
		BiasAxis:         cube.BiasAxis,
		DistancesNM:      geometry.CumulativeDistance(points, scaleX, scaleY),
		XCoords:          xs,
		YCoords:          ys,
		Method:           s.Method(),
		PhysicalLengthNM: geometry.PhysicalLength(start, end, scaleX, scaleY),
	}, nil
}

// defaultPoints samples twice per pixel of length, with a minimum of two.
func defaultPoints(start, end geometry.Point2D) int {
	return max(int(math.Ceil(start.Distance(end)))*2, 2)
}

func newSpectra(nBias, nPos int) [][]float64 {
	backing := make([]float64, nBias*nPos)
	spectra := make([][]float64, nBias)
	for b := range spectra {
		spectra[b] = backing[b*nPos : (b+1)*nPos : (b+1)*nPos]
	}
	return spectra
}

func emptyCubeError(cube *DataCube) error {
	if cube == nil {
		return fmt.Errorf("%w: no cube", ErrEmptyCube)
	}
	return fmt.Errorf("%w: %d bias steps on a %dx%d grid", ErrEmptyCube, cube.NBias(), cube.Cols, cube.Rows)
}

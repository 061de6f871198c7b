package topo

import (
	"fmt"
	"math"

	"github.com/chrissnell/spmanalyzer/pkg/geometry"
)

// ProfileMethod selects how heights are sampled along a line.
type ProfileMethod string

const (
	ProfileBresenham   ProfileMethod = "bresenham"
	ProfileInterpolate ProfileMethod = "interpolate"
)

// minInterpolatedPoints is the fewest samples taken along an interpolated line.
const minInterpolatedPoints = 10

// Profile is a height trace between two pixel positions.
type Profile struct {
	DistancesNM []float64     `json:"distance"`
	Heights     []float64     `json:"height"`
	XCoords     []float64     `json:"x_coords"`
	YCoords     []float64     `json:"y_coords"`
	LengthNM    float64       `json:"length"`
	Stats       Stats         `json:"stats"`
	Method      ProfileMethod `json:"method"`
}

// LineProfile samples img from start to end in pixel coordinates. Endpoints
// are clamped to the image. An empty method selects Bresenham.
func LineProfile(img *Image, start, end geometry.Point2D, method ProfileMethod) (*Profile, error) {
	cols, rows := img.Size()
	if cols == 0 {
		return nil, ErrEmptyImage
	}
	if !start.IsFinite() || !end.IsFinite() {
		return nil, fmt.Errorf("%w: endpoints %v -> %v", ErrInvalidParameter, start, end)
	}
	sx, sy, err := img.PixelScale()
	if err != nil {
		return nil, err
	}
	start = start.Clamp(cols, rows)
	end = end.Clamp(cols, rows)

	var points []geometry.Point2D
	var heights []float64
	switch method {
	case "", ProfileBresenham:
		method = ProfileBresenham
		for _, px := range geometry.Bresenham(start.Round(), end.Round()) {
			points = append(points, px.ToFloat())
			heights = append(heights, img.Data[px.Y][px.X])
		}
	case ProfileInterpolate:
		n := max(int(math.Ceil(start.Distance(end)))*2, minInterpolatedPoints)
		if start == end {
			n = 1
		}
		points = geometry.LinePoints(start, end, n)
		heights = make([]float64, n)
		for i, p := range points {
			heights[i] = img.bilinear(p)
		}
	default:
		return nil, fmt.Errorf("%w: profile method %q", ErrInvalidParameter, method)
	}

	distances := geometry.CumulativeDistance(points, sx, sy)
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	return &Profile{
		DistancesNM: distances,
		Heights:     heights,
		XCoords:     xs,
		YCoords:     ys,
		LengthNM:    distances[len(distances)-1],
		Stats:       Summarize(heights),
		Method:      method,
	}, nil
}

// ShiftZero returns the heights offset so the minimum is zero.
func (p *Profile) ShiftZero() []float64 {
	out := make([]float64, len(p.Heights))
	for i, h := range p.Heights {
		out[i] = h - p.Stats.Min
	}
	return out
}

func (img *Image) bilinear(p geometry.Point2D) float64 {
	cols, rows := img.Size()
	x0, y0 := int(math.Floor(p.X)), int(math.Floor(p.Y))
	x1, y1 := min(x0+1, cols-1), min(y0+1, rows-1)
	fx, fy := p.X-float64(x0), p.Y-float64(y0)

	v := 0.0
	if w := (1 - fx) * (1 - fy); w != 0 {
		v += w * img.Data[y0][x0]
	}
	if w := fx * (1 - fy); w != 0 {
		v += w * img.Data[y0][x1]
	}
	if w := (1 - fx) * fy; w != 0 {
		v += w * img.Data[y1][x0]
	}
	if w := fx * fy; w != 0 {
		v += w * img.Data[y1][x1]
	}
	return v
}

// Package cits extracts line profiles, bias slices and point spectra from
// Current Imaging Tunneling Spectroscopy cubes.
//
// All functions in this package are pure: they never modify the cube they are
// given, so a single *DataCube may be shared by concurrent callers.
package cits

import (
	"fmt"
	"math"

	"github.com/chrissnell/spmanalyzer/pkg/geometry"
)

// DataCube is a 3D spectroscopy grid indexed [bias][row][col]. It must not be
// modified after NewDataCube returns.
type DataCube struct {
	values []float64

	BiasAxis []float64 `json:"bias_axis"`
	Cols     int       `json:"cols"`
	Rows     int       `json:"rows"`
	XRangeNM float64   `json:"x_range_nm"`
	YRangeNM float64   `json:"y_range_nm"`
}

// NewDataCube wraps values laid out as [bias][row][col] in row-major order.
// The bias axis does not need to be monotonic. A cube with no bias steps or
// no pixels is accepted here and rejected by the extraction functions.
func NewDataCube(values, bias []float64, cols, rows int, xRangeNM, yRangeNM float64) (*DataCube, error) {
	if cols < 0 || rows < 0 {
		return nil, fmt.Errorf("%w: grid %dx%d", ErrInvalidDimension, cols, rows)
	}
	if want := len(bias) * rows * cols; len(values) != want {
		return nil, fmt.Errorf("%w: have %d values, expected %d (%d bias x %d rows x %d cols)",
			ErrInvalidDimension, len(values), want, len(bias), rows, cols)
	}
	for _, r := range []float64{xRangeNM, yRangeNM} {
		if !(r > 0) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("%w: physical range %g", ErrInvalidDimension, r)
		}
	}
	return &DataCube{
		values:   values,
		BiasAxis: bias,
		Cols:     cols,
		Rows:     rows,
		XRangeNM: xRangeNM,
		YRangeNM: yRangeNM,
	}, nil
}

// NBias returns the number of bias steps.
func (c *DataCube) NBias() int {
	return len(c.BiasAxis)
}

// GridSize returns the spatial size as (cols, rows).
func (c *DataCube) GridSize() (int, int) {
	return c.Cols, c.Rows
}

// Empty reports whether the cube has no bias steps or no pixels.
func (c *DataCube) Empty() bool {
	return c == nil || len(c.BiasAxis) == 0 || c.Cols == 0 || c.Rows == 0
}

// At returns the value at bias index b, row y and column x. It panics on
// out-of-range indices like a slice access.
func (c *DataCube) At(b, y, x int) float64 {
	return c.values[(b*c.Rows+y)*c.Cols+x]
}

// Column returns a copy of the spectrum at pixel (x, y).
func (c *DataCube) Column(y, x int) []float64 {
	out := make([]float64, len(c.BiasAxis))
	stride := c.Rows * c.Cols
	off := y*c.Cols + x
	for b := range out {
		out[b] = c.values[b*stride+off]
	}
	return out
}

// Plane returns a copy of the [row][col] image at bias index b.
func (c *DataCube) Plane(b int) [][]float64 {
	plane := make([][]float64, c.Rows)
	base := b * c.Rows * c.Cols
	for y := range plane {
		row := make([]float64, c.Cols)
		copy(row, c.values[base+y*c.Cols:base+(y+1)*c.Cols])
		plane[y] = row
	}
	return plane
}

// PixelScaleX returns nm per pixel along x.
func (c *DataCube) PixelScaleX() (float64, error) {
	return geometry.PixelScale(c.XRangeNM, c.Cols)
}

// PixelScaleY returns nm per pixel along y.
func (c *DataCube) PixelScaleY() (float64, error) {
	return geometry.PixelScale(c.YRangeNM, c.Rows)
}

// SizeBytes returns the memory held by the cube values and bias axis.
func (c *DataCube) SizeBytes() int64 {
	return int64(len(c.values)+len(c.BiasAxis)) * 8
}

// bilinear samples the spectrum at a fractional pixel position. Terms with
// zero weight are skipped so integer positions return the exact pixel.
func (c *DataCube) bilinear(p geometry.Point2D, dst []float64) {
	x0 := int(math.Floor(p.X))
	y0 := int(math.Floor(p.Y))
	x1 := min(x0+1, c.Cols-1)
	y1 := min(y0+1, c.Rows-1)
	fx := p.X - float64(x0)
	fy := p.Y - float64(y0)

	type tap struct {
		x, y int
		w    float64
	}
	taps := [4]tap{
		{x0, y0, (1 - fx) * (1 - fy)},
		{x1, y0, fx * (1 - fy)},
		{x0, y1, (1 - fx) * fy},
		{x1, y1, fx * fy},
	}

	stride := c.Rows * c.Cols
	for b := range dst {
		v := 0.0
		for _, t := range taps {
			if t.w == 0 {
				continue
			}
			v += t.w * c.values[b*stride+t.y*c.Cols+t.x]
		}
		dst[b] = v
	}
}

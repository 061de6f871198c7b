// Package topo processes 2D topography images: background flattening, tilt
// correction, line profiles, height statistics and spatial power spectra.
package topo

import (
	"errors"
	"fmt"

	"github.com/chrissnell/spmanalyzer/pkg/geometry"
)

var (
	// ErrEmptyImage is returned for images with no pixels.
	ErrEmptyImage = errors.New("empty image")
	// ErrInvalidParameter is returned for unsupported methods and options.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Image is a topography map indexed [row][col] with its physical extent.
type Image struct {
	Data     [][]float64 `json:"data"`
	XRangeNM float64     `json:"x_range_nm"`
	YRangeNM float64     `json:"y_range_nm"`
	Unit     string      `json:"unit,omitempty"`
}

// NewImage validates that data is rectangular and non-empty.
func NewImage(data [][]float64, xRangeNM, yRangeNM float64, unit string) (*Image, error) {
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, ErrEmptyImage
	}
	for y, row := range data {
		if len(row) != len(data[0]) {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d",
				geometry.ErrInvalidDimension, y, len(row), len(data[0]))
		}
	}
	return &Image{Data: data, XRangeNM: xRangeNM, YRangeNM: yRangeNM, Unit: unit}, nil
}

// Size returns (cols, rows).
func (img *Image) Size() (int, int) {
	if len(img.Data) == 0 {
		return 0, 0
	}
	return len(img.Data[0]), len(img.Data)
}

// PixelScale returns nm per pixel along x and y.
func (img *Image) PixelScale() (float64, float64, error) {
	cols, rows := img.Size()
	sx, err := geometry.PixelScale(img.XRangeNM, cols)
	if err != nil {
		return 0, 0, err
	}
	sy, err := geometry.PixelScale(img.YRangeNM, rows)
	if err != nil {
		return 0, 0, err
	}
	return sx, sy, nil
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	out := *img
	out.Data = cloneData(img.Data)
	return &out
}

// Values returns all pixels in row-major order.
func (img *Image) Values() []float64 {
	cols, rows := img.Size()
	out := make([]float64, 0, cols*rows)
	for _, row := range img.Data {
		out = append(out, row...)
	}
	return out
}

func (img *Image) withData(data [][]float64) *Image {
	out := *img
	out.Data = data
	return &out
}

func cloneData(data [][]float64) [][]float64 {
	out := make([][]float64, len(data))
	for y, row := range data {
		out[y] = append([]float64(nil), row...)
	}
	return out
}

package cits

import (
	"fmt"

	"github.com/chrissnell/spmanalyzer/pkg/sts"
)

// PointSpectrum is the current and conductance recorded at one pixel.
type PointSpectrum struct {
	Current     []float64 `json:"current"`
	Conductance []float64 `json:"conductance"`
	X           int       `json:"x"`
	Y           int       `json:"y"`
}

// GetPointSpectrum returns the spectrum at pixel (x, y) and its numerical
// derivative with respect to the bias axis.
func GetPointSpectrum(cube *DataCube, x, y int) (*PointSpectrum, error) {
	if cube == nil {
		return nil, emptyCubeError(cube)
	}
	if x < 0 || x >= cube.Cols || y < 0 || y >= cube.Rows {
		return nil, fmt.Errorf("%w: pixel (%d, %d) outside %dx%d grid", ErrIndexOutOfRange, x, y, cube.Cols, cube.Rows)
	}
	current := cube.Column(y, x)
	return &PointSpectrum{
		Current:     current,
		Conductance: sts.Gradient(current, cube.BiasAxis),
		X:           x,
		Y:           y,
	}, nil
}

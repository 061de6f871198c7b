// Package geometry provides the pixel-grid geometry used by the CITS and
// topography analyses: point types, pixel/physical unit conversion and line
// rasterization.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDimension is returned when a pixel count or physical range is
// zero, negative or not finite.
var ErrInvalidDimension = errors.New("invalid dimension")

// Point2D represents a 2D point with floating-point pixel coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point2D{X: x, Y: y}.
func Pt(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point in pixel units.
func (p Point2D) Distance(other Point2D) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Round returns the nearest integer pixel.
func (p Point2D) Round() PointInt {
	return PointInt{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point2D) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Clamp limits the point to the pixel grid [0, cols-1] x [0, rows-1].
func (p Point2D) Clamp(cols, rows int) Point2D {
	return Point2D{
		X: clamp(p.X, 0, float64(cols-1)),
		Y: clamp(p.Y, 0, float64(rows-1)),
	}
}

func (p Point2D) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// PointInt represents a pixel with integer coordinates.
type PointInt struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ToFloat converts to Point2D.
func (p PointInt) ToFloat() Point2D {
	return Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// In reports whether the pixel lies inside a cols x rows grid.
func (p PointInt) In(cols, rows int) bool {
	return p.X >= 0 && p.X < cols && p.Y >= 0 && p.Y < rows
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

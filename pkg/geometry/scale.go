package geometry

import (
	"fmt"
	"math"
)

// PixelScale returns the physical size of one pixel (for example nm/pixel)
// for an axis spanning rangeNM over the given number of pixels.
func PixelScale(rangeNM float64, pixels int) (float64, error) {
	if pixels <= 0 {
		return 0, fmt.Errorf("%w: pixel count %d", ErrInvalidDimension, pixels)
	}
	if !(rangeNM > 0) || math.IsInf(rangeNM, 0) {
		return 0, fmt.Errorf("%w: physical range %g", ErrInvalidDimension, rangeNM)
	}
	return rangeNM / float64(pixels), nil
}

// CumulativeDistance returns the running physical distance along an ordered
// sequence of pixel points. Each axis has its own scale so non-square pixels
// are handled. The first element is always 0.
func CumulativeDistance(points []Point2D, scaleX, scaleY float64) []float64 {
	distances := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		dx := (points[i].X - points[i-1].X) * scaleX
		dy := (points[i].Y - points[i-1].Y) * scaleY
		distances[i] = distances[i-1] + math.Hypot(dx, dy)
	}
	return distances
}

// PhysicalLength returns the scaled Euclidean length between two pixel points.
func PhysicalLength(start, end Point2D, scaleX, scaleY float64) float64 {
	return math.Hypot((end.X-start.X)*scaleX, (end.Y-start.Y)*scaleY)
}

package geometry

import "math"

// Bresenham returns the pixels of the integer line from start to end,
// inclusive of both endpoints. Consecutive pixels differ by one step along the
// dominant axis with at most one step along the minor axis, so the result has
// max(|dx|, |dy|)+1 points.
//
// The pixel set does not depend on direction: the line is always traced from
// the lexicographically smaller endpoint and reversed when needed.
func Bresenham(start, end PointInt) []PointInt {
	if less(end, start) {
		points := bresenham(end, start)
		for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
			points[i], points[j] = points[j], points[i]
		}
		return points
	}
	return bresenham(start, end)
}

func bresenham(start, end PointInt) []PointInt {
	dx := abs(end.X - start.X)
	dy := abs(end.Y - start.Y)
	sx, sy := 1, 1
	if start.X > end.X {
		sx = -1
	}
	if start.Y > end.Y {
		sy = -1
	}

	points := make([]PointInt, 0, max(dx, dy)+1)
	err := dx - dy
	x, y := start.X, start.Y
	for {
		points = append(points, PointInt{X: x, Y: y})
		if x == end.X && y == end.Y {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
	return points
}

// LinePoints returns n evenly spaced points on the segment from start to end,
// both included. n < 1 yields nil and n == 1 yields the start point.
func LinePoints(start, end Point2D, n int) []Point2D {
	if n < 1 {
		return nil
	}
	points := make([]Point2D, n)
	if n == 1 {
		points[0] = start
		return points
	}
	dx := end.X - start.X
	dy := end.Y - start.Y
	last := float64(n - 1)
	for i := range points {
		t := float64(i) / last
		points[i] = Point2D{X: start.X + t*dx, Y: start.Y + t*dy}
	}
	// Pin the last point so floating error never pushes it past the end.
	points[n-1] = end
	return points
}

// Perpendicular returns a segment of the given length centred on p and
// perpendicular to a-b. A degenerate a-b yields a horizontal segment.
func Perpendicular(p, a, b Point2D, length float64) (Point2D, Point2D) {
	half := length / 2
	dx, dy := b.X-a.X, b.Y-a.Y
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		return Point2D{X: p.X - half, Y: p.Y}, Point2D{X: p.X + half, Y: p.Y}
	}
	// rotate the unit direction 90 degrees counter-clockwise
	px, py := -dy/norm, dx/norm
	return Point2D{X: p.X - px*half, Y: p.Y - py*half}, Point2D{X: p.X + px*half, Y: p.Y + py*half}
}

func less(a, b PointInt) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

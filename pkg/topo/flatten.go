package topo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FlattenMethod names a background removal.
type FlattenMethod string

const (
	FlattenLinewiseMean FlattenMethod = "linewise_mean"
	FlattenLinewisePoly FlattenMethod = "linewise_polyfit"
	FlattenPlaneFit     FlattenMethod = "plane"
	FlattenPoly2D       FlattenMethod = "polynomial_2d"
)

// Flatten dispatches to the named method. order is the polynomial degree for
// linewise_polyfit and polynomial_2d and is ignored otherwise.
func Flatten(img *Image, method FlattenMethod, order int) (*Image, error) {
	switch method {
	case FlattenLinewiseMean:
		return LinewiseMean(img)
	case FlattenLinewisePoly:
		return LinewisePoly(img, order)
	case FlattenPlaneFit:
		return Plane(img)
	case FlattenPoly2D:
		return Polynomial(img, order)
	default:
		return nil, fmt.Errorf("%w: flatten method %q", ErrInvalidParameter, method)
	}
}

// LinewiseMean subtracts the mean of each scan line.
func LinewiseMean(img *Image) (*Image, error) {
	if cols, _ := img.Size(); cols == 0 {
		return nil, ErrEmptyImage
	}
	data := cloneData(img.Data)
	for _, row := range data {
		m := stat.Mean(row, nil)
		for x := range row {
			row[x] -= m
		}
	}
	return img.withData(data), nil
}

// LinewisePoly subtracts a polynomial of the given degree fitted to each scan
// line against the column index.
func LinewisePoly(img *Image, degree int) (*Image, error) {
	cols, _ := img.Size()
	if cols == 0 {
		return nil, ErrEmptyImage
	}
	if degree < 0 || degree >= cols {
		return nil, fmt.Errorf("%w: degree %d for %d columns", ErrInvalidParameter, degree, cols)
	}

	// Vandermonde matrix shared by every line
	X := mat.NewDense(cols, degree+1, nil)
	for i := 0; i < cols; i++ {
		for j := 0; j <= degree; j++ {
			X.Set(i, j, math.Pow(float64(i), float64(j)))
		}
	}
	var qr mat.QR
	qr.Factorize(X)

	data := cloneData(img.Data)
	coeffs := mat.NewVecDense(degree+1, nil)
	fit := mat.NewVecDense(cols, nil)
	for y, row := range data {
		if err := qr.SolveVecTo(coeffs, false, mat.NewVecDense(cols, row)); err != nil {
			return nil, fmt.Errorf("line %d fit: %w", y, err)
		}
		fit.MulVec(X, coeffs)
		for x := range row {
			row[x] -= fit.AtVec(x)
		}
	}
	return img.withData(data), nil
}

// Plane subtracts the least-squares plane z = a*x + b*y + c.
func Plane(img *Image) (*Image, error) {
	return Polynomial(img, 1)
}

// Polynomial subtracts a least-squares 2D polynomial surface of order 1
// (plane) or 2 (quadric with cross term).
func Polynomial(img *Image, order int) (*Image, error) {
	surface, _, err := FitSurface(img, order)
	if err != nil {
		return nil, err
	}
	data := cloneData(img.Data)
	for y, row := range data {
		for x := range row {
			row[x] -= surface[y][x]
		}
	}
	return img.withData(data), nil
}

// FitSurface returns the fitted polynomial surface and its coefficients. The
// coefficient order is [x, y, 1] for order 1 and [x², y², xy, x, y, 1] for
// order 2.
func FitSurface(img *Image, order int) ([][]float64, []float64, error) {
	cols, rows := img.Size()
	if cols == 0 {
		return nil, nil, ErrEmptyImage
	}

	var terms func(x, y float64) []float64
	switch order {
	case 1:
		terms = func(x, y float64) []float64 { return []float64{x, y, 1} }
	case 2:
		terms = func(x, y float64) []float64 { return []float64{x * x, y * y, x * y, x, y, 1} }
	default:
		return nil, nil, fmt.Errorf("%w: polynomial order %d", ErrInvalidParameter, order)
	}
	nTerms := len(terms(0, 0))
	n := cols * rows
	if n < nTerms {
		return nil, nil, fmt.Errorf("%w: %d pixels cannot fit %d coefficients", ErrInvalidParameter, n, nTerms)
	}

	A := mat.NewDense(n, nTerms, nil)
	z := mat.NewVecDense(n, img.Values())
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			A.SetRow(y*cols+x, terms(float64(x), float64(y)))
		}
	}

	var qr mat.QR
	qr.Factorize(A)
	coeffs := mat.NewVecDense(nTerms, nil)
	if err := qr.SolveVecTo(coeffs, false, z); err != nil {
		return nil, nil, fmt.Errorf("surface fit: %w", err)
	}

	fitted := mat.NewVecDense(n, nil)
	fitted.MulVec(A, coeffs)
	surface := make([][]float64, rows)
	for y := range surface {
		surface[y] = make([]float64, cols)
		for x := range surface[y] {
			surface[y][x] = fitted.AtVec(y*cols + x)
		}
	}
	return surface, mat.Col(nil, 0, coeffs), nil
}

// TiltDirection names the edge of the image raised by Tilt.
type TiltDirection string

const (
	TiltUp    TiltDirection = "up"
	TiltDown  TiltDirection = "down"
	TiltLeft  TiltDirection = "left"
	TiltRight TiltDirection = "right"
)

// Tilt adds a linear ramp through the image centre. The ramp amplitude is a
// tenth of the height range, or a fiftieth when fine is set.
func Tilt(img *Image, direction TiltDirection, fine bool) (*Image, error) {
	cols, rows := img.Size()
	if cols == 0 {
		return nil, ErrEmptyImage
	}
	values := img.Values()
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	steps := 10.0
	if fine {
		steps = 50
	}
	dh := (hi - lo) / steps

	cx := float64(cols-1) / 2
	cy := float64(rows-1) / 2

	var ramp func(x, y int) float64
	switch direction {
	case TiltUp, TiltDown:
		ramp = func(_, y int) float64 { return dh * (float64(y) - cy) / cy }
		if cy == 0 {
			ramp = func(int, int) float64 { return 0 }
		}
	case TiltLeft, TiltRight:
		ramp = func(x, _ int) float64 { return dh * (float64(x) - cx) / cx }
		if cx == 0 {
			ramp = func(int, int) float64 { return 0 }
		}
	default:
		return nil, fmt.Errorf("%w: tilt direction %q", ErrInvalidParameter, direction)
	}
	sign := 1.0
	if direction == TiltDown || direction == TiltRight {
		sign = -1
	}

	data := cloneData(img.Data)
	for y, row := range data {
		for x := range row {
			row[x] += sign * ramp(x, y)
		}
	}
	return img.withData(data), nil
}

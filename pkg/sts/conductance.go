// Package sts implements scanning tunneling spectroscopy analysis on 1D
// current-versus-bias spectra: numerical conductance, peaks, gaps and fits.
package sts

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned when a point index lies outside the data.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrLengthMismatch is returned when paired slices differ in length.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrFitFailed is returned when a least-squares fit cannot be computed.
	ErrFitFailed = errors.New("fit failed")
	// ErrInvalidKernel is returned for a median filter kernel that is not a
	// positive odd integer.
	ErrInvalidKernel = errors.New("kernel size must be a positive odd integer")
)

// Gradient differentiates y with respect to x. Interior points use the central
// difference (y[i+1]-y[i-1])/(x[i+1]-x[i-1]) and the two boundary points use
// one-sided differences. Fewer than two points yield all zeros.
//
// x does not need to be monotonic; repeated x values produce Inf or NaN at the
// affected points, the same way NaN inputs propagate.
func Gradient(y, x []float64) []float64 {
	n := len(y)
	g := make([]float64, n)
	if n < 2 || len(x) != n {
		return g
	}

	g[0] = (y[1] - y[0]) / (x[1] - x[0])
	g[n-1] = (y[n-1] - y[n-2]) / (x[n-1] - x[n-2])
	for i := 1; i < n-1; i++ {
		g[i] = (y[i+1] - y[i-1]) / (x[i+1] - x[i-1])
	}
	return g
}

// NormalizedConductance returns (dI/dV)/(I/V). Points at zero bias or zero
// current are left at 0.
func NormalizedConductance(current, conductance, bias []float64) ([]float64, error) {
	if len(current) != len(conductance) || len(current) != len(bias) {
		return nil, fmt.Errorf("%w: current %d, conductance %d, bias %d",
			ErrLengthMismatch, len(current), len(conductance), len(bias))
	}
	norm := make([]float64, len(current))
	for i, v := range bias {
		if v == 0 || current[i] == 0 {
			continue
		}
		norm[i] = conductance[i] / (current[i] / v)
	}
	return norm, nil
}

// Conductance is the derivative analysis of a single spectrum.
type Conductance struct {
	Bias       []float64 `json:"bias"`
	Current    []float64 `json:"current"`
	DIDV       []float64 `json:"didv"`
	Normalized []float64 `json:"normalized"`
}

// AnalyzeConductance computes dI/dV and the normalized conductance of current.
func AnalyzeConductance(current, bias []float64) (*Conductance, error) {
	if len(current) != len(bias) {
		return nil, fmt.Errorf("%w: current %d, bias %d", ErrLengthMismatch, len(current), len(bias))
	}
	didv := Gradient(current, bias)
	norm, err := NormalizedConductance(current, didv, bias)
	if err != nil {
		return nil, err
	}
	return &Conductance{
		Bias:       bias,
		Current:    current,
		DIDV:       didv,
		Normalized: norm,
	}, nil
}

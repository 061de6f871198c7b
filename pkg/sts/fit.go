package sts

import (
	"fmt"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/floats"
)

// Lorentzian holds the parameters of amp*w^2/((x-c)^2+w^2)+offset.
type Lorentzian struct {
	Amplitude float64 `json:"amplitude"`
	Width     float64 `json:"width"`
	Center    float64 `json:"center"`
	Offset    float64 `json:"offset"`
}

// Eval returns the Lorentzian at x.
func (l Lorentzian) Eval(x float64) float64 {
	d := x - l.Center
	w2 := l.Width * l.Width
	return l.Amplitude*w2/(d*d+w2) + l.Offset
}

// FWHM returns the full width at half maximum.
func (l Lorentzian) FWHM() float64 {
	return 2 * math.Abs(l.Width)
}

// LorentzianFit is a fitted peak with its residual.
type LorentzianFit struct {
	Lorentzian
	RMS    float64   `json:"rms"`
	Fitted []float64 `json:"fitted"`
}

// FitLorentzian fits a single Lorentzian peak plus constant offset to
// spectrum using Levenberg-Marquardt. The initial guess places the centre on
// the spectrum maximum and the width at a tenth of the bias span.
func FitLorentzian(spectrum, bias []float64) (fit *LorentzianFit, err error) {
	if len(spectrum) != len(bias) {
		return nil, fmt.Errorf("%w: spectrum %d, bias %d", ErrLengthMismatch, len(spectrum), len(bias))
	}
	if len(spectrum) < 4 {
		return nil, fmt.Errorf("%w: need at least 4 samples, have %d", ErrFitFailed, len(spectrum))
	}
	for i := range spectrum {
		if math.IsNaN(spectrum[i]) || math.IsInf(spectrum[i], 0) || math.IsNaN(bias[i]) || math.IsInf(bias[i], 0) {
			return nil, fmt.Errorf("%w: non-finite sample at %d", ErrFitFailed, i)
		}
	}

	lo := floats.Min(spectrum)
	peak := floats.MaxIdx(spectrum)
	span := floats.Max(bias) - floats.Min(bias)
	if span == 0 {
		return nil, fmt.Errorf("%w: bias axis has zero span", ErrFitFailed)
	}
	init := []float64{spectrum[peak] - lo, span / 10, bias[peak], lo}

	residual := func(dst, p []float64) {
		l := Lorentzian{Amplitude: p[0], Width: p[1], Center: p[2], Offset: p[3]}
		for i, x := range bias {
			dst[i] = l.Eval(x) - spectrum[i]
		}
	}
	jac := lm.NumJac{Func: residual}

	problem := lm.LMProblem{
		Dim:        4,
		Size:       len(bias),
		Func:       residual,
		Jac:        jac.Jac,
		InitParams: init,
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}

	// The solver panics on a singular normal matrix.
	defer func() {
		if r := recover(); r != nil {
			fit = nil
			err = fmt.Errorf("%w: %v", ErrFitFailed, r)
		}
	}()

	result, err := lm.LM(problem, &lm.Settings{Iterations: 100, ObjectiveTol: 1e-16})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFitFailed, err)
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: solver diverged", ErrFitFailed)
		}
	}

	l := Lorentzian{Amplitude: result.X[0], Width: math.Abs(result.X[1]), Center: result.X[2], Offset: result.X[3]}
	fitted := make([]float64, len(bias))
	sum := 0.0
	for i, x := range bias {
		fitted[i] = l.Eval(x)
		d := fitted[i] - spectrum[i]
		sum += d * d
	}
	return &LorentzianFit{
		Lorentzian: l,
		RMS:        math.Sqrt(sum / float64(len(bias))),
		Fitted:     fitted,
	}, nil
}

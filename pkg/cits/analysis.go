package cits

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds min, max, mean and population standard deviation.
type Summary struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// AxisSummary holds one Summary component per bias step or position.
type AxisSummary struct {
	Min  []float64 `json:"min"`
	Max  []float64 `json:"max"`
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Statistics summarizes a line profile globally, per bias step and per
// position.
type Statistics struct {
	Global     Summary     `json:"global"`
	ByBias     AxisSummary `json:"by_bias"`
	ByPosition AxisSummary `json:"by_position"`
}

func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Summary{
		Min:  floats.Min(values),
		Max:  floats.Max(values),
		Mean: mean,
		Std:  std,
	}
}

func (a *AxisSummary) add(s Summary) {
	a.Min = append(a.Min, s.Min)
	a.Max = append(a.Max, s.Max)
	a.Mean = append(a.Mean, s.Mean)
	a.Std = append(a.Std, s.Std)
}

// ProfileStatistics computes summary statistics of p.Spectra.
func ProfileStatistics(p *LineProfile) (*Statistics, error) {
	nPos := p.NPositions()
	if len(p.Spectra) == 0 || nPos == 0 {
		return nil, fmt.Errorf("%w: profile has no samples", ErrEmptyCube)
	}

	all := make([]float64, 0, len(p.Spectra)*nPos)
	st := &Statistics{}
	for _, row := range p.Spectra {
		all = append(all, row...)
		st.ByBias.add(summarize(row))
	}
	st.Global = summarize(all)

	column := make([]float64, len(p.Spectra))
	for i := 0; i < nPos; i++ {
		for b, row := range p.Spectra {
			column[b] = row[i]
		}
		st.ByPosition.add(summarize(column))
	}
	return st, nil
}

// AlignMethod selects the spectral feature used for energy alignment.
type AlignMethod string

const (
	// AlignZeroCrossing aligns the zero crossing closest to zero bias.
	AlignZeroCrossing AlignMethod = "zero_crossing"
	// AlignPeak aligns the bias of the largest absolute value.
	AlignPeak AlignMethod = "peak"
)

// Alignment holds per-position bias shifts relative to a reference position.
type Alignment struct {
	Shifts    []float64   `json:"shifts"`
	Reference int         `json:"reference"`
	Method    AlignMethod `json:"method"`
}

// AlignEnergy computes the bias shift that moves the chosen feature of each
// spectrum onto the feature of the reference spectrum. A negative reference
// selects the middle position. The profile itself is left unchanged.
func AlignEnergy(p *LineProfile, method AlignMethod, reference int) (*Alignment, error) {
	nPos := p.NPositions()
	if nPos == 0 || len(p.Spectra) == 0 {
		return nil, fmt.Errorf("%w: profile has no samples", ErrEmptyCube)
	}
	if reference < 0 {
		reference = nPos / 2
	}
	if reference >= nPos {
		return nil, fmt.Errorf("%w: reference %d not in [0, %d)", ErrIndexOutOfRange, reference, nPos)
	}

	var feature func(spectrum []float64) float64
	switch method {
	case "", AlignZeroCrossing:
		method = AlignZeroCrossing
		feature = func(s []float64) float64 { return zeroCrossing(s, p.BiasAxis) }
	case AlignPeak:
		feature = func(s []float64) float64 { return p.BiasAxis[absMaxIndex(s)] }
	default:
		return nil, fmt.Errorf("%w: alignment %q", ErrInvalidParameter, method)
	}

	refSpectrum, _ := p.Spectrum(reference)
	refValue := feature(refSpectrum)

	shifts := make([]float64, nPos)
	for i := range shifts {
		if i == reference {
			continue
		}
		s, _ := p.Spectrum(i)
		shifts[i] = refValue - feature(s)
	}
	return &Alignment{Shifts: shifts, Reference: reference, Method: method}, nil
}

// zeroCrossing returns the linearly interpolated sign change closest to zero
// bias, or the bias of the sample closest to zero when the sign never changes.
func zeroCrossing(spectrum, bias []float64) float64 {
	best := math.NaN()
	for i := 0; i+1 < len(spectrum); i++ {
		y1, y2 := spectrum[i], spectrum[i+1]
		if sign(y1) == sign(y2) {
			continue
		}
		x1, x2 := bias[i], bias[i+1]
		var x float64
		if y2 == y1 {
			x = x1
		} else {
			x = x1 - y1*(x2-x1)/(y2-y1)
		}
		if math.IsNaN(best) || math.Abs(x) < math.Abs(best) {
			best = x
		}
	}
	if !math.IsNaN(best) {
		return best
	}

	closest := 0
	for i, v := range spectrum {
		if math.Abs(v) < math.Abs(spectrum[closest]) {
			closest = i
		}
	}
	return bias[closest]
}

func absMaxIndex(values []float64) int {
	best := 0
	for i, v := range values {
		if math.Abs(v) > math.Abs(values[best]) {
			best = i
		}
	}
	return best
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

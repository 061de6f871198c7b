package topo

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Window names the apodization applied before the transform.
type Window string

const (
	WindowNone     Window = "none"
	WindowHann     Window = "hann"
	WindowHamming  Window = "hamming"
	WindowBlackman Window = "blackman"
)

// Spectrum is a centred 2D power spectrum. Power is indexed [row][col] with
// the zero frequency at (len(FreqY)/2, len(FreqX)/2). Frequencies are in
// 1/nm.
type Spectrum struct {
	Power    [][]float64 `json:"power"`
	FreqX    []float64   `json:"freq_x"`
	FreqY    []float64   `json:"freq_y"`
	Dominant Dominant    `json:"dominant"`
	Window   Window      `json:"window"`
}

// Dominant is the strongest non-DC component of a Spectrum.
type Dominant struct {
	FreqX     float64 `json:"freq_x"`
	FreqY     float64 `json:"freq_y"`
	Magnitude float64 `json:"magnitude"`
}

// PowerSpectrum computes |FFT2(img)|² after applying the separable window.
func PowerSpectrum(img *Image, w Window) (*Spectrum, error) {
	cols, rows := img.Size()
	if cols == 0 {
		return nil, ErrEmptyImage
	}
	sx, sy, err := img.PixelScale()
	if err != nil {
		return nil, err
	}

	wx, err := windowWeights(w, cols)
	if err != nil {
		return nil, err
	}
	wy, _ := windowWeights(w, rows)

	grid := make([][]complex128, rows)
	rowFFT := fourier.NewCmplxFFT(cols)
	for y := range grid {
		seq := make([]complex128, cols)
		for x := range seq {
			seq[x] = complex(img.Data[y][x]*wx[x]*wy[y], 0)
		}
		grid[y] = rowFFT.Coefficients(nil, seq)
	}
	colFFT := fourier.NewCmplxFFT(rows)
	column := make([]complex128, rows)
	for x := 0; x < cols; x++ {
		for y := range column {
			column[y] = grid[y][x]
		}
		coeffs := colFFT.Coefficients(nil, column)
		for y := range coeffs {
			grid[y][x] = coeffs[y]
		}
	}

	power := make([][]float64, rows)
	for y := range power {
		power[y] = make([]float64, cols)
		iy := (y + rows - rows/2) % rows
		for x := range power[y] {
			ix := (x + cols - cols/2) % cols
			a := cmplx.Abs(grid[iy][ix])
			power[y][x] = a * a
		}
	}

	spec := &Spectrum{
		Power:  power,
		FreqX:  shiftedFrequencies(cols, sx),
		FreqY:  shiftedFrequencies(rows, sy),
		Window: w,
	}
	spec.Dominant = spec.dominant()
	return spec, nil
}

// shiftedFrequencies returns the centred sample frequencies for n samples
// spaced d apart.
func shiftedFrequencies(n int, d float64) []float64 {
	f := make([]float64, n)
	for k := range f {
		f[k] = float64(k-n/2) / (float64(n) * d)
	}
	return f
}

func windowWeights(w Window, n int) ([]float64, error) {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}
	if n < 2 {
		return weights, nil
	}
	switch w {
	case "", WindowNone:
		return weights, nil
	case WindowHann:
		return window.Hann(weights), nil
	case WindowHamming:
		return window.Hamming(weights), nil
	case WindowBlackman:
		return window.Blackman(weights), nil
	default:
		return nil, fmt.Errorf("%w: window %q", ErrInvalidParameter, w)
	}
}

func (s *Spectrum) dominant() Dominant {
	cy, cx := len(s.FreqY)/2, len(s.FreqX)/2
	best := Dominant{}
	bestPower := -1.0
	for y, row := range s.Power {
		for x, p := range row {
			if y == cy && x == cx {
				continue
			}
			if p > bestPower {
				bestPower = p
				best = Dominant{FreqX: s.FreqX[x], FreqY: s.FreqY[y]}
			}
		}
	}
	best.Magnitude = math.Hypot(best.FreqX, best.FreqY)
	return best
}

// Radial is the azimuthally averaged power spectrum.
type Radial struct {
	Frequencies       []float64 `json:"frequencies"`
	Power             []float64 `json:"radial_power"`
	DominantFrequency float64   `json:"dominant_frequency"`
}

// RadialAverage bins the spectrum by integer pixel radius from the zero
// frequency. The dominant frequency skips the DC bin.
func (s *Spectrum) RadialAverage() (*Radial, error) {
	rows := len(s.Power)
	if rows < 2 || len(s.FreqX) < 2 {
		return nil, fmt.Errorf("%w: radial average needs at least 2x2 samples", ErrInvalidParameter)
	}
	cols := len(s.FreqX)
	cx, cy := cols/2, rows/2

	maxR := 0
	for _, corner := range [][2]int{{0, 0}, {cols - 1, 0}, {0, rows - 1}, {cols - 1, rows - 1}} {
		maxR = max(maxR, int(math.Hypot(float64(corner[0]-cx), float64(corner[1]-cy))))
	}
	sums := make([]float64, maxR+1)
	counts := make([]int, maxR+1)
	for y, row := range s.Power {
		for x, p := range row {
			r := int(math.Hypot(float64(x-cx), float64(y-cy)))
			sums[r] += p
			counts[r]++
		}
	}

	step := math.Min(math.Abs(s.FreqX[1]-s.FreqX[0]), math.Abs(s.FreqY[1]-s.FreqY[0]))
	radial := &Radial{
		Frequencies: make([]float64, maxR+1),
		Power:       make([]float64, maxR+1),
	}
	best := 1
	for r := range sums {
		radial.Frequencies[r] = float64(r) * step
		if counts[r] > 0 {
			radial.Power[r] = sums[r] / float64(counts[r])
		}
		if r > 0 && radial.Power[r] > radial.Power[best] {
			best = r
		}
	}
	if maxR >= 1 {
		radial.DominantFrequency = radial.Frequencies[best]
	}
	return radial, nil
}

package sts

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Peak is a local maximum of a spectrum.
type Peak struct {
	Index  int     `json:"index"`
	Bias   float64 `json:"bias"`
	Height float64 `json:"height"`
}

// Peaks is the result of FindPeaks.
type Peaks struct {
	Peaks     []Peak  `json:"peaks"`
	Threshold float64 `json:"threshold"`
}

// FindPeaks returns the local maxima of spectrum whose height is at least
// thresholdRatio times the spectrum maximum. Peaks closer than minDistance
// samples to a higher peak are dropped. Plateaus report their middle sample.
func FindPeaks(spectrum, bias []float64, thresholdRatio float64, minDistance int) (*Peaks, error) {
	if len(spectrum) != len(bias) {
		return nil, fmt.Errorf("%w: spectrum %d, bias %d", ErrLengthMismatch, len(spectrum), len(bias))
	}
	if len(spectrum) < 3 {
		return &Peaks{}, nil
	}
	threshold := floats.Max(spectrum) * thresholdRatio

	var candidates []int
	n := len(spectrum)
	for i := 1; i < n-1; {
		if !(spectrum[i] > spectrum[i-1]) {
			i++
			continue
		}
		// walk across a plateau
		j := i
		for j+1 < n && spectrum[j+1] == spectrum[i] {
			j++
		}
		if j+1 < n && spectrum[j+1] < spectrum[i] && spectrum[i] >= threshold {
			candidates = append(candidates, (i+j)/2)
		}
		i = j + 1
	}

	if minDistance > 1 && len(candidates) > 1 {
		candidates = suppressClose(spectrum, candidates, minDistance)
	}

	peaks := &Peaks{Threshold: threshold, Peaks: make([]Peak, 0, len(candidates))}
	for _, idx := range candidates {
		peaks.Peaks = append(peaks.Peaks, Peak{Index: idx, Bias: bias[idx], Height: spectrum[idx]})
	}
	return peaks, nil
}

// suppressClose keeps the highest peaks first and discards any peak within
// minDistance samples of one already kept.
func suppressClose(spectrum []float64, candidates []int, minDistance int) []int {
	byHeight := append([]int(nil), candidates...)
	sort.SliceStable(byHeight, func(a, b int) bool {
		return spectrum[byHeight[a]] > spectrum[byHeight[b]]
	})

	var kept []int
	for _, idx := range byHeight {
		tooClose := false
		for _, k := range kept {
			if abs(idx-k) < minDistance {
				tooClose = true
				break
			}
		}
		if !tooClose {
			kept = append(kept, idx)
		}
	}
	sort.Ints(kept)
	return kept
}

// GapMethod selects how the gap centre is located.
type GapMethod string

const (
	// GapMinimum centres the gap on the spectrum minimum.
	GapMinimum GapMethod = "minimum"
	// GapZeroCrossing centres the gap on the sample closest to zero bias.
	GapZeroCrossing GapMethod = "zero_crossing"
)

// Gap describes an energy gap estimate.
type Gap struct {
	Center float64   `json:"center"`
	Width  float64   `json:"width"`
	Method GapMethod `json:"method"`
}

// AnalyzeGap locates the gap centre and estimates its width as the bias
// distance between the nearest samples on either side that rise above the
// half-maximum level.
func AnalyzeGap(spectrum, bias []float64, method GapMethod) (*Gap, error) {
	if len(spectrum) != len(bias) {
		return nil, fmt.Errorf("%w: spectrum %d, bias %d", ErrLengthMismatch, len(spectrum), len(bias))
	}
	if len(spectrum) == 0 {
		return &Gap{Method: method}, nil
	}

	var center int
	switch method {
	case GapMinimum:
		center = floats.MinIdx(spectrum)
	case GapZeroCrossing:
		center = closestToZero(bias)
	default:
		return nil, fmt.Errorf("unsupported gap method %q", method)
	}

	return &Gap{
		Center: bias[center],
		Width:  gapWidth(spectrum, bias, center),
		Method: method,
	}, nil
}

func gapWidth(spectrum, bias []float64, center int) float64 {
	halfMax := spectrum[center] + (floats.Max(spectrum)-spectrum[center])/2

	left := -1
	for i := center - 1; i >= 0; i-- {
		if spectrum[i] > halfMax {
			left = i
			break
		}
	}
	right := -1
	for i := center; i < len(spectrum); i++ {
		if spectrum[i] > halfMax {
			right = i
			break
		}
	}
	if left < 0 || right < 0 {
		return 0
	}
	return bias[right] - bias[left]
}

// Asymmetry compares the mean of the positive-bias branch with the mirrored
// negative-bias branch: (pos-neg)/(pos+neg). Spectra whose zero-bias sample
// sits on an edge report 0.
func Asymmetry(spectrum, bias []float64) float64 {
	if len(spectrum) != len(bias) || len(spectrum) == 0 {
		return 0
	}
	zero := closestToZero(bias)
	if zero == 0 || zero == len(spectrum)-1 {
		return 0
	}

	positive := spectrum[zero:]
	n := min(len(positive), zero+1)
	pos, neg := 0.0, 0.0
	for i := 0; i < n; i++ {
		pos += positive[i]
		neg += spectrum[zero-i]
	}
	pos /= float64(n)
	neg /= float64(n)
	if pos+neg == 0 {
		return 0
	}
	return (pos - neg) / (pos + neg)
}

// SpectralWidth returns the standard deviation of the bias axis weighted by
// the spectrum shifted to a zero minimum.
func SpectralWidth(spectrum, bias []float64) float64 {
	if len(spectrum) != len(bias) || len(spectrum) == 0 {
		return 0
	}
	lo := floats.Min(spectrum)
	weights := make([]float64, len(spectrum))
	for i, v := range spectrum {
		weights[i] = v - lo
	}
	if floats.Sum(weights) == 0 {
		return 0
	}

	mean := stat.Mean(bias, weights)
	sq := make([]float64, len(bias))
	for i, v := range bias {
		sq[i] = (v - mean) * (v - mean)
	}
	return math.Sqrt(stat.Mean(sq, weights))
}

func closestToZero(values []float64) int {
	best := 0
	for i, v := range values {
		if math.Abs(v) < math.Abs(values[best]) {
			best = i
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

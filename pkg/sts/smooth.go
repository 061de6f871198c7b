package sts

import (
	"fmt"
	"sort"
)

// MedianFilter replaces each sample with the median of the kernelSize
// samples centred on it. The signal is zero-padded at both ends, matching
// scipy.signal.medfilt, so the first and last kernelSize/2 samples are pulled
// towards zero.
func MedianFilter(data []float64, kernelSize int) ([]float64, error) {
	if kernelSize < 1 || kernelSize%2 == 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKernel, kernelSize)
	}
	n := len(data)
	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}

	half := kernelSize / 2
	window := make([]float64, kernelSize)
	for i := range data {
		for j := -half; j <= half; j++ {
			idx := i + j
			if idx < 0 || idx >= n {
				window[j+half] = 0
			} else {
				window[j+half] = data[idx]
			}
		}
		sort.Float64s(window)
		out[i] = window[half]
	}
	return out, nil
}

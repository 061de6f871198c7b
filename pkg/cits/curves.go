package cits

import (
	"fmt"
	"math"
	"sort"
)

// DefaultMaxCurves is the curve budget used when none is given.
const DefaultMaxCurves = 20

// CurveMethod selects which positions SelectCurves keeps.
type CurveMethod string

const (
	// CurveUniform spreads the curves evenly over the profile.
	CurveUniform CurveMethod = "uniform"
	// CurveEndpoints keeps a quarter of the budget at each end of the profile
	// and spreads the rest over the interior.
	CurveEndpoints CurveMethod = "endpoints"
)

// ParseCurveMethod maps an external tag to a CurveMethod. The empty tag
// selects CurveUniform.
func ParseCurveMethod(tag string) (CurveMethod, error) {
	switch m := CurveMethod(tag); m {
	case "":
		return CurveUniform, nil
	case CurveUniform, CurveEndpoints:
		return m, nil
	default:
		return "", fmt.Errorf("%w: curve selection %q", ErrInvalidParameter, tag)
	}
}

// CurveSelection is a subset of the spectra of a line profile.
type CurveSelection struct {
	// Spectra is indexed [curve][bias].
	Spectra   [][]float64 `json:"spectra"`
	Positions []float64   `json:"positions"`
	Indices   []int       `json:"indices"`
	Method    CurveMethod `json:"selection_method"`
}

// SelectCurves picks at most maxCurves positions from spectra, which is
// indexed [bias][position] with one entry of positions per column. Indices
// are strictly increasing and, when at least two curves are allowed, always
// include the first and last positions.
func SelectCurves(spectra [][]float64, positions []float64, maxCurves int, m CurveMethod) (*CurveSelection, error) {
	if maxCurves < 1 {
		return nil, fmt.Errorf("%w: max curves %d", ErrInvalidParameter, maxCurves)
	}
	n := len(positions)
	for b, row := range spectra {
		if len(row) != n {
			return nil, fmt.Errorf("%w: spectra row %d has %d positions, expected %d",
				ErrInvalidParameter, b, len(row), n)
		}
	}

	var indices []int
	switch m {
	case "", CurveUniform:
		m = CurveUniform
		indices = uniformIndices(n, min(maxCurves, n))
	case CurveEndpoints:
		indices = endpointIndices(n, min(maxCurves, n))
	default:
		return nil, fmt.Errorf("%w: curve selection %q", ErrInvalidParameter, m)
	}

	sel := &CurveSelection{
		Spectra:   make([][]float64, len(indices)),
		Positions: make([]float64, len(indices)),
		Indices:   indices,
		Method:    m,
	}
	for c, idx := range indices {
		curve := make([]float64, len(spectra))
		for b, row := range spectra {
			curve[b] = row[idx]
		}
		sel.Spectra[c] = curve
		sel.Positions[c] = positions[idx]
	}
	return sel, nil
}

// SelectCurves selects curves from the profile's own spectra and distances.
func (p *LineProfile) SelectCurves(maxCurves int, m CurveMethod) (*CurveSelection, error) {
	return SelectCurves(p.Spectra, p.DistancesNM, maxCurves, m)
}

// uniformIndices rounds k evenly spaced targets over [0, n-1]. Targets that
// round to the same index are kept once.
func uniformIndices(n, k int) []int {
	if n == 0 || k == 0 {
		return []int{}
	}
	if k == 1 {
		return []int{0}
	}
	indices := make([]int, 0, k)
	step := float64(n-1) / float64(k-1)
	for i := 0; i < k; i++ {
		idx := int(math.Round(float64(i) * step))
		if len(indices) > 0 && indices[len(indices)-1] == idx {
			continue
		}
		indices = append(indices, idx)
	}
	return indices
}

func endpointIndices(n, k int) []int {
	if k >= n {
		return uniformIndices(n, n)
	}
	if k == 1 {
		return []int{0}
	}

	edge := max(1, k/4)
	set := make(map[int]bool, k)
	for i := 0; i < edge; i++ {
		set[i] = true
		set[n-1-i] = true
	}

	interior := k - 2*edge
	span := n - 2*edge
	switch {
	case interior == 1:
		set[edge+(span-1)/2] = true
	case interior > 1:
		step := float64(span-1) / float64(interior-1)
		for j := 0; j < interior; j++ {
			set[edge+int(math.Round(float64(j)*step))] = true
		}
	}

	indices := make([]int, 0, len(set))
	for idx := range set {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

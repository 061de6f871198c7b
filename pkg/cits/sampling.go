package cits

import (
	"fmt"
	"strings"
)

// SamplingMethod is the external tag of a sampling policy.
type SamplingMethod string

const (
	MethodBresenham   SamplingMethod = "bresenham"
	MethodInterpolate SamplingMethod = "interpolate"
)

// Sampling selects how pixels along a line are chosen. The only
// implementations are Rasterized and Interpolated.
type Sampling interface {
	Method() SamplingMethod
	sampling()
}

// Rasterized walks the integer Bresenham line and reads the nearest pixel.
type Rasterized struct{}

// Interpolated samples evenly spaced fractional points with bilinear
// interpolation. A zero Points derives the count from the line length.
type Interpolated struct {
	Points int `json:"points,omitempty"`
}

func (Rasterized) Method() SamplingMethod   { return MethodBresenham }
func (Interpolated) Method() SamplingMethod { return MethodInterpolate }

func (Rasterized) sampling()   {}
func (Interpolated) sampling() {}

// ParseSampling maps an external tag to a sampling policy. The empty tag
// selects the default Rasterized policy. points is only used by interpolate.
func ParseSampling(tag string, points int) (Sampling, error) {
	switch SamplingMethod(strings.ToLower(strings.TrimSpace(tag))) {
	case "", MethodBresenham:
		return Rasterized{}, nil
	case MethodInterpolate:
		if points < 0 {
			return nil, fmt.Errorf("%w: point count %d", ErrInvalidParameter, points)
		}
		return Interpolated{Points: points}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSamplingMethod, tag)
	}
}

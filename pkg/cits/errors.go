package cits

import (
	"errors"

	"github.com/chrissnell/spmanalyzer/pkg/geometry"
)

var (
	// ErrInvalidDimension is returned for zero, negative or non-finite pixel
	// counts and physical ranges.
	ErrInvalidDimension = geometry.ErrInvalidDimension
	// ErrInvalidSamplingMethod is returned for an unknown sampling tag.
	ErrInvalidSamplingMethod = errors.New("invalid sampling method")
	// ErrInvalidParameter is returned for out-of-range option values.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrIndexOutOfRange is returned when a bias index or pixel lies outside
	// the cube.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrEmptyCube is returned when a cube has no bias steps or no pixels.
	ErrEmptyCube = errors.New("empty cube")
)

package cits

import "fmt"

// BiasSlice is the spatial image of a cube at one bias step.
type BiasSlice struct {
	// Data is a copy indexed [row][col].
	Data      [][]float64 `json:"slice_data"`
	BiasValue float64     `json:"bias_value"`
	BiasIndex int         `json:"bias_index"`
}

// GetBiasSlice returns a copy of the image at biasIndex.
func GetBiasSlice(cube *DataCube, biasIndex int) (*BiasSlice, error) {
	if cube == nil {
		return nil, emptyCubeError(cube)
	}
	if biasIndex < 0 || biasIndex >= cube.NBias() {
		return nil, fmt.Errorf("%w: bias index %d not in [0, %d)", ErrIndexOutOfRange, biasIndex, cube.NBias())
	}
	return &BiasSlice{
		Data:      cube.Plane(biasIndex),
		BiasValue: cube.BiasAxis[biasIndex],
		BiasIndex: biasIndex,
	}, nil
}

// NearestBiasIndex returns the index of the bias step closest to v.
func (c *DataCube) NearestBiasIndex(v float64) (int, error) {
	if c.NBias() == 0 {
		return 0, emptyCubeError(c)
	}
	best := 0
	for i, b := range c.BiasAxis {
		if abs(b-v) < abs(c.BiasAxis[best]-v) {
			best = i
		}
	}
	return best, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

package topo

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes height values. NaN samples are ignored.
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	RMS    float64 `json:"rms"`
	Range  float64 `json:"range"`
	Count  int     `json:"count"`
}

// Roughness holds the standard areal roughness parameters.
type Roughness struct {
	Ra float64 `json:"ra"`
	Rq float64 `json:"rq"`
	Rz float64 `json:"rz"`
	Rp float64 `json:"rp"`
	Rv float64 `json:"rv"`
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Summarize computes Stats over values.
func Summarize(values []float64) Stats {
	v := finite(values)
	if len(v) == 0 {
		return Stats{}
	}
	sort.Float64s(v)

	mean, std := stat.PopMeanStdDev(v, nil)
	median := v[len(v)/2]
	if len(v)%2 == 0 {
		median = (v[len(v)/2-1] + v[len(v)/2]) / 2
	}
	lo, hi := v[0], v[len(v)-1]
	return Stats{
		Min:    lo,
		Max:    hi,
		Mean:   mean,
		Median: median,
		Std:    std,
		RMS:    std,
		Range:  hi - lo,
		Count:  len(v),
	}
}

// ImageStats computes Stats over every pixel.
func ImageStats(img *Image) Stats {
	return Summarize(img.Values())
}

// SurfaceRoughness computes Ra, Rq, Rz, Rp and Rv about the mean height.
func SurfaceRoughness(img *Image) Roughness {
	v := finite(img.Values())
	if len(v) == 0 {
		return Roughness{}
	}
	mean := stat.Mean(v, nil)
	var absDev, sqDev float64
	for _, h := range v {
		d := h - mean
		absDev += math.Abs(d)
		sqDev += d * d
	}
	n := float64(len(v))
	hi, lo := floats.Max(v), floats.Min(v)
	return Roughness{
		Ra: absDev / n,
		Rq: math.Sqrt(sqDev / n),
		Rz: hi - lo,
		Rp: hi - mean,
		Rv: mean - lo,
	}
}

package sts

import "fmt"

// Data holds a set of point spectra measured on the same bias sweep.
// Values is indexed [bias][point].
type Data struct {
	BiasAxis []float64   `json:"bias_axis"`
	Values   [][]float64 `json:"values"`
	XCoords  []float64   `json:"x_coords"`
	YCoords  []float64   `json:"y_coords"`
}

// NPoints returns the number of measurement points.
func (d *Data) NPoints() int {
	if len(d.Values) == 0 {
		return 0
	}
	return len(d.Values[0])
}

// Point returns a copy of the spectrum recorded at point i.
func (d *Data) Point(i int) ([]float64, error) {
	if i < 0 || i >= d.NPoints() {
		return nil, fmt.Errorf("%w: point %d not in [0, %d)", ErrIndexOutOfRange, i, d.NPoints())
	}
	spectrum := make([]float64, len(d.Values))
	for b, row := range d.Values {
		spectrum[b] = row[i]
	}
	return spectrum, nil
}

// Average returns the mean spectrum over all points.
func (d *Data) Average() []float64 {
	avg := make([]float64, len(d.Values))
	n := d.NPoints()
	if n == 0 {
		return avg
	}
	for b, row := range d.Values {
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		avg[b] = sum / float64(n)
	}
	return avg
}

// Package render draws line profiles, bias slices and curve overlays to PNG
// using gonum/plot.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/chrissnell/spmanalyzer/internal/charts"
	"github.com/chrissnell/spmanalyzer/pkg/cits"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("nothing to render")

// Options sizes the output image.
type Options struct {
	Width  vg.Length
	Height vg.Length
}

// DefaultOptions is a 16:10 image suitable for a browser panel.
var DefaultOptions = Options{Width: 8 * vg.Inch, Height: 5 * vg.Inch}

func (o Options) size() (vg.Length, vg.Length) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = DefaultOptions.Width
	}
	if h <= 0 {
		h = DefaultOptions.Height
	}
	return w, h
}

const paletteSize = 255

// Evolution draws a line profile as a distance by bias heatmap with a blue-red
// diverging palette centred on zero.
func Evolution(w io.Writer, p *cits.LineProfile, opts Options) error {
	if p == nil || p.NPositions() == 0 || len(p.BiasAxis) == 0 {
		return ErrNoData
	}
	g := newGrid(p.DistancesNM, p.BiasAxis, p.Spectra)

	cm := moreland.SmoothBlueRed()
	cm.SetMax(1)
	cm.SetMin(0)
	h := plotter.NewHeatMap(g, cm.Palette(paletteSize))
	m := absMax(p.Spectra)
	if m == 0 {
		m = 1
	}
	h.Min, h.Max = -m, m

	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("STS Evolution (%s, %.2f nm)", p.Method, p.PhysicalLengthNM)
	pl.X.Label.Text = "Distance along line (nm)"
	pl.Y.Label.Text = "Bias (mV)"
	pl.Add(h)
	return save(w, pl, opts)
}

// BiasSlice draws one bias plane over the physical scan area.
func BiasSlice(w io.Writer, s *cits.BiasSlice, xRangeNM, yRangeNM float64, opts Options) error {
	if s == nil || len(s.Data) == 0 || len(s.Data[0]) == 0 {
		return ErrNoData
	}
	rows, cols := len(s.Data), len(s.Data[0])
	g := newGrid(pixelAxis(cols, xRangeNM), pixelAxis(rows, yRangeNM), s.Data)

	h := plotter.NewHeatMap(g, palette.Heat(paletteSize, 1))
	h.Min, h.Max = finiteRange(s.Data)

	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("Bias Slice at %g mV", s.BiasValue)
	pl.X.Label.Text = "X (nm)"
	pl.Y.Label.Text = "Y (nm)"
	pl.Add(h)
	return save(w, pl, opts)
}

// Overlay draws the selected curves against the bias axis, one colour each.
func Overlay(w io.Writer, sel *cits.CurveSelection, bias []float64, opts Options) error {
	if sel == nil || len(sel.Spectra) == 0 {
		return ErrNoData
	}
	pl := plot.New()
	pl.Title.Text = "STS Overlay"
	pl.X.Label.Text = "Bias (mV)"
	pl.Y.Label.Text = "Current"

	colors := charts.Colors(len(sel.Spectra))
	drawn := 0
	for i, spectrum := range sel.Spectra {
		xys := finiteXYs(bias, spectrum)
		if len(xys) == 0 {
			continue
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("curve %d: %w", i, err)
		}
		l.LineStyle.Color = colors[i]
		l.LineStyle.Width = vg.Points(1.5)
		pl.Add(l)
		pl.Legend.Add(fmt.Sprintf("%.1f nm", sel.Positions[i]), l)
		drawn++
	}
	if drawn == 0 {
		return ErrNoData
	}
	pl.Legend.Top = true
	return save(w, pl, opts)
}

func save(w io.Writer, pl *plot.Plot, opts Options) error {
	width, height := opts.size()
	wt, err := pl.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// grid adapts z[row][col] to plotter.GridXYZ. Axes that do not increase
// strictly are replaced by sample indices and rows are reversed when y
// decreases.
type grid struct {
	x, y []float64
	z    [][]float64
}

func newGrid(x, y []float64, z [][]float64) grid {
	if !increasing(x) {
		x = indexAxis(len(x))
	}
	if decreasing(y) {
		ry := make([]float64, len(y))
		rz := make([][]float64, len(z))
		for i := range y {
			ry[i] = y[len(y)-1-i]
			rz[i] = z[len(z)-1-i]
		}
		y, z = ry, rz
	} else if !increasing(y) {
		y = indexAxis(len(y))
	}
	return grid{x: x, y: y, z: z}
}

func (g grid) Dims() (int, int)   { return len(g.x), len(g.y) }
func (g grid) Z(c, r int) float64 { return g.z[r][c] }
func (g grid) X(c int) float64    { return g.x[c] }
func (g grid) Y(r int) float64    { return g.y[r] }

func increasing(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if !(v[i] > v[i-1]) {
			return false
		}
	}
	return true
}

func decreasing(v []float64) bool {
	if len(v) < 2 {
		return false
	}
	for i := 1; i < len(v); i++ {
		if !(v[i] < v[i-1]) {
			return false
		}
	}
	return true
}

func indexAxis(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

// pixelAxis places n pixel centres across rangeNM, or uses indices when the
// range is unknown.
func pixelAxis(n int, rangeNM float64) []float64 {
	if rangeNM <= 0 {
		return indexAxis(n)
	}
	step := rangeNM / float64(n)
	out := make([]float64, n)
	for i := range out {
		out[i] = (float64(i) + 0.5) * step
	}
	return out
}

func finiteXYs(x, y []float64) plotter.XYs {
	n := min(len(x), len(y))
	out := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		if isFinite(x[i]) && isFinite(y[i]) {
			out = append(out, plotter.XY{X: x[i], Y: y[i]})
		}
	}
	return out
}

func absMax(z [][]float64) float64 {
	m := 0.0
	for _, row := range z {
		for _, v := range row {
			if isFinite(v) {
				m = math.Max(m, math.Abs(v))
			}
		}
	}
	return m
}

// finiteRange returns the span of the finite values, widened when flat so the
// palette index stays defined.
func finiteRange(z [][]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range z {
		for _, v := range row {
			if isFinite(v) {
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if lo == hi {
		return lo - 0.5, hi + 0.5
	}
	return lo, hi
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package charts

import (
	"fmt"

	"github.com/chrissnell/spmanalyzer/pkg/cits"
	"github.com/chrissnell/spmanalyzer/pkg/topo"
)

// DefaultColorscale is used for evolution heatmaps when none is requested.
const DefaultColorscale = "RdBu_r"

// STSEvolution renders a line profile as a position by bias heatmap with a
// colour range symmetric about zero.
func STSEvolution(p *cits.LineProfile, colorscale string) Figure {
	const title = "STS Evolution"
	if p == nil || p.NPositions() == 0 || len(p.BiasAxis) == 0 {
		return Empty(title, "line profile has no samples")
	}
	if colorscale == "" {
		colorscale = DefaultColorscale
	}

	heat := Trace{
		Type:       "heatmap",
		X:          p.DistancesNM,
		Y:          p.BiasAxis,
		Z:          p.Spectra,
		Colorscale: colorscale,
		ColorTitle: "Current",
	}
	if lo, hi, ok := symmetricRange(p.Spectra); ok {
		heat.ZMin, heat.ZMax = &lo, &hi
	}
	return Figure{
		Data: []Trace{heat},
		Layout: Layout{
			Title: title,
			XAxis: Axis{Title: "Distance along line (nm)"},
			YAxis: Axis{Title: "Bias (mV)"},
		},
	}
}

// STSOverlay draws the selected curves on a shared bias axis, one colour per
// curve. With normalizeCurves set every curve is scaled to zero mean and unit
// variance.
func STSOverlay(sel *cits.CurveSelection, bias []float64, normalizeCurves bool) Figure {
	const title = "STS Overlay"
	if sel == nil || len(sel.Spectra) == 0 {
		return Empty(title, "no curves selected")
	}

	colors := Palette(len(sel.Spectra))
	traces := make([]Trace, len(sel.Spectra))
	for i, spectrum := range sel.Spectra {
		y := spectrum
		if normalizeCurves {
			y = normalize(spectrum)
		}
		traces[i] = Trace{
			Type: "scatter",
			Mode: "lines",
			Name: fmt.Sprintf("%.1f nm", sel.Positions[i]),
			X:    bias,
			Y:    y,
			Line: &Line{Color: colors[i], Width: 2},
		}
	}

	yTitle := "Current"
	if normalizeCurves {
		yTitle = "Normalized current"
	}
	return Figure{
		Data: traces,
		Layout: Layout{
			Title:      title,
			XAxis:      Axis{Title: "Bias (mV)"},
			YAxis:      Axis{Title: yTitle},
			ShowLegend: true,
		},
	}
}

// BiasSliceMap shows one bias plane of a cube over its physical extent.
func BiasSliceMap(s *cits.BiasSlice, xRangeNM, yRangeNM float64) Figure {
	title := "Bias Slice"
	if s == nil || len(s.Data) == 0 || len(s.Data[0]) == 0 {
		return Empty(title, "bias slice is empty")
	}
	title = fmt.Sprintf("Bias Slice at %g mV", s.BiasValue)

	rows, cols := len(s.Data), len(s.Data[0])
	return Figure{
		Data: []Trace{{
			Type:       "heatmap",
			X:          axis(cols, xRangeNM),
			Y:          axis(rows, yRangeNM),
			Z:          s.Data,
			Colorscale: "Viridis",
			ColorTitle: "Current",
		}},
		Layout: Layout{
			Title: title,
			XAxis: Axis{Title: "X (nm)"},
			YAxis: Axis{Title: "Y (nm)"},
		},
	}
}

// PointSpectrum plots I(V) and dI/dV of one pixel on twin y axes.
func PointSpectrum(ps *cits.PointSpectrum, bias []float64) Figure {
	const title = "Point Spectrum"
	if ps == nil || len(ps.Current) == 0 {
		return Empty(title, "spectrum is empty")
	}
	colors := Palette(2)
	return Figure{
		Data: []Trace{
			{Type: "scatter", Mode: "lines", Name: "I(V)", X: bias, Y: ps.Current, Line: &Line{Color: colors[0], Width: 2}},
			{Type: "scatter", Mode: "lines", Name: "dI/dV", X: bias, Y: ps.Conductance, Line: &Line{Color: colors[1], Width: 2}, YAxis: "y2"},
		},
		Layout: Layout{
			Title:      fmt.Sprintf("%s at (%d, %d)", title, ps.X, ps.Y),
			XAxis:      Axis{Title: "Bias (mV)"},
			YAxis:      Axis{Title: "Current"},
			YAxis2:     &Axis{Title: "dI/dV", Overlaying: "y", Side: "right"},
			ShowLegend: true,
		},
	}
}

// Topography renders an image as a heatmap in physical coordinates.
func Topography(img *topo.Image, title string) Figure {
	if title == "" {
		title = "Topography"
	}
	if img == nil {
		return Empty(title, "image is empty")
	}
	cols, rows := img.Size()
	if cols == 0 || rows == 0 {
		return Empty(title, "image is empty")
	}
	unit := img.Unit
	if unit == "" {
		unit = "nm"
	}
	return Figure{
		Data: []Trace{{
			Type:       "heatmap",
			X:          axis(cols, img.XRangeNM),
			Y:          axis(rows, img.YRangeNM),
			Z:          img.Data,
			Colorscale: "Greys",
			ColorTitle: fmt.Sprintf("Height (%s)", unit),
		}},
		Layout: Layout{
			Title: title,
			XAxis: Axis{Title: "X (nm)"},
			YAxis: Axis{Title: "Y (nm)"},
		},
	}
}

// LineProfile plots a topography height profile.
func LineProfile(p *topo.Profile) Figure {
	const title = "Height Profile"
	if p == nil || len(p.Heights) == 0 {
		return Empty(title, "profile has no samples")
	}
	return Figure{
		Data: []Trace{{
			Type: "scatter",
			Mode: "lines",
			Name: "height",
			X:    p.DistancesNM,
			Y:    p.Heights,
			Line: &Line{Color: hex(baseColors[0]), Width: 2},
		}},
		Layout: Layout{
			Title: fmt.Sprintf("%s (%.2f nm)", title, p.LengthNM),
			XAxis: Axis{Title: "Distance (nm)"},
			YAxis: Axis{Title: "Height"},
		},
	}
}

// axis returns the lower edge of n pixels spread over rangeNM, or pixel
// indices when the range is unknown.
func axis(n int, rangeNM float64) []float64 {
	out := make([]float64, n)
	step := 1.0
	if rangeNM > 0 {
		step = rangeNM / float64(n)
	}
	for i := range out {
		out[i] = float64(i) * step
	}
	return out
}

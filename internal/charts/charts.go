// Package charts builds plotly-style figure descriptors for the web client.
// Figures are plain data and encode to JSON or MessagePack unchanged.
package charts

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot/palette"
)

// Figure is a complete chart: traces plus layout.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is one plotted series or heatmap.
type Trace struct {
	Type       string      `json:"type"`
	Mode       string      `json:"mode,omitempty"`
	Name       string      `json:"name,omitempty"`
	X          []float64   `json:"x,omitempty"`
	Y          []float64   `json:"y,omitempty"`
	Z          [][]float64 `json:"z,omitempty"`
	ZMin       *float64    `json:"zmin,omitempty"`
	ZMax       *float64    `json:"zmax,omitempty"`
	Colorscale string      `json:"colorscale,omitempty"`
	ColorTitle string      `json:"colorbar_title,omitempty"`
	Line       *Line       `json:"line,omitempty"`
	YAxis      string      `json:"yaxis,omitempty"`
}

// Line styles a scatter trace.
type Line struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

// Axis labels an axis.
type Axis struct {
	Title      string `json:"title"`
	Overlaying string `json:"overlaying,omitempty"`
	Side       string `json:"side,omitempty"`
}

// Layout describes the figure frame.
type Layout struct {
	Title       string `json:"title"`
	XAxis       Axis   `json:"xaxis"`
	YAxis       Axis   `json:"yaxis"`
	YAxis2      *Axis  `json:"yaxis2,omitempty"`
	ShowLegend  bool   `json:"showlegend"`
	Annotation  string `json:"annotation,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

var baseColors = []color.RGBA{
	{0x1f, 0x77, 0xb4, 0xff}, {0xff, 0x7f, 0x0e, 0xff}, {0x2c, 0xa0, 0x2c, 0xff},
	{0xd6, 0x27, 0x28, 0xff}, {0x94, 0x67, 0xbd, 0xff}, {0x8c, 0x56, 0x4b, 0xff},
	{0xe3, 0x77, 0xc2, 0xff}, {0x7f, 0x7f, 0x7f, 0xff}, {0xbc, 0xbd, 0x22, 0xff},
	{0x17, 0xbe, 0xcf, 0xff},
}

// Colors returns n distinct opaque colours. Up to ten come from a fixed
// qualitative set; beyond that hues are spread evenly around the HSV wheel.
func Colors(n int) []color.RGBA {
	if n <= 0 {
		return []color.RGBA{}
	}
	if n <= len(baseColors) {
		return append([]color.RGBA(nil), baseColors[:n]...)
	}
	out := make([]color.RGBA, n)
	for i := range out {
		c := palette.HSVA{H: float64(i) / float64(n), S: 0.8, V: 0.9, A: 1}
		r, g, b, _ := c.RGBA()
		out[i] = color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 0xff}
	}
	return out
}

// Palette returns Colors(n) as #rrggbb strings.
func Palette(n int) []string {
	cs := Colors(n)
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = hex(c)
	}
	return out
}

func hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Empty is the figure shown when data for a chart cannot be produced.
func Empty(title, reason string) Figure {
	return Figure{
		Data: []Trace{},
		Layout: Layout{
			Title:       title,
			Annotation:  reason,
			Placeholder: true,
		},
	}
}

func symmetricRange(z [][]float64) (float64, float64, bool) {
	m := 0.0
	found := false
	for _, row := range z {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			m = math.Max(m, math.Abs(v))
			found = true
		}
	}
	return -m, m, found
}

func normalize(values []float64) []float64 {
	mean, std := stat.PopMeanStdDev(values, nil)
	out := make([]float64, len(values))
	if std == 0 || math.IsNaN(std) {
		return out
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}

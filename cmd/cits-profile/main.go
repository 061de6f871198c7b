// Command cits-profile extracts a line profile from a CITS cube without
// running the server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chrissnell/spmanalyzer/internal/render"
	"github.com/chrissnell/spmanalyzer/internal/session"
	"github.com/chrissnell/spmanalyzer/pkg/cits"
	"github.com/chrissnell/spmanalyzer/pkg/geometry"
	"github.com/dustin/go-humanize"
)

func main() {
	var (
		txtFile   = flag.String("txt", "", "Path to the experiment parameter (.txt) file")
		fileKey   = flag.String("file", "", "CITS file key (file name without extension)")
		from      = flag.String("from", "", "Line start in pixels, as x,y")
		to        = flag.String("to", "", "Line end in pixels, as x,y")
		method    = flag.String("method", "bresenham", "Sampling method: bresenham or interpolate")
		points    = flag.Int("points", 0, "Interpolated sample count (0 picks one from the line length)")
		maxCurves = flag.Int("max-curves", cits.DefaultMaxCurves, "Curves to draw with -png")
		selection = flag.String("select", "uniform", "Curve selection: uniform or endpoints")
		pngFile   = flag.String("png", "", "Write an evolution heatmap to this file")
		curvesPNG = flag.String("curves-png", "", "Write a curve overlay to this file")
		jsonOut   = flag.Bool("json", false, "Print the profile as JSON")
	)
	flag.Parse()

	if *txtFile == "" || *fileKey == "" || *from == "" || *to == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -txt <experiment.txt> -file <key> -from x,y -to x,y\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	start, err := parsePoint(*from)
	if err != nil {
		fatal("-from: %v", err)
	}
	end, err := parsePoint(*to)
	if err != nil {
		fatal("-to: %v", err)
	}
	sampling, err := cits.ParseSampling(*method, *points)
	if err != nil {
		fatal("%v", err)
	}

	s, err := session.Open(*txtFile, 1, nil)
	if err != nil {
		fatal("opening experiment: %v", err)
	}
	cube, err := s.Cube(*fileKey)
	if err != nil {
		fatal("loading %s: %v", *fileKey, err)
	}

	profile, err := cits.ExtractLineProfile(cube, start, end, sampling)
	if err != nil {
		fatal("extracting profile: %v", err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(profile); err != nil {
			fatal("encoding profile: %v", err)
		}
	} else {
		fmt.Printf("Line Profile %s -> %s (%s)\n", start, end, profile.Method)
		fmt.Printf("  Positions:    %d\n", profile.NPositions())
		fmt.Printf("  Bias points:  %d (%.4g to %.4g)\n", len(profile.BiasAxis), first(profile.BiasAxis), last(profile.BiasAxis))
		fmt.Printf("  Length:       %.3f nm\n", profile.PhysicalLengthNM)
		fmt.Printf("  Cube memory:  %s\n", humanize.Bytes(uint64(cube.SizeBytes())))
	}

	if *pngFile != "" {
		writePNG(*pngFile, func(f *os.File) error {
			return render.Evolution(f, profile, render.DefaultOptions)
		})
	}
	if *curvesPNG != "" {
		cm, err := cits.ParseCurveMethod(*selection)
		if err != nil {
			fatal("%v", err)
		}
		sel, err := profile.SelectCurves(*maxCurves, cm)
		if err != nil {
			fatal("selecting curves: %v", err)
		}
		writePNG(*curvesPNG, func(f *os.File) error {
			return render.Overlay(f, sel, profile.BiasAxis, render.DefaultOptions)
		})
	}
}

func writePNG(path string, draw func(*os.File) error) {
	f, err := os.Create(path)
	if err != nil {
		fatal("creating %s: %v", path, err)
	}
	if err := draw(f); err != nil {
		f.Close()
		fatal("rendering %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		fatal("writing %s: %v", path, err)
	}
	if st, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "wrote %s (%s)\n", path, humanize.Bytes(uint64(st.Size())))
	}
}

// parsePoint reads "x,y".
func parsePoint(s string) (geometry.Point2D, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return geometry.Point2D{}, fmt.Errorf("expected x,y, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return geometry.Point2D{}, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return geometry.Point2D{}, err
	}
	return geometry.Pt(x, y), nil
}

func first(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

func last(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// Package spmfile reads the files exported by the SPM controller: the text
// parameter file that describes an experiment, the binary .int topography
// images and the tab separated .dat spectroscopy tables it references.
package spmfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrMalformed is returned when a file does not follow the expected layout.
	ErrMalformed = errors.New("malformed file")
	// ErrSizeMismatch is returned when a binary image has the wrong length.
	ErrSizeMismatch = errors.New("size mismatch")
)

// MeasurementMode tells a CITS matrix from discrete point spectra.
type MeasurementMode string

const (
	ModeCITS    MeasurementMode = "CITS"
	ModeSTS     MeasurementMode = "STS"
	ModeUnknown MeasurementMode = "unknown"
)

// ScanParameters are the numeric scan settings of an experiment. Ranges and
// centres are converted to nanometres.
type ScanParameters struct {
	XRangeNM  float64 `json:"x_range_nm"`
	YRangeNM  float64 `json:"y_range_nm"`
	XPixels   int     `json:"x_pixels"`
	YPixels   int     `json:"y_pixels"`
	XCenterNM float64 `json:"x_center_nm"`
	YCenterNM float64 `json:"y_center_nm"`
	Angle     float64 `json:"angle"`
	Bias      float64 `json:"bias"`
	SetPoint  float64 `json:"set_point"`
}

// IntDesc describes a topography image listed in the parameter file.
type IntDesc struct {
	FileName   string  `json:"filename"`
	Caption    string  `json:"caption"`
	Scale      float64 `json:"scale"`
	PhysUnit   string  `json:"phys_unit"`
	Offset     float64 `json:"offset"`
	SignalType string  `json:"signal_type"`
	Direction  string  `json:"direction,omitempty"`
}

// DatDesc describes a spectroscopy table listed in the parameter file.
type DatDesc struct {
	FileName        string          `json:"filename"`
	Caption         string          `json:"caption"`
	MeasurementType string          `json:"measurement_type"`
	Mode            MeasurementMode `json:"measurement_mode"`
	GridX           int             `json:"grid_x,omitempty"`
	GridY           int             `json:"grid_y,omitempty"`
	PointCount      int             `json:"point_count,omitempty"`
	HeaderCols      int             `json:"header_cols,omitempty"`
	HeaderRows      int             `json:"header_rows,omitempty"`
	Delays          []float64       `json:"delays,omitempty"`
	Slewrate        []string        `json:"slewrate,omitempty"`
	Average         int             `json:"average,omitempty"`
	SignalType      string          `json:"signal_type"`
	Direction       string          `json:"direction,omitempty"`
}

// Experiment is a parsed parameter file.
type Experiment struct {
	Path        string            `json:"path"`
	Name        string            `json:"name"`
	Params      map[string]string `json:"params"`
	Scan        ScanParameters    `json:"scan"`
	IntFiles    []IntDesc         `json:"int_files"`
	DatFiles    []DatDesc         `json:"dat_files"`
	SignalTypes []string          `json:"signal_types"`
}

// Dir returns the directory holding the parameter file, where the data files
// live.
func (e *Experiment) Dir() string {
	return filepath.Dir(e.Path)
}

// ParseTxtFile parses the parameter file at path.
func ParseTxtFile(path string) (*Experiment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	exp, err := ParseTxt(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	exp.Path = path
	exp.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return exp, nil
}

// ParseTxt reads "Key : Value" lines. Lines between FileDescBegin and
// FileDescEnd describe one data file each. The first occurrence of a
// top-level key wins.
func ParseTxt(r io.Reader) (*Experiment, error) {
	exp := &Experiment{Params: map[string]string{}}
	signals := map[string]bool{}

	var block map[string]string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "FileDescBegin"):
			block = map[string]string{}
			continue
		case strings.HasPrefix(line, "FileDescEnd"):
			if block != nil {
				exp.addFile(block, signals)
			}
			block = nil
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if strings.HasPrefix(key, "Delays") {
			key = "Delays"
		}
		target := exp.Params
		if block != nil {
			target = block
		}
		if _, seen := target[key]; !seen {
			target[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if block != nil {
		return nil, fmt.Errorf("%w: FileDescBegin without FileDescEnd", ErrMalformed)
	}

	exp.Scan = scanParameters(exp.Params)
	for s := range signals {
		exp.SignalTypes = append(exp.SignalTypes, s)
	}
	sort.Strings(exp.SignalTypes)
	return exp, nil
}

func (e *Experiment) addFile(block map[string]string, signals map[string]bool) {
	name := block["FileName"]
	signal, direction := SignalTypeAndDirection(name)
	if signal != "" {
		signals[signal] = true
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".int":
		e.IntFiles = append(e.IntFiles, IntDesc{
			FileName:   name,
			Caption:    block["Caption"],
			Scale:      parseFloat(block["Scale"]),
			PhysUnit:   block["PhysUnit"],
			Offset:     parseFloat(block["Offset"]),
			SignalType: signal,
			Direction:  direction,
		})
	case ".dat":
		d := DatDesc{
			FileName:   name,
			Caption:    block["Caption"],
			HeaderCols: parseInt(block["HeaderCols"]),
			HeaderRows: parseInt(block["HeaderRows"]),
			Average:    parseInt(block["Average"]),
			SignalType: signal,
			Direction:  direction,
		}
		d.parseCaption()
		if v, ok := block["Delays"]; ok {
			for _, part := range strings.Split(v, "/") {
				d.Delays = append(d.Delays, parseFloat(part))
			}
		}
		if v, ok := block["Slewrate"]; ok {
			d.Slewrate = strings.Split(v, "/")
		}
		e.DatFiles = append(e.DatFiles, d)
	}
}

// parseCaption reads captions such as "X(U)-Lia1R(100/100)" for a CITS grid
// or "X(U)-It_to_PC(1)" for point spectra.
func (d *DatDesc) parseCaption() {
	d.MeasurementType = "unknown"
	d.Mode = ModeUnknown
	c := d.Caption

	if _, after, ok := strings.Cut(c, "-"); ok {
		d.MeasurementType, _, _ = strings.Cut(after, "(")
	}

	open := strings.LastIndex(c, "(")
	if open < 0 {
		return
	}
	inner, _, ok := strings.Cut(c[open+1:], ")")
	if !ok {
		return
	}
	if gx, gy, grid := strings.Cut(inner, "/"); grid {
		x, errX := strconv.Atoi(strings.TrimSpace(gx))
		y, errY := strconv.Atoi(strings.TrimSpace(gy))
		if errX == nil && errY == nil {
			d.Mode, d.GridX, d.GridY = ModeCITS, x, y
		}
		return
	}
	if n, err := strconv.Atoi(strings.TrimSpace(inner)); err == nil {
		d.Mode, d.PointCount = ModeSTS, n
	}
}

var signalPatterns = []string{
	"Topo", "Lia1X", "Lia1Y", "Lia1R", "Lia2X", "Lia2Y", "Lia2R",
	"Lia3X", "Lia3Y", "Lia3R", "It_to_PC", "InA", "QPlus",
	"Bias", "Frequency", "Drive", "Phase", "df",
}

// SignalTypeAndDirection derives the recorded signal and the scan direction
// (Fwd or Bwd) from a data file name. CITS matrices carry a "_Matrix" suffix
// and have no direction.
func SignalTypeAndDirection(filename string) (string, string) {
	if before, _, ok := strings.Cut(filename, "_Matrix"); ok {
		parts := strings.Split(before, "_")
		signal := parts[len(parts)-1]
		signal = strings.TrimLeft(signal, "0123456789")
		return signal, ""
	}

	direction := ""
	switch {
	case strings.Contains(filename, "Fwd"):
		direction = "Fwd"
	case strings.Contains(filename, "Bwd"):
		direction = "Bwd"
	}
	for _, p := range signalPatterns {
		if strings.Contains(filename, p) {
			return p, direction
		}
	}

	parts := strings.Split(filename, "_")
	last := strings.TrimSuffix(parts[len(parts)-1], filepath.Ext(filename))
	last = strings.NewReplacer("Fwd", "", "Bwd", "").Replace(last)
	return last, direction
}

func scanParameters(p map[string]string) ScanParameters {
	xUnit := unitToNM(p["XPhysUnit"])
	yUnit := unitToNM(p["YPhysUnit"])
	return ScanParameters{
		XRangeNM:  parseFloat(p["XScanRange"]) * xUnit,
		YRangeNM:  parseFloat(p["YScanRange"]) * yUnit,
		XPixels:   parseInt(p["xPixel"]),
		YPixels:   parseInt(p["yPixel"]),
		XCenterNM: parseFloat(p["xCenter"]) * xUnit,
		YCenterNM: parseFloat(p["yCenter"]) * yUnit,
		Angle:     parseFloat(p["Angle"]),
		Bias:      parseFloat(p["Bias"]),
		SetPoint:  parseFloat(p["SetPoint"]),
	}
}

// unitToNM returns the factor converting a length unit to nanometres.
// Unknown and empty units are taken as nanometres.
func unitToNM(unit string) float64 {
	switch strings.TrimSpace(unit) {
	case "m":
		return 1e9
	case "mm":
		return 1e6
	case "um", "µm", "μm":
		return 1e3
	case "Å", "A", "Ang":
		return 0.1
	case "pm":
		return 1e-3
	default:
		return 1
	}
}

// parseFloat reads the leading number of a value such as "1.5E+2 nm". Values
// that do not parse read as 0.
func parseFloat(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil {
		return int(parseFloat(s))
	}
	return v
}

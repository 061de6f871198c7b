package spmfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chrissnell/spmanalyzer/pkg/cits"
	"github.com/chrissnell/spmanalyzer/pkg/sts"
)

// DefaultGridSize is assumed for CITS tables whose caption has no grid.
const DefaultGridSize = 100

// Scan directions of a CITS matrix.
const (
	ScanUpward   = "upward"
	ScanDownward = "downward"
)

// Units are the column units declared in the second header row.
type Units struct {
	Time     string `json:"time"`
	Distance string `json:"distance"`
	Bias     string `json:"bias"`
}

// DatResult is a decoded spectroscopy table. Exactly one of Cube and STS is
// set, according to Mode.
type DatResult struct {
	Mode          MeasurementMode `json:"measurement_mode"`
	Units         Units           `json:"units"`
	Bias          []float64       `json:"bias_values"`
	Times         []float64       `json:"times"`
	Distances     []float64       `json:"distances"`
	XCoords       []float64       `json:"x_coords"`
	YCoords       []float64       `json:"y_coords"`
	GridX         int             `json:"grid_x,omitempty"`
	GridY         int             `json:"grid_y,omitempty"`
	ScanDirection string          `json:"scan_direction,omitempty"`

	Cube *cits.DataCube `json:"-"`
	STS  *sts.Data      `json:"-"`
}

// ReadDatFile loads the table described by desc from dir.
func ReadDatFile(dir string, desc DatDesc, scan ScanParameters) (*DatResult, error) {
	f, err := os.Open(filepath.Join(dir, desc.FileName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := ReadDat(f, desc, scan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", desc.FileName, err)
	}
	return res, nil
}

// ReadDat decodes a tab separated table. The first row holds column labels
// followed by the x coordinate of every point, the second row holds units
// followed by the y coordinates, and every further row is
// time, distance, bias, value1..valueN.
func ReadDat(r io.Reader, desc DatDesc, scan ScanParameters) (*DatResult, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	records = dropBlank(records)
	if len(records) < 3 {
		return nil, fmt.Errorf("%w: need 2 header rows and at least 1 data row, have %d rows", ErrMalformed, len(records))
	}
	if len(records[0]) < 4 {
		return nil, fmt.Errorf("%w: need time, distance, bias and at least 1 point column", ErrMalformed)
	}

	res := &DatResult{Mode: desc.Mode}
	labels, units := records[0], records[1]
	res.Units = Units{Time: field(units, 0, "s"), Distance: field(units, 1, "nm"), Bias: field(units, 2, "mV")}

	for i := 3; i < min(len(labels), len(units)); i++ {
		x, errX := strconv.ParseFloat(strings.TrimSpace(labels[i]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(units[i]), 64)
		if errX != nil || errY != nil {
			break
		}
		res.XCoords = append(res.XCoords, x)
		res.YCoords = append(res.YCoords, y)
	}
	if len(res.XCoords) == 0 {
		return nil, fmt.Errorf("%w: no point coordinates in header", ErrMalformed)
	}

	nPoints := len(res.XCoords)
	rows := records[2:]
	for _, rec := range rows {
		nPoints = min(nPoints, len(rec)-3)
	}
	if nPoints <= 0 {
		return nil, fmt.Errorf("%w: data rows have no point columns", ErrMalformed)
	}

	values := make([][]float64, len(rows))
	for i, rec := range rows {
		t, errT := parseCell(rec[0])
		d, errD := parseCell(rec[1])
		b, errB := parseCell(rec[2])
		if errT != nil || errD != nil || errB != nil {
			return nil, fmt.Errorf("%w: data row %d: bad time, distance or bias", ErrMalformed, i+3)
		}
		res.Times = append(res.Times, t)
		res.Distances = append(res.Distances, d)
		res.Bias = append(res.Bias, b)

		row := make([]float64, nPoints)
		for p := range row {
			v, err := parseCell(rec[3+p])
			if err != nil {
				return nil, fmt.Errorf("%w: data row %d column %d: %v", ErrMalformed, i+3, 4+p, err)
			}
			row[p] = v
		}
		values[i] = row
	}
	res.XCoords = res.XCoords[:nPoints]
	res.YCoords = res.YCoords[:nPoints]

	if desc.Mode == ModeCITS {
		if err := res.buildCube(values, desc, scan); err != nil {
			return nil, err
		}
		return res, nil
	}
	res.Mode = ModeSTS
	res.STS = &sts.Data{
		BiasAxis: res.Bias,
		Values:   values,
		XCoords:  res.XCoords,
		YCoords:  res.YCoords,
	}
	return res, nil
}

func (res *DatResult) buildCube(values [][]float64, desc DatDesc, scan ScanParameters) error {
	gx, gy := desc.GridX, desc.GridY
	if gx <= 0 || gy <= 0 {
		gx, gy = DefaultGridSize, DefaultGridSize
	}
	n := len(res.XCoords)
	if n != gx*gy {
		if s := int(math.Sqrt(float64(n))); s*s == n {
			gx, gy = s, s
		}
	}
	if n < gx*gy {
		return fmt.Errorf("%w: %d points cannot fill a %dx%d grid", ErrMalformed, n, gx, gy)
	}
	res.GridX, res.GridY = gx, gy
	res.ScanDirection = scanDirection(res.XCoords, res.YCoords, scan)

	size := gx * gy
	flat := make([]float64, len(values)*size)
	for b, row := range values {
		copy(flat[b*size:(b+1)*size], row[:size])
	}

	xRange := physicalRange(scan.XRangeNM, res.XCoords[:size], gx)
	yRange := physicalRange(scan.YRangeNM, res.YCoords[:size], gy)
	cube, err := cits.NewDataCube(flat, res.Bias, gx, gy, xRange, yRange)
	if err != nil {
		return err
	}
	res.Cube = cube
	return nil
}

// physicalRange prefers the scan range from the parameter file and falls
// back to the coordinate span, then to one nanometre per pixel.
func physicalRange(scanRange float64, coords []float64, pixels int) float64 {
	if scanRange > 0 {
		return scanRange
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range coords {
		lo = math.Min(lo, c)
		hi = math.Max(hi, c)
	}
	if span := hi - lo; span > 0 && pixels > 1 {
		return span * float64(pixels) / float64(pixels-1)
	}
	return float64(pixels)
}

// scanDirection rotates the first and last point back by the scan angle
// around the scan centre and reports upward when the last point lies above
// the first.
func scanDirection(xs, ys []float64, scan ScanParameters) string {
	if len(xs) == 0 {
		return ScanDownward
	}
	_, y0 := rotate(xs[0], ys[0], scan)
	_, y1 := rotate(xs[len(xs)-1], ys[len(ys)-1], scan)
	if y1-y0 > 0 {
		return ScanUpward
	}
	return ScanDownward
}

func rotate(x, y float64, scan ScanParameters) (float64, float64) {
	dx, dy := x-scan.XCenterNM, y-scan.YCenterNM
	a := -scan.Angle * math.Pi / 180
	return math.Cos(a)*dx - math.Sin(a)*dy, math.Sin(a)*dx + math.Cos(a)*dy
}

func dropBlank(records [][]string) [][]string {
	out := records[:0]
	for _, rec := range records {
		end := len(rec)
		for end > 0 && strings.TrimSpace(rec[end-1]) == "" {
			end--
		}
		if end == 0 {
			continue
		}
		out = append(out, rec[:end])
	}
	return out
}

func field(rec []string, i int, fallback string) string {
	if i < len(rec) && strings.TrimSpace(rec[i]) != "" {
		return strings.TrimSpace(rec[i])
	}
	return fallback
}

func parseCell(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

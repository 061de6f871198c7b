package spmfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chrissnell/spmanalyzer/pkg/topo"
)

// ReadInt decodes a raw little-endian int32 image of cols x rows pixels and
// multiplies every pixel by scale. The file stores the top scan line first;
// the result is flipped so row 0 is the bottom of the image.
func ReadInt(r io.Reader, cols, rows int, scale float64) ([][]float64, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", ErrMalformed, cols, rows)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if want := cols * rows * 4; len(raw) != want {
		return nil, fmt.Errorf("%w: have %d bytes, expected %d (%dx%dx4)", ErrSizeMismatch, len(raw), want, cols, rows)
	}

	data := make([][]float64, rows)
	for y := range data {
		row := make([]float64, cols)
		src := raw[(rows-1-y)*cols*4:]
		for x := range row {
			row[x] = float64(int32(binary.LittleEndian.Uint32(src[x*4:]))) * scale
		}
		data[y] = row
	}
	return data, nil
}

// ReadIntFile loads the image described by desc from dir.
func ReadIntFile(dir string, desc IntDesc, scan ScanParameters) (*topo.Image, error) {
	f, err := os.Open(filepath.Join(dir, desc.FileName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := ReadInt(f, scan.XPixels, scan.YPixels, desc.Scale)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", desc.FileName, err)
	}
	return topo.NewImage(data, scan.XRangeNM, scan.YRangeNM, desc.PhysUnit)
}

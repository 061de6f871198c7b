// Package sessiontest writes a small experiment to disk for tests that need
// a real session.
package sessiontest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// Keys of the files in the experiment written by WriteExperiment.
const (
	TopoFwd = "scan_TopoFwd"
	TopoBwd = "scan_TopoBwd"
	Matrix  = "scan_Lia1R_Matrix"
	Point   = "point_It_to_PC"
)

// ExperimentTxt lists two 2x2 topography images, a 2x2 CITS matrix with
// three bias steps and a single-point STS table. Scan ranges are 4 x 6 nm.
const ExperimentTxt = `Version : 1.2.3
XScanRange : 4
YScanRange : 6
XPhysUnit : nm
YPhysUnit : nm
xPixel : 2
yPixel : 2

FileDescBegin
FileName : scan_TopoFwd.int
Caption : Topo
Scale : 0.5
PhysUnit : nm
FileDescEnd

FileDescBegin
FileName : scan_TopoBwd.int
Caption : Topo
Scale : 1
PhysUnit : nm
FileDescEnd

FileDescBegin
FileName : scan_Lia1R_Matrix.dat
Caption : X(U)-Lia1R(2/2)
FileDescEnd

FileDescBegin
FileName : point_It_to_PC.dat
Caption : X(U)-It_to_PC(1)
FileDescEnd
`

// MatrixTable holds value 10*bias + pixel index at pixel (x, y) = index%2, index/2.
const MatrixTable = "t\td\tV\t0\t1\t0\t1\n" +
	"s\tnm\tmV\t0\t0\t1\t1\n" +
	"0\t0\t-1\t-10\t-9\t-8\t-7\n" +
	"1\t0\t0\t0\t1\t2\t3\n" +
	"2\t0\t1\t10\t11\t12\t13\n"

// PointTable is a single spectrum of 2*bias.
const PointTable = "t\td\tV\t1\n" +
	"s\tnm\tV\t1\n" +
	"0\t0\t-1\t-2\n" +
	"1\t0\t0\t0\n" +
	"2\t0\t1\t2\n"

// WriteExperiment writes the experiment into a temporary directory and
// returns the path of its parameter file.
func WriteExperiment(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()

	var buf bytes.Buffer
	for _, v := range []int32{1, 2, 3, 4} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	files := map[string][]byte{
		"experiment.txt":        []byte(ExperimentTxt),
		"scan_TopoFwd.int":      buf.Bytes(),
		"scan_TopoBwd.int":      buf.Bytes(),
		"scan_Lia1R_Matrix.dat": []byte(MatrixTable),
		"point_It_to_PC.dat":    []byte(PointTable),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "experiment.txt")
}

package rgb2spec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Table is one gamut's fitted coefficient table.
//
// The serialized layout is the z-node axis followed by the coefficient
// tensor, both as little-endian float32:
//
//	offset 0:                    Resolution float32 z-nodes
//	offset 4*Resolution:         3*Resolution^3*3 float32 coefficients,
//	                             ordered [majorAxis][z][y][x][coeff]
//
// For the standard resolution of 64 this is 9437440 bytes.
type Table struct {
	Resolution int
	// ZNodes is the warped dominant-channel axis, ascending in [0, 1].
	ZNodes []float32
	// Coefficients holds (a, b, c) per cell, major axis slowest-varying
	// and coefficient index fastest-varying.
	Coefficients []float32
}

// FileSize returns the serialized byte size for a table resolution.
func FileSize(resolution int) int64 {
	return int64(4*resolution) + int64(4*3*resolution*resolution*resolution*3)
}

func (t *Table) validate() error {
	n := t.Resolution
	if n < 2 {
		return fmt.Errorf("rgb2spec: invalid table resolution %d", n)
	}
	if len(t.ZNodes) != n {
		return fmt.Errorf("rgb2spec: have %d z-nodes, want %d", len(t.ZNodes), n)
	}
	if want := 3 * n * n * n * 3; len(t.Coefficients) != want {
		return fmt.Errorf("rgb2spec: have %d coefficients, want %d", len(t.Coefficients), want)
	}
	return nil
}

// EncodeTo writes the binary table stream.
func (t *Table) EncodeTo(w io.Writer) error {
	if err := t.validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, t.ZNodes); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, t.Coefficients); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteFile atomically replaces path with the serialized table: the stream
// is written to a temporary file in the same directory, synced, and renamed
// over the destination, so an interrupted write never leaves a truncated
// table behind. Any existing file at path is overwritten.
func (t *Table) WriteFile(path string) (err error) {
	if err = t.validate(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("rgb2spec: could not create temporary table file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = t.EncodeTo(tmp); err != nil {
		return fmt.Errorf("rgb2spec: could not write table: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("rgb2spec: could not sync table: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("rgb2spec: could not close table: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rgb2spec: could not replace %q: %w", path, err)
	}
	return nil
}

// DecodeFrom reads a table with the given resolution from the stream.
func DecodeFrom(r io.Reader, resolution int) (*Table, error) {
	if resolution < 2 {
		return nil, fmt.Errorf("rgb2spec: invalid table resolution %d", resolution)
	}
	t := &Table{
		Resolution:   resolution,
		ZNodes:       make([]float32, resolution),
		Coefficients: make([]float32, 3*resolution*resolution*resolution*3),
	}
	br := bufio.NewReader(r)
	if err := binary.Read(br, binary.LittleEndian, t.ZNodes); err != nil {
		return nil, fmt.Errorf("rgb2spec: could not read z-nodes: %w", err)
	}
	if err := binary.Read(br, binary.LittleEndian, t.Coefficients); err != nil {
		return nil, fmt.Errorf("rgb2spec: could not read coefficients: %w", err)
	}
	return t, nil
}

// ReadFile loads a serialized table, rejecting files whose size does not
// match the expected layout exactly.
func ReadFile(path string, resolution int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if want := FileSize(resolution); info.Size() != want {
		return nil, fmt.Errorf("rgb2spec: %q is %d bytes, want %d for resolution %d",
			path, info.Size(), want, resolution)
	}
	return DecodeFrom(f, resolution)
}

// Lookup returns the coefficient triple of the grid cell nearest to the
// given linear RGB value: the dominant channel selects the major axis, its
// value the nearest z-node, and the remaining channels the nearest fraction
// indices.
func (t *Table) Lookup(rgb [3]float64) [3]float32 {
	n := t.Resolution
	axis := 0
	if rgb[1] >= rgb[axis] {
		axis = 1
	}
	if rgb[2] >= rgb[axis] {
		axis = 2
	}
	z := rgb[axis]
	x := rgb[(axis+1)%3]
	y := rgb[(axis+2)%3]

	zi := 0
	best := math.Inf(1)
	for i, node := range t.ZNodes {
		if d := math.Abs(float64(node) - z); d < best {
			best = d
			zi = i
		}
	}
	var xi, yi int
	if z > 0 {
		xi = nearestIndex(x/z, n)
		yi = nearestIndex(y/z, n)
	}
	base := ((((axis*n+zi)*n+yi)*n + xi) * 3)
	return [3]float32{t.Coefficients[base], t.Coefficients[base+1], t.Coefficients[base+2]}
}

func nearestIndex(frac float64, n int) int {
	i := int(math.Round(frac * float64(n-1)))
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

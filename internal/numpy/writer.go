// Package numpy writes float64 arrays in the NumPy .npy format.
package numpy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
)

// Writer writes one float64 array to a .npy file
type Writer struct {
	file *os.File
}

// NewWriter creates the .npy file at path
func NewWriter(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("error creating npy file: %w", err)
	}
	return &Writer{file: file}, nil
}

// Close closes the underlying file
func (w *Writer) Close() error {
	return w.file.Close()
}

// WriteFloat64 writes data as a little-endian float64 array of the given
// shape in C order. NaN values are written as-is.
func (w *Writer) WriteFloat64(data []float64, shape []int) error {
	n := 1
	for _, s := range shape {
		n *= s
	}
	if n != len(data) {
		return fmt.Errorf("shape %v holds %d values, got %d", shape, n, len(data))
	}

	header, err := createHeader("<f8", shape)
	if err != nil {
		return fmt.Errorf("error creating numpy header: %w", err)
	}

	bw := bufio.NewWriter(w.file)
	if _, err := bw.Write(header); err != nil {
		return fmt.Errorf("error writing npy header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("error writing npy data: %w", err)
	}
	return bw.Flush()
}

// SaveFloat64 writes data to path in one call
func SaveFloat64(path string, data []float64, shape []int) error {
	w, err := NewWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteFloat64(data, shape); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// shapeTuple renders shape as a Python tuple literal
func shapeTuple(shape []int) string {
	parts := make([]string, len(shape))
	for i, s := range shape {
		parts[i] = fmt.Sprintf("%d", s)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// createHeader creates an NPY v1.0 header for dtype descr and shape
func createHeader(descr string, shape []int) ([]byte, error) {
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shapeTuple(shape))

	// magic, version and length prefix take 10 bytes; the dict ends in '\n'
	// and the whole header is padded to a multiple of 64
	total := 10 + len(dict) + 1
	padding := (64 - total%64) % 64

	var header bytes.Buffer
	header.Write([]byte{0x93, 'N', 'U', 'M', 'P', 'Y', 0x01, 0x00})
	if err := binary.Write(&header, binary.LittleEndian, uint16(len(dict)+padding+1)); err != nil {
		return nil, fmt.Errorf("failed to write header dictionary length: %w", err)
	}
	header.WriteString(dict)
	header.Write(bytes.Repeat([]byte{' '}, padding))
	header.WriteByte('\n')
	return header.Bytes(), nil
}

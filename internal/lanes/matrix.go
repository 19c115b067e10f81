package lanes

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

// MatrixRowBytes is the encoded size of one (x1, y1, x2, y2) row.
const MatrixRowBytes = 4 * 8

// SegmentMatrix packs segments into an N×4 matrix with rows (x1, y1, x2, y2).
// It returns nil for an empty slice.
func SegmentMatrix(segs []Segment) *mat.Dense {
	if len(segs) == 0 {
		return nil
	}
	data := make([]float64, 0, 4*len(segs))
	for _, s := range segs {
		data = append(data, s.X1, s.Y1, s.X2, s.Y2)
	}
	return mat.NewDense(len(segs), 4, data)
}

// SegmentsFromMatrix is the inverse of SegmentMatrix. Extra columns are ignored.
func SegmentsFromMatrix(m mat.Matrix) []Segment {
	if m == nil {
		return nil
	}
	r, c := m.Dims()
	if c < 4 {
		return nil
	}
	segs := make([]Segment, r)
	for i := range r {
		segs[i] = Segment{X1: m.At(i, 0), Y1: m.At(i, 1), X2: m.At(i, 2), Y2: m.At(i, 3)}
	}
	return segs
}

// WriteSegmentMatrix writes segs as a row-major N×4 float64 matrix in
// little-endian byte order. No segments write nothing.
func WriteSegmentMatrix(w io.Writer, segs []Segment) error {
	m := SegmentMatrix(segs)
	if m == nil {
		return nil
	}
	return binary.Write(w, binary.LittleEndian, m.RawMatrix().Data)
}

// ReadSegmentMatrix decodes the output of WriteSegmentMatrix.
func ReadSegmentMatrix(data []byte) ([]Segment, error) {
	if len(data)%MatrixRowBytes != 0 {
		return nil, fmt.Errorf("segment matrix of %d bytes is not a multiple of %d", len(data), MatrixRowBytes)
	}
	rows := len(data) / MatrixRowBytes
	if rows == 0 {
		return []Segment{}, nil
	}
	vals := make([]float64, rows*4)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, vals); err != nil {
		return nil, fmt.Errorf("decode segment matrix: %w", err)
	}
	return SegmentsFromMatrix(mat.NewDense(rows, 4, vals)), nil
}

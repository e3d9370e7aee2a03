package tensor

import "encoding/binary"

// Mat is a dense row-major weight matrix. Rows is the output dimension and
// Cols the input dimension, so MatVec computes dst[r] = dot(row r, x).
//
// For f32 weights Data holds the decoded values. For f16 and the two 4-bit
// block encodings Raw holds the encoded bytes and rows are decoded on
// demand. A 1-D tensor is represented as a single row.
type Mat struct {
	Rows, Cols int

	DType DType
	Data  []float32
	Raw   []byte
}

// NewMat allocates a zeroed f32 matrix.
func NewMat(rows, cols int) *Mat {
	if rows < 0 || cols < 0 {
		panic("tensor: negative dimension")
	}
	return &Mat{
		Rows:  rows,
		Cols:  cols,
		DType: DTypeF32,
		Data:  make([]float32, rows*cols),
	}
}

// NewMatFromData wraps an existing f32 slice. The length must be rows*cols.
func NewMatFromData(rows, cols int, data []float32) *Mat {
	if rows*cols != len(data) {
		panic("tensor: data length mismatch")
	}
	return &Mat{Rows: rows, Cols: cols, DType: DTypeF32, Data: data}
}

// NewMatFromRaw wraps encoded bytes in the given dtype. The byte length must
// equal rows * RowBytes(dtype, cols).
func NewMatFromRaw(rows, cols int, dtype DType, raw []byte) (*Mat, error) {
	if rows < 0 || cols < 0 {
		return nil, errNegativeDim
	}
	if !dtype.Valid() {
		return nil, errUnsupportedDType
	}
	if dtype == DTypeQ4_0 || dtype == DTypeQ4_1 {
		if cols%QBlock != 0 {
			return nil, errPartialBlock
		}
	}
	if len(raw) != rows*RowBytes(dtype, cols) {
		return nil, errRawSizeMismatch
	}
	if dtype == DTypeF32 {
		data := make([]float32, rows*cols)
		DecodeF32(data, raw)
		return &Mat{Rows: rows, Cols: cols, DType: dtype, Data: data}, nil
	}
	return &Mat{Rows: rows, Cols: cols, DType: dtype, Raw: raw}, nil
}

// SizeBytes returns the encoded size of the whole matrix.
func (m *Mat) SizeBytes() int {
	return m.Rows * RowBytes(m.DType, m.Cols)
}

// Row returns the i-th row, decoding if necessary. For f32 matrices the
// returned slice aliases the matrix storage.
func (m *Mat) Row(i int) []float32 {
	if m.DType == DTypeF32 {
		start := i * m.Cols
		return m.Data[start : start+m.Cols]
	}
	row := make([]float32, m.Cols)
	m.RowTo(row, i)
	return row
}

// RowTo decodes the i-th row into dst. dst must have length >= Cols.
func (m *Mat) RowTo(dst []float32, i int) {
	if i < 0 || i >= m.Rows {
		panic("tensor: row index out of range")
	}
	if len(dst) < m.Cols {
		panic("tensor: row buffer too small")
	}
	switch m.DType {
	case DTypeF32:
		start := i * m.Cols
		copy(dst[:m.Cols], m.Data[start:start+m.Cols])
	case DTypeF16:
		off := i * m.Cols * 2
		for j := 0; j < m.Cols; j++ {
			dst[j] = Fp16ToF32(binary.LittleEndian.Uint16(m.Raw[off+j*2:]))
		}
	case DTypeQ4_0:
		dequantRowQ4_0(dst[:m.Cols], m.Raw[i*RowBytes(DTypeQ4_0, m.Cols):])
	case DTypeQ4_1:
		dequantRowQ4_1(dst[:m.Cols], m.Raw[i*RowBytes(DTypeQ4_1, m.Cols):])
	default:
		panic("tensor: unknown dtype")
	}
}

var (
	errNegativeDim      = matError("negative dimension")
	errUnsupportedDType = matError("unsupported dtype")
	errPartialBlock     = matError("quantized width not a multiple of the block size")
	errRawSizeMismatch  = matError("raw data length mismatch")
)

type matError string

func (e matError) Error() string { return "tensor: " + string(e) }

package tensor

import "fmt"

// DType describes the element encoding of a weight tensor.
type DType int32

const (
	DTypeF32 DType = 0
	DTypeF16 DType = 1
	DTypeQ4_0 DType = 2
	DTypeQ4_1 DType = 3
)

// QBlock is the number of elements packed into one quantized block.
const QBlock = 32

const (
	q4_0BlockBytes = 4 + QBlock/2     // f32 scale + 16 packed nibbles
	q4_1BlockBytes = 4 + 4 + QBlock/2 // f32 scale + f32 min + 16 packed nibbles
)

func (t DType) String() string {
	switch t {
	case DTypeF32:
		return "f32"
	case DTypeF16:
		return "f16"
	case DTypeQ4_0:
		return "q4_0"
	case DTypeQ4_1:
		return "q4_1"
	default:
		return fmt.Sprintf("dtype(%d)", int32(t))
	}
}

// Valid reports whether t is a known element encoding.
func (t DType) Valid() bool {
	return t >= DTypeF32 && t <= DTypeQ4_1
}

// RowBytes returns the encoded size of a row of n elements.
// Quantized rows must be a whole number of blocks.
func RowBytes(t DType, n int) int {
	switch t {
	case DTypeF32:
		return n * 4
	case DTypeF16:
		return n * 2
	case DTypeQ4_0:
		return (n / QBlock) * q4_0BlockBytes
	case DTypeQ4_1:
		return (n / QBlock) * q4_1BlockBytes
	default:
		panic("tensor: unknown dtype")
	}
}

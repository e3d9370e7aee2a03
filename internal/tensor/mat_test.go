package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func TestF16Roundtrip(t *testing.T) {
	for _, v := range []float32{0, 1, -1, 0.5, 65504, 1e-4, -3.14159} {
		got := Fp16ToF32(F32ToFp16(v))
		if math.Abs(float64(got-v)) > math.Abs(float64(v))*1e-3+1e-7 {
			t.Fatalf("f16 roundtrip of %v gave %v", v, got)
		}
	}
}

func TestQ4_0QuantizeDequantize(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	src := make([]float32, 2*QBlock)
	for i := range src {
		src[i] = (rng.Float32() - 0.5) * 2
	}
	raw := make([]byte, RowBytes(DTypeQ4_0, len(src)))
	QuantizeRowQ4_0(raw, src)
	dst := make([]float32, len(src))
	dequantRowQ4_0(dst, raw)
	for i := range src {
		if math.Abs(float64(dst[i]-src[i])) > 0.2 {
			t.Fatalf("element %d: quantized %v, want near %v", i, dst[i], src[i])
		}
	}
}

func TestQ4_1QuantizeDequantize(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	src := make([]float32, QBlock)
	for i := range src {
		src[i] = rng.Float32()*4 + 1 // strictly positive range exercises the min
	}
	raw := make([]byte, RowBytes(DTypeQ4_1, len(src)))
	QuantizeRowQ4_1(raw, src)
	dst := make([]float32, len(src))
	dequantRowQ4_1(dst, raw)
	for i := range src {
		if math.Abs(float64(dst[i]-src[i])) > 0.3 {
			t.Fatalf("element %d: quantized %v, want near %v", i, dst[i], src[i])
		}
	}
}

func TestNewMatFromRawValidation(t *testing.T) {
	if _, err := NewMatFromRaw(2, 3, DTypeF16, make([]byte, 11)); err == nil {
		t.Fatal("expected size mismatch error")
	}
	if _, err := NewMatFromRaw(1, QBlock+1, DTypeQ4_0, nil); err == nil {
		t.Fatal("expected partial block error")
	}
	m, err := NewMatFromRaw(2, 3, DTypeF16, make([]byte, 12))
	if err != nil {
		t.Fatalf("valid raw mat rejected: %v", err)
	}
	if m.Rows != 2 || m.Cols != 3 {
		t.Fatalf("unexpected shape %dx%d", m.Rows, m.Cols)
	}
}

func TestRowToDecodesF16(t *testing.T) {
	vals := []float32{1, -2, 0.5, 8}
	raw := make([]byte, 0, len(vals)*2)
	for _, v := range vals {
		h := F32ToFp16(v)
		raw = append(raw, byte(h), byte(h>>8))
	}
	m, err := NewMatFromRaw(2, 2, DTypeF16, raw)
	if err != nil {
		t.Fatal(err)
	}
	row := make([]float32, 2)
	m.RowTo(row, 1)
	if row[0] != 0.5 || row[1] != 8 {
		t.Fatalf("decoded row %v", row)
	}
}

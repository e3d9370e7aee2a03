package tensor

import (
	"encoding/binary"
	"math"
)

// The 4-bit encodings pack QBlock consecutive elements into one block.
// q4_0 stores a float32 scale followed by 16 bytes of nibble pairs, where
// byte l holds elements 2l (low nibble) and 2l+1 (high nibble), each an
// unsigned value biased by 8. q4_1 adds a float32 minimum after the scale
// and stores unbiased nibbles.

func dequantRowQ4_0(dst []float32, src []byte) {
	for b := 0; b < len(dst)/QBlock; b++ {
		blk := src[b*q4_0BlockBytes:]
		d := math.Float32frombits(binary.LittleEndian.Uint32(blk))
		qs := blk[4 : 4+QBlock/2]
		out := dst[b*QBlock:]
		for l, v := range qs {
			out[2*l] = d * (float32(v&0x0f) - 8)
			out[2*l+1] = d * (float32(v>>4) - 8)
		}
	}
}

func dequantRowQ4_1(dst []float32, src []byte) {
	for b := 0; b < len(dst)/QBlock; b++ {
		blk := src[b*q4_1BlockBytes:]
		d := math.Float32frombits(binary.LittleEndian.Uint32(blk))
		m := math.Float32frombits(binary.LittleEndian.Uint32(blk[4:]))
		qs := blk[8 : 8+QBlock/2]
		out := dst[b*QBlock:]
		for l, v := range qs {
			out[2*l] = d*float32(v&0x0f) + m
			out[2*l+1] = d*float32(v>>4) + m
		}
	}
}

// QuantizeRowQ4_0 encodes src into dst. len(src) must be a multiple of
// QBlock and dst must have RowBytes(DTypeQ4_0, len(src)) bytes.
func QuantizeRowQ4_0(dst []byte, src []float32) {
	for b := 0; b < len(src)/QBlock; b++ {
		in := src[b*QBlock : (b+1)*QBlock]
		var amax float32
		for _, v := range in {
			if a := float32(math.Abs(float64(v))); a > amax {
				amax = a
			}
		}
		d := amax / 7
		var id float32
		if d != 0 {
			id = 1 / d
		}
		blk := dst[b*q4_0BlockBytes:]
		binary.LittleEndian.PutUint32(blk, math.Float32bits(d))
		qs := blk[4 : 4+QBlock/2]
		for l := 0; l < QBlock/2; l++ {
			q0 := clampNibble(in[2*l]*id + 8.5)
			q1 := clampNibble(in[2*l+1]*id + 8.5)
			qs[l] = q0 | q1<<4
		}
	}
}

// QuantizeRowQ4_1 encodes src into dst using per-block min/scale.
func QuantizeRowQ4_1(dst []byte, src []float32) {
	for b := 0; b < len(src)/QBlock; b++ {
		in := src[b*QBlock : (b+1)*QBlock]
		minv, maxv := in[0], in[0]
		for _, v := range in[1:] {
			if v < minv {
				minv = v
			}
			if v > maxv {
				maxv = v
			}
		}
		d := (maxv - minv) / 15
		var id float32
		if d != 0 {
			id = 1 / d
		}
		blk := dst[b*q4_1BlockBytes:]
		binary.LittleEndian.PutUint32(blk, math.Float32bits(d))
		binary.LittleEndian.PutUint32(blk[4:], math.Float32bits(minv))
		qs := blk[8 : 8+QBlock/2]
		for l := 0; l < QBlock/2; l++ {
			q0 := clampNibble((in[2*l] - minv) * id)
			q1 := clampNibble((in[2*l+1] - minv) * id)
			qs[l] = q0 | q1<<4
		}
	}
}

func clampNibble(v float32) byte {
	if v < 0 {
		return 0
	}
	if v > 15 {
		return 15
	}
	return byte(v)
}

// DecodeF32 fills dst from little-endian float32 bytes.
func DecodeF32(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}

// EncodeF32 appends the little-endian bytes of src to dst and returns it.
func EncodeF32(dst []byte, src []float32) []byte {
	for _, v := range src {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

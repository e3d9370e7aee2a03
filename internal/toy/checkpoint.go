// Package toy builds tiny deterministic checkpoints for tests. It writes
// the same binary layout the loader consumes, including multi-part shards,
// so loader and engine tests never need a real model on disk.
package toy

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"

	"github.com/samcharles93/petal/internal/tensor"
)

const magic uint32 = 0x67676d6c

// Config mirrors the checkpoint hyperparameter block.
type Config struct {
	Vocab  int
	Embd   int
	Mult   int
	Heads  int
	Layers int
	// Precision: 0 f32, 1 f16, 2 q4_0, 3 q4_1
	Precision int32
}

// DefaultConfig is small enough for fast tests but has every moving part:
// multiple layers, multiple heads, and a feed-forward width that needs
// rounding.
func DefaultConfig() Config {
	return Config{Vocab: 32, Embd: 16, Mult: 6, Heads: 4, Layers: 2}
}

func (c Config) nFF() int {
	return ((4*c.Embd + c.Mult - 1) / c.Mult) * c.Mult
}

// Tokens generates the fixture vocabulary: the three reserved ids, the
// lowercase letters, and a few multi-byte tokens that exercise the
// tokenizer's longest-match and space-bucket paths.
func Tokens(n int) []string {
	toks := []string{"<unk>", "<s>", "</s>"}
	letters := "abcdefghijklmnopqrstuvwxyz"
	for i := 0; len(toks) < n && i < len(letters); i++ {
		toks = append(toks, string(letters[i]))
	}
	for _, extra := range []string{"ab", "abc", " a", " ab"} {
		if len(toks) < n {
			toks = append(toks, extra)
		}
	}
	for i := 0; len(toks) < n; i++ {
		toks = append(toks, fmt.Sprintf("tok%d", i))
	}
	return toks
}

// spec is one tensor to be serialized: full f32 values plus the encoding
// it is written in.
type spec struct {
	name       string
	rows, cols int
	dtype      tensor.DType
	data       []float32
}

func (s *spec) encode() []byte {
	switch s.dtype {
	case tensor.DTypeF32:
		return tensor.EncodeF32(make([]byte, 0, len(s.data)*4), s.data)
	case tensor.DTypeF16:
		out := make([]byte, 0, len(s.data)*2)
		for _, v := range s.data {
			out = binary.LittleEndian.AppendUint16(out, tensor.F32ToFp16(v))
		}
		return out
	case tensor.DTypeQ4_0, tensor.DTypeQ4_1:
		rowBytes := tensor.RowBytes(s.dtype, s.cols)
		out := make([]byte, s.rows*rowBytes)
		for r := 0; r < s.rows; r++ {
			row := s.data[r*s.cols : (r+1)*s.cols]
			if s.dtype == tensor.DTypeQ4_0 {
				tensor.QuantizeRowQ4_0(out[r*rowBytes:], row)
			} else {
				tensor.QuantizeRowQ4_1(out[r*rowBytes:], row)
			}
		}
		return out
	default:
		panic("toy: unknown dtype")
	}
}

// buildTensors produces every tensor of the model in schema order with
// deterministic pseudo-random values.
func buildTensors(cfg Config, seed int64) []*spec {
	rng := rand.New(rand.NewSource(seed))
	wtype := tensor.DType(cfg.Precision)
	nFF := cfg.nFF()

	weights := func(name string, rows, cols int) *spec {
		s := &spec{name: name, rows: rows, cols: cols, dtype: wtype, data: make([]float32, rows*cols)}
		for i := range s.data {
			s.data[i] = (rng.Float32() - 0.5) * 0.2
		}
		return s
	}
	normWeight := func(name string, n int) *spec {
		s := &spec{name: name, rows: 1, cols: n, dtype: tensor.DTypeF32, data: make([]float32, n)}
		for i := range s.data {
			s.data[i] = 1 + (rng.Float32()-0.5)*0.1
		}
		return s
	}
	bias := func(name string, n int) *spec {
		s := &spec{name: name, rows: 1, cols: n, dtype: tensor.DTypeF32, data: make([]float32, n)}
		for i := range s.data {
			s.data[i] = (rng.Float32() - 0.5) * 0.05
		}
		return s
	}

	specs := []*spec{
		weights("tok_embeddings.weight", cfg.Vocab, cfg.Embd),
		normWeight("norm.weight", cfg.Embd),
		bias("norm.bias", cfg.Embd),
		normWeight("output_norm.weight", cfg.Embd),
		bias("output_norm.bias", cfg.Embd),
		weights("output.weight", cfg.Vocab, cfg.Embd),
	}
	for i := 0; i < cfg.Layers; i++ {
		p := fmt.Sprintf("layers.%d.", i)
		specs = append(specs,
			normWeight(p+"attention_norm.weight", cfg.Embd),
			bias(p+"attention_norm.bias", cfg.Embd),
			weights(p+"attention.query_key_value.weight", 3*cfg.Embd, cfg.Embd),
			bias(p+"attention.query_key_value.bias", 3*cfg.Embd),
			weights(p+"attention.wo.weight", cfg.Embd, cfg.Embd),
			bias(p+"attention.wo.bias", cfg.Embd),
			normWeight(p+"ffn_norm.weight", cfg.Embd),
			bias(p+"ffn_norm.bias", cfg.Embd),
			weights(p+"feed_forward.w1.weight", nFF, cfg.Embd),
			bias(p+"feed_forward.w1.bias", nFF),
			weights(p+"feed_forward.w2.weight", cfg.Embd, nFF),
			bias(p+"feed_forward.w2.bias", cfg.Embd),
		)
	}
	return specs
}

// WriteFile writes a single-part checkpoint.
func WriteFile(path string, cfg Config, seed int64) error {
	return WriteParts(path, cfg, seed, 1)
}

// WriteParts writes the checkpoint split across nParts files: path,
// path.1, ..., each repeating the header and vocabulary and carrying a
// shard of every 2-D weight tensor along its name-determined axis.
func WriteParts(path string, cfg Config, seed int64, nParts int) error {
	specs := buildTensors(cfg, seed)
	tokens := Tokens(cfg.Vocab)

	for part := 0; part < nParts; part++ {
		partPath := path
		if part > 0 {
			partPath = fmt.Sprintf("%s.%d", path, part)
		}
		if err := writePart(partPath, cfg, tokens, specs, part, nParts); err != nil {
			return err
		}
	}
	return nil
}

func writePart(path string, cfg Config, tokens []string, specs []*spec, part, nParts int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	le := func(v int32) {
		binary.Write(w, binary.LittleEndian, v)
	}
	binary.Write(w, binary.LittleEndian, magic)
	le(int32(cfg.Vocab))
	le(int32(cfg.Embd))
	le(int32(cfg.Mult))
	le(int32(cfg.Heads))
	le(int32(cfg.Layers))
	le(cfg.Precision)
	for _, tok := range tokens {
		binary.Write(w, binary.LittleEndian, uint32(len(tok)))
		w.WriteString(tok)
	}

	for _, s := range specs {
		if err := writeRecord(w, s, part, nParts); err != nil {
			f.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeRecord(w *bufio.Writer, s *spec, part, nParts int) error {
	encoded := s.encode()

	nDims := int32(2)
	ne := [2]int{s.cols, s.rows}
	if s.rows == 1 {
		nDims = 1
		ne = [2]int{s.cols, 1}
	}

	shard := encoded
	if nDims == 2 && nParts > 1 {
		switch shardAxis(s.name) {
		case axisCols:
			ne[0] = s.cols / nParts
			partRow := tensor.RowBytes(s.dtype, ne[0])
			fullRow := tensor.RowBytes(s.dtype, s.cols)
			shard = make([]byte, 0, partRow*s.rows)
			for r := 0; r < s.rows; r++ {
				off := r*fullRow + part*partRow
				shard = append(shard, encoded[off:off+partRow]...)
			}
		case axisRows:
			ne[1] = s.rows / nParts
			rowBytes := tensor.RowBytes(s.dtype, s.cols)
			shard = encoded[part*ne[1]*rowBytes : (part+1)*ne[1]*rowBytes]
		}
	}

	binary.Write(w, binary.LittleEndian, nDims)
	binary.Write(w, binary.LittleEndian, int32(len(s.name)))
	binary.Write(w, binary.LittleEndian, int32(s.dtype))
	for d := 0; d < int(nDims); d++ {
		binary.Write(w, binary.LittleEndian, int32(ne[d]))
	}
	if _, err := w.WriteString(s.name); err != nil {
		return err
	}
	_, err := w.Write(shard)
	return err
}

type axis int

const (
	axisCols axis = iota
	axisRows
)

// shardAxis mirrors the reader's name-pattern rules.
func shardAxis(name string) axis {
	switch {
	case name == "tok_embeddings.weight":
		return axisCols
	case name == "output.weight":
		return axisRows
	}
	for _, suffix := range []string{"attention.wo.weight", "feed_forward.w2.weight"} {
		if len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix {
			return axisCols
		}
	}
	return axisRows
}

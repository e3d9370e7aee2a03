package ckpt

import (
	"fmt"

	"github.com/samcharles93/petal/internal/tensor"
)

// TensorInfo summarizes one tensor record without loading its data.
type TensorInfo struct {
	Name  string `json:"name"`
	Dims  []int  `json:"dims"`
	Type  string `json:"type"`
	Bytes int    `json:"bytes"`
}

// Info summarizes a checkpoint for inspection.
type Info struct {
	Path      string       `json:"path"`
	Parts     int          `json:"parts"`
	VocabSize int          `json:"vocab_size"`
	Embd      int          `json:"embd"`
	Mult      int          `json:"mult"`
	Heads     int          `json:"heads"`
	Layers    int          `json:"layers"`
	Precision string       `json:"precision"`
	Tensors   []TensorInfo `json:"tensors"`
}

// Scan reads the header and walks the tensor records of the first part,
// skipping weight data. It validates only what it needs to keep walking.
func Scan(path string) (*Info, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := &reader{data: f.data}
	hp, tokens, err := readHeader(r, 1)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Path:      path,
		Parts:     len(partPaths(path)),
		VocabSize: len(tokens),
		Embd:      hp.NEmbd,
		Mult:      hp.NMult,
		Heads:     hp.NHead,
		Layers:    hp.NLayer,
		Precision: hp.Precision.String(),
	}

	for !r.eof() {
		nDims, err := r.i32()
		if err != nil {
			return nil, err
		}
		nameLen, err := r.i32()
		if err != nil {
			return nil, err
		}
		elemType, err := r.i32()
		if err != nil {
			return nil, err
		}
		if nDims < 1 || nDims > 2 {
			return nil, fmt.Errorf("%w: record with %d dims", ErrShapeMismatch, nDims)
		}
		dims := make([]int, nDims)
		for d := range dims {
			v, err := r.i32()
			if err != nil {
				return nil, err
			}
			dims[d] = int(v)
		}
		name, err := r.bytes(int(nameLen))
		if err != nil {
			return nil, err
		}
		dtype := tensor.DType(elemType)
		if !dtype.Valid() {
			return nil, fmt.Errorf("%w: tensor %q elem type %d", ErrBadPrecision, name, elemType)
		}
		rows := 1
		if len(dims) == 2 {
			rows = dims[1]
		}
		dataBytes := tensor.RowBytes(dtype, dims[0]) * rows
		if _, err := r.bytes(dataBytes); err != nil {
			return nil, err
		}
		info.Tensors = append(info.Tensors, TensorInfo{
			Name:  string(name),
			Dims:  dims,
			Type:  dtype.String(),
			Bytes: dataBytes,
		})
	}
	return info, nil
}

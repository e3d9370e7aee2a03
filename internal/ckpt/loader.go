package ckpt

import (
	"fmt"
	"os"
	"strings"

	"github.com/samcharles93/petal/internal/logger"
	"github.com/samcharles93/petal/internal/tensor"
)

// Load parses the checkpoint at path into a Model. A checkpoint may be
// split across numbered parts (path.1, path.2, ...), each repeating the
// header and vocabulary and holding a disjoint shard of every weight
// tensor. nCtx overrides whatever context length the training run used;
// it sizes the key/value cache and is fixed for the model's lifetime.
//
// Loading is all-or-nothing: any format violation aborts with an error
// wrapping one of the package sentinels and no model is returned.
func Load(path string, nCtx int, log logger.Logger) (*Model, error) {
	parts := partPaths(path)
	nParts := len(parts)
	log.Info("loading checkpoint", "path", path, "parts", nParts)

	var (
		model   *Model
		entries map[string]*regEntry
		order   []*regEntry
	)

	for partIdx, partPath := range parts {
		f, err := openFile(partPath)
		if err != nil {
			return nil, fmt.Errorf("open part %d: %w", partIdx, err)
		}
		r := &reader{data: f.data}

		hp, tokens, err := readHeader(r, nCtx)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("part %d: %w", partIdx, err)
		}

		if partIdx == 0 {
			model = &Model{
				Hparams: hp,
				Vocab:   newVocab(tokens),
				Layers:  make([]Layer, hp.NLayer),
			}
			log.Info("model hyperparameters",
				"vocab", hp.NVocab, "ctx", hp.NCtx, "embd", hp.NEmbd,
				"mult", hp.NMult, "head", hp.NHead, "layer", hp.NLayer,
				"ff", hp.NFF(), "precision", hp.Precision.String())

			entries = make(map[string]*regEntry)
			for _, s := range model.schema() {
				e := &regEntry{slot: s, buf: make([]byte, s.rows*tensor.RowBytes(s.dtype, s.cols))}
				entries[s.name] = e
				order = append(order, e)
			}
		} else if hp != model.Hparams || len(tokens) != model.Vocab.Size() {
			f.Close()
			return nil, fmt.Errorf("%w: part %d header differs from part 0", ErrPartMismatch, partIdx)
		}

		for _, e := range entries {
			e.seen = false
		}
		if err := loadPart(r, entries, partIdx, nParts); err != nil {
			f.Close()
			return nil, fmt.Errorf("part %d: %w", partIdx, err)
		}
		for _, e := range order {
			if !e.seen {
				f.Close()
				return nil, fmt.Errorf("%w: %q not present in part %d", ErrMissingTensor, e.name, partIdx)
			}
		}
		f.Close()
	}

	var totalBytes int
	for _, e := range order {
		mat, err := tensor.NewMatFromRaw(e.rows, e.cols, e.dtype, e.buf)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrSizeMismatch, e.name, err)
		}
		*e.dst = mat
		totalBytes += len(e.buf)
	}

	log.Info("checkpoint loaded", "tensors", len(order), "bytes", totalBytes)
	return model, nil
}

// regEntry tracks one registry tensor during the load: its staging buffer
// and whether the current part has written it yet.
type regEntry struct {
	slot
	buf  []byte
	seen bool
}

// readHeader parses magic, hyperparameters and the vocabulary table.
// The caller-supplied context length replaces the file's notion of it.
func readHeader(r *reader, nCtx int) (Hparams, []string, error) {
	magic, err := r.u32()
	if err != nil {
		return Hparams{}, nil, err
	}
	if magic != Magic {
		return Hparams{}, nil, fmt.Errorf("%w: 0x%08x", ErrBadMagic, magic)
	}

	var raw [6]int32
	for i := range raw {
		if raw[i], err = r.i32(); err != nil {
			return Hparams{}, nil, err
		}
	}
	hp := Hparams{
		NVocab:    int(raw[0]),
		NCtx:      nCtx,
		NEmbd:     int(raw[1]),
		NMult:     int(raw[2]),
		NHead:     int(raw[3]),
		NLayer:    int(raw[4]),
		Precision: Precision(raw[5]),
	}
	if !hp.Precision.Valid() {
		return Hparams{}, nil, fmt.Errorf("%w: %d", ErrBadPrecision, raw[5])
	}
	if hp.NVocab <= 0 || hp.NEmbd <= 0 || hp.NMult <= 0 || hp.NHead <= 0 || hp.NLayer <= 0 || nCtx <= 0 {
		return Hparams{}, nil, fmt.Errorf("ckpt: invalid hyperparameters %+v", hp)
	}
	if hp.NEmbd%hp.NHead != 0 {
		return Hparams{}, nil, fmt.Errorf("ckpt: embedding width %d not divisible by %d heads", hp.NEmbd, hp.NHead)
	}

	tokens := make([]string, hp.NVocab)
	for i := range tokens {
		if tokens[i], err = r.str32(); err != nil {
			return Hparams{}, nil, err
		}
	}
	return hp, tokens, nil
}

// loadPart streams tensor records until end of part, validating each
// against the registry and copying its bytes into the owning shard region.
func loadPart(r *reader, entries map[string]*regEntry, part, nParts int) error {
	for !r.eof() {
		nDims, err := r.i32()
		if err != nil {
			return err
		}
		nameLen, err := r.i32()
		if err != nil {
			return err
		}
		elemType, err := r.i32()
		if err != nil {
			return err
		}
		if nDims < 1 || nDims > 2 {
			return fmt.Errorf("%w: record with %d dims", ErrShapeMismatch, nDims)
		}

		ne := [2]int{1, 1}
		for d := 0; d < int(nDims); d++ {
			v, err := r.i32()
			if err != nil {
				return err
			}
			ne[d] = int(v)
		}
		nameBytes, err := r.bytes(int(nameLen))
		if err != nil {
			return err
		}
		name := string(nameBytes)

		ent, ok := entries[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTensor, name)
		}
		if ent.seen {
			return fmt.Errorf("%w: %q", ErrDuplicateTensor, name)
		}
		ent.seen = true

		dtype := tensor.DType(elemType)
		if !dtype.Valid() {
			return fmt.Errorf("%w: tensor %q elem type %d", ErrBadPrecision, name, elemType)
		}
		if dtype != ent.dtype {
			return fmt.Errorf("%w: %q encoded as %s, want %s", ErrSizeMismatch, name, dtype, ent.dtype)
		}
		if (dtype == tensor.DTypeQ4_0 || dtype == tensor.DTypeQ4_1) && ne[0]%tensor.QBlock != 0 {
			return fmt.Errorf("%w: %q quantized width %d not a block multiple", ErrSizeMismatch, name, ne[0])
		}

		axis := splitAxisFor(name, int(nDims))
		if err := validateShard(ent, axis, ne, int(nDims), nParts); err != nil {
			return err
		}

		dataBytes := tensor.RowBytes(dtype, ne[0]) * ne[1]
		data, err := r.bytes(dataBytes)
		if err != nil {
			return err
		}
		copyShard(ent, part, nParts, axis, ne, data)
	}
	return nil
}

type splitAxis int

const (
	splitNone splitAxis = iota // 1-D tensors are never split
	splitCols                  // shard along ne0: embeddings, wo, w2
	splitRows                  // shard along ne1: qkv, w1, output
)

// splitAxisFor decides the shard axis from the tensor name, mirroring the
// original format's name patterns.
func splitAxisFor(name string, nDims int) splitAxis {
	if nDims == 1 {
		return splitNone
	}
	switch {
	case strings.Contains(name, "tok_embeddings"):
		return splitCols
	case strings.Contains(name, "layers"):
		if strings.Contains(name, "attention.wo.weight") ||
			strings.Contains(name, "feed_forward.w2.weight") {
			return splitCols
		}
		return splitRows
	case strings.Contains(name, "output"):
		return splitRows
	default:
		return splitCols
	}
}

// validateShard checks the record's element count, per-axis extents and
// encoded byte length against the registry entry, accounting for the part
// count. Any mismatch is fatal; shards are never truncated or padded.
func validateShard(ent *regEntry, axis splitAxis, ne [2]int, nDims, nParts int) error {
	total := ent.rows * ent.cols
	nelements := ne[0] * ne[1]

	if nDims == 1 || nParts == 1 {
		if nelements != total {
			return fmt.Errorf("%w: %q has %d elements, want %d", ErrSizeMismatch, ent.name, nelements, total)
		}
		wantNe0, wantNe1 := ent.cols, ent.rows
		if nDims == 1 {
			wantNe1 = 1
		}
		if ne[0] != wantNe0 || ne[1] != wantNe1 {
			return fmt.Errorf("%w: %q is [%d, %d], want [%d, %d]",
				ErrShapeMismatch, ent.name, ne[0], ne[1], wantNe0, wantNe1)
		}
		return nil
	}

	if nelements != total/nParts {
		return fmt.Errorf("%w: %q shard has %d elements, want %d across %d parts",
			ErrSizeMismatch, ent.name, nelements, total/nParts, nParts)
	}
	switch axis {
	case splitCols:
		if ne[0] != ent.cols/nParts || ne[1] != ent.rows {
			return fmt.Errorf("%w: %q shard is [%d, %d], want [%d, %d]",
				ErrShapeMismatch, ent.name, ne[0], ne[1], ent.cols/nParts, ent.rows)
		}
	case splitRows:
		if ne[0] != ent.cols || ne[1] != ent.rows/nParts {
			return fmt.Errorf("%w: %q shard is [%d, %d], want [%d, %d]",
				ErrShapeMismatch, ent.name, ne[0], ne[1], ent.cols, ent.rows/nParts)
		}
	}
	shardBytes := tensor.RowBytes(ent.dtype, ne[0]) * ne[1]
	if shardBytes*nParts != len(ent.buf) {
		return fmt.Errorf("%w: %q shard is %d bytes, want %d",
			ErrSizeMismatch, ent.name, shardBytes, len(ent.buf)/nParts)
	}
	return nil
}

// copyShard places a record's bytes into the sub-region owned by this
// part. Unsplit tensors repeat identically in every part; only the first
// copy is kept.
func copyShard(ent *regEntry, part, nParts int, axis splitAxis, ne [2]int, data []byte) {
	if nParts == 1 || axis == splitNone {
		if part == 0 {
			copy(ent.buf, data)
		}
		return
	}
	switch axis {
	case splitCols:
		partRow := tensor.RowBytes(ent.dtype, ne[0])
		fullRow := tensor.RowBytes(ent.dtype, ent.cols)
		for r := 0; r < ne[1]; r++ {
			copy(ent.buf[r*fullRow+part*partRow:][:partRow], data[r*partRow:])
		}
	case splitRows:
		rowBytes := tensor.RowBytes(ent.dtype, ne[0])
		copy(ent.buf[part*ne[1]*rowBytes:], data)
	}
}

// partPaths returns the base path followed by any numbered parts that
// exist on disk.
func partPaths(path string) []string {
	paths := []string{path}
	for i := 1; ; i++ {
		p := fmt.Sprintf("%s.%d", path, i)
		if _, err := os.Stat(p); err != nil {
			break
		}
		paths = append(paths, p)
	}
	return paths
}

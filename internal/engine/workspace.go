package engine

import "fmt"

// defaultWorkspaceSize is the arena capacity (in float32 elements) for
// the first pass, before any per-token measurement exists.
const defaultWorkspaceSize = 1 << 22

// workspace is the grow-only scratch arena a session builds each step's
// intermediate tensors in. Capacity is steered by a running per-token
// estimate measured on the first pass; growth happens strictly between
// decode steps, never while a pass holds live allocations.
type workspace struct {
	buf []float32
	off int

	memPerToken int // measured floats per token, 0 until the first pass
}

func newWorkspace() *workspace {
	return &workspace{buf: make([]float32, defaultWorkspaceSize)}
}

// prepare grows the arena ahead of a pass over n tokens. Must be called
// with no allocations outstanding.
func (w *workspace) prepare(n int) {
	if w.memPerToken == 0 {
		return
	}
	need := w.memPerToken * n
	if need > len(w.buf) {
		w.buf = make([]float32, need+need/10)
	}
}

// alloc returns a zeroed slice of n elements from the arena.
func (w *workspace) alloc(n int) ([]float32, error) {
	if w.off+n > len(w.buf) {
		return nil, fmt.Errorf("%w: need %d floats, %d free", ErrWorkspace, n, len(w.buf)-w.off)
	}
	s := w.buf[w.off : w.off+n]
	w.off += n
	clear(s)
	return s, nil
}

// reset recycles the arena for the next pass.
func (w *workspace) reset() { w.off = 0 }

// used is the high-water mark of the current pass.
func (w *workspace) used() int { return w.off }

// measure records the per-token estimate after the first successful pass
// over n tokens. Later passes keep the first measurement.
func (w *workspace) measure(n int) {
	if w.memPerToken == 0 && n > 0 {
		w.memPerToken = w.off / n
	}
}

// SizeBytes is the current arena capacity.
func (w *workspace) SizeBytes() int { return len(w.buf) * 4 }

package engine

import "fmt"

// kvCache holds the attention key and value vectors for every layer and
// position, in two flat buffers shaped [layer][position][embd]. Writes are
// append-only per layer at strictly increasing positions; the window read
// back for attention is causal by construction because positions beyond
// the current step have never been written.
type kvCache struct {
	nLayer int
	nCtx   int
	nEmbd  int

	k []float32
	v []float32

	fill []int // next writable position per layer
}

func newKVCache(nLayer, nCtx, nEmbd int) *kvCache {
	n := nLayer * nCtx * nEmbd
	return &kvCache{
		nLayer: nLayer,
		nCtx:   nCtx,
		nEmbd:  nEmbd,
		k:      make([]float32, n),
		v:      make([]float32, n),
		fill:   make([]int, nLayer),
	}
}

// Write appends len(k)/nEmbd key and value vectors for layer at startPos.
// startPos must equal the layer's current fill; a write that would extend
// past the context window fails with ErrContextOverflow and leaves the
// buffers unchanged.
func (c *kvCache) Write(layer, startPos int, k, v []float32) error {
	n := len(k) / c.nEmbd
	if len(k) != n*c.nEmbd || len(v) != len(k) {
		return fmt.Errorf("engine: cache write of %d/%d values, embd %d", len(k), len(v), c.nEmbd)
	}
	if startPos != c.fill[layer] {
		return fmt.Errorf("engine: out-of-order cache write at %d, layer %d filled to %d", startPos, layer, c.fill[layer])
	}
	if startPos+n > c.nCtx {
		return fmt.Errorf("%w: position %d+%d exceeds %d", ErrContextOverflow, startPos, n, c.nCtx)
	}
	off := (layer*c.nCtx + startPos) * c.nEmbd
	copy(c.k[off:], k)
	copy(c.v[off:], v)
	c.fill[layer] = startPos + n
	return nil
}

// Window returns the cached key and value vectors for positions [0, end)
// of layer. The slices alias the cache and must not be written.
func (c *kvCache) Window(layer, end int) (k, v []float32) {
	off := layer * c.nCtx * c.nEmbd
	return c.k[off : off+end*c.nEmbd], c.v[off : off+end*c.nEmbd]
}

// Reset forgets all cached positions. Used at session restart; the
// backing buffers are retained.
func (c *kvCache) Reset() {
	for i := range c.fill {
		c.fill[i] = 0
	}
}

// SizeBytes is the total backing allocation, keys plus values.
func (c *kvCache) SizeBytes() int {
	return (len(c.k) + len(c.v)) * 4
}

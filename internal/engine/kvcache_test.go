package engine

import (
	"errors"
	"testing"
)

func seqVecs(n, embd int, base float32) []float32 {
	v := make([]float32, n*embd)
	for i := range v {
		v[i] = base + float32(i)
	}
	return v
}

// TestCacheWriteRead checks vectors written at a position read back
// exactly through the window.
func TestCacheWriteRead(t *testing.T) {
	c := newKVCache(2, 8, 4)

	k0 := seqVecs(3, 4, 100)
	v0 := seqVecs(3, 4, 200)
	if err := c.Write(1, 0, k0, v0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	k1 := seqVecs(1, 4, 300)
	v1 := seqVecs(1, 4, 400)
	if err := c.Write(1, 3, k1, v1); err != nil {
		t.Fatalf("Write: %v", err)
	}

	k, v := c.Window(1, 4)
	for i := range k0 {
		if k[i] != k0[i] || v[i] != v0[i] {
			t.Fatalf("window[%d] = %v/%v, want %v/%v", i, k[i], v[i], k0[i], v0[i])
		}
	}
	for i := range k1 {
		if k[12+i] != k1[i] || v[12+i] != v1[i] {
			t.Fatalf("appended vector differs at %d", i)
		}
	}

	// Layer 0 is untouched.
	k, v = c.Window(0, 8)
	for i := range k {
		if k[i] != 0 || v[i] != 0 {
			t.Fatalf("layer 0 written at %d", i)
		}
	}
}

// TestCacheOverflow checks a write past the context window fails with
// ErrContextOverflow and leaves the buffers unchanged.
func TestCacheOverflow(t *testing.T) {
	c := newKVCache(1, 4, 2)
	if err := c.Write(0, 0, seqVecs(3, 2, 1), seqVecs(3, 2, 1)); err != nil {
		t.Fatal(err)
	}
	before := append([]float32(nil), c.k...)

	err := c.Write(0, 3, seqVecs(2, 2, 50), seqVecs(2, 2, 50))
	if !errors.Is(err, ErrContextOverflow) {
		t.Fatalf("err = %v, want ErrContextOverflow", err)
	}
	for i := range before {
		if c.k[i] != before[i] {
			t.Fatalf("buffer changed at %d after failed write", i)
		}
	}
	if c.fill[0] != 3 {
		t.Errorf("fill = %d, want 3", c.fill[0])
	}
}

// TestCacheOutOfOrder checks writes must continue at the layer's fill.
func TestCacheOutOfOrder(t *testing.T) {
	c := newKVCache(1, 8, 2)
	if err := c.Write(0, 2, seqVecs(1, 2, 1), seqVecs(1, 2, 1)); err == nil {
		t.Error("write at position 2 of an empty layer succeeded")
	}
	if err := c.Write(0, 0, seqVecs(2, 2, 1), seqVecs(2, 2, 1)); err != nil {
		t.Fatal(err)
	}
	if err := c.Write(0, 1, seqVecs(1, 2, 1), seqVecs(1, 2, 1)); err == nil {
		t.Error("rewrite of position 1 succeeded")
	}
}

func TestCacheReset(t *testing.T) {
	c := newKVCache(2, 4, 2)
	if err := c.Write(0, 0, seqVecs(4, 2, 1), seqVecs(4, 2, 1)); err != nil {
		t.Fatal(err)
	}
	c.Reset()
	if err := c.Write(0, 0, seqVecs(1, 2, 9), seqVecs(1, 2, 9)); err != nil {
		t.Errorf("write after reset: %v", err)
	}
}

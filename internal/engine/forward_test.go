package engine

import (
	"path/filepath"
	"testing"

	"github.com/samcharles93/petal/internal/ckpt"
	"github.com/samcharles93/petal/internal/logger"
	"github.com/samcharles93/petal/internal/toy"
)

func loadFixture(t *testing.T, nCtx int) *ckpt.Model {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.bin")
	if err := toy.WriteFile(path, toy.DefaultConfig(), 7); err != nil {
		t.Fatal(err)
	}
	m, err := ckpt.Load(path, nCtx, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func newPass(m *ckpt.Model, threads int) *forwardPass {
	hp := m.Hparams
	return newForwardPass(m, newKVCache(hp.NLayer, hp.NCtx, hp.NEmbd), newWorkspace(), threads)
}

// TestForwardBatchIncrementalEquivalence checks a token span evaluated
// in one batch yields bit-identical final logits to the same span fed
// one token at a time, regardless of thread count. The positional bias
// uses absolute positions, so chunking must not matter.
func TestForwardBatchIncrementalEquivalence(t *testing.T) {
	m := loadFixture(t, 16)
	tokens := []int{3, 9, 4, 4, 7}

	batch := newPass(m, 1)
	want, err := batch.run(tokens, 0)
	if err != nil {
		t.Fatal(err)
	}
	wantCopy := append([]float32(nil), want...)

	incr := newPass(m, 4)
	var got []float32
	for i, tok := range tokens {
		if got, err = incr.run([]int{tok}, i); err != nil {
			t.Fatalf("token %d: %v", i, err)
		}
	}

	for i := range wantCopy {
		if got[i] != wantCopy[i] {
			t.Fatalf("logit %d: batch %v, incremental %v", i, wantCopy[i], got[i])
		}
	}
}

// TestForwardDeterministic checks repeated evaluation from a fresh cache
// produces identical logits.
func TestForwardDeterministic(t *testing.T) {
	m := loadFixture(t, 16)
	tokens := []int{5, 6, 7}

	a, err := newPass(m, 2).run(tokens, 0)
	if err != nil {
		t.Fatal(err)
	}
	aCopy := append([]float32(nil), a...)
	b, err := newPass(m, 2).run(tokens, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := range aCopy {
		if aCopy[i] != b[i] {
			t.Fatalf("logit %d differs across runs", i)
		}
	}
}

// TestForwardContextOverflow checks evaluating past the window fails
// with ErrContextOverflow.
func TestForwardContextOverflow(t *testing.T) {
	m := loadFixture(t, 4)
	fp := newPass(m, 1)

	if _, err := fp.run([]int{1, 2, 3, 4}, 0); err != nil {
		t.Fatal(err)
	}
	_, err := fp.run([]int{5}, 4)
	if err == nil {
		t.Fatal("pass beyond the context window succeeded")
	}
}

// TestForwardRejectsBadToken checks out-of-vocabulary ids fail cleanly.
func TestForwardRejectsBadToken(t *testing.T) {
	m := loadFixture(t, 8)
	if _, err := newPass(m, 1).run([]int{m.Hparams.NVocab}, 0); err == nil {
		t.Fatal("out-of-range token accepted")
	}
}

// TestMaskedSoftmax checks probabilities sum to one over the causal
// range and are exactly zero beyond the query position.
func TestMaskedSoftmax(t *testing.T) {
	sc := []float32{0.5, -1.2, 2.0, 9.9, 9.9}
	maskedSoftmax(sc, 2)

	var sum float32
	for _, p := range sc[:3] {
		if p <= 0 {
			t.Fatalf("causal probability %v not positive", p)
		}
		sum += p
	}
	if sum < 0.9999 || sum > 1.0001 {
		t.Errorf("probabilities sum to %v", sum)
	}
	for i := 3; i < len(sc); i++ {
		if sc[i] != 0 {
			t.Errorf("masked position %d = %v, want exactly 0", i, sc[i])
		}
	}
}

// TestForwardMemPerToken checks the first pass seeds the workspace
// estimate.
func TestForwardMemPerToken(t *testing.T) {
	m := loadFixture(t, 16)
	fp := newPass(m, 1)

	if fp.ws.memPerToken != 0 {
		t.Fatal("estimate set before any pass")
	}
	if _, err := fp.run([]int{0, 1, 2, 3}, 0); err != nil {
		t.Fatal(err)
	}
	if fp.ws.memPerToken == 0 {
		t.Error("estimate not set after the first pass")
	}
}

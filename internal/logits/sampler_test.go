package logits

import (
	"math/rand"
	"sort"
	"testing"
)

// TestSampleDeterministic checks identical seed, logits and configuration
// produce the identical token across fresh samplers.
func TestSampleDeterministic(t *testing.T) {
	logits := []float32{0.1, 2.3, -0.7, 1.1, 0.4, -1.9, 0.9, 0.2}
	history := []int{1, 3}
	cfg := SamplerConfig{Seed: 7, Temperature: 0.8, TopK: 4, TopP: 0.9, RepeatPenalty: 1.2}

	first := NewSampler(cfg).Sample(logits, history)
	for i := 0; i < 10; i++ {
		if got := NewSampler(cfg).Sample(logits, history); got != first {
			t.Fatalf("draw %d: got %d, want %d", i, got, first)
		}
	}
}

// TestSampleTopKOne checks top_k=1 always returns the arg-max token.
func TestSampleTopKOne(t *testing.T) {
	logits := []float32{0.5, 3.0, -1.0, 2.9, 0.0}
	s := NewSampler(SamplerConfig{Seed: 1, Temperature: 0.7, TopK: 1, TopP: 0.95})

	for i := 0; i < 50; i++ {
		if got := s.Sample(logits, nil); got != 1 {
			t.Fatalf("got %d, want arg-max 1", got)
		}
	}
}

// TestSampleUnrestricted checks top_p=1 with top_k=vocab reduces to a
// weighted draw over the full distribution: with uniform logits every id
// is eventually drawn.
func TestSampleUnrestricted(t *testing.T) {
	logits := make([]float32, 8)
	s := NewSampler(SamplerConfig{Seed: 3, Temperature: 1, TopK: len(logits), TopP: 1})

	hit := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		id := s.Sample(logits, nil)
		if id < 0 || id >= len(logits) {
			t.Fatalf("id %d out of range", id)
		}
		hit[id] = true
	}
	if len(hit) != len(logits) {
		t.Errorf("only %d of %d ids drawn from a uniform distribution", len(hit), len(logits))
	}
}

// TestSampleDoesNotMutateLogits checks the input vector is left untouched.
func TestSampleDoesNotMutateLogits(t *testing.T) {
	logits := []float32{0.1, 2.3, -0.7, 1.1}
	orig := append([]float32(nil), logits...)

	s := NewSampler(SamplerConfig{Seed: 1, RepeatPenalty: 1.3})
	s.Sample(logits, []int{0, 1, 2})

	for i := range logits {
		if logits[i] != orig[i] {
			t.Fatalf("logits[%d] mutated: %v -> %v", i, orig[i], logits[i])
		}
	}
}

// TestPenaltyNeverImprovesRank checks the repetition penalty never raises
// a history-present token's rank relative to its pre-penalty rank.
func TestPenaltyNeverImprovesRank(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 100; trial++ {
		logits := make([]float32, 32)
		for i := range logits {
			logits[i] = (rng.Float32() - 0.5) * 8
		}
		history := []int{int(rng.Int31n(32)), int(rng.Int31n(32)), int(rng.Int31n(32))}

		before := ranks(logits)

		s := NewSampler(SamplerConfig{RepeatPenalty: 1.3})
		penalized := append([]float32(nil), logits...)
		s.penalize(penalized, history)

		after := ranks(penalized)
		for _, id := range history {
			if after[id] < before[id] {
				t.Fatalf("trial %d: id %d rank improved %d -> %d", trial, id, before[id], after[id])
			}
		}
	}
}

// TestPenaltyAppliedOncePerID checks a token repeated in the history
// window is penalized a single time.
func TestPenaltyAppliedOncePerID(t *testing.T) {
	s := NewSampler(SamplerConfig{RepeatPenalty: 2})

	logits := []float32{4, -4, 1}
	s.penalize(logits, []int{0, 0, 0, 1, 1})

	if logits[0] != 2 {
		t.Errorf("positive logit = %v, want 2 (divided once)", logits[0])
	}
	if logits[1] != -8 {
		t.Errorf("negative logit = %v, want -8 (multiplied once)", logits[1])
	}
	if logits[2] != 1 {
		t.Errorf("unpenalized logit changed: %v", logits[2])
	}
}

// TestPenaltyWindow checks only the last RepeatLastN history entries are
// penalized.
func TestPenaltyWindow(t *testing.T) {
	s := NewSampler(SamplerConfig{RepeatPenalty: 2, RepeatLastN: 2})

	logits := []float32{4, 4, 4}
	s.penalize(logits, []int{0, 1, 2})

	if logits[0] != 4 {
		t.Errorf("id outside window penalized: %v", logits[0])
	}
	if logits[1] != 2 || logits[2] != 2 {
		t.Errorf("ids inside window = %v %v, want 2 2", logits[1], logits[2])
	}
}

// TestSampleNucleusFloor checks a tiny top_p still keeps one candidate,
// which must be the arg-max.
func TestSampleNucleusFloor(t *testing.T) {
	logits := []float32{0.0, 5.0, 0.1, 0.2}
	s := NewSampler(SamplerConfig{Seed: 9, Temperature: 1, TopK: 4, TopP: 0.001})

	for i := 0; i < 20; i++ {
		if got := s.Sample(logits, nil); got != 1 {
			t.Fatalf("got %d, want 1", got)
		}
	}
}

// ranks maps each index to its position in a descending sort of values.
func ranks(vals []float32) map[int]int {
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return vals[idx[a]] > vals[idx[b]] })
	r := make(map[int]int, len(idx))
	for pos, id := range idx {
		r[id] = pos
	}
	return r
}

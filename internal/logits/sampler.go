// Package logits turns a raw logits vector into a single sampled token id
// under temperature, top-k, nucleus and repetition-penalty policy.
package logits

import (
	"math"
	"math/rand"
	"sort"
)

// SamplerConfig configures the behaviour of a Sampler. A zero value for
// any field selects its default.
type SamplerConfig struct {
	Seed          int64
	Temperature   float32
	TopK          int
	TopP          float32
	RepeatPenalty float32
	RepeatLastN   int
}

// Sampler draws token ids from logits vectors. It owns a seeded random
// stream and reuses its scratch buffers across calls; it is not safe for
// concurrent use.
type Sampler struct {
	rng *rand.Rand
	cfg SamplerConfig

	scratch []float32
	idx     []int
	prob    []float64

	seenMark  []uint32
	seenEpoch uint32
}

// NewSampler returns a sampler with the provided configuration.
func NewSampler(cfg SamplerConfig) *Sampler {
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.8
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 40
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	if cfg.RepeatPenalty <= 0 {
		cfg.RepeatPenalty = 1
	}
	if cfg.RepeatLastN <= 0 {
		cfg.RepeatLastN = 64
	}
	return &Sampler{
		rng: rand.New(rand.NewSource(cfg.Seed)),
		cfg: cfg,
	}
}

// RepeatLastN is the history window the caller should maintain.
func (s *Sampler) RepeatLastN() int { return s.cfg.RepeatLastN }

// Sample draws one token id from logits given the recent token history.
// The input slice is not modified; the caller updates history itself.
//
//  1. Each distinct id in history has its logit penalized once, with a
//     sign-dependent rule: negative logits are multiplied by the penalty,
//     non-negative ones divided by it.
//  2. All logits are divided by the temperature.
//  3. Softmax over the full vocabulary.
//  4. Candidates are sorted by probability descending and cut to top-k.
//  5. The smallest prefix whose cumulative probability reaches top-p is
//     kept, never fewer than one entry.
//  6. The kept probabilities are renormalized and one index is drawn from
//     the sampler's random stream.
func (s *Sampler) Sample(logits []float32, history []int) int {
	n := len(logits)
	if n == 0 {
		panic("logits: sample from empty vector")
	}

	if cap(s.scratch) < n {
		s.scratch = make([]float32, n)
	}
	scaled := s.scratch[:n]
	copy(scaled, logits)

	if s.cfg.RepeatPenalty != 1 && len(history) > 0 {
		s.penalize(scaled, history)
	}

	invTemp := 1 / s.cfg.Temperature
	for i := range scaled {
		scaled[i] *= invTemp
	}

	// Full-vocabulary softmax, max-subtracted for stability.
	maxv := scaled[0]
	for _, v := range scaled[1:] {
		if v > maxv {
			maxv = v
		}
	}
	if cap(s.prob) < n {
		s.prob = make([]float64, n)
		s.idx = make([]int, n)
	}
	prob := s.prob[:n]
	idx := s.idx[:n]
	var sum float64
	for i, v := range scaled {
		e := math.Exp(float64(v - maxv))
		prob[i] = e
		sum += e
		idx[i] = i
	}
	invSum := 1 / sum
	for i := range prob {
		prob[i] *= invSum
	}

	sort.SliceStable(idx, func(a, b int) bool {
		return prob[idx[a]] > prob[idx[b]]
	})

	keep := min(s.cfg.TopK, n)

	if s.cfg.TopP < 1 {
		var c float64
		for i := 0; i < keep; i++ {
			c += prob[idx[i]]
			if c >= float64(s.cfg.TopP) {
				keep = i + 1
				break
			}
		}
	}
	if keep < 1 {
		keep = 1
	}

	var kept float64
	for i := 0; i < keep; i++ {
		kept += prob[idx[i]]
	}

	r := s.rng.Float64() * kept
	var c float64
	for i := 0; i < keep; i++ {
		c += prob[idx[i]]
		if r <= c {
			return idx[i]
		}
	}
	return idx[keep-1]
}

// penalize applies the repetition penalty to each distinct history id
// exactly once. The sign rule is asymmetric on purpose; changing it
// changes generated output.
func (s *Sampler) penalize(logits []float32, history []int) {
	start := max(len(history)-s.cfg.RepeatLastN, 0)
	window := history[start:]

	if len(s.seenMark) < len(logits) {
		s.seenMark = make([]uint32, len(logits))
	}
	s.seenEpoch++
	if s.seenEpoch == 0 {
		clear(s.seenMark)
		s.seenEpoch = 1
	}

	for _, id := range window {
		if id < 0 || id >= len(logits) || s.seenMark[id] == s.seenEpoch {
			continue
		}
		s.seenMark[id] = s.seenEpoch
		if logits[id] < 0 {
			logits[id] *= s.cfg.RepeatPenalty
		} else {
			logits[id] /= s.cfg.RepeatPenalty
		}
	}
}

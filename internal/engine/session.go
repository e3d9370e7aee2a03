package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/petal/internal/ckpt"
	"github.com/samcharles93/petal/internal/logger"
	"github.com/samcharles93/petal/internal/logits"
	"github.com/samcharles93/petal/internal/metrics"
	"github.com/samcharles93/petal/internal/tokenizer"
)

// historyWindow is the fixed length of the recent-token FIFO a session
// maintains for the repetition penalty. It starts zero-filled, so token
// id 0 is penalized from the first step.
const historyWindow = 64

const defaultBatch = 8

// Config fixes session-wide parameters at creation.
type Config struct {
	Threads int
	Log     logger.Logger
}

// RunConfig is the per-call decode policy. The zero value of a sampling
// field selects the sampler's default.
type RunConfig struct {
	Seed          int64
	Predict       int
	Batch         int
	Temperature   float32
	TopK          int
	TopP          float32
	RepeatPenalty float32

	// Stream, when set, receives each emitted token's text as soon as
	// it is sampled.
	Stream func(string)
}

// Stats describes one completed decode call.
type Stats struct {
	PromptTokens    int
	GeneratedTokens int
	Duration        time.Duration
}

// Session drives decode loops over one model. It exclusively owns its
// cache, workspace, position counter and token history; the model
// weights are shared and read-only. A session is single-writer: two
// calls into it must never run concurrently.
type Session struct {
	id    string
	model *ckpt.Model
	tok   *tokenizer.Tokenizer
	cache *kvCache
	ws    *workspace
	fp    *forwardPass
	log   logger.Logger

	nPast   int
	nChars  int
	history []int

	// last sampled token not yet fed through the forward pass; the next
	// chat call evaluates it ahead of the new input.
	pending    int
	hasPending bool
}

// NewSession builds the cache and workspace for model and runs a short
// warm-up pass to seed the per-token memory estimate. The warm-up's
// cache writes are discarded.
func NewSession(model *ckpt.Model, cfg Config) (*Session, error) {
	log := cfg.Log
	if log == nil {
		log = logger.Default()
	}
	hp := model.Hparams
	s := &Session{
		id:      uuid.NewString(),
		model:   model,
		tok:     tokenizer.New(model.Vocab),
		cache:   newKVCache(hp.NLayer, hp.NCtx, hp.NEmbd),
		ws:      newWorkspace(),
		history: make([]int, historyWindow),
	}
	s.fp = newForwardPass(model, s.cache, s.ws, cfg.Threads)
	s.log = log.With("session", s.id)

	if _, err := s.fp.run([]int{0, 1, 2, 3}, 0); err != nil {
		return nil, fmt.Errorf("warm-up pass: %w", err)
	}
	s.cache.Reset()

	metrics.KVCacheBytes.Set(float64(s.cache.SizeBytes()))
	metrics.WorkspaceBytes.Set(float64(s.ws.SizeBytes()))
	s.log.Debug("session ready",
		"mem_per_token", s.ws.memPerToken*4, "kv_cache_bytes", s.cache.SizeBytes())
	return s, nil
}

// ID is the session's unique identifier, used in log records.
func (s *Session) ID() string { return s.id }

// Chars is the cumulative conversation length consumed and emitted so
// far; a chat caller passes conversation text and may slice from here.
func (s *Session) Chars() int { return s.nChars }

// Run generates a one-shot completion for prompt. Any state left by
// previous calls is discarded: the cache, position and history restart
// from zero. Generation stops at the end-of-sequence token, after
// cfg.Predict tokens, or when the context window fills, whichever comes
// first.
func (s *Session) Run(cfg RunConfig, prompt string) (string, Stats, error) {
	s.cache.Reset()
	s.nPast = 0
	s.nChars = 0
	s.hasPending = false
	clear(s.history)

	ids := s.tok.Encode(prompt)
	if len(ids) == 0 {
		return "", Stats{}, ErrEmptyPrompt
	}
	return s.decode(cfg, ids)
}

// Chat primes the conversation delta beyond what previous calls already
// consumed, then generates a continuation. Cache positions filled by
// earlier calls are never recomputed. The caller appends the returned
// text to its conversation before the next call.
func (s *Session) Chat(cfg RunConfig, conversation string) (string, Stats, error) {
	if s.nChars > len(conversation) {
		return "", Stats{}, fmt.Errorf("engine: conversation shrank from %d to %d chars", s.nChars, len(conversation))
	}
	delta := conversation[s.nChars:]

	ids := s.tok.Encode(delta)
	if s.hasPending {
		ids = append([]int{s.pending}, ids...)
		s.hasPending = false
	}
	if len(ids) == 0 {
		return "", Stats{}, ErrEmptyPrompt
	}
	s.nChars += len(delta)

	text, stats, err := s.decode(cfg, ids)
	s.nChars += len(text)
	return text, stats, err
}

// decode primes ids through the forward pass in batches, then runs the
// sample-and-feed loop.
func (s *Session) decode(cfg RunConfig, ids []int) (string, Stats, error) {
	start := time.Now()
	hp := s.model.Hparams

	batch := cfg.Batch
	if batch <= 0 {
		batch = defaultBatch
	}

	// Context exhaustion truncates the budget rather than failing.
	predict := min(cfg.Predict, hp.NCtx-(s.nPast+len(ids)))
	if s.nPast+len(ids) > hp.NCtx {
		s.log.Warn("context window full before priming", "pos", s.nPast, "input", len(ids))
		return "", Stats{PromptTokens: 0, Duration: time.Since(start)}, nil
	}

	sampler := logits.NewSampler(logits.SamplerConfig{
		Seed:          cfg.Seed,
		Temperature:   cfg.Temperature,
		TopK:          cfg.TopK,
		TopP:          cfg.TopP,
		RepeatPenalty: cfg.RepeatPenalty,
		RepeatLastN:   historyWindow,
	})

	stats := Stats{PromptTokens: len(ids)}
	s.log.Debug("priming", "tokens", len(ids), "pos", s.nPast, "predict", predict)

	var last []float32
	for off := 0; off < len(ids); off += batch {
		chunk := ids[off:min(off+batch, len(ids))]
		out, err := s.fp.run(chunk, s.nPast)
		if err != nil {
			return "", stats, err
		}
		for _, id := range chunk {
			s.push(id)
		}
		s.nPast += len(chunk)
		last = out
	}
	metrics.PromptTokens.Add(float64(len(ids)))

	var sb strings.Builder
	for emitted := 0; emitted < predict; emitted++ {
		id := sampler.Sample(last, s.history)
		s.push(id)
		s.pending, s.hasPending = id, true
		if id == s.model.Vocab.EOS {
			s.log.Debug("end of sequence", "emitted", emitted)
			break
		}

		text := s.model.Vocab.Token(id)
		sb.WriteString(text)
		if cfg.Stream != nil {
			cfg.Stream(text)
		}
		stats.GeneratedTokens++

		if emitted+1 >= predict || s.nPast+1 > hp.NCtx {
			break
		}
		out, err := s.fp.run([]int{id}, s.nPast)
		if err != nil {
			return sb.String(), stats, err
		}
		s.nPast++
		s.hasPending = false
		last = out
	}

	stats.Duration = time.Since(start)
	metrics.GeneratedTokens.Add(float64(stats.GeneratedTokens))
	metrics.EvalSeconds.Observe(stats.Duration.Seconds())
	metrics.WorkspaceBytes.Set(float64(s.ws.SizeBytes()))
	s.log.Info("decode finished",
		"prompt_tokens", stats.PromptTokens,
		"generated", stats.GeneratedTokens,
		"duration", stats.Duration)
	return sb.String(), stats, nil
}

// push appends id to the fixed-length history FIFO.
func (s *Session) push(id int) {
	copy(s.history, s.history[1:])
	s.history[len(s.history)-1] = id
}

// Package metrics holds the process-wide prometheus instruments for the
// inference engine. Collectors register on the default registry; how and
// whether they are exposed is up to the embedding process.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PromptTokens = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "petal",
		Subsystem: "engine",
		Name:      "prompt_tokens_total",
		Help:      "Tokens fed through the forward pass while priming prompts.",
	})

	GeneratedTokens = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "petal",
		Subsystem: "engine",
		Name:      "generated_tokens_total",
		Help:      "Tokens sampled and emitted by decode sessions.",
	})

	EvalSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "petal",
		Subsystem: "engine",
		Name:      "eval_seconds",
		Help:      "Wall time of one forward pass.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	KVCacheBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "petal",
		Subsystem: "engine",
		Name:      "kv_cache_bytes",
		Help:      "Backing allocation of the session key/value cache.",
	})

	WorkspaceBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "petal",
		Subsystem: "engine",
		Name:      "workspace_bytes",
		Help:      "Current capacity of the session scratch workspace.",
	})
)

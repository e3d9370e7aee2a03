package engine

import "errors"

var (
	// ErrContextOverflow reports a write past the context window. Decode
	// loops treat it as a clean end of generation, not a failure.
	ErrContextOverflow = errors.New("engine: context window full")

	// ErrWorkspace reports scratch arena exhaustion during a pass. The
	// session remains at its last completed step.
	ErrWorkspace = errors.New("engine: workspace exhausted")

	// ErrEmptyPrompt reports a prompt that tokenized to nothing.
	ErrEmptyPrompt = errors.New("engine: empty prompt")
)

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/petal/internal/ckpt"
	"github.com/samcharles93/petal/internal/engine"
	"github.com/samcharles93/petal/internal/logger"
)

func runCmd() *cli.Command {
	var (
		prompt string
		opts   samplingOpts
	)

	flags := modelFlags()
	flags = append(flags,
		&cli.StringFlag{
			Name:        "prompt",
			Aliases:     []string{"p"},
			Usage:       "prompt text",
			Destination: &prompt,
		},
	)
	flags = append(flags, samplingFlags(&opts)...)
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:  "run",
		Usage: "Generate a one-shot completion for a prompt",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			fileCfg := LoadConfig()
			applyModelConfig(c, fileCfg)
			applySamplingConfig(c, fileCfg, &opts)

			if modelPath == "" {
				return cli.Exit("error: --model is required", 1)
			}
			if prompt == "" {
				return cli.Exit("error: --prompt is required", 1)
			}

			log := newLogger()
			session, err := newSession(log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			_, stats, err := session.Run(decodeConfig(opts), prompt)
			fmt.Println()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: generate: %v", err), 1)
			}

			log.Info("generation complete",
				"prompt_tokens", stats.PromptTokens,
				"generated", stats.GeneratedTokens,
				"duration", stats.Duration,
				"tokens_per_sec", tokensPerSec(stats))
			return nil
		},
	}
}

// newSession loads the checkpoint named by the model flags and builds a
// decode session around it.
func newSession(log logger.Logger) (*engine.Session, error) {
	start := time.Now()
	model, err := ckpt.Load(modelPath, int(contextLen), log)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", modelPath, err)
	}
	log.Info("model loaded", "duration", time.Since(start))

	return engine.NewSession(model, engine.Config{
		Threads: int(threads),
		Log:     log,
	})
}

// decodeConfig maps the CLI sampling options onto a decode call,
// streaming tokens to stdout as they are produced.
func decodeConfig(o samplingOpts) engine.RunConfig {
	seed := o.seed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	return engine.RunConfig{
		Seed:          seed,
		Predict:       int(o.predict),
		Batch:         int(o.batch),
		Temperature:   float32(o.temp),
		TopK:          int(o.topK),
		TopP:          float32(o.topP),
		RepeatPenalty: float32(o.repeatPenalty),
		Stream: func(tok string) {
			fmt.Print(tok)
			_ = os.Stdout.Sync()
		},
	}
}

func tokensPerSec(stats engine.Stats) float64 {
	if stats.Duration <= 0 {
		return 0
	}
	return float64(stats.GeneratedTokens) / stats.Duration.Seconds()
}

package main

import (
	"os"
	"runtime"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/petal/internal/logger"
)

var (
	modelPath  string
	contextLen int64
	threads    int64
	logLevel   string
	logFormat  string
	debug      bool
)

func modelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to checkpoint file (first part of a sharded model)",
			Destination: &modelPath,
		},
		&cli.Int64Flag{
			Name:        "ctx",
			Aliases:     []string{"c", "max-context"},
			Usage:       "context window length",
			Value:       512,
			Destination: &contextLen,
		},
		&cli.Int64Flag{
			Name:        "threads",
			Aliases:     []string{"t"},
			Usage:       "threads for tensor kernels (default: all CPUs)",
			Value:       int64(runtime.NumCPU()),
			Destination: &threads,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// samplingOpts are the per-decode knobs shared by run and chat.
type samplingOpts struct {
	predict       int64
	batch         int64
	seed          int64
	topK          int64
	temp          float64
	topP          float64
	repeatPenalty float64
}

func samplingFlags(o *samplingOpts) []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "predict",
			Aliases:     []string{"n", "num-tokens"},
			Usage:       "number of tokens to generate",
			Value:       128,
			Destination: &o.predict,
		},
		&cli.Int64Flag{
			Name:        "batch",
			Aliases:     []string{"b"},
			Usage:       "prompt batch size",
			Value:       8,
			Destination: &o.batch,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Aliases:     []string{"s"},
			Usage:       "sampling RNG seed (default -1 = time-based)",
			Value:       -1,
			Destination: &o.seed,
		},
		&cli.Float64Flag{
			Name:        "temp",
			Aliases:     []string{"temperature"},
			Usage:       "sampling temperature",
			Value:       0.8,
			Destination: &o.temp,
		},
		&cli.Int64Flag{
			Name:        "top-k",
			Aliases:     []string{"top_k"},
			Usage:       "top-k sampling parameter",
			Value:       40,
			Destination: &o.topK,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Aliases:     []string{"top_p"},
			Usage:       "top-p (nucleus) sampling parameter",
			Value:       0.95,
			Destination: &o.topP,
		},
		&cli.Float64Flag{
			Name:        "repeat-penalty",
			Aliases:     []string{"repeat_penalty"},
			Usage:       "repetition penalty (1.0 = disabled)",
			Value:       1.3,
			Destination: &o.repeatPenalty,
		},
	}
}

// newLogger builds the process logger from the logging flags.
func newLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = logger.ParseLevel("debug")
	}
	if logFormat == "json" {
		return logger.JSON(os.Stderr, level)
	}
	return logger.Pretty(os.Stderr, level)
}

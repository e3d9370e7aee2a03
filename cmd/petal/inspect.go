package main

import (
	"context"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/petal/internal/ckpt"
)

func inspectCmd() *cli.Command {
	var asJSON bool

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to checkpoint file",
			Destination: &modelPath,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "emit the summary as JSON",
			Destination: &asJSON,
		},
	}

	return &cli.Command{
		Name:  "inspect",
		Usage: "Summarize a checkpoint's header, vocabulary and tensors",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if modelPath == "" {
				return cli.Exit("error: --model is required", 1)
			}

			info, err := ckpt.Scan(modelPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: inspect %s: %v", modelPath, err), 1)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			printInfo(info)
			return nil
		},
	}
}

func printInfo(info *ckpt.Info) {
	fmt.Printf("checkpoint: %s\n", info.Path)
	fmt.Printf("  parts:     %d\n", info.Parts)
	fmt.Printf("  precision: %s\n", info.Precision)
	fmt.Printf("  vocab:     %d\n", info.VocabSize)
	fmt.Printf("  embd:      %d\n", info.Embd)
	fmt.Printf("  heads:     %d\n", info.Heads)
	fmt.Printf("  layers:    %d\n", info.Layers)
	fmt.Printf("  mult:      %d\n", info.Mult)

	var total int
	fmt.Printf("tensors (%d):\n", len(info.Tensors))
	for _, t := range info.Tensors {
		fmt.Printf("  %-44s %-5s %v  %d bytes\n", t.Name, t.Type, t.Dims, t.Bytes)
		total += t.Bytes
	}
	fmt.Printf("total weight bytes: %d\n", total)
}

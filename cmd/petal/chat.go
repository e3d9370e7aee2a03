package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/petal/internal/engine"
)

func chatCmd() *cli.Command {
	var opts samplingOpts

	flags := modelFlags()
	flags = append(flags, samplingFlags(&opts)...)
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive incremental chat session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			fileCfg := LoadConfig()
			applyModelConfig(c, fileCfg)
			applySamplingConfig(c, fileCfg, &opts)

			if modelPath == "" {
				return cli.Exit("error: --model is required", 1)
			}

			log := newLogger()
			session, err := newSession(log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return chatLoop(session, opts)
		},
	}
}

// chatLoop reads lines from stdin and drives the session with the
// accumulated conversation. The model sees the full exchange; only the
// text beyond the session's consumed count is evaluated each turn.
func chatLoop(session *engine.Session, opts samplingOpts) error {
	fmt.Println("petal chat. Empty line or Ctrl-D exits.")

	var conversation strings.Builder
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		conversation.WriteString(line)
		conversation.WriteString("\n")

		reply, _, err := session.Chat(decodeConfig(opts), conversation.String())
		fmt.Println()
		if err != nil {
			if errors.Is(err, engine.ErrEmptyPrompt) {
				continue
			}
			return cli.Exit(fmt.Sprintf("error: chat: %v", err), 1)
		}
		conversation.WriteString(reply)
		if !strings.HasSuffix(reply, "\n") {
			conversation.WriteString("\n")
		}
	}
	return scanner.Err()
}

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	session "github.com/tsubakihara/companion-core/core"
	"github.com/tsubakihara/companion-core/core/chat"
)

// NewAskCommand returns the one-shot ask subcommand.
func NewAskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Send a single query and print the answer",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "web-search",
				Usage: "Force the answer to be grounded with a web search",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if query == "" {
				return fmt.Errorf("no query given")
			}

			orchestrator, err := newOrchestrator(cmd)
			if err != nil {
				return err
			}
			defer orchestrator.Close()

			done := make(chan error, 1)
			orchestrator.Orchestrate(ctx,
				session.WithChunkCallback(func(speaker chat.ParticipantID, sentence string, _ int) {
					if sentence != "" {
						fmt.Printf("%s: %s\n", speaker, sentence)
					}
				}),
				session.WithCompletionCallback(func(chat.Result) {
					done <- nil
				}),
				session.WithFailureCallback(func(reason string) {
					done <- fmt.Errorf("turn failed: %s", reason)
				}),
			)

			var opts []session.SubmitOption
			if cmd.Bool("web-search") {
				opts = append(opts, session.WithWebSearch())
			}
			orchestrator.Submit(query, opts...)

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/tsubakihara/companion-core/clients/tui"
)

// NewChatCommand returns the interactive chat subcommand.
func NewChatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Launch the interactive companion TUI",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			orchestrator, err := newOrchestrator(cmd)
			if err != nil {
				return err
			}
			return tui.Run(ctx, orchestrator)
		},
	}
}

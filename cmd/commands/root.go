package commands

import (
	"fmt"

	"github.com/urfave/cli/v3"

	session "github.com/tsubakihara/companion-core/core"
	"github.com/tsubakihara/companion-core/core/chat"
	"github.com/tsubakihara/companion-core/core/chat/localserver"
	"github.com/tsubakihara/companion-core/core/chat/socketserver"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "companion",
		Usage: "Conversational session core for an on-screen companion",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gateway",
				Usage: "Conversation gateway URL",
			},
			&cli.StringFlag{
				Name:  "transport",
				Usage: "Gateway transport: http or ws",
				Value: "http",
			},
			&cli.StringFlag{
				Name:    "language",
				Aliases: []string{"l"},
				Usage:   "Reply language code (ja, ko, en)",
				Value:   "en",
			},
		},
		Commands: []*cli.Command{
			NewChatCommand(),
			NewAskCommand(),
		},
	}
}

func newService(cmd *cli.Command) (chat.Service, error) {
	gateway := cmd.String("gateway")
	switch cmd.String("transport") {
	case "http":
		return localserver.NewClient(gateway), nil
	case "ws":
		return socketserver.NewClient(gateway), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cmd.String("transport"))
	}
}

func newOrchestrator(cmd *cli.Command) (*session.Orchestrator, error) {
	service, err := newService(cmd)
	if err != nil {
		return nil, err
	}

	return session.NewOrchestrator(
		session.WithConversationService(service),
		session.WithLanguageCode(cmd.String("language")),
	), nil
}

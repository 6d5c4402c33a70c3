package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	session "github.com/tsubakihara/companion-core/core"
	"github.com/tsubakihara/companion-core/core/chat"
)

// Run wires the orchestrator's callbacks into a bubbletea program and
// blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, orchestrator *session.Orchestrator) error {
	program := tea.NewProgram(
		NewModel(orchestrator),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	orchestrator.Orchestrate(ctx,
		session.WithChunkCallback(func(speaker chat.ParticipantID, sentence string, sequence int) {
			program.Send(ChunkMsg{Speaker: speaker, Sentence: sentence, Sequence: sequence})
		}),
		session.WithCompletionCallback(func(result chat.Result) {
			program.Send(CompleteMsg{Result: result})
		}),
		session.WithFailureCallback(func(reason string) {
			program.Send(FailureMsg{Reason: reason})
		}),
		session.WithTurnStartedCallback(func(index int) {
			program.Send(TurnStartedMsg{Index: index})
		}),
		session.WithCancellationCallback(func() {
			program.Send(CancelledMsg{})
		}),
		session.WithModeChangedCallback(func(from, to session.Mode) {
			program.Send(ModeChangedMsg{From: from, To: to})
		}),
		session.WithFlagChangedCallback(func(flag session.Flag, value bool) {
			program.Send(FlagChangedMsg{Flag: flag, Value: value})
		}),
	)
	defer orchestrator.Close()

	_, err := program.Run()
	return err
}

package tui

import (
	session "github.com/tsubakihara/companion-core/core"
	"github.com/tsubakihara/companion-core/core/chat"
)

// ChunkMsg carries one streamed answer sentence.
type ChunkMsg struct {
	Speaker  chat.ParticipantID
	Sentence string
	Sequence int
}

// CompleteMsg carries the terminal result of a turn.
type CompleteMsg struct {
	Result chat.Result
}

// FailureMsg carries the reason a turn failed.
type FailureMsg struct {
	Reason string
}

// TurnStartedMsg signals that a submission obtained a turn index.
type TurnStartedMsg struct {
	Index int
}

// CancelledMsg signals an explicit turn cancellation.
type CancelledMsg struct{}

// ModeChangedMsg signals a committed mode transition.
type ModeChangedMsg struct {
	From session.Mode
	To   session.Mode
}

// FlagChangedMsg signals a committed interaction flag change.
type FlagChangedMsg struct {
	Flag  session.Flag
	Value bool
}

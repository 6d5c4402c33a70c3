package chat

// ParticipantID is the stable key of a conversation participant,
// e.g. "sensei" or "arona".
type ParticipantID string

const (
	// AutoSpeaker lets the gateway (or a local heuristic) pick the
	// responding speaker.
	AutoSpeaker ParticipantID = "auto"
	// AllListeners addresses every participant in the roster.
	AllListeners ParticipantID = "all"
	// NoSpeaker marks the absence of a participant, e.g. no follow-up
	// speaker after a completed turn.
	NoSpeaker ParticipantID = ""
)

type ParticipantKind string

const (
	ParticipantKindHuman ParticipantKind = "human"
	ParticipantKindAI    ParticipantKind = "ai"
)

// Participant is one member of the conversation roster. Participants are
// immutable for the lifetime of a conversation round; rosters are rebuilt
// on mode changes, never edited in place.
type Participant struct {
	ID          ParticipantID
	Kind        ParticipantKind
	DisplayName string

	// PromptProfileRef is an opaque handle to an external prompt source
	// resolved by the gateway, never dereferenced by the core.
	PromptProfileRef string
}

// HistoryEntry is a single prior utterance passed along with a request.
type HistoryEntry struct {
	Speaker ParticipantID
	Message string
}

package chat

// Request carries everything the gateway needs to answer one submitted
// turn. It is constructed fresh per submission and never mutated after
// dispatch; a regenerated turn produces a new request with the same
// TurnIndex and a bumped RegenerateCount.
type Request struct {
	Query string

	// CurrentSpeaker is the participant that produced the query
	// (the human, except for scheduled MultiParty follow-ups).
	CurrentSpeaker ParticipantID
	// TargetSpeaker is the participant expected to answer, or
	// [AutoSpeaker] to let the gateway resolve it.
	TargetSpeaker ParticipantID
	// TargetListener is the participant being addressed, or
	// [AllListeners].
	TargetListener ParticipantID

	Participants []Participant
	History      []HistoryEntry

	// LanguageCode selects which reply variant becomes the display
	// sentence, e.g. "ko", "ja", "en".
	LanguageCode string

	TurnIndex       int
	RegenerateCount int
	ForceWebSearch  bool

	Guidelines []string
	Situation  map[string]string
}

// Chunk is one incremental sentence of a streamed answer.
type Chunk struct {
	Speaker  ParticipantID
	Sentence string
	// Sequence is assigned by the gateway in production order and is
	// non-decreasing within a stream. Empty-sentence chunks are valid
	// keep-alives.
	Sequence int

	// Variants holds per-language renditions of the sentence keyed by
	// language code, when the gateway produces them.
	Variants map[string]string
}

// Result is the terminal outcome of a stream, produced exactly once per
// completed or failed turn and immutable afterwards.
type Result struct {
	Sentences         []string
	RespondingSpeaker ParticipantID
	// NextSpeaker names the participant that should take the next
	// automatic turn in a round-table, or [NoSpeaker].
	NextSpeaker ParticipantID

	Succeeded     bool
	FailureReason string
}

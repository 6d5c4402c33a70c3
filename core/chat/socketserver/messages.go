package socketserver

import "github.com/tsubakihara/companion-core/core/chat"

type participant struct {
	ID               string `json:"id"`
	Kind             string `json:"kind"`
	DisplayName      string `json:"display_name"`
	PromptProfileRef string `json:"prompt_profile_ref,omitempty"`
}

type historyEntry struct {
	Speaker string `json:"speaker"`
	Message string `json:"message"`
}

// openMsg is the first frame of a conversation exchange; everything the
// gateway needs arrives up front, the socket then only carries answers.
type openMsg struct {
	Type           string            `json:"type"`
	Query          string            `json:"query"`
	CurrentSpeaker string            `json:"current_speaker"`
	TargetSpeaker  string            `json:"target_speaker"`
	TargetListener string            `json:"target_listener"`
	Participants   []participant     `json:"participants"`
	History        []historyEntry    `json:"history"`
	LanguageCode   string            `json:"language_code"`
	ChatIdx        int               `json:"chat_idx"`
	RegenerateIdx  int               `json:"regenerate_idx"`
	WebSearch      bool              `json:"web_search"`
	Guidelines     []string          `json:"guidelines,omitempty"`
	Situation      map[string]string `json:"situation,omitempty"`
}

func toOpenMsg(req chat.Request) openMsg {
	participants := make([]participant, 0, len(req.Participants))
	for _, p := range req.Participants {
		participants = append(participants, participant{
			ID:               string(p.ID),
			Kind:             string(p.Kind),
			DisplayName:      p.DisplayName,
			PromptProfileRef: p.PromptProfileRef,
		})
	}

	history := make([]historyEntry, 0, len(req.History))
	for _, h := range req.History {
		history = append(history, historyEntry{
			Speaker: string(h.Speaker),
			Message: h.Message,
		})
	}

	return openMsg{
		Type:           "open",
		Query:          req.Query,
		CurrentSpeaker: string(req.CurrentSpeaker),
		TargetSpeaker:  string(req.TargetSpeaker),
		TargetListener: string(req.TargetListener),
		Participants:   participants,
		History:        history,
		LanguageCode:   req.LanguageCode,
		ChatIdx:        req.TurnIndex,
		RegenerateIdx:  req.RegenerateCount,
		WebSearch:      req.ForceWebSearch,
		Guidelines:     req.Guidelines,
		Situation:      req.Situation,
	}
}

// serverMsg is one frame from the gateway. Type discriminates: "chunk"
// carries a sentence, "keep_alive" carries nothing, "final" terminates
// the exchange, "error" aborts it.
type serverMsg struct {
	Type string `json:"type"`

	Speaker     string            `json:"speaker,omitempty"`
	Sentence    string            `json:"sentence,omitempty"`
	Sequence    int               `json:"sequence,omitempty"`
	Variants    map[string]string `json:"variants,omitempty"`
	Sentences   []string          `json:"sentences,omitempty"`
	NextSpeaker string            `json:"next_speaker,omitempty"`
	Error       string            `json:"error,omitempty"`
}

type websocketMessage struct {
	Type string `json:"type"`
}

var (
	cancelMsg = websocketMessage{Type: "cancel"}
	closeMsg  = websocketMessage{Type: "close"}
)

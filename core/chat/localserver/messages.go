package localserver

import (
	"github.com/jinzhu/copier"
	"github.com/tsubakihara/companion-core/core/chat"
)

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

type conversationRequest struct {
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

func toConversationRequest(req chat.Request) conversationRequest {
	var participants []participant
	copier.Copy(&participants, req.Participants)

	var history []historyEntry
	copier.Copy(&history, req.History)

	return conversationRequest{
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

// replyVariant carries the per-language renditions of one streamed
// sentence, the gateway's historical wire shape.
type replyVariant struct {
	AnswerJP string `json:"answer_jp"`
	AnswerKO string `json:"answer_ko"`
	AnswerEN string `json:"answer_en"`
}

func (r replyVariant) variants() map[string]string {
	variants := make(map[string]string, 3)
	if r.AnswerJP != "" {
		variants["ja"] = r.AnswerJP
	}
	if r.AnswerKO != "" {
		variants["ko"] = r.AnswerKO
	}
	if r.AnswerEN != "" {
		variants["en"] = r.AnswerEN
	}
	return variants
}

// sentenceFor picks the display sentence for a language code, falling
// back to any non-empty variant in ja, ko, en order.
func (r replyVariant) sentenceFor(languageCode string) string {
	switch languageCode {
	case "ja":
		if r.AnswerJP != "" {
			return r.AnswerJP
		}
	case "ko":
		if r.AnswerKO != "" {
			return r.AnswerKO
		}
	case "en":
		if r.AnswerEN != "" {
			return r.AnswerEN
		}
	}

	for _, candidate := range []string{r.AnswerJP, r.AnswerKO, r.AnswerEN} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// streamLine is one NDJSON line of a conversation stream. A line with an
// empty reply list and no terminal marker is a keep-alive.
type streamLine struct {
	ReplyList   []replyVariant `json:"reply_list,omitempty"`
	Speaker     string         `json:"speaker,omitempty"`
	NextSpeaker string         `json:"next_speaker,omitempty"`
	Final       bool           `json:"final,omitempty"`
	Error       string         `json:"error,omitempty"`
}

package session

import "github.com/tsubakihara/companion-core/core/chat"

// Display is the collaborator that renders streamed answers. It is called
// from the session's single dispatch goroutine, in production order, and
// must tolerate empty-sentence keep-alive chunks.
type Display interface {
	OnChunk(speaker chat.ParticipantID, sentence string, sequence int)
	OnComplete(result chat.Result)
	OnFailure(reason string)
}

type noopDisplay struct{}

func (noopDisplay) OnChunk(chat.ParticipantID, string, int) {}
func (noopDisplay) OnComplete(chat.Result)                  {}
func (noopDisplay) OnFailure(string)                        {}

// callbackDisplay adapts per-call callbacks into a Display, used when the
// caller configures callbacks instead of a full collaborator.
type callbackDisplay struct {
	onChunk    func(speaker chat.ParticipantID, sentence string, sequence int)
	onComplete func(result chat.Result)
	onFailure  func(reason string)
}

func (d callbackDisplay) OnChunk(speaker chat.ParticipantID, sentence string, sequence int) {
	if d.onChunk != nil {
		d.onChunk(speaker, sentence, sequence)
	}
}

func (d callbackDisplay) OnComplete(result chat.Result) {
	if d.onComplete != nil {
		d.onComplete(result)
	}
}

func (d callbackDisplay) OnFailure(reason string) {
	if d.onFailure != nil {
		d.onFailure(reason)
	}
}

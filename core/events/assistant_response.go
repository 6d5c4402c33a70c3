package events

const (
	KindResponseSegment Kind = "assistant_response.segment"
	KindResponseFinal   Kind = "assistant_response.final"
)

type ResponseSegment struct {
	Base
	TurnIndex int
	Speaker   string
	Sentence  string
	Sequence  int
}

func NewResponseSegment(turnIndex int, speaker, sentence string, sequence int) ResponseSegment {
	return ResponseSegment{
		Base:      NewBase(KindResponseSegment),
		TurnIndex: turnIndex,
		Speaker:   speaker,
		Sentence:  sentence,
		Sequence:  sequence,
	}
}

type ResponseFinal struct {
	Base
	TurnIndex int
	Speaker   string
	Sentences []string
}

func NewResponseFinal(turnIndex int, speaker string, sentences []string) ResponseFinal {
	return ResponseFinal{
		Base:      NewBase(KindResponseFinal),
		TurnIndex: turnIndex,
		Speaker:   speaker,
		Sentences: sentences,
	}
}

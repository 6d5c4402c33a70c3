package events

const (
	KindTurnStarted    Kind = "turn_state.started"
	KindTurnCompleted  Kind = "turn_state.completed"
	KindTurnFailed     Kind = "turn_state.failed"
	KindTurnCancelled  Kind = "turn_state.cancelled"
	KindTurnSuperseded Kind = "turn_state.superseded"
)

type TurnStarted struct {
	Base
	TurnIndex       int
	RegenerateCount int
}

func NewTurnStarted(turnIndex, regenerateCount int) TurnStarted {
	return TurnStarted{
		Base:            NewBase(KindTurnStarted),
		TurnIndex:       turnIndex,
		RegenerateCount: regenerateCount,
	}
}

type TurnCompleted struct {
	Base
	TurnIndex int
}

func NewTurnCompleted(turnIndex int) TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted), TurnIndex: turnIndex}
}

type TurnFailed struct {
	Base
	TurnIndex int
	Reason    string
}

func NewTurnFailed(turnIndex int, reason string) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed), TurnIndex: turnIndex, Reason: reason}
}

type TurnCancelled struct {
	Base
	TurnIndex int
}

func NewTurnCancelled(turnIndex int) TurnCancelled {
	return TurnCancelled{Base: NewBase(KindTurnCancelled), TurnIndex: turnIndex}
}

type TurnSuperseded struct {
	Base
	TurnIndex int
	// ByIndex is the newer turn that took currency.
	ByIndex int
}

func NewTurnSuperseded(turnIndex, byIndex int) TurnSuperseded {
	return TurnSuperseded{Base: NewBase(KindTurnSuperseded), TurnIndex: turnIndex, ByIndex: byIndex}
}

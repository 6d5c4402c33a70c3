package events

const KindModeChanged Kind = "mode.changed"

type ModeChanged struct {
	Base
	From string
	To   string
}

func NewModeChanged(from, to string) ModeChanged {
	return ModeChanged{Base: NewBase(KindModeChanged), From: from, To: to}
}

package events

const KindFlagChanged Kind = "interaction.flag_changed"

type FlagChanged struct {
	Base
	Flag  string
	Value bool
}

func NewFlagChanged(flag string, value bool) FlagChanged {
	return FlagChanged{Base: NewBase(KindFlagChanged), Flag: flag, Value: value}
}

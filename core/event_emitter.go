package session

import "github.com/tsubakihara/companion-core/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts OrchestrateOptions) eventEmitter {
	return func(event events.Event) {
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.TurnStarted:
			if opts.onTurnStarted != nil {
				opts.onTurnStarted(typedEvent.TurnIndex)
			}
		case events.TurnCancelled:
			if opts.onCancellation != nil {
				opts.onCancellation()
			}
		case events.ModeChanged:
			if opts.onModeChanged != nil {
				opts.onModeChanged(Mode(typedEvent.From), Mode(typedEvent.To))
			}
		case events.FlagChanged:
			if opts.onFlagChanged != nil {
				opts.onFlagChanged(Flag(typedEvent.Flag), typedEvent.Value)
			}
		}
	}
}

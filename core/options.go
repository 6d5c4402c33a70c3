package session

import (
	"time"

	"github.com/tsubakihara/companion-core/core/chat"
	"github.com/tsubakihara/companion-core/core/events"
)

type OrchestratorOption func(*Orchestrator)

// WithConversationService sets the remote gateway the orchestrator opens
// streams against.
func WithConversationService(service chat.Service) OrchestratorOption {
	return func(o *Orchestrator) { o.service = service }
}

// WithDisplay sets the display collaborator. When absent, the per-call
// callbacks passed to [Orchestrator.Orchestrate] are used instead.
func WithDisplay(display Display) OrchestratorOption {
	return func(o *Orchestrator) {
		if display == nil {
			o.display = noopDisplay{}
			return
		}
		o.display = display
	}
}

// WithTurnCounter injects a caller-constructed turn counter.
func WithTurnCounter(counter *TurnCounter) OrchestratorOption {
	return func(o *Orchestrator) { o.counter = counter }
}

// WithModeController injects a caller-constructed mode controller.
func WithModeController(modes *ModeController) OrchestratorOption {
	return func(o *Orchestrator) { o.modes = modes }
}

// WithRegistry injects a caller-constructed participant registry.
func WithRegistry(registry *Registry) OrchestratorOption {
	return func(o *Orchestrator) { o.registry = registry }
}

// WithInteractionGuard injects a caller-constructed interaction guard.
func WithInteractionGuard(guard *InteractionGuard) OrchestratorOption {
	return func(o *Orchestrator) { o.guard = guard }
}

// WithHistoryLimit bounds the conversation history window shipped with
// each request.
func WithHistoryLimit(limit int) OrchestratorOption {
	return func(o *Orchestrator) { o.history = newHistoryWindow(limit) }
}

// WithLanguageCode selects which reply variant the gateway should surface
// as the display sentence.
func WithLanguageCode(code string) OrchestratorOption {
	return func(o *Orchestrator) { o.languageCode = code }
}

// WithGuidelines attaches user guidelines to every request.
func WithGuidelines(guidelines ...string) OrchestratorOption {
	return func(o *Orchestrator) { o.guidelines = guidelines }
}

// WithSituation attaches situational context to every request.
func WithSituation(situation map[string]string) OrchestratorOption {
	return func(o *Orchestrator) { o.situation = situation }
}

// WithAnswerHoldDuration sets how long the answer flag stays up after a
// completed turn before auto-hiding. Zero disables the auto-hide.
func WithAnswerHoldDuration(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.answerHold = d }
}

type submitOptions struct {
	forceWebSearch bool
}

type SubmitOption func(*submitOptions)

// WithWebSearch forces the gateway to ground the answer with a web search.
func WithWebSearch() SubmitOption {
	return func(s *submitOptions) { s.forceWebSearch = true }
}

type OrchestrateOptions struct {
	onChunk        func(speaker chat.ParticipantID, sentence string, sequence int)
	onComplete     func(result chat.Result)
	onFailure      func(reason string)
	onTurnStarted  func(index int)
	onCancellation func()
	onModeChanged  func(from, to Mode)
	onFlagChanged  func(flag Flag, value bool)
	onEvent        func(events.Event)
}

type OrchestrateOption func(*OrchestrateOptions)

// WithChunkCallback registers a callback for each forwarded answer
// sentence, used when no [Display] collaborator is configured.
func WithChunkCallback(callback func(speaker chat.ParticipantID, sentence string, sequence int)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onChunk = callback }
}

// WithCompletionCallback registers a callback for each forwarded result,
// used when no [Display] collaborator is configured.
func WithCompletionCallback(callback func(result chat.Result)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onComplete = callback }
}

// WithFailureCallback registers a callback for forwarded failure
// notifications, used when no [Display] collaborator is configured.
func WithFailureCallback(callback func(reason string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onFailure = callback }
}

// WithTurnStartedCallback registers a callback fired when a submission
// obtains a turn index.
func WithTurnStartedCallback(callback func(index int)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onTurnStarted = callback }
}

// WithCancellationCallback registers a callback fired on explicit turn
// cancellation.
func WithCancellationCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onCancellation = callback }
}

// WithModeChangedCallback registers a callback fired after a mode
// transition commits.
func WithModeChangedCallback(callback func(from, to Mode)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onModeChanged = callback }
}

// WithFlagChangedCallback registers a callback fired after each committed
// interaction flag change.
func WithFlagChangedCallback(callback func(flag Flag, value bool)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onFlagChanged = callback }
}

// WithEventHandler registers a handler observing every emitted session
// event, in addition to the per-kind callbacks.
func WithEventHandler(handler func(events.Event)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onEvent = handler }
}

package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tsubakihara/companion-core/core/chat"
	"github.com/tsubakihara/companion-core/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultAnswerHold = 30 * time.Second

// Orchestrator turns submitted queries into dispatched gateway requests,
// consumes the streamed answers and hands validated output to the display
// collaborator. Chunks and results that lost currency to a newer
// submission are dropped, never forwarded.
type Orchestrator struct {
	counter  *TurnCounter
	modes    *ModeController
	registry *Registry
	guard    *InteractionGuard
	history  *historyWindow

	service chat.Service
	display Display

	runtime *sessionRuntime
	emit    eventEmitter

	baseContext context.Context
	closeOnce   sync.Once

	languageCode string
	guidelines   []string
	situation    map[string]string
	// answerHold is how long the answer flag stays up after a completed
	// turn before auto-hiding.
	answerHold time.Duration

	orchestrateOptions OrchestrateOptions

	mu           sync.Mutex
	activeStream *activeStream
	lastQuery    string

	shownTurnIndex atomic.Int64
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		runtime:     newSessionRuntime(),
		emit:        noopEventEmitter,
		display:     noopDisplay{},
		baseContext: context.Background(),
		answerHold:  defaultAnswerHold,
	}
	o.shownTurnIndex.Store(NoSuccessIndex)

	for _, opt := range opts {
		opt(o)
	}

	if o.counter == nil {
		o.counter = NewTurnCounter()
	}
	if o.modes == nil {
		o.modes = NewModeController()
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if o.guard == nil {
		o.guard = NewInteractionGuard()
	}
	if o.history == nil {
		o.history = newHistoryWindow(defaultHistoryLimit)
	}

	o.modes.observe(func(from, to Mode) {
		o.registry.BuildRoster(to)
		o.emit(events.NewModeChanged(from.String(), to.String()))
	})
	o.guard.Subscribe(func(flag Flag, value bool) {
		o.emit(events.NewFlagChanged(string(flag), value))
	})

	return o
}

// Orchestrate starts the dispatch loop and wires run-time callbacks.
// ctx bounds every stream opened afterwards; cancelling it closes the
// orchestrator.
//
// Contract: call Orchestrate at most once per orchestrator instance,
// before the first submission.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) {
	if o.runtime.isClosed() {
		logger.Warn("orchestrator already closed, skipping Orchestrate")
		return
	}

	o.orchestrateOptions = OrchestrateOptions{}
	for _, opt := range opts {
		opt(&o.orchestrateOptions)
	}

	o.baseContext = ctx
	o.emit = newCallbackEventEmitter(o.orchestrateOptions)
	if _, isNoop := o.display.(noopDisplay); isNoop {
		o.display = callbackDisplay{
			onChunk:    o.orchestrateOptions.onChunk,
			onComplete: o.orchestrateOptions.onComplete,
			onFailure:  o.orchestrateOptions.onFailure,
		}
	}

	if started := o.runtime.start(); started {
		go func() {
			<-ctx.Done()
			o.Close()
		}()
	}
}

// Close cancels any in-flight stream and stops the dispatch loop. It is
// safe to call more than once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		stream := o.activeStream
		o.mu.Unlock()

		if stream != nil {
			stream.cancel()
			go stream.closeTransport()
		}

		o.runtime.end()
		o.runtime.waitUntilEnded()
	})
}

// Submit stamps query with a fresh turn index, supersedes any in-flight
// stream and dispatches a new gateway request. Control returns as soon as
// the stream task is started; output arrives through the display
// collaborator.
func (o *Orchestrator) Submit(query string, opts ...SubmitOption) Turn {
	options := submitOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	o.mu.Lock()
	turn := o.counter.NewTurn(options.forceWebSearch)
	o.supersedeLocked(turn.Index)
	o.lastQuery = query
	o.startStreamLocked(turn, query)
	o.mu.Unlock()

	return turn
}

// Counter exposes the turn counter, the staleness oracle shared with
// collaborators.
func (o *Orchestrator) Counter() *TurnCounter { return o.counter }

// Modes exposes the mode controller.
func (o *Orchestrator) Modes() *ModeController { return o.modes }

// Participants exposes the participant registry.
func (o *Orchestrator) Participants() *Registry { return o.registry }

// Flags exposes the interaction guard.
func (o *Orchestrator) Flags() *InteractionGuard { return o.guard }

// History returns a copy of the bounded conversation history.
func (o *Orchestrator) History() []chat.HistoryEntry { return o.history.Window() }

// ShownTurnIndex reports which turn's answer the display currently shows,
// or [NoSuccessIndex] when nothing has been forwarded yet.
func (o *Orchestrator) ShownTurnIndex() int { return int(o.shownTurnIndex.Load()) }

// supersedeLocked retires the in-flight stream, if any: its output stops
// being forwarded the moment the counter moved on, and its transport is
// closed in the background so rapid resubmission cannot leak connections.
func (o *Orchestrator) supersedeLocked(byIndex int) {
	prev := o.activeStream
	if prev == nil {
		return
	}

	prev.cancel()
	go prev.closeTransport()

	if prev.turn.Index != byIndex {
		o.dispatchEmit(events.NewTurnSuperseded(prev.turn.Index, byIndex))
	}
}

func (o *Orchestrator) startStreamLocked(turn Turn, query string) {
	req := o.buildRequest(turn, query)

	ctx, cancel := context.WithCancel(o.baseContext)
	stream := &activeStream{turn: turn, cancel: cancel}
	o.activeStream = stream

	o.dispatchEmit(events.NewTurnStarted(turn.Index, turn.RegenerateCount))

	go o.consumeStream(ctx, stream, req, query)
}

func (o *Orchestrator) buildRequest(turn Turn, query string) chat.Request {
	roster := o.registry.Roster()
	human := o.registry.Human()

	targetSpeaker := chat.AutoSpeaker
	targetListener := chat.AllListeners
	switch o.modes.Current() {
	case ModeMultiParty:
		// Resolved by the gateway or a last-speaker heuristic.
	default:
		// Chat and operator rosters hold exactly one AI participant.
		for _, p := range roster {
			if p.Kind == chat.ParticipantKindAI {
				targetSpeaker = p.ID
				break
			}
		}
		targetListener = human.ID
	}

	return chat.Request{
		Query:           query,
		CurrentSpeaker:  human.ID,
		TargetSpeaker:   targetSpeaker,
		TargetListener:  targetListener,
		Participants:    roster,
		History:         o.history.Window(),
		LanguageCode:    o.languageCode,
		TurnIndex:       turn.Index,
		RegenerateCount: turn.RegenerateCount,
		ForceWebSearch:  turn.ForceWebSearch,
		Guidelines:      o.guidelines,
		Situation:       o.situation,
	}
}

func (o *Orchestrator) consumeStream(ctx context.Context, stream *activeStream, req chat.Request, query string) {
	ctx, span := tracer.Start(ctx, "process turn")
	defer span.End()
	span.SetAttributes(
		attribute.Int("turn.index", stream.turn.Index),
		attribute.Int("turn.regenerate_count", stream.turn.RegenerateCount),
		attribute.String("turn.mode", o.modes.Current().String()),
	)

	if o.service == nil {
		o.deliverFailure(stream, "no conversation service configured")
		return
	}

	transport, err := o.service.OpenStream(ctx, req)
	if err != nil {
		err = fmt.Errorf("failed to open conversation stream: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.deliverFailure(stream, err.Error())
		return
	}
	stream.setTransport(transport)

	lastSequence := -1
	for chunk, err := range transport.Chunks(ctx) {
		if err != nil {
			err = fmt.Errorf("conversation stream failed: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.deliverFailure(stream, err.Error())
			_ = transport.Close()
			return
		}

		if chunk.Sequence < lastSequence {
			logger.Warn("gateway produced a regressive sequence number",
				"turn_index", stream.turn.Index,
				"sequence", chunk.Sequence, "last_sequence", lastSequence)
		}
		lastSequence = chunk.Sequence

		o.deliverChunk(stream, chunk)
	}

	result, err := transport.Result()
	if err != nil {
		err = fmt.Errorf("conversation stream ended without a result: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.deliverFailure(stream, err.Error())
		return
	}
	if !result.Succeeded {
		o.deliverFailure(stream, result.FailureReason)
		return
	}

	o.deliverCompletion(stream, *result, query)
}

func (o *Orchestrator) deliverChunk(stream *activeStream, chunk chat.Chunk) {
	o.runtime.dispatch("chunk delivery", func() {
		stream.mu.Lock()
		defer stream.mu.Unlock()

		if !o.attemptLive(stream) {
			logger.Debug("dropping stale chunk",
				"turn_index", stream.turn.Index, "sequence", chunk.Sequence)
			return
		}

		o.shownTurnIndex.Store(int64(stream.turn.Index))
		o.guard.Set(FlagAnswering, true)
		o.display.OnChunk(chunk.Speaker, chunk.Sentence, chunk.Sequence)
		o.emit(events.NewResponseSegment(stream.turn.Index, string(chunk.Speaker), chunk.Sentence, chunk.Sequence))
	})
}

func (o *Orchestrator) deliverCompletion(stream *activeStream, result chat.Result, query string) {
	o.runtime.dispatch("turn completion", func() {
		stream.mu.Lock()
		defer stream.mu.Unlock()

		if !o.attemptLive(stream) {
			logger.Debug("dropping stale result", "turn_index", stream.turn.Index)
			return
		}

		o.counter.MarkSucceeded(stream.turn.Index)

		o.history.Push(chat.HistoryEntry{Speaker: o.registry.Human().ID, Message: query})
		if len(result.Sentences) > 0 {
			o.history.Push(chat.HistoryEntry{
				Speaker: result.RespondingSpeaker,
				Message: strings.Join(result.Sentences, " "),
			})
		}

		o.display.OnComplete(result)
		o.emit(events.NewResponseFinal(stream.turn.Index, string(result.RespondingSpeaker), result.Sentences))
		o.emit(events.NewTurnCompleted(stream.turn.Index))

		if o.answerHold > 0 {
			o.guard.SetFor(FlagAnswering, o.answerHold)
		}

		if o.modes.IsMultiParty() && result.NextSpeaker != chat.NoSpeaker {
			if collaborator := o.modes.multiPartyCollaborator(); collaborator != nil {
				collaborator.ScheduleNextTurn(result)
			}
		}
	})
}

func (o *Orchestrator) deliverFailure(stream *activeStream, reason string) {
	o.runtime.dispatch("turn failure", func() {
		stream.mu.Lock()
		defer stream.mu.Unlock()

		if !o.attemptLive(stream) {
			logger.Debug("dropping stale failure",
				"turn_index", stream.turn.Index, "reason", reason)
			return
		}

		o.guard.Set(FlagAnswering, false)
		o.display.OnFailure(reason)
		o.emit(events.NewTurnFailed(stream.turn.Index, reason))
	})
}

// attemptLive reports whether stream's output may still be forwarded.
// Callers must hold stream.mu.
func (o *Orchestrator) attemptLive(stream *activeStream) bool {
	return !stream.cancelled &&
		o.counter.isCurrentAttempt(stream.turn.Index, stream.turn.RegenerateCount)
}

func (o *Orchestrator) dispatchEmit(event events.Event) {
	o.runtime.dispatch("event emission", func() { o.emit(event) })
}

// activeStream tracks one dispatched turn's transport and cancellation
// state. mu linearizes forwarding decisions against explicit cancellation.
type activeStream struct {
	turn   Turn
	cancel context.CancelFunc

	mu        sync.Mutex
	transport chat.Stream
	cancelled bool
}

func (s *activeStream) setTransport(transport chat.Stream) {
	s.mu.Lock()
	s.transport = transport
	cancelled := s.cancelled
	s.mu.Unlock()

	if cancelled {
		_ = transport.Close()
	}
}

func (s *activeStream) closeTransport() {
	s.mu.Lock()
	transport := s.transport
	s.mu.Unlock()

	if transport != nil {
		if err := transport.Close(); err != nil {
			logger.Debug("failed to close superseded transport",
				"turn_index", s.turn.Index, "error", err)
		}
	}
}

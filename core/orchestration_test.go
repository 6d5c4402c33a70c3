package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tsubakihara/companion-core/core/chat"
)

// scriptedStream plays back a canned answer. An optional script hook takes
// over chunk production entirely for tests that need mid-stream control.
type scriptedStream struct {
	chunks []chat.Chunk
	result *chat.Result
	err    error

	script func(ctx context.Context, yield func(chat.Chunk, error) bool)

	closeCalls atomic.Int32
}

func (s *scriptedStream) Chunks(ctx context.Context) func(func(chat.Chunk, error) bool) {
	return func(yield func(chat.Chunk, error) bool) {
		if s.script != nil {
			s.script(ctx, yield)
			return
		}
		for _, chunk := range s.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if s.err != nil {
			yield(chat.Chunk{}, s.err)
		}
	}
}

func (s *scriptedStream) Result() (*chat.Result, error) {
	if s.result == nil {
		return nil, fmt.Errorf("no result scripted")
	}
	return s.result, nil
}

func (s *scriptedStream) Close() error {
	s.closeCalls.Add(1)
	return nil
}

// scriptedService hands out one scripted stream per OpenStream call, in
// order, and records the requests it saw.
type scriptedService struct {
	mu       sync.Mutex
	streams  []*scriptedStream
	requests []chat.Request
}

func (s *scriptedService) OpenStream(_ context.Context, req chat.Request) (chat.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if len(s.streams) == 0 {
		return nil, fmt.Errorf("no stream scripted for request %d", len(s.requests))
	}
	stream := s.streams[0]
	s.streams = s.streams[1:]
	return stream, nil
}

func (s *scriptedService) recordedRequests() []chat.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests := make([]chat.Request, len(s.requests))
	copy(requests, s.requests)
	return requests
}

func answerStream(sentences ...string) *scriptedStream {
	chunks := make([]chat.Chunk, len(sentences))
	for i, sentence := range sentences {
		chunks[i] = chat.Chunk{Speaker: "arona", Sentence: sentence, Sequence: i}
	}
	return &scriptedStream{
		chunks: chunks,
		result: &chat.Result{
			Sentences:         sentences,
			RespondingSpeaker: "arona",
			Succeeded:         true,
		},
	}
}

func TestSubmitForwardsChunksAndResult(t *testing.T) {
	service := &scriptedService{streams: []*scriptedStream{
		answerStream("Hello, Sensei!", "How was your day?"),
	}}
	o := NewOrchestrator(WithConversationService(service))
	defer o.Close()

	sentences := make(chan string, 8)
	completed := make(chan chat.Result, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.Orchestrate(ctx,
		WithChunkCallback(func(_ chat.ParticipantID, sentence string, _ int) {
			sentences <- sentence
		}),
		WithCompletionCallback(func(result chat.Result) {
			completed <- result
		}),
	)

	turn := o.Submit("Good morning")

	select {
	case result := <-completed:
		if len(result.Sentences) != 2 {
			t.Fatalf("expected 2 sentences in the result, got %d", len(result.Sentences))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for completion")
	}

	if got := len(sentences); got != 2 {
		t.Fatalf("expected 2 forwarded chunks, got %d", got)
	}
	if got := o.Counter().LastSucceeded(); got != turn.Index {
		t.Fatalf("expected turn %d marked successful, got %d", turn.Index, got)
	}
	if got := o.ShownTurnIndex(); got != turn.Index {
		t.Fatalf("expected the display to show turn %d, got %d", turn.Index, got)
	}

	history := o.History()
	if len(history) != 2 {
		t.Fatalf("expected the query and the answer in history, got %d entries", len(history))
	}
	if history[0].Message != "Good morning" {
		t.Fatalf("expected the query first in history, got %q", history[0].Message)
	}
	if history[1].Speaker != "arona" {
		t.Fatalf("expected the answer attributed to arona, got %q", history[1].Speaker)
	}
}

func TestFailureAfterChunks(t *testing.T) {
	service := &scriptedService{streams: []*scriptedStream{{
		chunks: []chat.Chunk{
			{Speaker: "arona", Sentence: "Let me think...", Sequence: 0},
			{Speaker: "arona", Sentence: "Actually...", Sequence: 1},
		},
		err: fmt.Errorf("connection reset"),
	}}}
	o := NewOrchestrator(WithConversationService(service))
	defer o.Close()

	chunkCount := atomic.Int32{}
	completions := atomic.Int32{}
	failed := make(chan string, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.Orchestrate(ctx,
		WithChunkCallback(func(chat.ParticipantID, string, int) { chunkCount.Add(1) }),
		WithCompletionCallback(func(chat.Result) { completions.Add(1) }),
		WithFailureCallback(func(reason string) { failed <- reason }),
	)

	turn := o.Submit("Good morning")

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the failure notification")
	}

	time.Sleep(50 * time.Millisecond)
	if got := chunkCount.Load(); got != 2 {
		t.Fatalf("expected the 2 chunks before the failure, got %d", got)
	}
	if got := completions.Load(); got != 0 {
		t.Fatalf("expected no completion after a failure, got %d", got)
	}
	if o.Counter().LastSucceeded() == turn.Index {
		t.Fatal("expected a failed turn to not be marked successful")
	}
	if o.Flags().Get(FlagAnswering) {
		t.Fatal("expected the answering flag cleared after a failure")
	}
}

func TestNoServiceConfigured(t *testing.T) {
	o := NewOrchestrator()
	defer o.Close()

	failed := make(chan string, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.Orchestrate(ctx, WithFailureCallback(func(reason string) { failed <- reason }))

	o.Submit("anyone there?")

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the failure notification")
	}
}

func TestResubmissionSupersedesInFlightTurn(t *testing.T) {
	release := make(chan struct{})
	slow := &scriptedStream{
		script: func(ctx context.Context, yield func(chat.Chunk, error) bool) {
			<-release
			yield(chat.Chunk{Speaker: "arona", Sentence: "stale answer", Sequence: 0}, nil)
		},
		result: &chat.Result{
			Sentences:         []string{"stale answer"},
			RespondingSpeaker: "arona",
			Succeeded:         true,
		},
	}
	service := &scriptedService{streams: []*scriptedStream{
		slow,
		answerStream("fresh answer"),
	}}
	o := NewOrchestrator(WithConversationService(service))
	defer o.Close()

	var mu sync.Mutex
	var forwarded []string
	completed := make(chan struct{}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.Orchestrate(ctx,
		WithChunkCallback(func(_ chat.ParticipantID, sentence string, _ int) {
			mu.Lock()
			forwarded = append(forwarded, sentence)
			mu.Unlock()
		}),
		WithCompletionCallback(func(chat.Result) { completed <- struct{}{} }),
	)

	first := o.Submit("first question")
	second := o.Submit("second question")
	close(release)

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the second turn to complete")
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	for _, sentence := range forwarded {
		if sentence == "stale answer" {
			t.Fatal("expected the superseded turn's output to be dropped")
		}
	}
	if len(forwarded) != 1 || forwarded[0] != "fresh answer" {
		t.Fatalf("expected only the fresh answer, got %v", forwarded)
	}

	if o.Counter().IsCurrent(first.Index) {
		t.Fatal("expected the first turn to be stale")
	}
	if !o.Counter().IsCurrent(second.Index) {
		t.Fatal("expected the second turn to be current")
	}
}

func TestRegenerateWithoutSubmission(t *testing.T) {
	o := NewOrchestrator(WithConversationService(&scriptedService{}))
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Orchestrate(ctx)

	if _, err := o.Regenerate(); !errors.Is(err, ErrNoTurnToRegenerate) {
		t.Fatalf("expected ErrNoTurnToRegenerate, got %v", err)
	}
}

func TestRegenerateRetriesLastQuery(t *testing.T) {
	release := make(chan struct{})
	slow := &scriptedStream{
		script: func(ctx context.Context, yield func(chat.Chunk, error) bool) {
			<-release
			yield(chat.Chunk{Speaker: "arona", Sentence: "first attempt", Sequence: 0}, nil)
		},
		result: &chat.Result{
			Sentences:         []string{"first attempt"},
			RespondingSpeaker: "arona",
			Succeeded:         true,
		},
	}
	service := &scriptedService{streams: []*scriptedStream{
		slow,
		answerStream("second attempt"),
	}}
	o := NewOrchestrator(WithConversationService(service))
	defer o.Close()

	var mu sync.Mutex
	var forwarded []string
	completed := make(chan struct{}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.Orchestrate(ctx,
		WithChunkCallback(func(_ chat.ParticipantID, sentence string, _ int) {
			mu.Lock()
			forwarded = append(forwarded, sentence)
			mu.Unlock()
		}),
		WithCompletionCallback(func(chat.Result) { completed <- struct{}{} }),
	)

	turn := o.Submit("tell me something")
	retry, err := o.Regenerate()
	if err != nil {
		t.Fatalf("expected regeneration to succeed, got %v", err)
	}
	close(release)

	if retry.Index != turn.Index {
		t.Fatalf("expected the retry to keep index %d, got %d", turn.Index, retry.Index)
	}

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the retried turn to complete")
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(forwarded) != 1 || forwarded[0] != "second attempt" {
		t.Fatalf("expected only the retried attempt's output, got %v", forwarded)
	}

	requests := service.recordedRequests()
	if len(requests) != 2 {
		t.Fatalf("expected 2 gateway requests, got %d", len(requests))
	}
	if requests[1].Query != "tell me something" {
		t.Fatalf("expected the retry to reuse the query, got %q", requests[1].Query)
	}
	if requests[1].RegenerateCount != 1 {
		t.Fatalf("expected regenerate count 1 on the retry, got %d", requests[1].RegenerateCount)
	}
}

func TestCancelStopsForwarding(t *testing.T) {
	firstChunk := make(chan struct{}, 1)
	proceed := make(chan struct{})
	stream := &scriptedStream{
		script: func(ctx context.Context, yield func(chat.Chunk, error) bool) {
			if !yield(chat.Chunk{Speaker: "arona", Sentence: "started...", Sequence: 0}, nil) {
				return
			}
			select {
			case firstChunk <- struct{}{}:
			default:
			}
			<-proceed
			yield(chat.Chunk{Speaker: "arona", Sentence: "too late", Sequence: 1}, nil)
		},
		result: &chat.Result{Sentences: []string{"started...", "too late"}, Succeeded: true},
	}
	service := &scriptedService{streams: []*scriptedStream{stream}}
	o := NewOrchestrator(WithConversationService(service))
	defer o.Close()

	var mu sync.Mutex
	var forwarded []string
	cancelled := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.Orchestrate(ctx,
		WithChunkCallback(func(_ chat.ParticipantID, sentence string, _ int) {
			mu.Lock()
			forwarded = append(forwarded, sentence)
			mu.Unlock()
		}),
		WithCancellationCallback(func() { cancelled <- struct{}{} }),
	)

	turn := o.Submit("long story please")

	select {
	case <-firstChunk:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the first chunk")
	}

	o.Cancel(turn.Index)
	close(proceed)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the cancellation notification")
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	for _, sentence := range forwarded {
		if sentence == "too late" {
			t.Fatal("expected no chunks forwarded after cancellation")
		}
	}
	if o.Flags().Get(FlagAnswering) {
		t.Fatal("expected the answering flag cleared after cancellation")
	}
	if stream.closeCalls.Load() == 0 {
		t.Fatal("expected the cancelled transport to be closed")
	}
}

func TestCancelUnknownIndexIsNoop(t *testing.T) {
	o := NewOrchestrator(WithConversationService(&scriptedService{}))
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Orchestrate(ctx)

	o.Cancel(42)
}

type schedulingCollaborator struct {
	scheduled chan chat.Result
}

func (c *schedulingCollaborator) EnterMultiParty() error { return nil }
func (c *schedulingCollaborator) ExitMultiParty() error  { return nil }
func (c *schedulingCollaborator) ScheduleNextTurn(result chat.Result) {
	select {
	case c.scheduled <- result:
	default:
	}
}

func TestMultiPartyCompletionSchedulesNextTurn(t *testing.T) {
	stream := answerStream("I agree with Sensei.")
	stream.result.NextSpeaker = "plana"
	service := &scriptedService{streams: []*scriptedStream{stream}}

	collaborator := &schedulingCollaborator{scheduled: make(chan chat.Result, 1)}
	o := NewOrchestrator(
		WithConversationService(service),
		WithModeController(NewModeController(WithMultiPartyCollaborator(collaborator))),
	)
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Orchestrate(ctx)

	o.Modes().SetMode(ModeMultiParty)
	o.Submit("What do you two think?")

	select {
	case result := <-collaborator.scheduled:
		if result.NextSpeaker != "plana" {
			t.Fatalf("expected plana scheduled next, got %q", result.NextSpeaker)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the next turn to be scheduled")
	}
}

func TestModeChangeRebuildsRosterForRequests(t *testing.T) {
	service := &scriptedService{streams: []*scriptedStream{
		answerStream("chat answer"),
		answerStream("round-table answer"),
	}}
	o := NewOrchestrator(WithConversationService(service))
	defer o.Close()

	completed := make(chan struct{}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Orchestrate(ctx, WithCompletionCallback(func(chat.Result) { completed <- struct{}{} }))

	o.Submit("hello")
	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the chat turn")
	}

	o.Modes().SetMode(ModeMultiParty)
	o.Submit("hello everyone")
	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the round-table turn")
	}

	requests := service.recordedRequests()
	if len(requests) != 2 {
		t.Fatalf("expected 2 gateway requests, got %d", len(requests))
	}

	if requests[0].TargetSpeaker == chat.AutoSpeaker {
		t.Fatal("expected the chat request to target a specific speaker")
	}
	if requests[1].TargetSpeaker != chat.AutoSpeaker {
		t.Fatalf("expected the round-table request to auto-route, got %q", requests[1].TargetSpeaker)
	}
	if len(requests[1].Participants) <= len(requests[0].Participants) {
		t.Fatal("expected the round-table roster to be larger than the chat roster")
	}
}

func TestModeChangedCallback(t *testing.T) {
	o := NewOrchestrator(WithConversationService(&scriptedService{}))
	defer o.Close()

	changed := make(chan Mode, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Orchestrate(ctx, WithModeChangedCallback(func(_, to Mode) { changed <- to }))

	o.Modes().SetMode(ModeOperator)

	select {
	case to := <-changed:
		if to != ModeOperator {
			t.Fatalf("expected a transition to operator, got %q", to)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the mode change callback")
	}
}

func TestWebSearchCarriedIntoRequest(t *testing.T) {
	service := &scriptedService{streams: []*scriptedStream{answerStream("searched answer")}}
	o := NewOrchestrator(WithConversationService(service))
	defer o.Close()

	completed := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Orchestrate(ctx, WithCompletionCallback(func(chat.Result) { completed <- struct{}{} }))

	turn := o.Submit("what's the weather?", WithWebSearch())
	if !turn.ForceWebSearch {
		t.Fatal("expected the turn snapshot to carry the web search request")
	}

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for completion")
	}

	requests := service.recordedRequests()
	if len(requests) != 1 || !requests[0].ForceWebSearch {
		t.Fatal("expected the gateway request to carry the web search flag")
	}
}

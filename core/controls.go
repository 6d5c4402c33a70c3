package session

import (
	"github.com/tsubakihara/companion-core/core/events"
)

// Regenerate re-dispatches the last submitted query under the same turn
// index with a bumped regenerate count, superseding the previous attempt.
// Without a prior submission it reports [ErrNoTurnToRegenerate].
func (o *Orchestrator) Regenerate() (Turn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.lastQuery == "" {
		return Turn{}, ErrNoTurnToRegenerate
	}

	turn, err := o.counter.Regenerate()
	if err != nil {
		return Turn{}, err
	}

	o.supersedeLocked(turn.Index)
	o.startStreamLocked(turn, o.lastQuery)

	return turn, nil
}

// Cancel stops the outstanding stream for the given turn index. Once it
// returns, no further chunk for that index reaches the display
// collaborator; the underlying transport is closed in the background.
// Cancel must not be called from display callbacks.
func (o *Orchestrator) Cancel(index int) {
	o.mu.Lock()
	stream := o.activeStream
	o.mu.Unlock()

	if stream == nil || stream.turn.Index != index {
		return
	}

	stream.mu.Lock()
	alreadyCancelled := stream.cancelled
	stream.cancelled = true
	stream.mu.Unlock()

	if alreadyCancelled {
		return
	}

	stream.cancel()
	go stream.closeTransport()

	o.runtime.dispatch("turn cancellation", func() {
		o.guard.Set(FlagAnswering, false)
		o.emit(events.NewTurnCancelled(index))
	})
}

package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrNoTurnToRegenerate is returned when a regeneration is requested before
// any submission has produced a turn.
var ErrNoTurnToRegenerate = errors.New("no turn to regenerate")

// NoSuccessIndex is reported by [TurnCounter.LastSucceeded] while no turn
// has completed successfully yet.
const NoSuccessIndex = -1

// Turn is a point-in-time snapshot of one submission lifecycle. Index is
// strictly increasing across submissions; RegenerateCount distinguishes
// retries of the same index.
type Turn struct {
	ID              string
	Index           int
	RegenerateCount int
	ForceWebSearch  bool
}

// TurnCounter is the single source of truth for which turn is newest and
// whether a late-arriving result is still relevant. It is pure in-memory
// bookkeeping and cannot fail, only be queried.
type TurnCounter struct {
	mu sync.Mutex

	index           int
	regenerateCount int
	forceWebSearch  bool
	turnID          string
	started         bool

	lastSuccess int
}

func NewTurnCounter() *TurnCounter {
	return &TurnCounter{lastSuccess: NoSuccessIndex}
}

// NewTurn increments the live index, resets the regenerate count and
// returns the new snapshot. Any stream still in flight for the previous
// index is obsolete from this moment on; callers observe that through
// [TurnCounter.IsCurrent].
func (c *TurnCounter) NewTurn(forceWebSearch bool) Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index++
	c.regenerateCount = 0
	c.forceWebSearch = forceWebSearch
	c.turnID = uuid.NewString()
	c.started = true

	return c.snapshotLocked()
}

// Regenerate keeps the live index and bumps the regenerate count, used when
// the user retries the same prompt. Before any submission it reports
// [ErrNoTurnToRegenerate] and leaves the counter untouched.
func (c *TurnCounter) Regenerate() (Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return Turn{}, ErrNoTurnToRegenerate
	}

	c.regenerateCount++
	c.turnID = uuid.NewString()

	return c.snapshotLocked(), nil
}

// MarkSucceeded records the highest index that produced a successful
// result. An out-of-order success for an older turn never overwrites a
// newer success marker.
func (c *TurnCounter) MarkSucceeded(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index > c.lastSuccess {
		c.lastSuccess = index
	}
}

// LastSucceeded reports the highest index marked successful, or
// [NoSuccessIndex].
func (c *TurnCounter) LastSucceeded() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastSuccess
}

// IsCurrent reports whether index equals the live index.
func (c *TurnCounter) IsCurrent(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.started && index == c.index
}

// Current returns the live turn snapshot. The zero Turn is returned before
// the first submission.
func (c *TurnCounter) Current() Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return Turn{}
	}
	return c.snapshotLocked()
}

// isCurrentAttempt narrows IsCurrent to a specific regeneration attempt.
// A regenerated turn keeps its index, so output from the attempt it
// replaced must be told apart by the pair.
func (c *TurnCounter) isCurrentAttempt(index, regenerateCount int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.started && index == c.index && regenerateCount == c.regenerateCount
}

func (c *TurnCounter) snapshotLocked() Turn {
	return Turn{
		ID:              c.turnID,
		Index:           c.index,
		RegenerateCount: c.regenerateCount,
		ForceWebSearch:  c.forceWebSearch,
	}
}

package session

import (
	"sync"
	"time"
)

// Flag names one interaction concern whose visibility is gated by the
// guard.
type Flag string

const (
	// FlagAsking marks the ask balloon listening for a typed question.
	FlagAsking Flag = "asking"
	// FlagAnswering marks the full answer balloon.
	FlagAnswering Flag = "answering"
	// FlagAnsweringPortrait marks the compact portrait answer variant.
	FlagAnsweringPortrait Flag = "answering_portrait"
	// FlagChatting marks an open chat input.
	FlagChatting Flag = "chatting"
	// FlagPicking marks the character being held by the pointer.
	FlagPicking Flag = "picking"
	// FlagDragging marks an in-progress drag.
	FlagDragging Flag = "dragging"
	// FlagListening marks voice input being captured.
	FlagListening Flag = "listening"
	// FlagOptioning marks an open context menu.
	FlagOptioning Flag = "optioning"
)

// Flags enumerates every guard-owned flag in a stable order.
var Flags = []Flag{
	FlagAsking,
	FlagAnswering,
	FlagAnsweringPortrait,
	FlagChatting,
	FlagPicking,
	FlagDragging,
	FlagListening,
	FlagOptioning,
}

type flagChange struct {
	flag  Flag
	value bool
}

type flagTimer struct {
	timer    Timer
	duration time.Duration
	// seq is the flag's write sequence at arming time; the timer only
	// fires through if no explicit write happened since.
	seq uint64
}

// InteractionGuard owns the interaction flags and enforces their mutual
// exclusion rules on every write. Collaborators read flags through the
// guard and never write them directly; all observable work is skipped when
// a write does not change the flag's value.
type InteractionGuard struct {
	mu sync.Mutex

	clock       Clock
	values      map[Flag]bool
	seq         map[Flag]uint64
	timers      map[Flag]*flagTimer
	subscribers []func(Flag, bool)
}

type InteractionGuardOption func(*InteractionGuard)

// WithGuardClock replaces the timer source, used by tests to drive timed
// flags with a fake clock.
func WithGuardClock(clock Clock) InteractionGuardOption {
	return func(g *InteractionGuard) { g.clock = clock }
}

func NewInteractionGuard(opts ...InteractionGuardOption) *InteractionGuard {
	g := &InteractionGuard{
		clock:  systemClock{},
		values: make(map[Flag]bool, len(Flags)),
		seq:    make(map[Flag]uint64, len(Flags)),
		timers: make(map[Flag]*flagTimer),
	}
	for _, flag := range Flags {
		g.values[flag] = false
	}

	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Subscribe registers a read-only observer notified after each committed
// flag change, in write order. Observers must not write flags from the
// callback.
func (g *InteractionGuard) Subscribe(observer func(flag Flag, value bool)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.subscribers = append(g.subscribers, observer)
}

// Set writes a flag, applying the mutual exclusion rules:
//
//   - Picking=true forces Asking, Answering and Chatting false.
//   - Answering and AnsweringPortrait exclude each other; at most one
//     answer display variant is active at a time.
//
// Setting a flag to its current value performs no observable work, except
// that an explicit true restarts a pending duration timer for the flag.
func (g *InteractionGuard) Set(flag Flag, value bool) {
	g.mu.Lock()
	changes := g.setLocked(flag, value, true)
	g.mu.Unlock()

	g.notify(changes)
}

// SetFor sets a flag true and automatically resets it to false after d,
// unless another explicit write happens in between. Last write wins: a
// later explicit false makes the expiry a no-op, a later explicit true
// restarts the timer.
func (g *InteractionGuard) SetFor(flag Flag, d time.Duration) {
	g.mu.Lock()
	changes := g.setLocked(flag, true, true)
	g.armTimerLocked(flag, d)
	g.mu.Unlock()

	g.notify(changes)
}

// Get returns a flag's underlying value.
func (g *InteractionGuard) Get(flag Flag) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.values[flag]
}

// Visible reports whether a flag's concern should currently be shown.
// Dragging suppresses Asking and Chatting visibility without clearing
// their underlying intent, since a drag is transient.
func (g *InteractionGuard) Visible(flag Flag) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.values[FlagDragging] && (flag == FlagAsking || flag == FlagChatting) {
		return false
	}
	return g.values[flag]
}

// IsChatting reports whether any conversational concern is active, the
// composite the rendering layers key idle behavior off.
func (g *InteractionGuard) IsChatting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.values[FlagChatting] || g.values[FlagAsking] ||
		g.values[FlagListening] || g.values[FlagAnswering]
}

// Snapshot returns a copy of every flag's current value.
func (g *InteractionGuard) Snapshot() map[Flag]bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	snapshot := make(map[Flag]bool, len(g.values))
	for flag, value := range g.values {
		snapshot[flag] = value
	}
	return snapshot
}

// setLocked commits a single write plus any forced companion writes and
// returns the changes to notify, in application order.
func (g *InteractionGuard) setLocked(flag Flag, value, explicit bool) []flagChange {
	if explicit {
		g.seq[flag]++
	}

	if g.values[flag] == value {
		if explicit && value {
			g.restartTimerLocked(flag)
		}
		return nil
	}

	g.values[flag] = value
	if !value {
		g.dropTimerLocked(flag)
	}
	changes := []flagChange{{flag: flag, value: value}}

	if value {
		for _, forced := range forcedFalse(flag) {
			g.seq[forced]++
			changes = append(changes, g.setLocked(forced, false, false)...)
		}
	}

	return changes
}

func forcedFalse(flag Flag) []Flag {
	switch flag {
	case FlagPicking:
		return []Flag{FlagAsking, FlagAnswering, FlagChatting}
	case FlagAnswering:
		return []Flag{FlagAnsweringPortrait}
	case FlagAnsweringPortrait:
		return []Flag{FlagAnswering}
	}
	return nil
}

func (g *InteractionGuard) armTimerLocked(flag Flag, d time.Duration) {
	g.dropTimerLocked(flag)

	seq := g.seq[flag]
	g.timers[flag] = &flagTimer{
		timer:    g.clock.AfterFunc(d, func() { g.expire(flag, seq) }),
		duration: d,
		seq:      seq,
	}
}

func (g *InteractionGuard) restartTimerLocked(flag Flag) {
	pending, ok := g.timers[flag]
	if !ok {
		return
	}
	g.armTimerLocked(flag, pending.duration)
}

func (g *InteractionGuard) dropTimerLocked(flag Flag) {
	if pending, ok := g.timers[flag]; ok {
		pending.timer.Stop()
		delete(g.timers, flag)
	}
}

func (g *InteractionGuard) expire(flag Flag, seq uint64) {
	g.mu.Lock()
	pending, ok := g.timers[flag]
	if !ok || pending.seq != seq || g.seq[flag] != seq {
		g.mu.Unlock()
		return
	}
	delete(g.timers, flag)
	changes := g.setLocked(flag, false, false)
	g.mu.Unlock()

	g.notify(changes)
}

func (g *InteractionGuard) notify(changes []flagChange) {
	if len(changes) == 0 {
		return
	}

	g.mu.Lock()
	subscribers := make([]func(Flag, bool), len(g.subscribers))
	copy(subscribers, g.subscribers)
	g.mu.Unlock()

	for _, change := range changes {
		for _, subscriber := range subscribers {
			subscriber(change.flag, change.value)
		}
	}
}

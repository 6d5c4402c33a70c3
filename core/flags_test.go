package session

import (
	"sync"
	"testing"
	"time"
)

// fakeClock collects armed timers and fires them on demand.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	f       func()
	d       time.Duration
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	stopped := t.stopped
	t.stopped = true
	return !stopped
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &fakeTimer{f: f, d: d}
	c.timers = append(c.timers, timer)
	return timer
}

// fireAll runs every armed timer that was not stopped.
func (c *fakeClock) fireAll() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()

	for _, timer := range timers {
		if !timer.stopped {
			timer.f()
		}
	}
}

func TestSetAndGet(t *testing.T) {
	g := NewInteractionGuard()

	g.Set(FlagChatting, true)
	if !g.Get(FlagChatting) {
		t.Fatal("expected chatting to be set")
	}

	g.Set(FlagChatting, false)
	if g.Get(FlagChatting) {
		t.Fatal("expected chatting to be cleared")
	}
}

func TestPickingForcesConversationFlagsFalse(t *testing.T) {
	g := NewInteractionGuard()

	g.Set(FlagAsking, true)
	g.Set(FlagChatting, true)
	g.Set(FlagAnswering, true)

	g.Set(FlagPicking, true)

	for _, flag := range []Flag{FlagAsking, FlagAnswering, FlagChatting} {
		if g.Get(flag) {
			t.Fatalf("expected %q to be forced false while picking", flag)
		}
	}
	if !g.Get(FlagPicking) {
		t.Fatal("expected picking to be set")
	}
}

func TestAnswerVariantsExcludeEachOther(t *testing.T) {
	g := NewInteractionGuard()

	g.Set(FlagAnswering, true)
	g.Set(FlagAnsweringPortrait, true)

	if g.Get(FlagAnswering) {
		t.Fatal("expected the full answer variant to yield to the portrait variant")
	}
	if !g.Get(FlagAnsweringPortrait) {
		t.Fatal("expected the portrait variant to be set")
	}

	g.Set(FlagAnswering, true)
	if g.Get(FlagAnsweringPortrait) {
		t.Fatal("expected the portrait variant to yield to the full variant")
	}
}

func TestRedundantWriteSkipsNotification(t *testing.T) {
	g := NewInteractionGuard()

	notifications := 0
	g.Subscribe(func(Flag, bool) { notifications++ })

	g.Set(FlagChatting, true)
	g.Set(FlagChatting, true)
	g.Set(FlagChatting, false)
	g.Set(FlagChatting, false)

	if notifications != 2 {
		t.Fatalf("expected 2 notifications, got %d", notifications)
	}
}

func TestForcedChangesNotifyInWriteOrder(t *testing.T) {
	g := NewInteractionGuard()

	g.Set(FlagAnswering, true)

	var order []Flag
	g.Subscribe(func(flag Flag, value bool) { order = append(order, flag) })

	g.Set(FlagPicking, true)

	if len(order) != 2 || order[0] != FlagPicking || order[1] != FlagAnswering {
		t.Fatalf("expected picking then answering, got %v", order)
	}
}

func TestDraggingSuppressesVisibilityOnly(t *testing.T) {
	g := NewInteractionGuard()

	g.Set(FlagAsking, true)
	g.Set(FlagChatting, true)
	g.Set(FlagAnswering, true)
	g.Set(FlagDragging, true)

	if g.Visible(FlagAsking) || g.Visible(FlagChatting) {
		t.Fatal("expected asking and chatting hidden while dragging")
	}
	if !g.Visible(FlagAnswering) {
		t.Fatal("expected the answer to stay visible while dragging")
	}
	if !g.Get(FlagAsking) || !g.Get(FlagChatting) {
		t.Fatal("expected the underlying intent to survive the drag")
	}

	g.Set(FlagDragging, false)
	if !g.Visible(FlagAsking) || !g.Visible(FlagChatting) {
		t.Fatal("expected visibility restored after the drag")
	}
}

func TestIsChattingComposite(t *testing.T) {
	g := NewInteractionGuard()

	if g.IsChatting() {
		t.Fatal("expected no conversational activity initially")
	}

	for _, flag := range []Flag{FlagChatting, FlagAsking, FlagListening, FlagAnswering} {
		g.Set(flag, true)
		if !g.IsChatting() {
			t.Fatalf("expected %q to count as conversational activity", flag)
		}
		g.Set(flag, false)
	}

	g.Set(FlagOptioning, true)
	if g.IsChatting() {
		t.Fatal("expected an open menu to not count as conversational activity")
	}
}

func TestSetForExpires(t *testing.T) {
	clock := &fakeClock{}
	g := NewInteractionGuard(WithGuardClock(clock))

	g.SetFor(FlagAnswering, time.Minute)
	if !g.Get(FlagAnswering) {
		t.Fatal("expected the flag set while the timer is pending")
	}

	clock.fireAll()
	if g.Get(FlagAnswering) {
		t.Fatal("expected the flag cleared after expiry")
	}
}

func TestExplicitWriteInvalidatesPendingExpiry(t *testing.T) {
	clock := &fakeClock{}
	g := NewInteractionGuard(WithGuardClock(clock))

	g.SetFor(FlagAnswering, time.Minute)
	g.Set(FlagAnswering, false)
	g.Set(FlagAnswering, true)

	clock.fireAll()
	if !g.Get(FlagAnswering) {
		t.Fatal("expected the stale expiry to be a no-op after explicit writes")
	}
}

func TestExplicitTrueRestartsPendingTimer(t *testing.T) {
	clock := &fakeClock{}
	g := NewInteractionGuard(WithGuardClock(clock))

	g.SetFor(FlagAnswering, time.Minute)
	first := clock.timers[0]

	g.Set(FlagAnswering, true)

	if !first.stopped {
		t.Fatal("expected the original timer to be stopped by the restart")
	}

	clock.fireAll()
	if g.Get(FlagAnswering) {
		t.Fatal("expected the restarted timer to clear the flag on expiry")
	}
}

func TestForcedFalseDropsPendingTimer(t *testing.T) {
	clock := &fakeClock{}
	g := NewInteractionGuard(WithGuardClock(clock))

	g.SetFor(FlagAnswering, time.Minute)
	g.Set(FlagPicking, true)
	g.Set(FlagPicking, false)
	g.Set(FlagAnswering, true)

	clock.fireAll()
	if !g.Get(FlagAnswering) {
		t.Fatal("expected the expiry armed before the pick to be invalidated")
	}
}

func TestSnapshot(t *testing.T) {
	g := NewInteractionGuard()

	g.Set(FlagListening, true)
	snapshot := g.Snapshot()

	if len(snapshot) != len(Flags) {
		t.Fatalf("expected %d flags in the snapshot, got %d", len(Flags), len(snapshot))
	}
	if !snapshot[FlagListening] {
		t.Fatal("expected the snapshot to carry the listening flag")
	}

	snapshot[FlagListening] = false
	if !g.Get(FlagListening) {
		t.Fatal("expected the snapshot to be a copy")
	}
}

package session

import (
	"sync"

	"github.com/tsubakihara/companion-core/core/chat"
)

// Mode is the current interaction topology.
type Mode string

const (
	// ModeChat is the default single-character conversation.
	ModeChat Mode = "chat"
	// ModeMultiParty is the multi-character round-table.
	ModeMultiParty Mode = "multi_party"
	// ModeOperator is the minimized operator display.
	ModeOperator Mode = "operator"
)

func (m Mode) String() string { return string(m) }

// MultiPartyCollaborator receives round-table lifecycle hooks. Hooks run
// synchronously inside a mode transition and must not call back into
// [ModeController.SetMode].
type MultiPartyCollaborator interface {
	EnterMultiParty() error
	ExitMultiParty() error

	// ScheduleNextTurn is called after a round-table turn completes with a
	// designated next speaker, so the collaborator can issue the next
	// automatic submission.
	ScheduleNextTurn(result chat.Result)
}

// OperatorCollaborator receives operator-display lifecycle hooks, with the
// same reentrancy constraint as [MultiPartyCollaborator].
type OperatorCollaborator interface {
	EnterOperator() error
	ExitOperator() error
}

// ModeController is the finite-state controller over the interaction
// modes. Exactly one mode is active at any instant; transitions run the
// old mode's exit hook to completion, then the new mode's enter hook, then
// commit. Concurrent SetMode calls queue behind each other.
type ModeController struct {
	// transitionMu serializes whole transitions, including hooks.
	transitionMu sync.Mutex
	// stateMu guards the committed mode so queries never observe an
	// intermediate state.
	stateMu sync.RWMutex

	current Mode

	multiParty MultiPartyCollaborator
	operator   OperatorCollaborator

	// onChanged observes committed transitions, set by the orchestrator.
	onChanged func(from, to Mode)
}

type ModeControllerOption func(*ModeController)

func WithMultiPartyCollaborator(collaborator MultiPartyCollaborator) ModeControllerOption {
	return func(c *ModeController) { c.multiParty = collaborator }
}

func WithOperatorCollaborator(collaborator OperatorCollaborator) ModeControllerOption {
	return func(c *ModeController) { c.operator = collaborator }
}

func NewModeController(opts ...ModeControllerOption) *ModeController {
	c := &ModeController{current: ModeChat}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetMode transitions to target. Setting the already-active mode performs
// no observable work: no hooks run, no change is signalled. Hook failures
// are logged and the transition still commits; there is no rollback path.
func (c *ModeController) SetMode(target Mode) {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	current := c.Current()
	if current == target {
		return
	}

	if err := c.exitHook(current); err != nil {
		logger.Warn("mode exit hook failed, committing transition anyway",
			"from", string(current), "to", string(target), "error", err)
	}
	if err := c.enterHook(target); err != nil {
		logger.Warn("mode enter hook failed, committing transition anyway",
			"from", string(current), "to", string(target), "error", err)
	}

	c.stateMu.Lock()
	c.current = target
	c.stateMu.Unlock()

	if c.onChanged != nil {
		c.onChanged(current, target)
	}
}

// ToggleMode switches to target, or back to [ModeChat] when target is
// already active.
func (c *ModeController) ToggleMode(target Mode) {
	if c.Current() == target {
		c.SetMode(ModeChat)
		return
	}
	c.SetMode(target)
}

func (c *ModeController) Current() Mode {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	return c.current
}

func (c *ModeController) IsChat() bool       { return c.Current() == ModeChat }
func (c *ModeController) IsMultiParty() bool { return c.Current() == ModeMultiParty }
func (c *ModeController) IsOperator() bool   { return c.Current() == ModeOperator }

func (c *ModeController) observe(onChanged func(from, to Mode)) {
	c.onChanged = onChanged
}

func (c *ModeController) multiPartyCollaborator() MultiPartyCollaborator {
	return c.multiParty
}

func (c *ModeController) exitHook(mode Mode) error {
	switch mode {
	case ModeMultiParty:
		if c.multiParty != nil {
			return c.multiParty.ExitMultiParty()
		}
	case ModeOperator:
		if c.operator != nil {
			return c.operator.ExitOperator()
		}
	}
	return nil
}

func (c *ModeController) enterHook(mode Mode) error {
	switch mode {
	case ModeMultiParty:
		if c.multiParty != nil {
			return c.multiParty.EnterMultiParty()
		}
	case ModeOperator:
		if c.operator != nil {
			return c.operator.EnterOperator()
		}
	}
	return nil
}

package session

import (
	"fmt"
	"sync"

	"github.com/tsubakihara/companion-core/core/chat"
)

// ErrParticipantNotFound is wrapped by [Registry.Resolve] for unknown ids.
var ErrParticipantNotFound = fmt.Errorf("participant not found")

// Registry owns the conversation roster. All other components read the
// roster through it; nothing mutates participants in place.
type Registry struct {
	mu sync.RWMutex

	human chat.Participant
	main  chat.Participant
	// cast is the AI line-up for the round-table, main character included.
	cast []chat.Participant
	// operatorName/operatorProfile describe the persona that visually
	// replaces the main character in operator mode. The participant id
	// stays the main character's, so downstream state keeps referencing
	// the same underlying participant.
	operatorName    string
	operatorProfile string

	roster []chat.Participant
}

type RegistryOption func(*Registry)

func WithHuman(p chat.Participant) RegistryOption {
	return func(r *Registry) {
		p.Kind = chat.ParticipantKindHuman
		r.human = p
	}
}

func WithMainCharacter(p chat.Participant) RegistryOption {
	return func(r *Registry) {
		p.Kind = chat.ParticipantKindAI
		r.main = p
	}
}

// WithCast sets the AI participants of the round-table. The main character
// is prepended automatically when absent from the list.
func WithCast(participants ...chat.Participant) RegistryOption {
	return func(r *Registry) {
		r.cast = nil
		for _, p := range participants {
			p.Kind = chat.ParticipantKindAI
			r.cast = append(r.cast, p)
		}
	}
}

func WithOperatorPersona(displayName, promptProfileRef string) RegistryOption {
	return func(r *Registry) {
		r.operatorName = displayName
		r.operatorProfile = promptProfileRef
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		human: chat.Participant{
			ID:          "sensei",
			Kind:        chat.ParticipantKindHuman,
			DisplayName: "Sensei",
		},
		main: chat.Participant{
			ID:               "arona",
			Kind:             chat.ParticipantKindAI,
			DisplayName:      "Arona",
			PromptProfileRef: "profiles/arona",
		},
		operatorName:    "Operator",
		operatorProfile: "profiles/operator",
	}
	r.cast = []chat.Participant{
		r.main,
		{
			ID:               "plana",
			Kind:             chat.ParticipantKindAI,
			DisplayName:      "Plana",
			PromptProfileRef: "profiles/plana",
		},
	}

	for _, opt := range opts {
		opt(r)
	}

	r.roster = r.buildRoster(ModeChat)
	return r
}

// BuildRoster rebuilds and commits the active roster for the given mode.
// The human is always present exactly once, first; AI participants follow
// in configured order, deduplicated by id.
func (r *Registry) BuildRoster(mode Mode) []chat.Participant {
	r.mu.Lock()
	r.roster = r.buildRoster(mode)
	roster := make([]chat.Participant, len(r.roster))
	copy(roster, r.roster)
	r.mu.Unlock()

	return roster
}

// Roster returns a copy of the active roster.
func (r *Registry) Roster() []chat.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roster := make([]chat.Participant, len(r.roster))
	copy(roster, r.roster)
	return roster
}

// Resolve looks a participant up by id in the active roster.
func (r *Registry) Resolve(id chat.ParticipantID) (chat.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.roster {
		if p.ID == id {
			return p, nil
		}
	}
	return chat.Participant{}, fmt.Errorf("%w: %q", ErrParticipantNotFound, id)
}

// Human returns the human participant.
func (r *Registry) Human() chat.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.human
}

// MainCharacter returns the main AI character.
func (r *Registry) MainCharacter() chat.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.main
}

func (r *Registry) buildRoster(mode Mode) []chat.Participant {
	roster := []chat.Participant{r.human}
	seen := map[chat.ParticipantID]bool{r.human.ID: true}

	appendUnique := func(p chat.Participant) {
		if seen[p.ID] {
			return
		}
		seen[p.ID] = true
		roster = append(roster, p)
	}

	switch mode {
	case ModeMultiParty:
		appendUnique(r.main)
		for _, p := range r.cast {
			appendUnique(p)
		}
	case ModeOperator:
		operator := r.main
		operator.DisplayName = r.operatorName
		operator.PromptProfileRef = r.operatorProfile
		appendUnique(operator)
	default:
		appendUnique(r.main)
	}

	return roster
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	session "github.com/tsubakihara/companion-core/core"
)

type line struct {
	speaker string
	text    string
	err     bool
	system  bool
}

// Model is the root bubbletea model.
// Layout: CHAT | INPUT | STATUS.
type Model struct {
	orchestrator *session.Orchestrator

	viewport viewport.Model
	input    textinput.Model

	width  int
	height int
	ready  bool

	lines     []line
	streaming *line

	mode        session.Mode
	answering   bool
	currentTurn int
	webSearch   bool
	lastFailure string
}

func NewModel(orchestrator *session.Orchestrator) Model {
	input := textinput.New()
	input.Placeholder = "Say something..."
	input.Focus()

	return Model{
		orchestrator: orchestrator,
		input:        input,
		mode:         orchestrator.Modes().Current(),
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		viewportHeight := m.height - 2 // input(1) + statusbar(1)
		if viewportHeight < 1 {
			viewportHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = viewportHeight
		}
		m.input.Width = m.width - 3
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TurnStartedMsg:
		m.currentTurn = msg.Index
		m.lastFailure = ""
		return m, nil

	case ChunkMsg:
		if msg.Sentence == "" {
			return m, nil
		}
		if m.streaming == nil || m.streaming.speaker != string(msg.Speaker) {
			m.flushStreaming()
			m.streaming = &line{speaker: string(msg.Speaker)}
		}
		if m.streaming.text != "" {
			m.streaming.text += " "
		}
		m.streaming.text += msg.Sentence
		m.refreshViewport()
		return m, nil

	case CompleteMsg:
		m.flushStreaming()
		m.refreshViewport()
		return m, nil

	case FailureMsg:
		m.streaming = nil
		m.lastFailure = msg.Reason
		m.lines = append(m.lines, line{text: msg.Reason, err: true})
		m.refreshViewport()
		return m, nil

	case CancelledMsg:
		m.streaming = nil
		m.lines = append(m.lines, line{text: "(cancelled)", system: true})
		m.refreshViewport()
		return m, nil

	case ModeChangedMsg:
		m.mode = msg.To
		m.lines = append(m.lines, line{text: fmt.Sprintf("(mode: %s)", msg.To), system: true})
		m.refreshViewport()
		return m, nil

	case FlagChangedMsg:
		if msg.Flag == session.FlagAnswering {
			m.answering = msg.Value
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "enter":
		query := strings.TrimSpace(m.input.Value())
		if query == "" {
			return m, nil
		}
		m.input.Reset()
		m.flushStreaming()
		m.lines = append(m.lines, line{speaker: string(m.orchestrator.Participants().Human().ID), text: query})
		m.refreshViewport()

		var opts []session.SubmitOption
		if m.webSearch {
			opts = append(opts, session.WithWebSearch())
			m.webSearch = false
		}
		m.orchestrator.Submit(query, opts...)
		return m, nil

	case "ctrl+r":
		m.flushStreaming()
		if _, err := m.orchestrator.Regenerate(); err != nil {
			m.lines = append(m.lines, line{text: err.Error(), err: true})
			m.refreshViewport()
		}
		return m, nil

	case "esc":
		if m.currentTurn > 0 {
			m.orchestrator.Cancel(m.currentTurn)
		}
		return m, nil

	case "ctrl+g":
		m.orchestrator.Modes().ToggleMode(session.ModeMultiParty)
		return m, nil

	case "ctrl+o":
		m.orchestrator.Modes().ToggleMode(session.ModeOperator)
		return m, nil

	case "ctrl+w":
		m.webSearch = !m.webSearch
		return m, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) flushStreaming() {
	if m.streaming == nil {
		return
	}
	m.lines = append(m.lines, *m.streaming)
	m.streaming = nil
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	var b strings.Builder
	render := func(l line) {
		switch {
		case l.err:
			b.WriteString(ErrorStyle.Render(l.text))
		case l.system:
			b.WriteString(MutedStyle.Render(l.text))
		case l.speaker == string(m.orchestrator.Participants().Human().ID):
			b.WriteString(HumanStyle.Render(l.speaker+":") + " " + l.text)
		default:
			b.WriteString(CharacterStyle.Render(l.speaker+":") + " " + l.text)
		}
		b.WriteString("\n")
	}

	for _, l := range m.lines {
		render(l)
	}
	if m.streaming != nil {
		render(*m.streaming)
	}

	m.viewport.SetContent(wordwrap.String(b.String(), m.width))
	m.viewport.GotoBottom()
}

func (m Model) statusView() string {
	parts := []string{fmt.Sprintf("mode: %s", m.mode)}
	if m.currentTurn > 0 {
		parts = append(parts, fmt.Sprintf("turn: %d", m.currentTurn))
	}
	if m.answering {
		parts = append(parts, "answering")
	}
	if m.webSearch {
		parts = append(parts, "web search on next send")
	}
	if m.lastFailure != "" {
		parts = append(parts, "last error: "+m.lastFailure)
	}
	status := StatusBarStyle.Render(strings.Join(parts, " | "))
	if m.width > 0 {
		status = StatusBarStyle.Width(m.width).Render(strings.Join(parts, " | "))
	}
	return status
}

// View renders the full layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return fmt.Sprintf("%s\n%s\n%s", m.viewport.View(), m.input.View(), m.statusView())
}

package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	pipeline "github.com/voxloop/voxloop/core"
)

const (
	chromeHeight  = 4
	minViewportH  = 3
	maxErrorLines = 5
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	stateStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	interimStyle   = lipgloss.NewStyle().Faint(true).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle    = lipgloss.NewStyle().Faint(true)
	helpStyle      = lipgloss.NewStyle().Faint(true)
)

// Model is the root bubbletea model for the debug console.
type Model struct {
	session *pipeline.Session

	viewport viewport.Model
	input    textinput.Model
	ready    bool
	width    int
	height   int

	state     string
	interim   string
	streaming strings.Builder
	lines     []string
	errors    []string
	paused    bool
	ended     bool
	endErr    error
}

// NewModel creates an empty console model. A session must be attached with
// AttachSession before the program runs.
func NewModel() *Model {
	input := textinput.New()
	input.Placeholder = "type a prompt and press enter"
	input.Prompt = "> "
	input.Focus()

	return &Model{
		state: pipeline.StateIdle.String(),
		input: input,
	}
}

// AttachSession wires the running session into the model so key bindings
// can act on it.
func (m *Model) AttachSession(session *pipeline.Session) {
	m.session = session
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h := msg.Height - chromeHeight
		if h < minViewportH {
			h = minViewportH
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = h
		}
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case stateChangedMsg:
		m.state = msg.to
		return m, nil

	case speechStartedMsg:
		m.interim = ""
		return m, nil

	case interimTranscriptMsg:
		m.interim = msg.transcript
		m.refreshViewport()
		return m, nil

	case finalTranscriptMsg:
		m.interim = ""
		if strings.TrimSpace(msg.transcript) != "" {
			m.appendLine(userStyle.Render("you: ") + msg.transcript)
		}
		return m, nil

	case responseSegmentMsg:
		m.streaming.WriteString(msg.segment)
		m.refreshViewport()
		return m, nil

	case responseFinalMsg:
		m.streaming.Reset()
		if msg.response != "" {
			m.appendLine(assistantStyle.Render("assistant: ") + msg.response)
		}
		return m, nil

	case playbackEndedMsg:
		return m, nil

	case interruptionMsg:
		m.streaming.Reset()
		m.appendLine(noticeStyle.Render(fmt.Sprintf("[interrupted while %s]", msg.at)))
		return m, nil

	case segmentDiscardedMsg:
		m.appendLine(noticeStyle.Render(fmt.Sprintf("[discarded %d-frame segment]", msg.frames)))
		return m, nil

	case stageErrorMsg:
		m.pushError(fmt.Sprintf("%s: %v", msg.stage, msg.err))
		return m, nil

	case sessionFatalMsg:
		m.pushError(fmt.Sprintf("fatal %s: %v", msg.stage, msg.err))
		return m, nil

	case SessionEndedMsg:
		m.ended = true
		m.endErr = msg.Err
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if text != "" && m.session != nil {
			m.session.SendPrompt(text)
			m.appendLine(userStyle.Render("you (typed): ") + text)
		}
		return m, nil
	case "ctrl+p":
		if m.session != nil {
			if m.paused {
				m.session.ResumeSpeaking()
			} else {
				m.session.PauseSpeaking()
			}
			m.paused = !m.paused
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}

	title := titleStyle.Render("voxloop") + "  " + stateStyle.Render(m.state)
	if m.paused {
		title += "  " + noticeStyle.Render("(paused)")
	}

	status := helpStyle.Render("enter: send prompt · ctrl+p: pause/resume · ctrl+c: quit")
	if len(m.errors) > 0 {
		status = errorStyle.Render(m.errors[len(m.errors)-1])
	}
	if m.ended && m.endErr != nil {
		status = errorStyle.Render("session ended: " + m.endErr.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.viewport.View(),
		m.input.View(),
		status,
	)
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refreshViewport()
}

func (m *Model) pushError(text string) {
	m.errors = append(m.errors, text)
	if len(m.errors) > maxErrorLines {
		m.errors = m.errors[len(m.errors)-maxErrorLines:]
	}
	m.appendLine(errorStyle.Render("[error] " + text))
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	var b strings.Builder
	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.streaming.Len() > 0 {
		b.WriteString(assistantStyle.Render("assistant: ") + m.streaming.String())
		b.WriteString("\n")
	}
	if m.interim != "" {
		b.WriteString(interimStyle.Render("you (speaking): " + m.interim))
		b.WriteString("\n")
	}

	m.viewport.SetContent(wordwrap.String(b.String(), m.viewport.Width))
	m.viewport.GotoBottom()
}

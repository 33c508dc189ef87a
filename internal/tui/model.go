package tui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/ChatAgent/internal/console"
	"github.com/BTreeMap/ChatAgent/internal/flow"
	"github.com/BTreeMap/ChatAgent/internal/intent"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultBreakpoint is the narrowest terminal, in columns, that starts with
// the chat minimized.
const DefaultBreakpoint = 60

// Rows used by everything but the transcript: title, typing line, quick
// action bar and the bordered input.
const chromeHeight = 1 + 1 + 1 + 3

// quickKeys maps function keys to quick actions by position.
var quickKeys = []string{"f1", "f2", "f3", "f4"}

// TimerFiredMsg carries a due session callback into Update so it runs on the
// program goroutine.
type TimerFiredMsg struct {
	Fn func()
}

// Model is the bubbletea model for the chat widget.
type Model struct {
	session    *flow.Session
	screen     *Screen
	actions    []intent.QuickAction
	breakpoint int

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	spinning bool

	width     int
	height    int
	sized     bool
	ready     bool
	holdFirst bool
}

// NewModel creates a Model driving session, which must render to screen.
func NewModel(session *flow.Session, screen *Screen, actions []intent.QuickAction, breakpoint int) Model {
	if breakpoint <= 0 {
		breakpoint = DefaultBreakpoint
	}
	ti := textinput.New()
	ti.Placeholder = "Type your message..."
	ti.CharLimit = 500
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = agentStyle

	return Model{
		session:    session,
		screen:     screen,
		actions:    actions,
		breakpoint: breakpoint,
		input:      ti,
		viewport:   viewport.New(80, 10),
		spinner:    sp,
	}
}

// KeepInitialState makes the first window size message leave the session's
// visibility alone. Later resizes that cross the breakpoint still apply.
func (m Model) KeepInitialState() Model {
	m.holdFirst = true
	return m
}

// Session returns the session driven by the model.
func (m Model) Session() *flow.Session {
	return m.session
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case TimerFiredMsg:
		if msg.Fn != nil {
			msg.Fn()
		}

	case spinner.TickMsg:
		if !m.screen.Typing() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		quit, cmd := m.handleKey(msg)
		if quit {
			return m, tea.Quit
		}
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.screen.takeDirty() {
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
	}
	if m.screen.Typing() && !m.spinning {
		m.spinning = true
		cmds = append(cmds, m.spinner.Tick)
	}
	return m, tea.Batch(cmds...)
}

// handleKey applies a key press. It reports true when the program should quit.
func (m *Model) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c":
		slog.Info("tui: quit requested", "session", m.session.ID())
		m.session.Close()
		return true, nil
	case "tab":
		m.session.Open()
		return false, nil
	case "esc":
		m.session.Minimize()
		return false, nil
	}

	if !m.session.GetState().IsOpen {
		if key == "enter" {
			m.session.Open()
		}
		return false, nil
	}

	for i, k := range quickKeys {
		if key == k && i < len(m.actions) {
			m.session.InvokeQuickAction(m.actions[i].ID)
			return false, nil
		}
	}

	switch key {
	case "enter":
		text := m.input.Value()
		m.input.Reset()
		m.session.SubmitUserMessage(text)
		return false, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return false, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return false, cmd
}

// resize lays the widget out and applies the breakpoint when the width
// crosses it.
func (m *Model) resize(width, height int) {
	wasOpen := m.sized && flow.OpenForWidth(m.width, m.breakpoint)
	nowOpen := flow.OpenForWidth(width, m.breakpoint)
	switch {
	case !m.sized && m.holdFirst:
		slog.Debug("tui: keeping initial visibility", "width", width)
	case !m.sized || wasOpen != nowOpen:
		if nowOpen {
			m.session.Open()
		} else {
			m.session.Minimize()
		}
		slog.Debug("tui: breakpoint applied", "width", width, "breakpoint", m.breakpoint, "open", nowOpen)
	}
	m.sized = true
	m.width, m.height = width, height

	vpHeight := height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	vpWidth := width
	if vpWidth < 1 {
		vpWidth = 1
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.input.Width = max(vpWidth-6, 1)
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
	m.ready = true
}

func (m Model) renderTranscript() string {
	turns := m.screen.Turns()
	if len(turns) == 0 {
		return hintStyle.Render("Ask about orders, shipping, returns, products, payment, hours or contact details.")
	}
	wrap := lipgloss.NewStyle().Width(max(m.viewport.Width, 1))
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		who := agentStyle.Render("agent")
		if turn.IsUser() {
			who = userStyle.Render("you")
		}
		line := fmt.Sprintf("%s %s %s", timeStyle.Render(turn.Timestamp.Format(console.TimeLayout)), who, turn.Text)
		b.WriteString(wrap.Render(line))
	}
	return b.String()
}

func (m Model) View() string {
	state := m.session.GetState()
	if !state.IsOpen {
		return m.minimizedView()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Support chat"))
	b.WriteString(hintStyle.Render("  esc minimize  ctrl+c quit"))
	b.WriteString("\n")
	if m.ready {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(m.renderTranscript())
	}
	b.WriteString("\n")
	if m.screen.Typing() {
		b.WriteString(m.spinner.View() + hintStyle.Render(" agent is typing..."))
	}
	b.WriteString("\n")

	buttons := make([]string, 0, len(m.actions))
	for i, qa := range m.actions {
		if i >= len(quickKeys) {
			break
		}
		buttons = append(buttons, actionStyle.Render(strings.ToUpper(quickKeys[i])+" "+qa.Label))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, buttons...))
	b.WriteString("\n")
	b.WriteString(inputStyle.Render(m.input.View()))
	return b.String()
}

func (m Model) minimizedView() string {
	parts := []string{bubbleStyle.Render("Chat")}
	if n := m.screen.Badge(); n > 0 {
		parts = append(parts, badgeStyle.Render(fmt.Sprintf("%d", n)))
	}
	parts = append(parts, hintStyle.Render("  tab to open, ctrl+c to quit"))
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}

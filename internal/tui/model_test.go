package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/ChatAgent/internal/flow"
	"github.com/BTreeMap/ChatAgent/internal/intent"
	"github.com/BTreeMap/ChatAgent/internal/models"
	"github.com/BTreeMap/ChatAgent/internal/testutil"
	tea "github.com/charmbracelet/bubbletea"
)

// sendTimer wraps ManualTimer so due callbacks are queued as TimerFiredMsg,
// the way Run routes them through Program.Send.
type sendTimer struct {
	*testutil.ManualTimer
	queued []tea.Msg
}

func (s *sendTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	return s.ManualTimer.ScheduleAfter(delay, func() {
		s.queued = append(s.queued, TimerFiredMsg{Fn: fn})
	})
}

type harness struct {
	model Model
	timer *sendTimer
	set   *intent.Set
}

func newHarness(t *testing.T, open bool) *harness {
	t.Helper()
	set, err := intent.Default()
	if err != nil {
		t.Fatal(err)
	}
	timer := &sendTimer{ManualTimer: testutil.NewManualTimer()}
	screen := NewScreen()
	session, err := flow.NewSession(set, open, flow.Dependencies{
		Host:   screen,
		Timer:  timer,
		Random: testutil.NewScriptedRandom(),
		Clock:  timer.Now,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &harness{
		model: NewModel(session, screen, set.QuickActions.Actions(), DefaultBreakpoint),
		timer: timer,
		set:   set,
	}
}

func (h *harness) send(t *testing.T, msg tea.Msg) tea.Cmd {
	t.Helper()
	next, cmd := h.model.Update(msg)
	m, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	h.model = m
	return cmd
}

func (h *harness) key(t *testing.T, k tea.KeyType) tea.Cmd {
	t.Helper()
	return h.send(t, tea.KeyMsg{Type: k})
}

// advance moves virtual time and feeds every fired callback through Update.
func (h *harness) advance(t *testing.T, d time.Duration) {
	t.Helper()
	h.timer.Advance(d)
	queued := h.timer.queued
	h.timer.queued = nil
	for _, msg := range queued {
		h.send(t, msg)
	}
}

func (h *harness) state() models.ConversationState {
	return h.model.Session().GetState()
}

func TestWindowSizeAppliesBreakpoint(t *testing.T) {
	h := newHarness(t, true)

	h.send(t, tea.WindowSizeMsg{Width: 40, Height: 20})
	if h.state().IsOpen {
		t.Fatal("expected narrow terminal to minimize the chat")
	}
	if !strings.Contains(h.model.View(), "tab to open") {
		t.Errorf("expected minimized view, got:\n%s", h.model.View())
	}

	h.send(t, tea.WindowSizeMsg{Width: 50, Height: 20})
	h.key(t, tea.KeyTab)
	h.send(t, tea.WindowSizeMsg{Width: 55, Height: 20})
	if !h.state().IsOpen {
		t.Error("resize on the same side of the breakpoint should not minimize")
	}

	h.send(t, tea.WindowSizeMsg{Width: 120, Height: 40})
	h.key(t, tea.KeyEsc)
	h.send(t, tea.WindowSizeMsg{Width: 30, Height: 40})
	h.send(t, tea.WindowSizeMsg{Width: 100, Height: 40})
	if !h.state().IsOpen {
		t.Error("widening past the breakpoint should open the chat")
	}
}

func TestEnterSubmitsAndReplyArrives(t *testing.T) {
	h := newHarness(t, true)
	h.send(t, tea.WindowSizeMsg{Width: 100, Height: 30})
	_, greetings, _ := h.set.Catalog.Lookup(models.IntentGreeting)

	h.model.input.SetValue("Hi there")
	if cmd := h.key(t, tea.KeyEnter); cmd == nil {
		t.Error("expected a spinner tick command while typing")
	}
	if h.model.input.Value() != "" {
		t.Errorf("expected input cleared, got %q", h.model.input.Value())
	}
	if !h.model.screen.Typing() {
		t.Error("expected typing indicator")
	}
	if !strings.Contains(h.model.View(), "agent is typing") {
		t.Errorf("expected typing line in view:\n%s", h.model.View())
	}

	h.advance(t, 2*time.Second)

	turns := h.model.screen.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[1].Text != greetings[0] {
		t.Errorf("expected %q, got %q", greetings[0], turns[1].Text)
	}
	if h.model.screen.Typing() {
		t.Error("typing indicator left on")
	}
	if !strings.Contains(h.model.View(), greetings[0]) {
		t.Errorf("reply not rendered:\n%s", h.model.View())
	}
}

func TestFunctionKeysFireQuickActions(t *testing.T) {
	h := newHarness(t, true)
	h.send(t, tea.WindowSizeMsg{Width: 100, Height: 30})

	keys := []tea.KeyType{tea.KeyF1, tea.KeyF2, tea.KeyF3, tea.KeyF4}
	for _, k := range keys {
		h.key(t, k)
	}

	turns := h.model.screen.Turns()
	if len(turns) != 4 {
		t.Fatalf("expected 4 user turns, got %d", len(turns))
	}
	for i, qa := range h.set.QuickActions.Actions() {
		if want := flow.QuickActionPrefix + qa.Label; turns[i].Text != want {
			t.Errorf("turn %d: expected %q, got %q", i, want, turns[i].Text)
		}
	}

	h.advance(t, flow.DefaultQuickActionDelay)
	if got := h.state().AgentTurns(); got != 4 {
		t.Errorf("expected 4 replies, got %d", got)
	}
}

func TestMinimizedBadge(t *testing.T) {
	h := newHarness(t, true)
	h.send(t, tea.WindowSizeMsg{Width: 100, Height: 30})

	h.model.input.SetValue("refund please")
	h.key(t, tea.KeyEnter)
	h.key(t, tea.KeyEsc)
	h.advance(t, 2*time.Second)

	if h.model.screen.Badge() != 1 {
		t.Fatalf("expected badge 1, got %d", h.model.screen.Badge())
	}
	view := h.model.View()
	if !strings.Contains(view, "Chat") || !strings.Contains(view, "1") {
		t.Errorf("expected bubble with badge, got:\n%s", view)
	}

	// Keys other than open and quit are ignored while minimized.
	h.key(t, tea.KeyF1)
	if n := len(h.model.screen.Turns()); n != 2 {
		t.Errorf("quick action fired while minimized, %d turns", n)
	}

	h.key(t, tea.KeyEnter)
	if !h.state().IsOpen || h.state().UnreadCount != 0 {
		t.Errorf("expected enter to open and clear unread, got %+v", h.state())
	}
	if h.model.screen.Badge() != 0 {
		t.Errorf("expected badge cleared, got %d", h.model.screen.Badge())
	}
}

func TestCtrlCClosesSession(t *testing.T) {
	h := newHarness(t, true)
	h.model.input.SetValue("hello")
	h.key(t, tea.KeyEnter)

	cmd := h.key(t, tea.KeyCtrlC)
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected tea.QuitMsg")
	}
	if !h.model.Session().Closed() {
		t.Error("expected session closed")
	}
	if h.timer.Pending() != 0 {
		t.Errorf("expected pending reply cancelled, got %d", h.timer.Pending())
	}
}

func TestSpinnerStopsWhenIdle(t *testing.T) {
	h := newHarness(t, true)
	if cmd := h.send(t, h.model.spinner.Tick()); cmd != nil {
		t.Error("expected spinner to stop ticking while idle")
	}
	if h.model.spinning {
		t.Error("expected spinning cleared")
	}
}

func TestZeroWindowSize(t *testing.T) {
	h := newHarness(t, true)
	h.send(t, tea.WindowSizeMsg{Width: 0, Height: 0})
	_ = h.model.View()
}

func TestKeepInitialState(t *testing.T) {
	h := newHarness(t, false)
	h.model = h.model.KeepInitialState()

	h.send(t, tea.WindowSizeMsg{Width: 120, Height: 40})
	if h.state().IsOpen {
		t.Fatal("first size message should not open a pinned-minimized chat")
	}

	h.send(t, tea.WindowSizeMsg{Width: 40, Height: 40})
	h.send(t, tea.WindowSizeMsg{Width: 120, Height: 40})
	if !h.state().IsOpen {
		t.Error("crossing the breakpoint later should still open the chat")
	}
}

// Package tui hosts a chat session in a terminal window using bubbletea.
package tui

import (
	"slices"

	"github.com/BTreeMap/ChatAgent/internal/models"
)

// Screen is the flow.Host for the terminal widget. It records what should be
// drawn; Model reads it when rendering. Like the session it is only touched
// from inside Update.
type Screen struct {
	turns  []models.Turn
	typing bool
	badge  int
	dirty  bool
}

// NewScreen creates an empty Screen.
func NewScreen() *Screen {
	return &Screen{}
}

func (s *Screen) RenderUserTurn(turn models.Turn) {
	s.turns = append(s.turns, turn)
	s.dirty = true
}

func (s *Screen) RenderAgentTurn(turn models.Turn) {
	s.turns = append(s.turns, turn)
	s.dirty = true
}

func (s *Screen) ShowTypingIndicator() {
	s.typing = true
}

func (s *Screen) HideTypingIndicator() {
	s.typing = false
}

func (s *Screen) SetUnreadBadge(count int) {
	s.badge = count
}

func (s *Screen) ClearUnreadBadge() {
	s.badge = 0
}

// Turns returns the rendered transcript.
func (s *Screen) Turns() []models.Turn {
	return slices.Clone(s.turns)
}

// Typing reports whether the typing indicator is shown.
func (s *Screen) Typing() bool {
	return s.typing
}

// Badge returns the unread count on the minimized widget, 0 when hidden.
func (s *Screen) Badge() int {
	return s.badge
}

// takeDirty reports whether turns were added since the last call.
func (s *Screen) takeDirty() bool {
	d := s.dirty
	s.dirty = false
	return d
}

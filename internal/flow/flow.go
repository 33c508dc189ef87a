// Package flow implements the chat widget's conversation state machine and the
// ports it needs from its host: rendering, delayed callbacks and randomness.
package flow

import (
	"time"

	"github.com/BTreeMap/ChatAgent/internal/intent"
	"github.com/BTreeMap/ChatAgent/internal/models"
)

// Host renders the conversation. The session calls it synchronously from
// whatever goroutine drives the session.
type Host interface {
	// RenderUserTurn appends a visitor message to the visible transcript
	RenderUserTurn(turn models.Turn)

	// RenderAgentTurn appends a widget reply to the visible transcript
	RenderAgentTurn(turn models.Turn)

	// ShowTypingIndicator displays the "agent is typing" affordance
	ShowTypingIndicator()

	// HideTypingIndicator removes the typing affordance
	HideTypingIndicator()

	// SetUnreadBadge shows count unread replies on the minimized widget
	SetUnreadBadge(count int)

	// ClearUnreadBadge hides the unread badge
	ClearUnreadBadge()
}

// Timer defines the interface for scheduling delayed actions.
type Timer interface {
	// ScheduleAfter schedules a function to run after a delay and returns an ID for Cancel
	ScheduleAfter(delay time.Duration, fn func()) (string, error)

	// Cancel cancels a scheduled function. Unknown or fired IDs are ignored.
	Cancel(id string) error
}

// Random is the injected source of uniform floats in [0, 1).
type Random = intent.Random

// Dependencies holds everything a Session needs from its host environment.
type Dependencies struct {
	Host   Host
	Timer  Timer
	Random Random
	// Clock stamps turns; nil means time.Now.
	Clock func() time.Time
}

// Package console runs a chat session over plain line-oriented I/O.
package console

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/BTreeMap/ChatAgent/internal/models"
)

// TimeLayout is the timestamp shown in front of every transcript line.
const TimeLayout = "15:04"

// Host renders a session as plain text lines. It keeps the first write error
// and ignores later writes.
type Host struct {
	out io.Writer
	err error
}

// NewHost creates a Host writing to out.
func NewHost(out io.Writer) *Host {
	return &Host{out: out}
}

// Err returns the first write error, if any.
func (h *Host) Err() error {
	return h.err
}

func (h *Host) printf(format string, args ...any) {
	if h.err != nil {
		return
	}
	if _, err := fmt.Fprintf(h.out, format, args...); err != nil {
		slog.Error("console.Host: write failed", "error", err)
		h.err = err
	}
}

func (h *Host) turn(who string, turn models.Turn) {
	h.printf("[%s] %s: %s\n", turn.Timestamp.Format(TimeLayout), who, turn.Text)
}

func (h *Host) RenderUserTurn(turn models.Turn) {
	h.turn("you", turn)
}

func (h *Host) RenderAgentTurn(turn models.Turn) {
	h.turn("agent", turn)
}

func (h *Host) ShowTypingIndicator() {
	h.printf("agent is typing...\n")
}

// HideTypingIndicator is a no-op; a printed line cannot be taken back.
func (h *Host) HideTypingIndicator() {}

func (h *Host) SetUnreadBadge(count int) {
	h.printf("(%d unread)\n", count)
}

func (h *Host) ClearUnreadBadge() {}

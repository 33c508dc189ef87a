// Package testutil provides deterministic fakes shared by ChatAgent tests:
// a manually advanced timer, a scripted random source and a host that records
// everything the session asks it to render.
package testutil

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/ChatAgent/internal/models"
)

// Epoch is the starting instant of every ManualTimer.
var Epoch = time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)

type manualEntry struct {
	id  string
	due time.Time
	seq int
	fn  func()
}

// ManualTimer is a virtual clock. Callbacks run synchronously from Advance,
// in due order, on the caller's goroutine.
type ManualTimer struct {
	now     time.Time
	nextID  int
	entries []*manualEntry
	delays  []time.Duration
	// FailNext, when set, is returned by the next ScheduleAfter call.
	FailNext error
}

// NewManualTimer creates a ManualTimer starting at Epoch.
func NewManualTimer() *ManualTimer {
	return &ManualTimer{now: Epoch}
}

// Now returns the virtual time.
func (m *ManualTimer) Now() time.Time {
	return m.now
}

// ScheduleAfter registers fn to run once the clock has advanced by delay.
func (m *ManualTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	if err := m.FailNext; err != nil {
		m.FailNext = nil
		return "", err
	}
	m.nextID++
	id := fmt.Sprintf("manual_%d", m.nextID)
	m.entries = append(m.entries, &manualEntry{id: id, due: m.now.Add(delay), seq: m.nextID, fn: fn})
	m.delays = append(m.delays, delay)
	return id, nil
}

// Cancel drops a pending callback. Unknown ids are ignored.
func (m *ManualTimer) Cancel(id string) error {
	m.entries = slices.DeleteFunc(m.entries, func(e *manualEntry) bool { return e.id == id })
	return nil
}

// Advance moves the clock forward by d, firing every callback that falls due.
// Callbacks scheduled while advancing fire too if they are due in the window.
func (m *ManualTimer) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		next := m.nextDue(target)
		if next == nil {
			break
		}
		m.entries = slices.DeleteFunc(m.entries, func(e *manualEntry) bool { return e == next })
		m.now = next.due
		next.fn()
	}
	m.now = target
}

func (m *ManualTimer) nextDue(limit time.Time) *manualEntry {
	due := make([]*manualEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if !e.due.After(limit) {
			due = append(due, e)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].seq < due[j].seq
		}
		return due[i].due.Before(due[j].due)
	})
	return due[0]
}

// Pending returns the number of callbacks not yet fired or cancelled.
func (m *ManualTimer) Pending() int {
	return len(m.entries)
}

// Delays returns every delay passed to ScheduleAfter, in call order.
func (m *ManualTimer) Delays() []time.Duration {
	return slices.Clone(m.delays)
}

// ScriptedRandom returns a fixed sequence of values. Once the script runs out
// it keeps returning the last value (or 0 for an empty script).
type ScriptedRandom struct {
	values []float64
	calls  int
}

// NewScriptedRandom creates a ScriptedRandom over values.
func NewScriptedRandom(values ...float64) *ScriptedRandom {
	return &ScriptedRandom{values: values}
}

// Float64 returns the next scripted value.
func (r *ScriptedRandom) Float64() float64 {
	defer func() { r.calls++ }()
	switch {
	case len(r.values) == 0:
		return 0
	case r.calls < len(r.values):
		return r.values[r.calls]
	default:
		return r.values[len(r.values)-1]
	}
}

// Calls returns how many values have been drawn.
func (r *ScriptedRandom) Calls() int {
	return r.calls
}

// Host event names recorded by RecordingHost.
const (
	EventTypingOn   = "typing:on"
	EventTypingOff  = "typing:off"
	EventBadgeClear = "badge:clear"
)

// RecordingHost implements the session host interface by recording calls.
type RecordingHost struct {
	Events []string
	Turns  []models.Turn
	Badge  int
	Typing bool
}

// NewRecordingHost creates an empty RecordingHost.
func NewRecordingHost() *RecordingHost {
	return &RecordingHost{}
}

func (h *RecordingHost) RenderUserTurn(turn models.Turn) {
	h.Turns = append(h.Turns, turn)
	h.Events = append(h.Events, "user:"+turn.Text)
}

func (h *RecordingHost) RenderAgentTurn(turn models.Turn) {
	h.Turns = append(h.Turns, turn)
	h.Events = append(h.Events, "agent:"+turn.Text)
}

func (h *RecordingHost) ShowTypingIndicator() {
	h.Typing = true
	h.Events = append(h.Events, EventTypingOn)
}

func (h *RecordingHost) HideTypingIndicator() {
	h.Typing = false
	h.Events = append(h.Events, EventTypingOff)
}

func (h *RecordingHost) SetUnreadBadge(count int) {
	h.Badge = count
	h.Events = append(h.Events, fmt.Sprintf("badge:%d", count))
}

func (h *RecordingHost) ClearUnreadBadge() {
	h.Badge = 0
	h.Events = append(h.Events, EventBadgeClear)
}

// Count returns how many recorded events start with prefix.
func (h *RecordingHost) Count(prefix string) int {
	n := 0
	for _, e := range h.Events {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

// ErrScheduleFailed is a convenience error for ManualTimer.FailNext.
var ErrScheduleFailed = errors.New("schedule failed")

// AssertEvents fails the test if the recorded events differ from want.
func AssertEvents(t *testing.T, h *RecordingHost, want ...string) {
	t.Helper()
	if !slices.Equal(h.Events, want) {
		t.Errorf("host events mismatch\nexpected: %q\nactual:   %q", want, h.Events)
	}
}

// AssertContains fails the test if pool does not contain reply.
func AssertContains(t *testing.T, pool []string, reply string, context string) {
	t.Helper()
	if !slices.Contains(pool, reply) {
		t.Errorf("%s: reply %q not in pool %q", context, reply, pool)
	}
}

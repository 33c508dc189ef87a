package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/ChatAgent/internal/models"
)

// ErrTimerStopped is returned by ScheduleAfter once Stop has been called.
var ErrTimerStopped = errors.New("timer stopped")

// Dispatch hands a due callback to the goroutine that owns the session.
type Dispatch func(fn func())

// timerEntry tracks information about a scheduled timer
type timerEntry struct {
	timer       *time.Timer
	scheduledAt time.Time
	expiresAt   time.Time
	description string
}

// TimerOpts holds configuration for a SimpleTimer.
type TimerOpts struct {
	Dispatch Dispatch
}

// TimerOption configures a SimpleTimer.
type TimerOption func(*TimerOpts)

// WithDispatch routes due callbacks through d instead of running them on the
// timer's own goroutine. Hosts use it to post callbacks onto their event loop.
func WithDispatch(d Dispatch) TimerOption {
	return func(o *TimerOpts) {
		o.Dispatch = d
	}
}

// SimpleTimer implements the Timer interface using Go's standard time package.
type SimpleTimer struct {
	timers   map[string]*timerEntry
	mu       sync.RWMutex
	nextID   int64
	dispatch Dispatch
	stopped  bool
}

// NewSimpleTimer creates a new SimpleTimer.
func NewSimpleTimer(opts ...TimerOption) *SimpleTimer {
	var cfg TimerOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Dispatch == nil {
		cfg.Dispatch = func(fn func()) { fn() }
	}
	slog.Debug("Creating SimpleTimer", "custom_dispatch", len(opts) > 0)
	return &SimpleTimer{
		timers:   make(map[string]*timerEntry),
		dispatch: cfg.Dispatch,
	}
}

// ScheduleAfter schedules a function to run after a delay.
func (t *SimpleTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		slog.Debug("SimpleTimer ScheduleAfter refused: timer stopped", "delay", delay)
		return "", ErrTimerStopped
	}

	t.nextID++
	id := fmt.Sprintf("timer_%d", t.nextID)
	now := time.Now()

	timer := time.AfterFunc(delay, func() {
		// Claim the entry first so a concurrent Cancel wins or loses cleanly.
		t.mu.Lock()
		_, live := t.timers[id]
		delete(t.timers, id)
		t.mu.Unlock()
		if !live {
			return
		}
		slog.Debug("SimpleTimer executing scheduled function", "id", id)
		t.dispatch(fn)
	})

	t.timers[id] = &timerEntry{
		timer:       timer,
		scheduledAt: now,
		expiresAt:   now.Add(delay),
		description: fmt.Sprintf("Timer scheduled for %v", delay),
	}

	slog.Debug("SimpleTimer ScheduleAfter succeeded", "id", id, "delay", delay)
	return id, nil
}

// Cancel cancels a scheduled function by ID.
func (t *SimpleTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, exists := t.timers[id]; exists {
		entry.timer.Stop()
		delete(t.timers, id)
		slog.Debug("SimpleTimer Cancel succeeded", "id", id)
		return nil
	}

	slog.Debug("SimpleTimer Cancel: timer not found", "id", id)
	return nil
}

// Stop cancels all scheduled timers and refuses new ones.
func (t *SimpleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	slog.Debug("SimpleTimer stopping all timers", "count", len(t.timers))
	for id, entry := range t.timers {
		entry.timer.Stop()
		slog.Debug("SimpleTimer stopped timer", "id", id)
	}
	t.timers = make(map[string]*timerEntry)
	t.stopped = true
	slog.Info("SimpleTimer stopped all timers")
}

// ListActive returns information about all active timers, soonest first.
func (t *SimpleTimer) ListActive() []models.TimerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]models.TimerInfo, 0, len(t.timers))
	now := time.Now()

	for id, entry := range t.timers {
		remaining := entry.expiresAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}

		result = append(result, models.TimerInfo{
			ID:          id,
			ScheduledAt: entry.scheduledAt,
			ExpiresAt:   entry.expiresAt,
			Remaining:   remaining.Round(time.Millisecond).String(),
			Description: entry.description,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.Before(result[j].ExpiresAt) })

	slog.Debug("SimpleTimer ListActive", "count", len(result))
	return result
}

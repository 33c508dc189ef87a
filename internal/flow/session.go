package flow

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/BTreeMap/ChatAgent/internal/intent"
	"github.com/BTreeMap/ChatAgent/internal/models"
	"github.com/google/uuid"
)

// Timing and layout constants for the widget.
const (
	// DefaultReplyDelay is the minimum simulated typing time for a typed message
	DefaultReplyDelay = 1000 * time.Millisecond
	// DefaultReplySpread is the random extra delay added on top of DefaultReplyDelay
	DefaultReplySpread = 1000 * time.Millisecond
	// DefaultQuickActionDelay is the fixed typing time for quick actions
	DefaultQuickActionDelay = 800 * time.Millisecond
	// DefaultBreakpoint is the widest viewport that starts minimized
	DefaultBreakpoint = 749
	// QuickActionPrefix starts the synthetic user turn for a quick action
	QuickActionPrefix = "Tell me about: "
)

// Constructor errors.
var (
	ErrNilCatalog = errors.New("session requires a catalog set")
	ErrNilHost    = errors.New("session requires a host")
	ErrNilTimer   = errors.New("session requires a timer")
)

// OpenForWidth reports whether a widget hosted in a viewport of the given
// width should start open. Widths at or below breakpoint start minimized.
func OpenForWidth(width, breakpoint int) bool {
	return width > breakpoint
}

// Opts holds tunables for a Session.
type Opts struct {
	ID               string
	ReplyDelay       time.Duration
	ReplySpread      time.Duration
	QuickActionDelay time.Duration
}

// Option configures a Session.
type Option func(*Opts)

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) Option {
	return func(o *Opts) {
		o.ID = id
	}
}

// WithReplyDelay sets the typed-message delay window to [base, base+spread).
func WithReplyDelay(base, spread time.Duration) Option {
	return func(o *Opts) {
		o.ReplyDelay = base
		o.ReplySpread = spread
	}
}

// WithQuickActionDelay sets the fixed quick-action delay.
func WithQuickActionDelay(d time.Duration) Option {
	return func(o *Opts) {
		o.QuickActionDelay = d
	}
}

// Session is one visitor's conversation with the widget.
//
// A Session is not safe for concurrent use. The host must serialize every
// call, including the callbacks its Timer fires, on a single goroutine.
type Session struct {
	id         string
	classifier *intent.Classifier
	selector   *intent.Selector
	actions    *intent.Dispatcher

	host  Host
	timer Timer
	rng   Random
	now   func() time.Time

	replyDelay  time.Duration
	replySpread time.Duration
	quickDelay  time.Duration

	isOpen     bool
	isTyping   bool
	unread     int
	transcript []models.Turn

	// pending maps a session-local key to the timer ID of an undelivered reply.
	pending map[uint64]string
	nextKey uint64
	closed  bool
}

// NewSession creates a Session. open is the initial visibility decided by the
// host (see OpenForWidth). A nil Random uses the process-wide source.
func NewSession(set *intent.Set, open bool, deps Dependencies, opts ...Option) (*Session, error) {
	if set == nil || set.Catalog == nil || set.QuickActions == nil {
		return nil, ErrNilCatalog
	}
	if deps.Host == nil {
		return nil, ErrNilHost
	}
	if deps.Timer == nil {
		return nil, ErrNilTimer
	}

	cfg := Opts{
		ReplyDelay:       DefaultReplyDelay,
		ReplySpread:      DefaultReplySpread,
		QuickActionDelay: DefaultQuickActionDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}

	rng := deps.Random
	if rng == nil {
		rng = intent.DefaultRandom()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Session{
		id:          cfg.ID,
		classifier:  intent.NewClassifier(set.Catalog),
		selector:    intent.NewSelector(set.Catalog, rng),
		actions:     set.QuickActions,
		host:        deps.Host,
		timer:       deps.Timer,
		rng:         rng,
		now:         clock,
		replyDelay:  cfg.ReplyDelay,
		replySpread: cfg.ReplySpread,
		quickDelay:  cfg.QuickActionDelay,
		isOpen:      open,
		pending:     make(map[uint64]string),
	}
	slog.Debug("Session created", "session", s.id, "open", open, "reply_delay", s.replyDelay, "reply_spread", s.replySpread, "quick_delay", s.quickDelay)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SubmitUserMessage appends the visitor's message and schedules a reply after
// a random delay. Blank input is ignored. Submitting again before a reply
// arrives schedules another independent reply; replies may arrive out of
// submission order.
func (s *Session) SubmitUserMessage(text string) {
	if s.closed {
		slog.Debug("Session.SubmitUserMessage: session closed, dropping input", "session", s.id)
		return
	}
	message := strings.TrimSpace(text)
	if message == "" {
		slog.Debug("Session.SubmitUserMessage: ignoring empty input", "session", s.id)
		return
	}

	s.host.RenderUserTurn(s.appendTurn(models.SpeakerUser, message))
	s.showTyping()

	delay := s.replyDelay + time.Duration(s.rng.Float64()*float64(s.replySpread))
	slog.Debug("Session.SubmitUserMessage: reply scheduled", "session", s.id, "delay", delay)
	s.schedule(delay, func() {
		s.deliver(func() string {
			return s.selector.Select(s.classifier.Classify(message))
		})
	})
}

// InvokeQuickAction answers a shortcut button directly from its mapped intent,
// bypassing classification. Unknown actions are answered from the default pool.
func (s *Session) InvokeQuickAction(actionID string) {
	if s.closed {
		slog.Debug("Session.InvokeQuickAction: session closed, dropping action", "session", s.id, "action", actionID)
		return
	}
	qa, known := s.actions.Resolve(strings.TrimSpace(actionID))

	s.host.RenderUserTurn(s.appendTurn(models.SpeakerUser, QuickActionPrefix+qa.Label))
	s.showTyping()

	slog.Debug("Session.InvokeQuickAction: reply scheduled", "session", s.id, "action", qa.ID, "known", known, "intent", qa.Intent)
	s.schedule(s.quickDelay, func() {
		s.deliver(func() string {
			return s.selector.Select(qa.Intent)
		})
	})
}

// Open shows the widget and clears the unread count.
func (s *Session) Open() {
	if s.closed {
		return
	}
	s.isOpen = true
	s.unread = 0
	s.host.ClearUnreadBadge()
	slog.Debug("Session opened", "session", s.id)
}

// Minimize hides the widget. The unread count is left as is.
func (s *Session) Minimize() {
	if s.closed {
		return
	}
	s.isOpen = false
	slog.Debug("Session minimized", "session", s.id, "unread", s.unread)
}

// GetState returns a snapshot of the session. The transcript is a copy.
func (s *Session) GetState() models.ConversationState {
	return models.ConversationState{
		SessionID:   s.id,
		IsOpen:      s.isOpen,
		IsTyping:    s.isTyping,
		UnreadCount: s.unread,
		Pending:     len(s.pending),
		Transcript:  slices.Clone(s.transcript),
	}
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed
}

// Close tears the session down. Pending replies are cancelled and never
// delivered, and every later call is a no-op.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	for key, id := range s.pending {
		if id != "" {
			if err := s.timer.Cancel(id); err != nil {
				slog.Warn("Session.Close: cancel failed", "session", s.id, "timer", id, "error", err)
			}
		}
		delete(s.pending, key)
	}
	if s.isTyping {
		s.isTyping = false
		s.host.HideTypingIndicator()
	}
	slog.Info("Session closed", "session", s.id, "turns", len(s.transcript))
}

func (s *Session) appendTurn(speaker models.Speaker, text string) models.Turn {
	ts := s.now()
	if n := len(s.transcript); n > 0 && ts.Before(s.transcript[n-1].Timestamp) {
		ts = s.transcript[n-1].Timestamp
	}
	turn := models.Turn{Speaker: speaker, Text: text, Timestamp: ts}
	s.transcript = append(s.transcript, turn)
	return turn
}

func (s *Session) showTyping() {
	if s.isTyping {
		return
	}
	s.isTyping = true
	s.host.ShowTypingIndicator()
}

func (s *Session) hideTyping() {
	if !s.isTyping {
		return
	}
	s.isTyping = false
	s.host.HideTypingIndicator()
}

// schedule arranges for fn to run after delay unless the session is closed
// first. If the timer refuses the job, fn runs immediately so the typing
// indicator is never left on.
func (s *Session) schedule(delay time.Duration, fn func()) {
	s.nextKey++
	key := s.nextKey
	s.pending[key] = ""

	id, err := s.timer.ScheduleAfter(delay, func() { s.fire(key, fn) })
	if err != nil {
		slog.Error("Session.schedule: timer failed, replying immediately", "session", s.id, "delay", delay, "error", err)
		s.fire(key, fn)
		return
	}
	if _, ok := s.pending[key]; ok {
		s.pending[key] = id
	}
}

func (s *Session) fire(key uint64, fn func()) {
	if s.closed {
		slog.Debug("Session: dropping callback for closed session", "session", s.id)
		return
	}
	if _, ok := s.pending[key]; !ok {
		return
	}
	delete(s.pending, key)
	fn()
}

// deliver ends the typing state and appends the agent reply produced by reply.
func (s *Session) deliver(reply func() string) {
	s.hideTyping()
	turn := s.appendTurn(models.SpeakerAgent, reply())
	s.host.RenderAgentTurn(turn)

	if !s.isOpen {
		s.unread++
		s.host.SetUnreadBadge(s.unread)
	}
	slog.Debug("Session delivered reply", "session", s.id, "open", s.isOpen, "unread", s.unread, "pending", len(s.pending))
}

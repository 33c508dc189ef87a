package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/ChatAgent/internal/flow"
	"github.com/BTreeMap/ChatAgent/internal/intent"
	"github.com/BTreeMap/ChatAgent/internal/models"
	"github.com/BTreeMap/ChatAgent/internal/testutil"
	"go.uber.org/goleak"
)

func fastConfig(open bool) Config {
	return Config{
		Open:   open,
		Random: testutil.NewScriptedRandom(),
		SessionOpts: []flow.Option{
			flow.WithSessionID("console-test"),
			flow.WithReplyDelay(time.Millisecond, 0),
			flow.WithQuickActionDelay(time.Millisecond),
		},
	}
}

func run(t *testing.T, input string, cfg Config) (string, *intent.Set) {
	t.Helper()
	set, err := intent.Default()
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Run(ctx, strings.NewReader(input), &out, set, cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String(), set
}

func TestRunRepliesBeforeExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	out, set := run(t, "hello\n/quick returns\n", fastConfig(true))

	_, greetings, _ := set.Catalog.Lookup(models.IntentGreeting)
	_, returns, _ := set.Catalog.Lookup(models.IntentReturns)

	for _, want := range []string{
		"] you: hello\n",
		"] you: Tell me about: Returns & Exchanges\n",
		"] agent: " + greetings[0] + "\n",
		"] agent: " + returns[0] + "\n",
		"agent is typing...\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "unread") {
		t.Errorf("open chat should not show unread counts\n%s", out)
	}
}

func TestRunMinimizedCountsUnread(t *testing.T) {
	defer goleak.VerifyNone(t)

	out, _ := run(t, "hello\n", fastConfig(false))
	if !strings.Contains(out, "(1 unread)") {
		t.Errorf("expected unread badge\n%s", out)
	}
}

func TestRunCommands(t *testing.T) {
	defer goleak.VerifyNone(t)

	out, _ := run(t, "/min\n/state\n/open\n/state\n/bogus\n/help\n/quick\n/quit\nhello\n", fastConfig(true))

	for _, want := range []string{
		"(chat minimized)",
		"(open=false typing=false unread=0 pending=0 turns=0)",
		"(chat opened)",
		"(open=true typing=false unread=0 pending=0 turns=0)",
		"(unknown command /bogus, try /help)",
		"/state         show the session state",
		"/quick order-status",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "you: hello") {
		t.Errorf("input after /quit was processed\n%s", out)
	}
}

func TestRunCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	set, err := intent.Default()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err = Run(ctx, strings.NewReader("hello\n"), &out, set, fastConfig(true))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunRejectsNilSet(t *testing.T) {
	defer goleak.VerifyNone(t)

	err := Run(context.Background(), strings.NewReader(""), &bytes.Buffer{}, nil, fastConfig(true))
	if !errors.Is(err, flow.ErrNilCatalog) {
		t.Errorf("expected ErrNilCatalog, got %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestHostKeepsFirstWriteError(t *testing.T) {
	h := NewHost(failingWriter{})
	h.ShowTypingIndicator()
	h.SetUnreadBadge(1)
	if h.Err() == nil || h.Err().Error() != "disk full" {
		t.Errorf("expected write error, got %v", h.Err())
	}
}

func TestHostFormatsTurns(t *testing.T) {
	var out bytes.Buffer
	h := NewHost(&out)
	at := time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC)

	h.RenderUserTurn(models.Turn{Speaker: models.SpeakerUser, Text: "hi", Timestamp: at})
	h.RenderAgentTurn(models.Turn{Speaker: models.SpeakerAgent, Text: "hello", Timestamp: at})
	h.HideTypingIndicator()
	h.ClearUnreadBadge()

	want := "[15:04] you: hi\n[15:04] agent: hello\n"
	if out.String() != want {
		t.Errorf("expected %q, got %q", want, out.String())
	}
}

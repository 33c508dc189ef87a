package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/ChatAgent/internal/flow"
	"github.com/BTreeMap/ChatAgent/internal/intent"
)

// drainPoll is how often Run checks for outstanding replies after input ends.
const drainPoll = 10 * time.Millisecond

// Config holds the session settings for a console run.
type Config struct {
	Open        bool
	Random      flow.Random
	SessionOpts []flow.Option
}

// Run reads lines from in and drives one session until /quit, end of input
// or ctx cancellation. At end of input it waits for outstanding replies.
func Run(ctx context.Context, in io.Reader, out io.Writer, set *intent.Set, cfg Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := flow.NewLoop(16)
	go loop.Run(runCtx)
	timer := flow.NewSimpleTimer(flow.WithDispatch(loop.Dispatch))
	host := NewHost(out)

	session, err := flow.NewSession(set, cfg.Open, flow.Dependencies{
		Host:   host,
		Timer:  timer,
		Random: cfg.Random,
	}, cfg.SessionOpts...)
	if err != nil {
		cancel()
		<-loop.Done()
		return fmt.Errorf("console: %w", err)
	}
	slog.Info("console: session started", "session", session.ID(), "open", cfg.Open)

	defer func() {
		timer.Stop()
		cancel()
		<-loop.Done()
		session.Close()
	}()

	if err := loop.Call(runCtx, func() { printBanner(host, set) }); err != nil {
		return stopErr(ctx, err)
	}

	lines, readErr := readLines(runCtx, in)
	for {
		select {
		case <-ctx.Done():
			slog.Info("console: cancelled", "session", session.ID())
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := *readErr; err != nil {
					return fmt.Errorf("console: read input: %w", err)
				}
				if err := drain(runCtx, loop, session); err != nil {
					return stopErr(ctx, err)
				}
				return host.Err()
			}
			quit := false
			if err := loop.Call(runCtx, func() { quit = handleLine(session, host, set, line) }); err != nil {
				return stopErr(ctx, err)
			}
			if quit {
				slog.Info("console: quit requested", "session", session.ID())
				return host.Err()
			}
		}
	}
}

// stopErr reports the caller's cancellation in place of the loop's shutdown error.
func stopErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// readLines scans in on its own goroutine. The returned error pointer is
// valid once the channel is closed.
func readLines(ctx context.Context, in io.Reader) (<-chan string, *error) {
	lines := make(chan string)
	var scanErr error
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr = scanner.Err()
	}()
	return lines, &scanErr
}

// drain waits until the session has no undelivered replies.
func drain(ctx context.Context, loop *flow.Loop, session *flow.Session) error {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for {
		var pending int
		if err := loop.Call(ctx, func() { pending = session.GetState().Pending }); err != nil {
			return err
		}
		if pending == 0 {
			return nil
		}
		slog.Debug("console: waiting for replies", "pending", pending)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// handleLine applies one input line and reports whether the user asked to quit.
func handleLine(session *flow.Session, host *Host, set *intent.Set, line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		session.SubmitUserMessage(line)
		return false
	}

	cmd, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/open":
		session.Open()
		host.printf("(chat opened)\n")
	case "/min":
		session.Minimize()
		host.printf("(chat minimized)\n")
	case "/quick":
		if arg == "" {
			printActions(host, set)
			return false
		}
		session.InvokeQuickAction(arg)
	case "/state":
		st := session.GetState()
		host.printf("(open=%t typing=%t unread=%d pending=%d turns=%d)\n",
			st.IsOpen, st.IsTyping, st.UnreadCount, st.Pending, len(st.Transcript))
	case "/help":
		printHelp(host)
	default:
		host.printf("(unknown command %s, try /help)\n", cmd)
	}
	return false
}

func printBanner(host *Host, set *intent.Set) {
	host.printf("Chat ready. Type a message or /help.\n")
	printActions(host, set)
}

func printActions(host *Host, set *intent.Set) {
	for _, qa := range set.QuickActions.Actions() {
		host.printf("  /quick %-14s %s\n", qa.ID, qa.Label)
	}
}

func printHelp(host *Host) {
	host.printf("Commands:\n")
	host.printf("  /open          open the chat and clear unread replies\n")
	host.printf("  /min           minimize the chat\n")
	host.printf("  /quick <id>    ask a quick question\n")
	host.printf("  /state         show the session state\n")
	host.printf("  /quit          leave\n")
}

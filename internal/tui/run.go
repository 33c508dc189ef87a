package tui

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/ChatAgent/internal/flow"
	"github.com/BTreeMap/ChatAgent/internal/intent"
	tea "github.com/charmbracelet/bubbletea"
)

// Config holds the session settings for a terminal run.
type Config struct {
	// Minimized starts the chat minimized whatever the terminal width.
	Minimized   bool
	Breakpoint  int
	Random      flow.Random
	SessionOpts []flow.Option
}

// Run shows the widget until the user quits or ctx is cancelled. Extra
// program options are passed to bubbletea, e.g. tea.WithInput for tests.
func Run(ctx context.Context, set *intent.Set, cfg Config, opts ...tea.ProgramOption) error {
	var program *tea.Program
	timer := flow.NewSimpleTimer(flow.WithDispatch(func(fn func()) {
		program.Send(TimerFiredMsg{Fn: fn})
	}))
	defer timer.Stop()

	screen := NewScreen()
	session, err := flow.NewSession(set, !cfg.Minimized, flow.Dependencies{
		Host:   screen,
		Timer:  timer,
		Random: cfg.Random,
	}, cfg.SessionOpts...)
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	slog.Info("tui: session started", "session", session.ID(), "breakpoint", cfg.Breakpoint)

	model := NewModel(session, screen, set.QuickActions.Actions(), cfg.Breakpoint)
	if cfg.Minimized {
		model = model.KeepInitialState()
	}
	programOpts := append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	program = tea.NewProgram(model, programOpts...)

	_, runErr := program.Run()
	// The program goroutine has exited; nothing else touches the session now.
	session.Close()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if runErr != nil {
		return fmt.Errorf("tui: %w", runErr)
	}
	return nil
}

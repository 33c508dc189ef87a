package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/BTreeMap/ChatAgent/internal/console"
	"github.com/BTreeMap/ChatAgent/internal/intent"
	"github.com/BTreeMap/ChatAgent/internal/tui"
	"github.com/BTreeMap/ChatAgent/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultLogFileName is created in the temp directory when no log file is configured
	DefaultLogFileName = "chatagent.log"
	// DefaultLogLevel is used when CHATAGENT_LOG_LEVEL is unset
	DefaultLogLevel = "info"
	// StderrLogFile sends logs to stderr instead of a file
	StderrLogFile = "-"
)

func main() {
	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags, err := parseCommandLineFlags(config, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	// Initialize structured logger; the terminal belongs to the chat
	closeLog, err := initializeLogger(*flags.logFile, *flags.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatagent: %v\n", err)
		os.Exit(1)
	}
	defer closeLog.Close()

	set, err := loadCatalog(*flags.catalog)
	if err != nil {
		slog.Error("Failed to load intent catalog", "path", *flags.catalog, "error", err)
		fmt.Fprintf(os.Stderr, "chatagent: %v\n", err)
		closeLog.Close()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting ChatAgent", "plain", *flags.plain, "catalog", *flags.catalog, "minimized", *flags.minimized, "seeded", *flags.seed != 0)
	if err := run(ctx, flags, set); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("ChatAgent failed to run", "error", err)
		fmt.Fprintf(os.Stderr, "chatagent: %v\n", err)
		stop()
		closeLog.Close()
		os.Exit(1)
	}
	slog.Info("ChatAgent exited successfully")
}

// Config holds environment configuration
type Config struct {
	CatalogPath    string
	LogFile        string
	LogLevel       string
	Seed           uint64
	Breakpoint     int
	StartMinimized bool
}

// Flags holds command line flag values
type Flags struct {
	catalog    *string
	logFile    *string
	logLevel   *string
	seed       *uint64
	breakpoint *int
	minimized  *bool
	plain      *bool
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		CatalogPath:    util.StringEnv("CHATAGENT_CATALOG", ""),
		LogFile:        util.StringEnv("CHATAGENT_LOG_FILE", filepath.Join(os.TempDir(), DefaultLogFileName)),
		LogLevel:       util.StringEnv("CHATAGENT_LOG_LEVEL", DefaultLogLevel),
		Seed:           util.ParseUint64Env("CHATAGENT_SEED", 0),
		Breakpoint:     util.ParseIntEnv("CHATAGENT_BREAKPOINT", tui.DefaultBreakpoint),
		StartMinimized: util.ParseBoolEnv("CHATAGENT_START_MINIMIZED", false),
	}

	slog.Debug("environment variables loaded",
		"CHATAGENT_CATALOG", config.CatalogPath,
		"CHATAGENT_LOG_FILE", config.LogFile,
		"CHATAGENT_LOG_LEVEL", config.LogLevel,
		"CHATAGENT_SEED_SET", config.Seed != 0,
		"CHATAGENT_BREAKPOINT", config.Breakpoint,
		"CHATAGENT_START_MINIMIZED", config.StartMinimized)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config, args []string) (Flags, error) {
	fs := flag.NewFlagSet("chatagent", flag.ContinueOnError)
	flags := Flags{
		catalog:    fs.String("catalog", config.CatalogPath, "path to a YAML intent catalog (overrides $CHATAGENT_CATALOG; empty uses the built-in catalog)"),
		logFile:    fs.String("log-file", config.LogFile, "log file path, - for stderr (overrides $CHATAGENT_LOG_FILE)"),
		logLevel:   fs.String("log-level", config.LogLevel, "log level: debug, info, warn or error (overrides $CHATAGENT_LOG_LEVEL)"),
		seed:       fs.Uint64("seed", config.Seed, "random seed for reply selection and delays, 0 for random (overrides $CHATAGENT_SEED)"),
		breakpoint: fs.Int("breakpoint", config.Breakpoint, "terminal width in columns at or below which the chat starts minimized (overrides $CHATAGENT_BREAKPOINT)"),
		minimized:  fs.Bool("minimized", config.StartMinimized, "start with the chat minimized (overrides $CHATAGENT_START_MINIMIZED)"),
		plain:      fs.Bool("plain", false, "use the line-mode console instead of the full-screen interface"),
	}

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	slog.Debug("flags parsed",
		"catalog", *flags.catalog,
		"logFile", *flags.logFile,
		"logLevel", *flags.logLevel,
		"seedSet", *flags.seed != 0,
		"breakpoint", *flags.breakpoint,
		"minimized", *flags.minimized,
		"plain", *flags.plain)

	return flags, nil
}

// initializeLogger sets up structured logging at the requested level. The
// returned closer releases the log file.
func initializeLogger(path, level string) (io.Closer, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var out io.WriteCloser = nopCloser{os.Stderr}
	if path != StderrLogFile {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	slog.Debug("logger initialized", "path", path, "level", lvl)
	return out, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// loadCatalog returns the built-in catalog, or the one at path when set.
func loadCatalog(path string) (*intent.Set, error) {
	if path == "" {
		return intent.Default()
	}
	return intent.Load(path)
}

// run drives one chat session on the terminal.
func run(ctx context.Context, flags Flags, set *intent.Set) error {
	rng := util.NewRandom(*flags.seed)

	if *flags.plain {
		return console.Run(ctx, os.Stdin, os.Stdout, set, console.Config{
			Open:   !*flags.minimized,
			Random: rng,
		})
	}
	return tui.Run(ctx, set, tui.Config{
		Minimized:  *flags.minimized,
		Breakpoint: *flags.breakpoint,
		Random:     rng,
	})
}

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmdstate holds the state shared by the lspbridge subcommands:
// the graceful shutdown request raised by the first OS signal, configuration
// loading from the global flags, and the choice and logging setup of the UI.
package cmdstate

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/matt-FFFFFF/lspbridge/internal/config"
	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
	"github.com/matt-FFFFFF/lspbridge/internal/notify"
	"github.com/matt-FFFFFF/lspbridge/internal/progress"
	"github.com/matt-FFFFFF/lspbridge/internal/tui"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Global flag names, defined on the root command.
const (
	ConfigFlag   = "config"
	LogLevelFlag = "log-level"
	UIFlag       = "ui"
)

// ErrLoadConfig is returned when the configuration cannot be loaded.
var ErrLoadConfig = errors.New("failed to load configuration")

type shutdownKey struct{}

type shutdown struct {
	ch   chan struct{}
	once sync.Once
}

// WithShutdown returns a context carrying a graceful shutdown request and the
// function that raises it. Raising it more than once is harmless.
func WithShutdown(ctx context.Context) (context.Context, func()) {
	s := &shutdown{ch: make(chan struct{})}

	return context.WithValue(ctx, shutdownKey{}, s), func() {
		s.once.Do(func() { close(s.ch) })
	}
}

// ShutdownRequested returns a channel that is closed once a graceful shutdown
// was requested. Without WithShutdown the channel is nil and never ready.
func ShutdownRequested(ctx context.Context) <-chan struct{} {
	s, ok := ctx.Value(shutdownKey{}).(*shutdown)
	if !ok {
		return nil
	}

	return s.ch
}

// LoadConfig loads the file named by the config flag and applies the global
// flag overrides.
func LoadConfig(ctx context.Context, cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(ctx, cmd.String(ConfigFlag))
	if err != nil {
		return nil, errors.Join(ErrLoadConfig, err)
	}

	if lvl := cmd.String(LogLevelFlag); lvl != "" {
		cfg.Log.Level = lvl
	}

	if mode := cmd.String(UIFlag); mode != "" {
		cfg.UI.Mode = mode
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(ErrLoadConfig, err)
	}

	return cfg, nil
}

// IsTerminal reports whether the process is attached to an interactive terminal.
var IsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec
}

// UseTUI resolves the configured UI mode.
func UseTUI(mode string) bool {
	switch mode {
	case config.UIModeTUI:
		return true
	case config.UIModePlain:
		return false
	default:
		return IsTerminal()
	}
}

// NewUI builds the interface for cfg. The plain UI writes to out.
func NewUI(cfg *config.Config, out io.Writer) tui.UI {
	if UseTUI(cfg.UI.Mode) {
		return tui.NewRunner(cfg.UI.QueueSize)
	}

	return tui.NewPlain(out, cfg.UI.QueueSize)
}

// SetupLogging installs the configured logger in ctx. When the TUI owns the
// terminal and no log path is set, records are held in memory and written to
// stderr by the returned flush function. flush also closes the log file.
func SetupLogging(ctx context.Context, cfg *config.Config, tuiActive bool) (context.Context, func(), error) {
	opts := cfg.LogOptions()

	logger, closer, err := ctxlog.Configure(opts)
	if err != nil {
		return ctx, func() {}, err
	}

	if !tuiActive || opts.Path != "" {
		return ctxlog.New(ctx, logger), func() { _ = closer.Close() }, nil
	}

	buf := &lockedBuffer{}

	if opts.Format == ctxlog.FormatJSON {
		logger = slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: ctxlog.LevelVar}))
	} else {
		logger = slog.New(ctxlog.NewPrettyHandler(&slog.HandlerOptions{Level: ctxlog.LevelVar},
			ctxlog.WithDestinationWriter(buf),
		))
	}

	flush := func() {
		_, _ = buf.WriteTo(os.Stderr)
		_ = closer.Close()
	}

	return ctxlog.New(ctx, logger), flush, nil
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) WriteTo(w io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.WriteTo(w)
}

// Local wires a progress registry and a dispatcher to a UI without a language
// server, for replaying and typing notifications by hand.
type Local struct {
	Registry   *progress.Registry
	Dispatcher *notify.Dispatcher
}

// NewLocal builds the registry and dispatcher for ui from cfg.
func NewLocal(ctx context.Context, cfg *config.Config, ui tui.UI) *Local {
	reg := progress.NewRegistry(ctx,
		progress.WithPollInterval(cfg.Progress.PollInterval.Std()),
		progress.WithReporter(ui),
	)
	ui.SetCanceller(reg)

	return &Local{
		Registry:   reg,
		Dispatcher: notify.NewDispatcher(reg, ui, notify.WithMethodPrefix(cfg.Notifications.MethodPrefix)),
	}
}

// Close interrupts every indicator and waits for their loops to exit.
func (l *Local) Close() {
	l.Registry.Clear()
	l.Registry.Wait()
}

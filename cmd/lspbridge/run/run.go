// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matt-FFFFFF/lspbridge/cmd/lspbridge/cmdstate"
	"github.com/matt-FFFFFF/lspbridge/internal/config"
	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
	"github.com/matt-FFFFFF/lspbridge/internal/debugserver"
	"github.com/matt-FFFFFF/lspbridge/internal/metrics"
	"github.com/matt-FFFFFF/lspbridge/internal/notify"
	"github.com/matt-FFFFFF/lspbridge/internal/progress"
	"github.com/matt-FFFFFF/lspbridge/internal/session"
	"github.com/matt-FFFFFF/lspbridge/internal/tui"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const (
	serverFlag      = "server"
	sourceFlag      = "source"
	workDirFlag     = "work-dir"
	metricsAddrFlag = "metrics-addr"
	closeTimeout    = 5 * time.Second
	cliExitStr      = ""
)

// ErrServerStopped is returned when the language server exits on its own in plain mode.
var ErrServerStopped = errors.New("language server stopped")

// dialOptions is replaced in tests to connect to an in-memory server.
var dialOptions = func() []session.Option { return nil }

// newUI is replaced in tests.
var newUI = cmdstate.NewUI

// RunCmd launches the language server and bridges its notifications into the UI.
var RunCmd = &cli.Command{
	Name:  "run",
	Usage: "Launch the language server and show its progress and messages",
	Description: `Launch the configured language server, connect to its stdio with JSON-RPC
and show its progress notifications as indicators and its messages as toasts.

The server can be fetched first from any URL supported by Hashicorp's go-getter,
see https://github.com/hashicorp/go-getter.

Press Ctrl+C once to shut the server down cleanly, twice to kill it.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:      serverFlag,
			Aliases:   []string{"s"},
			Usage:     "Path or name (looked up in PATH) of the language server executable",
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.StringFlag{
			Name:     sourceFlag,
			Usage:    "go-getter URL to fetch the language server executable from",
			OnlyOnce: true,
		},
		&cli.StringFlag{
			Name:      workDirFlag,
			Aliases:   []string{"C"},
			Usage:     "Working directory of the language server and workspace root",
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.StringFlag{
			Name:     metricsAddrFlag,
			Usage:    "Serve metrics and debug endpoints on this address, e.g. 127.0.0.1:9465",
			OnlyOnce: true,
		},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	cfg, err := cmdstate.LoadConfig(ctx, cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	applyFlags(cfg, cmd)

	ui := newUI(cfg, cmd.Root().Writer)
	_, tuiActive := ui.(*tui.Runner)

	ctx, flush, err := cmdstate.SetupLogging(ctx, cfg, tuiActive)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer flush()

	if err := Run(ctx, cfg, ui); err != nil {
		if errors.Is(err, tui.ErrUserQuit) {
			return nil
		}

		ctxlog.Error(ctx, "run failed", "error", err)

		return cli.Exit(cliExitStr, 1)
	}

	return nil
}

func applyFlags(cfg *config.Config, cmd *cli.Command) {
	if v := cmd.String(serverFlag); v != "" {
		cfg.Server.Path = v
	}

	if v := cmd.String(sourceFlag); v != "" {
		cfg.Server.Source = v
	}

	if v := cmd.String(workDirFlag); v != "" {
		cfg.Server.WorkDir = v
	}

	if v := cmd.String(metricsAddrFlag); v != "" {
		cfg.Metrics.Addr = v
	}
}

// Run starts a session for cfg and drives ui until the server stops, the user
// quits or a shutdown is requested. The session is always closed before Run returns.
func Run(ctx context.Context, cfg *config.Config, ui tui.UI) error {
	m := metrics.New()

	// Indicator loops must not wait on collectors.
	feed := progress.NewChannelReporter(ctx, cfg.UI.QueueSize)
	feed.Listen(m)

	reporter := progress.MultiReporter{ui, feed}

	opts := append([]session.Option{
		session.WithReporter(reporter),
		session.WithObserver(m),
	}, dialOptions()...)

	sess := session.New(ctx, cfg, ui, opts...)
	ui.SetCanceller(sess.Registry())

	ctx = ctxlog.With(ctx, "session", sess.ID())

	uiCtx, stopUI := context.WithCancel(ctx)
	defer stopUI()

	g, gctx := errgroup.WithContext(uiCtx)
	g.Go(func() error {
		return ui.Run(gctx)
	})

	var dbg *debugserver.Server

	if cfg.Metrics.Addr != "" {
		dbg = debugserver.New(m.Handler(), sess.Registry())
		if err := dbg.Start(ctx, cfg.Metrics.Addr); err != nil {
			ctxlog.Warn(ctx, "debug server not started", "error", err)

			dbg = nil
		}
	}

	var result error

	if err := sess.Start(ctx); err != nil {
		ui.Show(notify.SeverityError, fmt.Sprintf("Failed to start language server: %v", err))
		result = err
	} else {
		result = wait(ctx, gctx, sess, ui, cfg.UI.Mode)
	}

	closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()

	if err := sess.Close(closeCtx); err != nil {
		ctxlog.Warn(ctx, "session close", "error", err)
	}

	if dbg != nil {
		if err := dbg.Shutdown(closeCtx); err != nil {
			ctxlog.Warn(ctx, "debug server shutdown", "error", err)
		}
	}

	ui.SessionEnded(result)
	stopUI()

	if err := g.Wait(); err != nil && result == nil {
		result = err
	}

	reporter.Close()

	return result
}

// wait blocks until the session should end. With the TUI a server that stops
// on its own stays on screen until the user quits.
func wait(ctx, uiCtx context.Context, sess *session.Session, ui tui.UI, mode string) error {
	select {
	case <-sess.Done():
		ctxlog.Warn(ctx, "language server disconnected")

		if _, ok := ui.(*tui.Runner); !ok {
			return ErrServerStopped
		}

		ui.SessionEnded(ErrServerStopped)

		select {
		case <-uiCtx.Done():
		case <-cmdstate.ShutdownRequested(ctx):
		case <-ctx.Done():
		}

		return ErrServerStopped

	case <-uiCtx.Done():
		return ctx.Err()

	case <-cmdstate.ShutdownRequested(ctx):
		ctxlog.Info(ctx, "shutdown requested", "ui", mode)
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

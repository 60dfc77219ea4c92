// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the lspbridge command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/lspbridge"
	"github.com/matt-FFFFFF/lspbridge/cmd/lspbridge/cmdstate"
	"github.com/matt-FFFFFF/lspbridge/cmd/lspbridge/console"
	"github.com/matt-FFFFFF/lspbridge/cmd/lspbridge/methods"
	"github.com/matt-FFFFFF/lspbridge/cmd/lspbridge/replay"
	"github.com/matt-FFFFFF/lspbridge/cmd/lspbridge/run"
	"github.com/matt-FFFFFF/lspbridge/internal/config"
	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
	"github.com/matt-FFFFFF/lspbridge/internal/signalbroker"
	"github.com/urfave/cli/v3"
)

// rootCmd is the root command for the CLI.
var rootCmd = &cli.Command{
	Commands: []*cli.Command{
		run.RunCmd,
		replay.ReplayCmd,
		console.ConsoleCmd,
		methods.MethodsCmd,
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:      cmdstate.ConfigFlag,
			Aliases:   []string{"c"},
			Usage:     "Configuration file",
			Value:     config.DefaultFileName,
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.StringFlag{
			Name:     cmdstate.LogLevelFlag,
			Usage:    "Log level: debug, info, warn or error. Overrides the configuration file",
			OnlyOnce: true,
		},
		&cli.StringFlag{
			Name:     cmdstate.UIFlag,
			Usage:    "User interface: auto, tui or plain. Overrides the configuration file",
			OnlyOnce: true,
		},
	},
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "lspbridge",
	Description: `lspbridge launches a language server over stdio and turns its custom
progress and message notifications into a terminal interface: a spinner per running
background operation and short-lived toasts for info, warning and error messages.`,
	Usage:     "lspbridge run --server rgo_lsp_server",
	Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
	Authors: []any{
		"Matt White (matt-FFFFFF)",
	},
	EnableShellCompletion: true,
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	ctx, shutdown := cmdstate.WithShutdown(ctx)

	sigCh := signalbroker.New(ctx)

	go signalbroker.Watch(ctx, sigCh, shutdown, cancel)

	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", lspbridge.Version, lspbridge.Commit)

	err := rootCmd.Run(ctx, os.Args) // Err is handled by cli framework

	// Check if the context was cancelled (e.g., due to signals)
	if ctx.Err() != nil {
		ctxlog.Logger(ctx).Error("command terminated due to cancellation", "error", ctx.Err())
		os.Exit(1)
	}

	if err != nil {
		ctxlog.Logger(ctx).Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

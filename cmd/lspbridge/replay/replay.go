// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/matt-FFFFFF/lspbridge/cmd/lspbridge/cmdstate"
	"github.com/matt-FFFFFF/lspbridge/internal/config"
	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
	"github.com/matt-FFFFFF/lspbridge/internal/tui"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const (
	fileArg    = "file"
	waitFlag   = "wait"
	cliExitStr = ""
)

var (
	// ErrReadFile is returned when the recording cannot be read.
	ErrReadFile = errors.New("failed to read recording")
	// ErrInvalidRecording is returned when the recording is not a valid list of steps.
	ErrInvalidRecording = errors.New("invalid recording")
)

// Step is one recorded notification.
type Step struct {
	Method string          `yaml:"method" validate:"required"`
	Params any             `yaml:"params"`
	Delay  config.Duration `yaml:"delay" validate:"gte=0"`
}

// Router receives replayed notifications, usually a notify.Dispatcher.
type Router interface {
	Route(ctx context.Context, method string, params json.RawMessage)
}

// ReplayCmd routes a recorded list of notifications through the dispatcher.
var ReplayCmd = &cli.Command{
	Name:  "replay",
	Usage: "Route recorded notifications through the dispatcher without a server",
	Description: `Replay a YAML list of notifications, each with a method, optional params
and an optional delay before it is routed, e.g.

  - method: custom/rgo/progress
    params: {type: start, id: rgo_progress_idl, message: "Loading package idl"}
  - method: custom/rgo/progress
    params: {type: stop, id: rgo_progress_idl}
    delay: 2s

This reproduces what the UI shows for a sequence of server notifications.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name: fileArg,
		},
	},
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:     waitFlag,
			Aliases:  []string{"w"},
			Usage:    "Keep running until every progress indicator has stopped",
			OnlyOnce: true,
		},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg(fileArg)
	if path == "" {
		return cli.Exit("Please specify the recording to replay.", 1)
	}

	cfg, err := cmdstate.LoadConfig(ctx, cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	steps, err := LoadSteps(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ui := cmdstate.NewUI(cfg, cmd.Root().Writer)
	_, tuiActive := ui.(*tui.Runner)

	ctx, flush, err := cmdstate.SetupLogging(ctx, cfg, tuiActive)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer flush()

	if err := Run(ctx, cfg, ui, steps, cmd.Bool(waitFlag)); err != nil && !errors.Is(err, tui.ErrUserQuit) {
		ctxlog.Error(ctx, "replay failed", "error", err)
		return cli.Exit(cliExitStr, 1)
	}

	return nil
}

// LoadSteps reads and validates a recording through config.FsFactory.
func LoadSteps(path string) ([]Step, error) {
	data, err := afero.ReadFile(config.FsFactory(), path)
	if err != nil {
		return nil, errors.Join(ErrReadFile, err)
	}

	var steps []Step
	if err := yaml.Unmarshal(data, &steps); err != nil {
		return nil, errors.Join(ErrInvalidRecording, err)
	}

	v := validator.New(validator.WithRequiredStructEnabled())

	for i := range steps {
		if err := v.Struct(&steps[i]); err != nil {
			return nil, errors.Join(ErrInvalidRecording, fmt.Errorf("step %d: %w", i, err))
		}
	}

	return steps, nil
}

// Run plays steps into a local dispatcher feeding ui. With wait it keeps going
// until no indicator is active, the user quits or a shutdown is requested.
func Run(ctx context.Context, cfg *config.Config, ui tui.UI, steps []Step, wait bool) error {
	uiCtx, stopUI := context.WithCancel(ctx)
	defer stopUI()

	g, gctx := errgroup.WithContext(uiCtx)
	g.Go(func() error {
		return ui.Run(gctx)
	})

	local := cmdstate.NewLocal(ctx, cfg, ui)

	result := Play(gctx, local.Dispatcher, steps)

	if result == nil && wait {
		result = waitIdle(gctx, local, cfg.Progress.PollInterval.Std())
	}

	local.Close()
	stopUI()

	if err := g.Wait(); err != nil {
		result = err
	}

	ui.Close()

	if errors.Is(result, context.Canceled) && ctx.Err() == nil {
		// uiCtx ended because of the UI or a shutdown request.
		return nil
	}

	return result
}

// Play routes every step in order, sleeping for its delay first.
func Play(ctx context.Context, r Router, steps []Step) error {
	for i, step := range steps {
		if d := step.Delay.Std(); d > 0 {
			t := time.NewTimer(d)

			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-cmdstate.ShutdownRequested(ctx):
				t.Stop()
				return nil
			case <-t.C:
			}
		}

		var params json.RawMessage

		if step.Params != nil {
			b, err := json.Marshal(step.Params)
			if err != nil {
				return errors.Join(ErrInvalidRecording, fmt.Errorf("step %d: %w", i, err))
			}

			params = b
		}

		ctxlog.Debug(ctx, "replay", "step", i, "method", step.Method)
		r.Route(ctx, step.Method, params)
	}

	return nil
}

func waitIdle(ctx context.Context, local *cmdstate.Local, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for local.Registry.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cmdstate.ShutdownRequested(ctx):
			return nil
		case <-ticker.C:
		}
	}

	return nil
}

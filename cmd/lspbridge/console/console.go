// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matt-FFFFFF/lspbridge/cmd/lspbridge/cmdstate"
	"github.com/matt-FFFFFF/lspbridge/internal/config"
	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
	"github.com/matt-FFFFFF/lspbridge/internal/tui"
	"github.com/peterh/liner"
	"github.com/urfave/cli/v3"
)

const prompt = "lspbridge> "

// ErrInvalidParams is returned when the text after the method is not JSON.
var ErrInvalidParams = errors.New("params must be a JSON value")

// ConsoleCmd is an interactive prompt that routes typed notifications.
var ConsoleCmd = &cli.Command{
	Name:  "console",
	Usage: "Type notifications by hand and watch how they are routed",
	Description: `Start an interactive prompt. Each line is a method followed by optional JSON params:

  custom/rgo/progress {"type":"start","id":"x","message":"Working"}
  custom/rgo/window_show_warn {"message":"careful"}

Other inputs:
  active   list the active progress indicators
  methods  list the handled methods
  quit     leave the console (also exit or Ctrl+C)`,
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	cfg, err := cmdstate.LoadConfig(ctx, cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// The prompt owns the terminal, so the plain UI is always used.
	cfg.UI.Mode = config.UIModePlain

	out := cmd.Root().Writer

	ctx, flush, err := cmdstate.SetupLogging(ctx, cfg, false)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer flush()

	ui := tui.NewPlain(out, cfg.UI.QueueSize)

	uiCtx, stopUI := context.WithCancel(ctx)
	uiDone := make(chan struct{})

	go func() {
		defer close(uiDone)
		_ = ui.Run(uiCtx)
	}()

	local := cmdstate.NewLocal(ctx, cfg, ui)

	defer func() {
		local.Close()
		stopUI()
		<-uiDone
	}()

	line := liner.NewLiner()
	defer func() {
		_ = line.Close()
	}()

	line.SetCtrlCAborts(true)
	line.SetCompleter(completer(local))

	_, _ = fmt.Fprintln(out, "Type `quit` or `exit`, or press Ctrl+C, to leave.")

	for {
		input, err := line.Prompt(prompt)

		switch {
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return cli.Exit(fmt.Sprintf("Error reading line: %v", err), 1)
		}

		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		quit, err := Exec(ctx, local, input, out)
		if err != nil {
			_, _ = fmt.Fprintln(out, err)
		}

		if quit || ctx.Err() != nil {
			return nil
		}

		// Give the UI pump a moment so output does not land on the prompt line.
		time.Sleep(10 * time.Millisecond) //nolint:mnd
	}
}

// ParseLine splits a console line into a method and its raw JSON params.
// Params are optional; when present they must be valid JSON.
func ParseLine(input string) (string, json.RawMessage, error) {
	input = strings.TrimSpace(input)
	method, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	if rest == "" {
		return method, nil, nil
	}

	if !json.Valid([]byte(rest)) {
		return method, nil, fmt.Errorf("%w: %s", ErrInvalidParams, rest)
	}

	return method, json.RawMessage(rest), nil
}

// Exec runs one console line against local. It reports whether the user asked to leave.
func Exec(ctx context.Context, local *cmdstate.Local, input string, w io.Writer) (bool, error) {
	method, params, err := ParseLine(input)
	if err != nil {
		return false, err
	}

	switch method {
	case "":
		return false, nil

	case "quit", "exit":
		return true, nil

	case "active":
		active := local.Registry.Active()
		if len(active) == 0 {
			_, _ = fmt.Fprintln(w, "no active indicators")
		}

		for _, e := range active {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.Message, time.Since(e.Started).Round(time.Millisecond))
		}

		return false, nil

	case "methods":
		for _, m := range local.Dispatcher.Methods() {
			_, _ = fmt.Fprintln(w, m)
		}

		return false, nil
	}

	if !local.Dispatcher.Handles(method) {
		ctxlog.Debug(ctx, "console", "detail", "method is not handled and will be ignored", "method", method)
	}

	local.Dispatcher.Route(ctx, method, params)

	return false, nil
}

func completer(local *cmdstate.Local) liner.Completer {
	words := append([]string{"active", "methods", "quit", "exit"}, local.Dispatcher.Methods()...)

	return func(line string) []string {
		var out []string

		for _, w := range words {
			if strings.HasPrefix(w, line) {
				out = append(out, w)
			}
		}

		return out
	}
}

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package methods

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/matt-FFFFFF/lspbridge/cmd/lspbridge/cmdstate"
	"github.com/matt-FFFFFF/lspbridge/internal/notify"
	"github.com/matt-FFFFFF/lspbridge/internal/progress"
	"github.com/urfave/cli/v3"
)

// MethodsCmd prints the notification methods the dispatcher handles.
var MethodsCmd = &cli.Command{
	Name:  "methods",
	Usage: "List the notification methods that are routed",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := cmdstate.LoadConfig(ctx, cmd)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		return Print(ctx, cmd.Root().Writer, cfg.Notifications.MethodPrefix)
	},
}

var descriptions = map[string]string{
	"progress":           "start or stop a progress indicator",
	"window_show_info":   "show an information message",
	"window_show_warn":   "show a warning message",
	"window_show_error":  "show an error message",
	"window/showMessage": "show a message by LSP message type, log types are only logged",
	"window/logMessage":  "write a message to the log",
}

// Print writes the dispatch table for prefix, one method per line.
func Print(ctx context.Context, w io.Writer, prefix string) error {
	reg := progress.NewRegistry(ctx)
	d := notify.NewDispatcher(reg, notify.SinkFunc(func(notify.Severity, string) {}), notify.WithMethodPrefix(prefix))

	for _, m := range d.Methods() {
		desc := descriptions[strings.TrimPrefix(m, prefix)]
		if _, err := fmt.Fprintf(w, "%-40s %s\n", m, desc); err != nil {
			return err
		}
	}

	return nil
}

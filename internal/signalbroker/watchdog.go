// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"
	"os/signal"

	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
)

// Watch monitors the signal channel until ctx is done or the channel is closed.
// The first signal of a type calls graceful (if not nil), which should start an
// orderly shutdown of the session. The second signal of the same type calls cancel.
// Signal delivery to sigCh is stopped when Watch returns.
func Watch(ctx context.Context, sigCh chan os.Signal, graceful, cancel context.CancelFunc) {
	defer signal.Stop(sigCh)

	sigMap := make(map[os.Signal]struct{})

	for {
		select {
		case <-ctx.Done():
			return

		case sig, ok := <-sigCh:
			if !ok {
				return
			}

			if _, seen := sigMap[sig]; seen {
				ctxlog.Logger(ctx).Info("watchdog", "detail", "received second signal of type, forcefully terminating", "signal", sig.String())
				cancel()

				return
			}

			ctxlog.Logger(ctx).Info("watchdog", "detail", "received first signal of type, shutting down", "signal", sig.String())

			sigMap[sig] = struct{}{}

			if graceful != nil {
				graceful()
			}
		}
	}
}

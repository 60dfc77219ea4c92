// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker turns OS signals into a language server shutdown.
// By default it listens for the termination signals plus SIGHUP, so closing the
// terminal also stops the server the bridge launched.
//
// Watch starts a graceful shutdown on the first signal and cancels a context
// when a second signal of the same type arrives.
package signalbroker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
)

// pendingSignals is how many signals can wait for Watch. A double Ctrl+C
// during a slow shutdown must reach Watch as two signals.
const pendingSignals = 2

// DefaultSignals are subscribed to when New is given none.
var DefaultSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
	syscall.SIGQUIT,
	syscall.SIGHUP,
}

// New subscribes a channel to sigs, or to DefaultSignals when none are given.
// Watch unsubscribes it when it returns.
func New(ctx context.Context, sigs ...os.Signal) chan os.Signal {
	if len(sigs) == 0 {
		sigs = DefaultSignals
	}

	sigCh := make(chan os.Signal, pendingSignals)
	signal.Notify(sigCh, sigs...)

	ctxlog.Debug(ctx, "listening for signals", "signals", sigs)

	return sigCh
}

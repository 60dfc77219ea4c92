// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog provides a context-aware logger built on log/slog.
//
// The logger travels in the context so that the receive path, indicator loops
// and UI pumps all log with the session attributes attached by their caller.
// The default is a pretty console handler on stderr; Configure switches to a
// log file (needed while the TUI owns the terminal) or to JSON output.
//
// The level comes from an environment variable named after the executable
// (lspbridge reads LSPBRIDGE_LOG_LEVEL) and defaults to WARN.
package ctxlog

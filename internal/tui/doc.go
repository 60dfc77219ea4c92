// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui provides the host user interfaces for lspbridge: a bubbletea
// Terminal User Interface that lists running progress indicators with a
// spinner and shows server messages as short-lived toasts, and a plain
// line-oriented fallback for headless environments.
//
// Both receive messages through a Bridge, which queues them and delivers
// them in order on a single goroutine so the language server connection never
// waits for rendering.
package tui

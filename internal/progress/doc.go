// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress tracks the named background operations announced by the
// language server and drives one indicator per operation.
//
// A Registry maps server supplied ids to entries. Start inserts an entry and
// launches an indicator loop goroutine; Stop (server) and Cancel (UI) remove it.
// The loop learns about removal through a per-entry done channel, falls back to
// polling the registry on a fixed interval, and reports EventStarted, EventTick
// and EventFinished to a Reporter. The registry never talks to the UI directly.
package progress

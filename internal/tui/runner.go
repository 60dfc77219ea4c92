// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/lspbridge/internal/notify"
	"github.com/matt-FFFFFF/lspbridge/internal/progress"
)

// ErrUserQuit is returned by Run when the user quits the interface.
var ErrUserQuit = errors.New("user quit")

// UI is a host interface: it shows messages, renders progress indicators and
// runs until its context ends or the user leaves.
type UI interface {
	notify.Sink
	progress.Reporter
	SetCanceller(c Canceller)
	SessionEnded(err error)
	Run(ctx context.Context) error
}

var _ UI = (*Runner)(nil)

// Runner manages the TUI application and progress event integration.
type Runner struct {
	*Bridge

	model   *Model
	program *tea.Program
}

// NewRunner creates a new TUI runner. Extra program options are mainly for tests.
func NewRunner(queueSize int, opts ...tea.ProgramOption) *Runner {
	model := NewModel()
	program := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)

	return &Runner{
		Bridge:  NewBridge(queueSize, program.Send),
		model:   model,
		program: program,
	}
}

// SetCanceller wires the dismiss key to c.
func (r *Runner) SetCanceller(c Canceller) {
	r.model.SetCanceller(c)
}

// SessionEnded shows that the server connection is gone.
func (r *Runner) SessionEnded(err error) {
	r.Send(SessionEndedMsg{Err: err})
}

// Model returns the underlying bubbletea model.
func (r *Runner) Model() *Model {
	return r.model
}

// Run starts the TUI and blocks until ctx is done or the user quits.
// A user quit returns ErrUserQuit so callers can shut the session down.
func (r *Runner) Run(ctx context.Context) error {
	tuiDone := make(chan error, 1)

	go func() {
		_, err := r.program.Run()
		tuiDone <- err
	}()

	var err error

	select {
	case err = <-tuiDone:
	case <-ctx.Done():
		r.program.Quit()
		err = <-tuiDone
	}

	// Program.Send returns at once after the program has stopped, so the pump drains.
	r.Close()
	<-r.Done()

	switch {
	case err != nil && !errors.Is(err, tea.ErrProgramKilled):
		return err
	case r.model.Quitting():
		return ErrUserQuit
	default:
		return nil
	}
}

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/lspbridge/internal/notify"
	"github.com/matt-FFFFFF/lspbridge/internal/progress"
)

var _ UI = (*Plain)(nil)

// Plain is the headless UI: one line per event, no cursor movement.
// Ticks are not printed. It has no dismiss key, so SetCanceller is a no-op.
type Plain struct {
	*Bridge

	w      io.Writer
	styles *Styles
	now    func() time.Time
}

// NewPlain writes to w, colouring output only when w is a terminal.
func NewPlain(w io.Writer, queueSize int) *Plain {
	r := lipgloss.NewRenderer(w)

	p := &Plain{
		w:   w,
		now: time.Now,
		styles: &Styles{
			Spinner: r.NewStyle().Foreground(lipgloss.Color("11")),
			Elapsed: r.NewStyle().Foreground(lipgloss.Color("8")),
			Info:    r.NewStyle().Foreground(lipgloss.Color("10")),
			Warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
			Error:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		},
	}

	p.Bridge = NewBridge(queueSize, p.render)

	return p
}

// SetCanceller implements UI.
func (p *Plain) SetCanceller(Canceller) {}

// SessionEnded implements UI.
func (p *Plain) SessionEnded(err error) {
	p.Send(SessionEndedMsg{Err: err})
}

// Run blocks until ctx is done, then flushes queued lines.
func (p *Plain) Run(ctx context.Context) error {
	<-ctx.Done()

	p.Close()
	<-p.Done()

	return nil
}

func (p *Plain) render(msg tea.Msg) {
	var line string

	switch msg := msg.(type) {
	case ShowMsg:
		switch msg.Severity {
		case notify.SeverityError:
			line = p.styles.Error.Render("error: " + msg.Message)
		case notify.SeverityWarn:
			line = p.styles.Warn.Render("warning: " + msg.Message)
		default:
			line = p.styles.Info.Render("info: " + msg.Message)
		}

	case ProgressEventMsg:
		ev := msg.Event

		switch ev.Type {
		case progress.EventStarted:
			line = p.styles.Spinner.Render("… ") + ev.Message
		case progress.EventFinished:
			line = p.styles.Muted.Render(fmt.Sprintf("✓ %s (%s, %v)", ev.Message, ev.Reason, ev.Elapsed.Round(elapsedRounding)))
		default:
			return
		}

	case SessionEndedMsg:
		line = p.styles.Muted.Render("language server stopped")
		if msg.Err != nil {
			line = p.styles.Error.Render("language server stopped: " + msg.Err.Error())
		}

	default:
		return
	}

	ts := p.styles.Elapsed.Render(p.now().Format("15:04:05"))
	_, _ = fmt.Fprintf(p.w, "%s %s\n", ts, line)
}

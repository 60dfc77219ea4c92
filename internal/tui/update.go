// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/lspbridge/internal/notify"
	"github.com/matt-FFFFFF/lspbridge/internal/progress"
)

const (
	elapsedRounding = 100 * time.Millisecond
	minMessageWidth = 20
	ellipsis        = "..."
)

// ProgressEventMsg wraps a progress event for the tea framework.
type ProgressEventMsg struct {
	Event progress.Event
}

// ShowMsg is a user-visible message from the language server.
type ShowMsg struct {
	Severity notify.Severity
	Message  string
}

// SessionEndedMsg tells the UI that the language server connection is gone.
type SessionEndedMsg struct {
	Err error
}

// Init implements bubbletea.Model.Init.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements bubbletea.Model.Update.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mutex.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.mutex.Unlock()

		return m, nil

	case ProgressEventMsg:
		m.processProgressEvent(msg.Event)
		return m, nil

	case ShowMsg:
		m.processShow(msg)
		return m, nil

	case SessionEndedMsg:
		m.mutex.Lock()
		m.ended = true
		m.endErr = msg.Err
		m.indicators = nil
		m.selected = 0
		m.mutex.Unlock()

		return m, nil

	case spinner.TickMsg:
		m.mutex.Lock()
		m.expireToasts()
		m.mutex.Unlock()

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

// handleKeyPress processes keyboard input.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mutex.Lock()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.mutex.Unlock()

		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.indicators)-1 {
			m.selected++
		}

	case key.Matches(msg, m.keys.Clear):
		m.toasts = nil

	case key.Matches(msg, m.keys.Dismiss):
		if len(m.indicators) > 0 && m.canceller != nil {
			id := m.indicators[m.selected].ID
			canceller := m.canceller
			m.mutex.Unlock()

			// The registry reports the removal back as a finished event.
			canceller.Cancel(id)

			return m, nil
		}
	}

	m.mutex.Unlock()

	return m, nil
}

// Quitting reports whether the user asked to quit.
func (m *Model) Quitting() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.quitting
}

// View implements bubbletea.Model.View.
func (m *Model) View() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.quitting {
		return "Shutting down...\n"
	}

	var view strings.Builder

	view.WriteString(m.styles.Title.Render("lspbridge"))
	view.WriteString("\n")

	switch {
	case m.ended && m.endErr != nil:
		view.WriteString(m.styles.Error.Render("Language server stopped: " + m.endErr.Error()))
		view.WriteString("\n")
	case m.ended:
		view.WriteString(m.styles.Muted.Render("Language server stopped"))
		view.WriteString("\n")
	case len(m.indicators) == 0:
		view.WriteString(m.styles.Muted.Render("Idle"))
		view.WriteString("\n")
	}

	for i, ind := range m.indicators {
		m.renderIndicator(&view, ind, i == m.selected)
	}

	if len(m.toasts) > 0 {
		view.WriteString("\n")

		for _, t := range m.toasts {
			view.WriteString(m.renderToast(t))
			view.WriteString("\n")
		}
	}

	view.WriteString("\n")
	view.WriteString(m.help.View(m.keys))

	return view.String()
}

func (m *Model) renderIndicator(b *strings.Builder, ind *Indicator, selected bool) {
	cursor := "  "
	msgStyle := m.styles.Message

	if selected {
		cursor = "> "
		msgStyle = m.styles.Selected
	}

	elapsed := m.styles.Elapsed.Render(fmt.Sprintf(" (%v)", ind.Elapsed.Round(elapsedRounding)))

	b.WriteString(cursor)
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(msgStyle.Render(truncate(ind.Message, m.messageWidth(lipgloss.Width(elapsed)))))
	b.WriteString(elapsed)
	b.WriteString("\n")
}

func (m *Model) renderToast(t Toast) string {
	switch t.Severity {
	case notify.SeverityError:
		return m.styles.Error.Render("✖ " + t.Message)
	case notify.SeverityWarn:
		return m.styles.Warn.Render("⚠ " + t.Message)
	default:
		return m.styles.Info.Render("ℹ " + t.Message)
	}
}

// messageWidth returns the room left for an indicator message on one line.
func (m *Model) messageWidth(reserved int) int {
	if m.width == 0 {
		return 0
	}

	// cursor, spinner and separator
	w := m.width - reserved - 4 //nolint:mnd

	return max(w, minMessageWidth)
}

// truncate shortens s to width cells; width 0 means unlimited.
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}

	runes := []rune(s)
	if width <= len(ellipsis) {
		return string(runes[:width])
	}

	return string(runes[:width-len(ellipsis)]) + ellipsis
}

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/lspbridge/internal/notify"
	"github.com/matt-FFFFFF/lspbridge/internal/progress"
)

const (
	maxToasts = 5
	toastTTL  = 8 * time.Second
)

// Canceller stops an indicator from the UI side.
type Canceller interface {
	Cancel(id string) bool
}

// Indicator is one running background operation shown in the list.
type Indicator struct {
	ID      string
	Message string
	Started time.Time
	Elapsed time.Duration
}

// Toast is a transient user-visible message.
type Toast struct {
	Severity notify.Severity
	Message  string
	At       time.Time
}

// Model represents the TUI application state.
type Model struct {
	indicators []*Indicator // in start order
	toasts     []Toast
	selected   int
	width      int
	height     int
	quitting   bool
	ended      bool
	endErr     error
	canceller  Canceller
	now        func() time.Time
	mutex      sync.RWMutex

	spinner spinner.Model
	help    help.Model
	keys    keyMap
	styles  *Styles
}

// Styles contains all the styling for the TUI.
type Styles struct {
	Title    lipgloss.Style
	Spinner  lipgloss.Style
	Message  lipgloss.Style
	Selected lipgloss.Style
	Elapsed  lipgloss.Style
	Info     lipgloss.Style
	Warn     lipgloss.Style
	Error    lipgloss.Style
	Muted    lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginBottom(1),
		Spinner: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")),
		Message: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")),
		Selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Bold(true),
		Elapsed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Italic(true),
		Info: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Warn: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
	}
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Dismiss key.Binding
	Clear   key.Binding
	Quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x", "delete"),
			key.WithHelp("x", "dismiss indicator"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear messages"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Dismiss, k.Clear, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// NewModel creates a new TUI model.
func NewModel() *Model {
	styles := NewStyles()

	return &Model{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Spinner)),
		help:    help.New(),
		keys:    newKeyMap(),
		styles:  styles,
		now:     time.Now,
	}
}

// SetCanceller sets what the dismiss key stops, usually the session's progress registry.
func (m *Model) SetCanceller(c Canceller) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.canceller = c
}

// Indicators returns a copy of the indicator list.
func (m *Model) Indicators() []Indicator {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]Indicator, 0, len(m.indicators))
	for _, ind := range m.indicators {
		out = append(out, *ind)
	}

	return out
}

// Toasts returns a copy of the visible messages, oldest first.
func (m *Model) Toasts() []Toast {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return slices.Clone(m.toasts)
}

// processProgressEvent applies an indicator event. Finished events only remove
// the run they belong to, so a restarted id is not dropped by the old loop.
func (m *Model) processProgressEvent(event progress.Event) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	idx := slices.IndexFunc(m.indicators, func(ind *Indicator) bool {
		return ind.ID == event.ID && ind.Started.Equal(event.Started)
	})

	switch event.Type {
	case progress.EventStarted:
		if idx < 0 {
			m.indicators = append(m.indicators, &Indicator{
				ID:      event.ID,
				Message: event.Message,
				Started: event.Started,
			})
		}

	case progress.EventTick:
		if idx >= 0 {
			m.indicators[idx].Elapsed = event.Elapsed
		}

	case progress.EventFinished:
		if idx >= 0 {
			m.indicators = slices.Delete(m.indicators, idx, idx+1)
		}

		if event.Reason == progress.ReasonCancelled {
			m.addToast(notify.SeverityInfo, "Dismissed: "+event.Message)
		}

		m.clampSelection()
	}
}

func (m *Model) processShow(msg ShowMsg) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.addToast(msg.Severity, msg.Message)
}

// addToast must be called with the mutex held.
func (m *Model) addToast(severity notify.Severity, message string) {
	m.toasts = append(m.toasts, Toast{Severity: severity, Message: message, At: m.now()})
	if len(m.toasts) > maxToasts {
		m.toasts = slices.Delete(m.toasts, 0, len(m.toasts)-maxToasts)
	}
}

// expireToasts drops messages older than toastTTL. It must be called with the mutex held.
func (m *Model) expireToasts() {
	cutoff := m.now().Add(-toastTTL)
	m.toasts = slices.DeleteFunc(m.toasts, func(t Toast) bool {
		return t.At.Before(cutoff)
	})
}

// clampSelection must be called with the mutex held.
func (m *Model) clampSelection() {
	if m.selected >= len(m.indicators) {
		m.selected = len(m.indicators) - 1
	}

	if m.selected < 0 {
		m.selected = 0
	}
}

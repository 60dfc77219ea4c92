// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/lspbridge/internal/notify"
	"github.com/matt-FFFFFF/lspbridge/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cancelRecorder struct {
	ids []string
}

func (c *cancelRecorder) Cancel(id string) bool {
	c.ids = append(c.ids, id)
	return true
}

func started(id, msg string, at time.Time) ProgressEventMsg {
	return ProgressEventMsg{Event: progress.Event{ID: id, Type: progress.EventStarted, Message: msg, Started: at}}
}

func finished(id, msg string, at time.Time, reason progress.FinishReason) ProgressEventMsg {
	return ProgressEventMsg{Event: progress.Event{ID: id, Type: progress.EventFinished, Message: msg, Started: at, Reason: reason}}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_IndicatorLifecycle(t *testing.T) {
	m := NewModel()
	at := time.Now()

	m.Update(started("a", "Loading package", at))
	m.Update(started("b", "Indexing", at))

	inds := m.Indicators()
	require.Len(t, inds, 2)
	assert.Equal(t, "a", inds[0].ID)
	assert.Equal(t, "Indexing", inds[1].Message)

	m.Update(ProgressEventMsg{Event: progress.Event{ID: "a", Type: progress.EventTick, Started: at, Elapsed: 3 * time.Second}})
	assert.Equal(t, 3*time.Second, m.Indicators()[0].Elapsed)

	m.Update(finished("a", "Loading package", at, progress.ReasonStopped))

	inds = m.Indicators()
	require.Len(t, inds, 1)
	assert.Equal(t, "b", inds[0].ID)
	assert.Empty(t, m.Toasts())
}

func TestModel_DuplicateStartIgnored(t *testing.T) {
	m := NewModel()
	at := time.Now()

	m.Update(started("a", "first", at))
	m.Update(started("a", "first", at))

	assert.Len(t, m.Indicators(), 1)
}

func TestModel_StaleFinishKeepsRestartedIndicator(t *testing.T) {
	m := NewModel()
	first := time.Now()
	second := first.Add(time.Second)

	m.Update(started("a", "run 1", first))
	m.Update(finished("a", "run 1", first, progress.ReasonStopped))
	m.Update(started("a", "run 2", second))
	// A late finish for the first run must not remove the second.
	m.Update(finished("a", "run 1", first, progress.ReasonStopped))

	inds := m.Indicators()
	require.Len(t, inds, 1)
	assert.Equal(t, "run 2", inds[0].Message)
}

func TestModel_CancelledFinishAddsToast(t *testing.T) {
	m := NewModel()
	at := time.Now()

	m.Update(started("a", "Loading", at))
	m.Update(finished("a", "Loading", at, progress.ReasonCancelled))

	toasts := m.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Dismissed: Loading", toasts[0].Message)
	assert.Equal(t, notify.SeverityInfo, toasts[0].Severity)
}

func TestModel_Toasts(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewModel()
	m.now = func() time.Time { return now }

	for i := range maxToasts + 2 {
		m.Update(ShowMsg{Severity: notify.SeverityWarn, Message: string(rune('a' + i))})
	}

	toasts := m.Toasts()
	require.Len(t, toasts, maxToasts)
	assert.Equal(t, "c", toasts[0].Message, "oldest messages are dropped first")

	now = now.Add(toastTTL + time.Second)
	m.Update(spinner.TickMsg{})
	assert.Empty(t, m.Toasts())
}

func TestModel_ClearKey(t *testing.T) {
	m := NewModel()
	m.Update(ShowMsg{Severity: notify.SeverityError, Message: "boom"})
	require.Len(t, m.Toasts(), 1)

	m.Update(keyRunes("c"))
	assert.Empty(t, m.Toasts())
}

func TestModel_SelectionAndDismiss(t *testing.T) {
	m := NewModel()
	c := &cancelRecorder{}
	m.SetCanceller(c)

	at := time.Now()
	m.Update(started("a", "one", at))
	m.Update(started("b", "two", at))
	m.Update(started("c", "three", at))

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(keyRunes("j"))
	m.Update(keyRunes("j"))
	m.Update(keyRunes("x"))

	assert.Equal(t, []string{"c"}, c.ids)

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m.Update(keyRunes("x"))
	assert.Equal(t, []string{"c", "b"}, c.ids)

	// Removing the selected last row moves the cursor up.
	m.Update(finished("c", "three", at, progress.ReasonCancelled))
	m.Update(finished("b", "two", at, progress.ReasonCancelled))
	m.Update(keyRunes("x"))
	assert.Equal(t, []string{"c", "b", "a"}, c.ids)
}

func TestModel_DismissWithoutIndicators(t *testing.T) {
	m := NewModel()
	c := &cancelRecorder{}
	m.SetCanceller(c)

	_, cmd := m.Update(keyRunes("x"))
	assert.Nil(t, cmd)
	assert.Empty(t, c.ids)
}

func TestModel_Quit(t *testing.T) {
	m := NewModel()

	_, cmd := m.Update(keyRunes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.Quitting())
	assert.Equal(t, "Shutting down...\n", m.View())
}

func TestModel_SessionEnded(t *testing.T) {
	m := NewModel()
	m.Update(started("a", "one", time.Now()))
	m.Update(SessionEndedMsg{Err: errors.New("exit status 1")})

	assert.Empty(t, m.Indicators())
	assert.Contains(t, m.View(), "Language server stopped: exit status 1")
}

func TestModel_View(t *testing.T) {
	m := NewModel()
	assert.Contains(t, m.View(), "Idle")

	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m.Update(started("a", "Loading package foo", time.Now()))
	m.Update(ShowMsg{Severity: notify.SeverityWarn, Message: "careful"})

	view := m.View()
	assert.Contains(t, view, "lspbridge")
	assert.Contains(t, view, "Loading package foo")
	assert.Contains(t, view, "careful")
	assert.NotContains(t, view, "Idle")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"unlimited", "hello world", 0, "hello world"},
		{"fits", "hello", 10, "hello"},
		{"ellipsis", "hello world", 8, "hello..."},
		{"tiny", "hello", 2, "he"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.in, tt.width))
		})
	}
}

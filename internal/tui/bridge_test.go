// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/lspbridge/internal/notify"
	"github.com/matt-FFFFFF/lspbridge/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBridge_DeliversInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	var got []tea.Msg

	b := NewBridge(16, func(msg tea.Msg) { got = append(got, msg) })

	b.Show(notify.SeverityInfo, "one")
	b.Report(progress.Event{ID: "a", Type: progress.EventStarted})
	b.Send(SessionEndedMsg{})
	b.Close()
	<-b.Done()

	require.Len(t, got, 3)
	assert.Equal(t, ShowMsg{Severity: notify.SeverityInfo, Message: "one"}, got[0])
	assert.Equal(t, "a", got[1].(ProgressEventMsg).Event.ID)
	assert.IsType(t, SessionEndedMsg{}, got[2])
	assert.Zero(t, b.Dropped())
}

func TestBridge_ShedsOnlyTicksWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	first := make(chan struct{})

	var (
		once sync.Once
		mu   sync.Mutex
		got  []tea.Msg
	)

	b := NewBridge(4, func(msg tea.Msg) {
		once.Do(func() {
			close(first)
			<-release
		})

		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	})

	b.Show(notify.SeverityInfo, "held by the pump")
	<-first

	at := time.Now()
	b.Report(progress.Event{ID: "a", Type: progress.EventStarted, Message: "Loading", Started: at})

	for range 10 {
		b.Report(progress.Event{ID: "a", Type: progress.EventTick, Started: at})
	}

	b.Report(progress.Event{ID: "a", Type: progress.EventFinished, Message: "Loading", Started: at, Reason: progress.ReasonStopped})
	b.Show(notify.SeverityError, "boom")
	b.Send(SessionEndedMsg{})

	assert.Equal(t, uint64(7), b.Dropped(), "only ticks beyond the queue size are shed")

	close(release)
	b.Close()
	<-b.Done()

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, got, 8)
	assert.Equal(t, progress.EventStarted, got[1].(ProgressEventMsg).Event.Type)
	assert.Equal(t, progress.EventFinished, got[5].(ProgressEventMsg).Event.Type)
	assert.Equal(t, ShowMsg{Severity: notify.SeverityError, Message: "boom"}, got[6])
	assert.IsType(t, SessionEndedMsg{}, got[7])

	// SessionEndedMsg clears indicators on its own, so leave it out.
	m := NewModel()
	for _, msg := range got[:7] {
		m.Update(msg)
	}

	assert.Empty(t, m.Indicators())
	require.Len(t, m.Toasts(), 2)
	assert.Equal(t, "boom", m.Toasts()[1].Message)
}

func TestBridge_NeverBlocksOnLifecycleMessages(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	b := NewBridge(1, func(tea.Msg) { <-release })

	done := make(chan struct{})

	go func() {
		for i := range 100 {
			b.Show(notify.SeverityInfo, string(rune('a'+i%26)))
		}

		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Show blocked on a busy pump")
	}

	assert.Zero(t, b.Dropped())

	close(release)
	b.Close()
	<-b.Done()
}

func TestBridge_CloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewBridge(0, func(tea.Msg) {})
	b.Close()
	b.Close()
	<-b.Done()

	// Messages after close are discarded without panicking.
	b.Show(notify.SeverityError, "late")
	assert.Zero(t, b.Dropped())
}

func TestPlain_Render(t *testing.T) {
	defer goleak.VerifyNone(t)

	var buf bytes.Buffer

	p := NewPlain(&buf, 8)
	p.now = func() time.Time { return time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC) }

	at := time.Now()
	p.Report(progress.Event{ID: "a", Type: progress.EventStarted, Message: "Loading", Started: at})
	p.Report(progress.Event{ID: "a", Type: progress.EventTick, Message: "Loading", Started: at})
	p.Report(progress.Event{
		ID: "a", Type: progress.EventFinished, Message: "Loading", Started: at,
		Reason: progress.ReasonStopped, Elapsed: 1500 * time.Millisecond,
	})
	p.Show(notify.SeverityInfo, "hello")
	p.Show(notify.SeverityWarn, "careful")
	p.Show(notify.SeverityError, "boom")
	p.SessionEnded(nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.NoError(t, p.Run(ctx))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 6, "ticks are not printed")

	out := buf.String()
	assert.Contains(t, out, "09:30:00")
	assert.Contains(t, out, "… Loading")
	assert.Contains(t, out, "✓ Loading (stopped, 1.5s)")
	assert.Contains(t, out, "info: hello")
	assert.Contains(t, out, "warning: careful")
	assert.Contains(t, out, "error: boom")
	assert.Contains(t, out, "language server stopped")
}

func TestRunner_ContextCancel(t *testing.T) {
	r := newTestRunner()

	ctx, cancel := context.WithCancel(t.Context())

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	r.Show(notify.SeverityInfo, "hello")
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunner_UserQuit(t *testing.T) {
	r := newTestRunner()
	c := &cancelRecorder{}
	r.SetCanceller(c)

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(t.Context()) }()

	at := time.Now()
	r.Report(progress.Event{ID: "a", Type: progress.EventStarted, Message: "Loading", Started: at})
	r.Send(keyRunes("x"))
	r.Send(keyRunes("q"))

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrUserQuit)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after quit")
	}

	assert.Equal(t, []string{"a"}, c.ids)
}

func newTestRunner() *Runner {
	return NewRunner(16,
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)
}

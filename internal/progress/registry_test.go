// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testPoll = 5 * time.Millisecond

// nextEvent waits for the next event of the given type, skipping ticks for other types.
func nextEvent(t *testing.T, ch <-chan Event, typ EventType) Event {
	t.Helper()

	deadline := time.After(2 * time.Second)

	for {
		select {
		case ev := <-ch:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event within deadline", typ)
		}
	}
}

func TestRegistry_StartIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := NewRegistry(context.Background(), WithPollInterval(testPoll))

	assert.True(t, reg.Start("a", "first"))
	assert.False(t, reg.Start("a", "second"))
	assert.Equal(t, 1, reg.Len())

	active := reg.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "first", active[0].Message, "duplicate start must not replace the original entry")
	assert.Equal(t, StateRunning, active[0].State)

	reg.Stop("a")
	reg.Wait()
}

func TestRegistry_StopUnknownIsNoop(t *testing.T) {
	reg := NewRegistry(context.Background())

	assert.NotPanics(t, func() {
		assert.False(t, reg.Stop("never-started"))
		assert.False(t, reg.Cancel("never-started"))
	})
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := NewRegistry(context.Background(), WithPollInterval(testPoll))

	reg.Start("a", "msg")
	assert.True(t, reg.IsActive("a"))

	assert.True(t, reg.Stop("a"))
	assert.False(t, reg.IsActive("a"))
	assert.False(t, reg.Stop("a"), "second stop is a no-op")

	reg.Wait()
}

func TestRegistry_StopBeforeStartThenStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := NewRegistry(context.Background(), WithPollInterval(testPoll))

	reg.Stop("late")
	assert.True(t, reg.Start("late", "arrives after its stop"))
	assert.True(t, reg.IsActive("late"))

	reg.Stop("late")
	reg.Wait()
}

func TestRegistry_IndicatorEvents(t *testing.T) {
	tests := []struct {
		name   string
		remove func(*Registry, string)
		reason FinishReason
	}{
		{"server stop", func(r *Registry, id string) { r.Stop(id) }, ReasonStopped},
		{"ui cancel", func(r *Registry, id string) { r.Cancel(id) }, ReasonCancelled},
		{"clear", func(r *Registry, _ string) { r.Clear() }, ReasonInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			rep := NewChannelReporter(context.Background(), 64)
			defer rep.Close()

			reg := NewRegistry(context.Background(), WithPollInterval(testPoll), WithReporter(rep))
			reg.Start("rgo_progress_src", "RGO generating src code...")

			started := nextEvent(t, rep.Events(), EventStarted)
			assert.Equal(t, "rgo_progress_src", started.ID)
			assert.Equal(t, "RGO generating src code...", started.Message)

			nextEvent(t, rep.Events(), EventTick)

			tt.remove(reg, "rgo_progress_src")

			finished := nextEvent(t, rep.Events(), EventFinished)
			assert.Equal(t, tt.reason, finished.Reason)
			assert.False(t, reg.IsActive("rgo_progress_src"))

			reg.Wait()
		})
	}
}

func TestRegistry_StopObservedWithinOneInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	rep := NewChannelReporter(context.Background(), 64)
	defer rep.Close()

	// A long poll interval shows that removal does not wait for the next tick.
	reg := NewRegistry(context.Background(), WithPollInterval(time.Hour), WithReporter(rep))
	reg.Start("a", "m")
	nextEvent(t, rep.Events(), EventStarted)

	stopped := time.Now()
	reg.Stop("a")

	nextEvent(t, rep.Events(), EventFinished)
	assert.Less(t, time.Since(stopped), time.Second)
	reg.Wait()
}

func TestRegistry_ContextCancelInterruptsLoops(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	rep := NewChannelReporter(context.Background(), 64)
	defer rep.Close()

	reg := NewRegistry(ctx, WithPollInterval(time.Hour), WithReporter(rep))
	reg.Start("a", "m")
	nextEvent(t, rep.Events(), EventStarted)

	cancel()

	finished := nextEvent(t, rep.Events(), EventFinished)
	assert.Equal(t, ReasonInterrupted, finished.Reason)
	reg.Wait()

	assert.False(t, reg.IsActive("a"))
	assert.False(t, reg.Start("b", "after shutdown"), "no new entries once the context is done")
}

func TestRegistry_RestartSameIDKeepsNewEntryAlive(t *testing.T) {
	defer goleak.VerifyNone(t)

	rep := NewChannelReporter(context.Background(), 256)
	defer rep.Close()

	reg := NewRegistry(context.Background(), WithPollInterval(testPoll), WithReporter(rep))

	reg.Start("x", "one")
	reg.Stop("x")
	reg.Start("x", "two")

	// The first loop finishes, the second keeps ticking.
	finished := nextEvent(t, rep.Events(), EventFinished)
	assert.Equal(t, "one", finished.Message)

	time.Sleep(5 * testPoll)
	assert.True(t, reg.IsActive("x"))

	active := reg.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "two", active[0].Message)

	reg.Stop("x")
	reg.Wait()
}

func TestRegistry_ActiveIsOrdered(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := NewRegistry(context.Background(), WithPollInterval(testPoll))

	for _, id := range []string{"first", "second", "third"} {
		reg.Start(id, id)
		time.Sleep(time.Millisecond)
	}

	active := reg.Active()
	require.Len(t, active, 3)
	assert.Equal(t, "first", active[0].ID)
	assert.Equal(t, "third", active[2].ID)

	reg.Clear()
	reg.Wait()
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_StopIsolatedFromOtherIDs(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := NewRegistry(context.Background(), WithPollInterval(testPoll))

	var wg sync.WaitGroup

	stopChurn := make(chan struct{})

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := 0; ; i++ {
			select {
			case <-stopChurn:
				return
			default:
			}

			id := fmt.Sprintf("other-%d", i%8)
			reg.Start(id, "churn")
			reg.Stop(id)
		}
	}()

	reg.Start("a", "msg")
	reg.Stop("a")
	assert.False(t, reg.IsActive("a"))

	close(stopChurn)
	wg.Wait()
	reg.Wait()
}

func TestRegistry_ConcurrentStartStopLeavesRegistryEmpty(t *testing.T) {
	defer goleak.VerifyNone(t)

	const pairs = 200

	reg := NewRegistry(context.Background(), WithPollInterval(time.Millisecond))

	var wg sync.WaitGroup

	for i := range pairs {
		wg.Add(1)

		go func(id string) {
			defer wg.Done()

			time.Sleep(time.Duration(rand.IntN(500)) * time.Microsecond)
			reg.Start(id, "work "+id)
			time.Sleep(time.Duration(rand.IntN(2000)) * time.Microsecond)

			// Spurious extra stops and duplicate starts are part of the interleaving.
			if rand.IntN(2) == 0 {
				reg.Start(id, "duplicate")
			}

			reg.Stop(id)
			reg.Stop(id)
		}(fmt.Sprintf("id-%d", i))
	}

	wg.Wait()
	reg.Wait()

	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Active())
}

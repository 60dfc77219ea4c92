// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"
)

// runIndicator keeps the indicator for e alive until e leaves the registry.
// Removal closes e.done, so the loop normally exits at once; the ticker is the
// refresh cadence and a fallback check that never waits more than one interval.
func (r *Registry) runIndicator(e *entry) {
	defer r.wg.Done()

	r.reporter.Report(Event{
		ID:        e.ID,
		Type:      EventStarted,
		Message:   e.Message,
		Timestamp: e.Started,
		Started:   e.Started,
	})

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-e.done:
			break loop

		case <-r.ctx.Done():
			r.removeEntry(e, ReasonInterrupted)
			break loop

		case now := <-ticker.C:
			if !r.isCurrent(e) {
				break loop
			}

			r.reporter.Report(Event{
				ID:        e.ID,
				Type:      EventTick,
				Message:   e.Message,
				Timestamp: now,
				Elapsed:   now.Sub(e.Started),
				Started:   e.Started,
			})
		}
	}

	now := time.Now()
	r.reporter.Report(Event{
		ID:        e.ID,
		Type:      EventFinished,
		Message:   e.Message,
		Timestamp: now,
		Reason:    r.reasonOf(e),
		Elapsed:   now.Sub(e.Started),
		Started:   e.Started,
	})
}

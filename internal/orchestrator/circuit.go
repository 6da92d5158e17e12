// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// breakerRegistry hands out one sony/gobreaker.CircuitBreaker per tool,
// lazily, so a scan requesting five tools doesn't pay for fifteen breakers
// it never exercises. This is additive resilience beyond the per-job retry
// budget in §4.G.4: it trips when one tool is consistently unstable across
// many targets within the same scan, short-circuiting its remaining jobs to
// a stub marker instead of burning the full retry budget on every target.
type breakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func newBreakerRegistry() *breakerRegistry {
	return &breakerRegistry{breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func (r *breakerRegistry) get(tool string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[tool]; ok {
		return b
	}

	settings := gobreaker.Settings{
		Name:        tool,
		MaxRequests: 1,
		Interval:    0, // counts never reset mid-scan; a scan is short-lived
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 4 && counts.ConsecutiveFailures >= 4
		},
	}
	b := gobreaker.NewCircuitBreaker(settings)
	r.breakers[tool] = b
	return b
}

// errToolUnstable marks a job short-circuited by an open breaker rather
// than actually attempted; the Orchestrator records it under the dedicated
// model.JobBreakerOpen outcome, distinct from both NotFound and Cancelled —
// a breaker trip is a resilience-policy event, not a user/gate-initiated
// cancellation, and must not masquerade as one in the scan summary.
type errToolUnstable struct{ tool string }

func (e *errToolUnstable) Error() string {
	return "orchestrator: circuit open for tool " + e.tool + ", skipping remaining jobs"
}

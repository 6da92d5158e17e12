// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "time"

// JobOutcome is the terminal (or in-flight) state of a single Job attempt.
type JobOutcome string

const (
	JobCreated             JobOutcome = "created"
	JobRunning             JobOutcome = "running"
	JobSuccess             JobOutcome = "success"
	JobSuccessWithFindings JobOutcome = "success_with_findings"
	JobTimeout             JobOutcome = "timeout"
	JobCrashedSignal       JobOutcome = "crashed_signal"
	JobNotFound            JobOutcome = "not_found"
	JobNonZeroNoFindings   JobOutcome = "non_zero_no_findings"
	JobCancelled           JobOutcome = "cancelled"
	JobBreakerOpen         JobOutcome = "breaker_open"
)

// Terminal reports whether this outcome ends the job's state machine (no
// further attempts will follow it, regardless of retry budget).
func (o JobOutcome) Terminal() bool {
	switch o {
	case JobCreated, JobRunning:
		return false
	default:
		return true
	}
}

// Retriable reports whether an outcome at this state may be re-enqueued,
// assuming retry budget remains. Only Timeout and CrashedSignal retry per
// §4.G.4; NonZeroNoFindings is fatal for that job with no retry.
func (o JobOutcome) Retriable() bool {
	return o == JobTimeout || o == JobCrashedSignal
}

// Job is one (target, tool, attempt) unit of work owned end to end by a
// single worker: it owns its Tool Runner process and raw output until
// parsing completes.
type Job struct {
	Target  Target
	Tool    string
	Attempt int

	Deadline    time.Duration
	RetryBudget int

	FlagOverrides []string
}

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

import "testing"

func TestJobOutcome_Terminal(t *testing.T) {
	tests := []struct {
		outcome  JobOutcome
		terminal bool
	}{
		{JobCreated, false},
		{JobRunning, false},
		{JobSuccess, true},
		{JobSuccessWithFindings, true},
		{JobTimeout, true},
		{JobCrashedSignal, true},
		{JobNotFound, true},
		{JobNonZeroNoFindings, true},
		{JobCancelled, true},
		{JobBreakerOpen, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			if got := tt.outcome.Terminal(); got != tt.terminal {
				t.Errorf("JobOutcome(%s).Terminal() = %v, want %v", tt.outcome, got, tt.terminal)
			}
		})
	}
}

func TestJobOutcome_Retriable(t *testing.T) {
	tests := []struct {
		outcome   JobOutcome
		retriable bool
	}{
		{JobTimeout, true},
		{JobCrashedSignal, true},
		{JobNotFound, false},
		{JobNonZeroNoFindings, false},
		{JobSuccess, false},
		{JobBreakerOpen, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			if got := tt.outcome.Retriable(); got != tt.retriable {
				t.Errorf("JobOutcome(%s).Retriable() = %v, want %v", tt.outcome, got, tt.retriable)
			}
		})
	}
}

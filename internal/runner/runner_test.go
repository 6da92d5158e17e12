// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

import (
	"context"
	"testing"
	"time"
)

func TestRun_Success(t *testing.T) {
	r := New(nil)
	result, err := r.Run(context.Background(), Spec{
		Tool:    "echo",
		Command: "sh",
		Args:    []string{"-c", "echo hello"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != Success {
		t.Errorf("Outcome = %s, want %s", result.Outcome, Success)
	}
	if string(result.Stdout) != "hello\n" {
		t.Errorf("Stdout = %q, want %q", result.Stdout, "hello\n")
	}
}

func TestRun_SuccessWithFindingsExitCode(t *testing.T) {
	r := New(nil)
	result, err := r.Run(context.Background(), Spec{
		Tool:         "sh",
		Command:      "sh",
		Args:         []string{"-c", "exit 1"},
		SuccessCodes: []int{0, 1},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != SuccessWithFindings {
		t.Errorf("Outcome = %s, want %s", result.Outcome, SuccessWithFindings)
	}
	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}
}

func TestRun_NonZeroNoFindings(t *testing.T) {
	r := New(nil)
	result, err := r.Run(context.Background(), Spec{
		Tool:         "sh",
		Command:      "sh",
		Args:         []string{"-c", "exit 2"},
		SuccessCodes: []int{0, 1},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != NonZeroNoFindings {
		t.Errorf("Outcome = %s, want %s", result.Outcome, NonZeroNoFindings)
	}
}

func TestRun_NotFound(t *testing.T) {
	r := New(nil)
	result, err := r.Run(context.Background(), Spec{
		Tool:    "bogus-tool-that-does-not-exist",
		Command: "bogus-tool-that-does-not-exist",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != NotFound {
		t.Errorf("Outcome = %s, want %s", result.Outcome, NotFound)
	}
}

func TestRun_Timeout(t *testing.T) {
	r := New(nil)
	start := time.Now()
	result, err := r.Run(context.Background(), Spec{
		Tool:     "sleep",
		Command:  "sh",
		Args:     []string{"-c", "sleep 5"},
		Deadline: 200 * time.Millisecond,
	})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != Timeout {
		t.Errorf("Outcome = %s, want %s", result.Outcome, Timeout)
	}
	if elapsed > gracePeriod+2*time.Second {
		t.Errorf("Run took %s, expected termination well within the grace period", elapsed)
	}
}

func TestRun_OutputCapTruncates(t *testing.T) {
	r := New(nil)
	result, err := r.Run(context.Background(), Spec{
		Tool:      "yes",
		Command:   "sh",
		Args:      []string{"-c", "head -c 1000 /dev/zero | tr '\\0' 'a'"},
		OutputCap: 100,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Truncated {
		t.Error("expected Truncated = true when output exceeds OutputCap")
	}
}

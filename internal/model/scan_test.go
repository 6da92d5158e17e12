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

func TestSummary_AddAndTotal(t *testing.T) {
	var s Summary
	s.Add(SeverityHigh)
	s.Add(SeverityHigh)
	s.Add(SeverityCritical)
	s.Add(SeverityInfo)

	if s.High != 2 {
		t.Errorf("High = %d, want 2", s.High)
	}
	if s.Critical != 1 {
		t.Errorf("Critical = %d, want 1", s.Critical)
	}
	if s.Total() != 4 {
		t.Errorf("Total() = %d, want 4", s.Total())
	}
}

func TestSummary_Empty(t *testing.T) {
	var s Summary
	if s.Total() != 0 {
		t.Errorf("empty Summary.Total() = %d, want 0", s.Total())
	}
}

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

import (
	"testing"
	"time"
)

func TestSuppressionRule_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no expiry never expires", func(t *testing.T) {
		r := SuppressionRule{ID: "r1"}
		if r.Expired(now) {
			t.Error("rule with nil Expires should never be expired")
		}
	})

	t.Run("past expiry is expired", func(t *testing.T) {
		past := now.Add(-time.Hour)
		r := SuppressionRule{ID: "r2", Expires: &past}
		if !r.Expired(now) {
			t.Error("rule with Expires in the past should be expired")
		}
	})

	t.Run("future expiry is not expired", func(t *testing.T) {
		future := now.Add(time.Hour)
		r := SuppressionRule{ID: "r3", Expires: &future}
		if r.Expired(now) {
			t.Error("rule with Expires in the future should not be expired")
		}
	})
}

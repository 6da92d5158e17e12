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
	"encoding/json"
	"testing"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		sev  Severity
		want string
	}{
		{SeverityInfo, "INFO"},
		{SeverityLow, "LOW"},
		{SeverityMedium, "MEDIUM"},
		{SeverityHigh, "HIGH"},
		{SeverityCritical, "CRITICAL"},
		{Severity(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.sev.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSeverity_TotalOrder(t *testing.T) {
	if !(SeverityInfo < SeverityLow && SeverityLow < SeverityMedium &&
		SeverityMedium < SeverityHigh && SeverityHigh < SeverityCritical) {
		t.Fatal("severity enum is not monotonically increasing INFO < LOW < MEDIUM < HIGH < CRITICAL")
	}
}

func TestSeverity_JSONRoundTrip(t *testing.T) {
	for _, sev := range []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		data, err := json.Marshal(sev)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", sev, err)
		}
		var got Severity
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if got != sev {
			t.Errorf("round trip %v -> %s -> %v", sev, data, got)
		}
	}
}

func TestParseSeverity_CaseInsensitive(t *testing.T) {
	got, err := ParseSeverity("high")
	if err != nil {
		t.Fatalf("ParseSeverity: %v", err)
	}
	if got != SeverityHigh {
		t.Errorf("ParseSeverity(\"high\") = %v, want %v", got, SeverityHigh)
	}
}

func TestParseSeverity_Unknown(t *testing.T) {
	if _, err := ParseSeverity("bogus"); err == nil {
		t.Fatal("ParseSeverity(\"bogus\") expected error, got nil")
	}
}

func TestSeverity_AsMapKey(t *testing.T) {
	counts := map[Severity]int{SeverityHigh: 3, SeverityCritical: 1}
	data, err := json.Marshal(counts)
	if err != nil {
		t.Fatalf("Marshal map[Severity]int: %v", err)
	}

	var got map[Severity]int
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal(%s): %v", data, err)
	}
	if got[SeverityHigh] != 3 || got[SeverityCritical] != 1 {
		t.Errorf("round trip through map key = %v, want %v", got, counts)
	}
	if string(data) != `{"HIGH":3,"CRITICAL":1}` && string(data) != `{"CRITICAL":1,"HIGH":3}` {
		t.Errorf("expected canonical severity tokens as map keys, got %s", data)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dedup

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/scanforge/scanforge/internal/model"
)

func byID(findings []model.Finding) map[model.FindingID]model.Finding {
	out := make(map[model.FindingID]model.Finding, len(findings))
	for _, f := range findings {
		out[f.ID] = f
	}
	return out
}

func TestMerge_CrossToolConsensus(t *testing.T) {
	a := model.Finding{ID: "fp1", Tool: model.Tool{Name: "semgrep", Version: "1.0"}, Severity: model.SeverityMedium, Message: "short", Raw: json.RawMessage(`{"from":"semgrep"}`)}
	b := model.Finding{ID: "fp1", Tool: model.Tool{Name: "trivy", Version: "0.50"}, Severity: model.SeverityHigh, Message: "a much longer message", Raw: json.RawMessage(`{"from":"trivy"}`)}

	merged := byID(Merge([]model.Finding{a, b}))
	got, ok := merged["fp1"]
	if !ok {
		t.Fatal("expected one merged finding for fp1")
	}
	if got.Severity != model.SeverityHigh {
		t.Errorf("Severity = %v, want HIGH (max of inputs)", got.Severity)
	}
	if got.Message != "a much longer message" {
		t.Errorf("Message = %q, want longest non-empty", got.Message)
	}
	if len(got.DetectedBy) != 2 {
		t.Fatalf("DetectedBy = %v, want 2 distinct tools", got.DetectedBy)
	}

	// The winning contributor (trivy, by severity) must not shadow the
	// non-winning contributor's raw payload: both must survive the merge.
	if len(got.RawPayloads) != 2 {
		t.Fatalf("RawPayloads = %v, want 2 entries (one per contributor)", got.RawPayloads)
	}
	var sawSemgrepRaw, sawTrivyRaw bool
	for _, rp := range got.RawPayloads {
		switch rp.Tool.Name {
		case "semgrep":
			sawSemgrepRaw = string(rp.Raw) == `{"from":"semgrep"}`
		case "trivy":
			sawTrivyRaw = string(rp.Raw) == `{"from":"trivy"}`
		}
	}
	if !sawSemgrepRaw {
		t.Error("semgrep's raw payload was discarded by the merge despite losing the severity tie-break")
	}
	if !sawTrivyRaw {
		t.Error("trivy's raw payload missing from merged RawPayloads")
	}
}

func TestMerge_SingleFindingPassesThrough(t *testing.T) {
	f := model.Finding{ID: "fp2", Tool: model.Tool{Name: "gitleaks", Version: "8.18.0"}, Severity: model.SeverityHigh}
	merged := Merge([]model.Finding{f})
	if len(merged) != 1 {
		t.Fatalf("len(merged) = %d, want 1", len(merged))
	}
	if len(merged[0].DetectedBy) != 1 || merged[0].DetectedBy[0] != f.Tool {
		t.Errorf("DetectedBy = %v, want [%v]", merged[0].DetectedBy, f.Tool)
	}
}

func TestMerge_IDUniqueAfterDedup(t *testing.T) {
	findings := []model.Finding{
		{ID: "fp1", Tool: model.Tool{Name: "a"}},
		{ID: "fp1", Tool: model.Tool{Name: "b"}},
		{ID: "fp2", Tool: model.Tool{Name: "a"}},
	}
	merged := Merge(findings)
	seen := map[model.FindingID]bool{}
	for _, f := range merged {
		if seen[f.ID] {
			t.Fatalf("id %s duplicated after dedup", f.ID)
		}
		seen[f.ID] = true
	}
	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}
}

func TestMerge_OrderIndependent(t *testing.T) {
	findings := []model.Finding{
		{ID: "fp1", Tool: model.Tool{Name: "a"}, Severity: model.SeverityLow, Message: "m1"},
		{ID: "fp1", Tool: model.Tool{Name: "b"}, Severity: model.SeverityCritical, Message: "m2-longer"},
		{ID: "fp2", Tool: model.Tool{Name: "c"}, Severity: model.SeverityMedium, Message: "m3"},
	}
	reversed := []model.Finding{findings[2], findings[1], findings[0]}

	a := Merge(findings)
	b := Merge(reversed)

	sort.Slice(a, func(i, j int) bool { return a[i].ID < a[j].ID })
	sort.Slice(b, func(i, j int) bool { return b[i].ID < b[j].ID })

	if len(a) != len(b) {
		t.Fatalf("len mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Severity != b[i].Severity || a[i].Message != b[i].Message {
			t.Errorf("order dependence detected: %+v vs %+v", a[i], b[i])
		}
	}
}

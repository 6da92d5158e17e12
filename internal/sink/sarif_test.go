// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sink

import (
	"testing"

	"github.com/scanforge/scanforge/internal/model"
)

func TestBuildSARIF_OneRunPerTool(t *testing.T) {
	findings := []model.Finding{
		{ID: "1", RuleID: "G101", Tool: model.Tool{Name: "gitleaks", Version: "8.18.0"}, Severity: model.SeverityHigh, Message: "hardcoded secret", Location: model.Location{Path: "secret.py", StartLine: 3}, Compliance: model.Compliance{CWE: []string{"CWE-798"}, PCIDSS: []string{"3.5.2"}}},
		{ID: "2", RuleID: "SQLI", Tool: model.Tool{Name: "semgrep", Version: "1.70.0"}, Severity: model.SeverityCritical, Message: "sql injection", Location: model.Location{Path: "app.py", StartLine: 10}},
		{ID: "3", RuleID: "G101", Tool: model.Tool{Name: "gitleaks", Version: "8.18.0"}, Severity: model.SeverityHigh, Message: "another secret", Location: model.Location{Path: "other.py", StartLine: 1}},
	}

	doc := BuildSARIF(findings, nil)

	if doc.Version != "2.1.0" {
		t.Errorf("Version = %q, want 2.1.0", doc.Version)
	}
	if len(doc.Runs) != 2 {
		t.Fatalf("len(Runs) = %d, want 2 (one per distinct tool)", len(doc.Runs))
	}

	var gitleaksRun *sarifRun
	for i := range doc.Runs {
		if doc.Runs[i].Tool.Driver.Name == "gitleaks" {
			gitleaksRun = &doc.Runs[i]
		}
	}
	if gitleaksRun == nil {
		t.Fatal("expected a gitleaks run")
	}
	if len(gitleaksRun.Results) != 2 {
		t.Errorf("gitleaks results = %d, want 2", len(gitleaksRun.Results))
	}
	if len(gitleaksRun.Tool.Driver.Rules) != 1 {
		t.Errorf("gitleaks rules = %d, want 1 (deduped by ruleId G101)", len(gitleaksRun.Tool.Driver.Rules))
	}

	foundCWE := false
	for _, tax := range gitleaksRun.Taxonomies {
		if tax.Name == "CWE" {
			foundCWE = true
			if len(tax.Taxa) != 1 || tax.Taxa[0].ID != "CWE-798" {
				t.Errorf("CWE taxonomy taxa = %+v, want [CWE-798]", tax.Taxa)
			}
		}
	}
	if !foundCWE {
		t.Error("expected a CWE taxonomy entry for the gitleaks run")
	}
}

func TestBuildSARIF_BaselineState(t *testing.T) {
	findings := []model.Finding{
		{ID: "1", RuleID: "R1", Tool: model.Tool{Name: "trivy", Version: "0.50"}, Severity: model.SeverityMedium, Message: "m", Location: model.Location{Path: "x"}},
	}
	baseline := map[model.FindingID]string{"1": "new"}

	doc := BuildSARIF(findings, baseline)
	if len(doc.Runs) != 1 || len(doc.Runs[0].Results) != 1 {
		t.Fatalf("unexpected run shape: %+v", doc.Runs)
	}
	if doc.Runs[0].Results[0].BaselineState != "new" {
		t.Errorf("BaselineState = %q, want new", doc.Runs[0].Results[0].BaselineState)
	}
}

func TestSeverityToSARIFLevel(t *testing.T) {
	cases := map[model.Severity]string{
		model.SeverityCritical: "error",
		model.SeverityHigh:     "error",
		model.SeverityMedium:   "warning",
		model.SeverityLow:      "note",
		model.SeverityInfo:     "note",
	}
	for sev, want := range cases {
		if got := severityToSARIFLevel(sev); got != want {
			t.Errorf("severityToSARIFLevel(%v) = %q, want %q", sev, got, want)
		}
	}
}

func TestSarifRegionFor_OmittedWhenNoLine(t *testing.T) {
	if r := sarifRegionFor(model.Location{Path: "image:latest"}); r != nil {
		t.Errorf("sarifRegionFor with StartLine=0 = %+v, want nil", r)
	}
	r := sarifRegionFor(model.Location{Path: "a.go", StartLine: 5, EndLine: 7})
	if r == nil || r.StartLine != 5 || r.EndLine != 7 {
		t.Errorf("sarifRegionFor = %+v, want {5 7}", r)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package enrich

import (
	"testing"

	"github.com/scanforge/scanforge/internal/model"
)

func TestCompute_ScoreWithinBounds(t *testing.T) {
	for _, sev := range []model.Severity{model.SeverityInfo, model.SeverityLow, model.SeverityMedium, model.SeverityHigh, model.SeverityCritical} {
		f := model.Finding{Severity: sev}
		Compute(&f, DefaultPriorityWeights(), 1.0)
		if f.Priority.Score < 0 || f.Priority.Score > 100 {
			t.Fatalf("severity %v: score %d out of [0,100]", sev, f.Priority.Score)
		}
	}
}

func TestCompute_KEVForcesFloor(t *testing.T) {
	f := model.Finding{Severity: model.SeverityLow, KEV: true}
	Compute(&f, DefaultPriorityWeights(), 1.0)
	if f.Priority.Score < DefaultPriorityWeights().KEVFloor {
		t.Fatalf("KEV finding scored %d, want >= %d", f.Priority.Score, DefaultPriorityWeights().KEVFloor)
	}
}

func TestCompute_ReconstructableFromComponents(t *testing.T) {
	f := model.Finding{Severity: model.SeverityHigh, EPSS: &model.EPSS{Score: 0.42}}
	weights := DefaultPriorityWeights()
	Compute(&f, weights, 1.2)

	c := f.Priority.Components
	if c.SeverityScore != severityScore(model.SeverityHigh) {
		t.Errorf("SeverityScore component = %v, want %v", c.SeverityScore, severityScore(model.SeverityHigh))
	}
	if c.EPSSMultiplier != 0.42 {
		t.Errorf("EPSSMultiplier component = %v, want 0.42", c.EPSSMultiplier)
	}
	if c.ReachabilityMultiplier != 1.2 {
		t.Errorf("ReachabilityMultiplier component = %v, want 1.2", c.ReachabilityMultiplier)
	}
}

func TestMapCompliance_MultipleRowsAccumulate(t *testing.T) {
	// RuleID is the bare, tool-native value a real adapter emits (gitleaks
	// never prefixes its own rule ids with "gitleaks."); MapCompliance must
	// qualify it with f.Tool.Name itself to match DefaultComplianceTable's
	// "gitleaks." prefix row.
	f := model.Finding{Tool: model.Tool{Name: "gitleaks"}, RuleID: "aws-secret-key"}
	MapCompliance(&f, DefaultComplianceTable)
	if len(f.Compliance.PCIDSS) == 0 {
		t.Error("expected PCI DSS mapping for gitleaks rule")
	}
	if !hasTag(f.Compliance.CWE, "CWE-798") {
		t.Errorf("Compliance.CWE = %v, want CWE-798", f.Compliance.CWE)
	}
}

func TestExtractCVE(t *testing.T) {
	cve := ExtractCVE("some-rule", "see https://nvd.nist.gov/vuln/detail/CVE-2023-12345")
	if cve != "CVE-2023-12345" {
		t.Errorf("ExtractCVE = %q, want CVE-2023-12345", cve)
	}
	if ExtractCVE("no-cve-here") != "" {
		t.Error("expected empty string when no CVE is present")
	}
}

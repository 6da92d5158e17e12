// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package adapters

import (
	"testing"

	"github.com/scanforge/scanforge/internal/model"
)

const trivySample = `{
  "Results": [
    {
      "Target": "alpine:3.18 (alpine 3.18.4)",
      "Vulnerabilities": [
        {
          "VulnerabilityID": "CVE-2023-5678",
          "PkgName": "openssl",
          "InstalledVersion": "3.1.2",
          "FixedVersion": "3.1.3",
          "Title": "openssl: heap overflow",
          "Severity": "HIGH",
          "References": ["https://nvd.nist.gov/vuln/detail/CVE-2023-5678"],
          "CVSS": {"nvd": {"V3Score": 7.5, "V3Vector": "CVSS:3.1/AV:N"}}
        }
      ]
    }
  ]
}`

func TestParseTrivy_BasicVulnerability(t *testing.T) {
	shells, warnings := parseTrivy([]byte(trivySample), model.Target{Identifier: "alpine:3.18"})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(shells) != 1 {
		t.Fatalf("len(shells) = %d, want 1", len(shells))
	}
	s := shells[0]
	if s.RuleID != "CVE-2023-5678" || s.Severity != model.SeverityHigh {
		t.Errorf("unexpected shell: %+v", s)
	}
	if s.CVSS == nil || s.CVSS.BaseScore != 7.5 {
		t.Errorf("CVSS not attached correctly: %+v", s.CVSS)
	}
	if s.Remediation != "upgrade to 3.1.3" {
		t.Errorf("Remediation = %q", s.Remediation)
	}
}

func TestParseTrivy_NoVulnerabilities(t *testing.T) {
	shells, warnings := parseTrivy([]byte(`{"Results": [{"Target": "clean-image"}]}`), model.Target{})
	if len(shells) != 0 || len(warnings) != 0 {
		t.Errorf("expected no shells or warnings for a clean scan, got %d/%d", len(shells), len(warnings))
	}
}

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

const genericSample = `{
  "issues": [
    {"id": "IAC001", "sev": "HIGH", "file": "main.tf", "line": 10, "msg": "public S3 bucket"}
  ]
}`

func TestGeneric_ProjectsRecordsViaJQ(t *testing.T) {
	adapter, err := NewGeneric("tfsec", `.issues[] | {rule_id: .id, severity: .sev, path: .file, start_line: .line, message: .msg}`)
	if err != nil {
		t.Fatalf("NewGeneric: %v", err)
	}

	shells, warnings := adapter.Parse([]byte(genericSample), model.Target{})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(shells) != 1 {
		t.Fatalf("len(shells) = %d, want 1", len(shells))
	}
	s := shells[0]
	if s.RuleID != "IAC001" || s.Path != "main.tf" || s.StartLine != 10 || s.Severity != model.SeverityHigh {
		t.Errorf("unexpected shell: %+v", s)
	}
	if s.Tool.Name != "tfsec" {
		t.Errorf("Tool.Name = %q, want tfsec", s.Tool.Name)
	}
}

func TestGeneric_InvalidExpression(t *testing.T) {
	if _, err := NewGeneric("tool", "not a valid jq ("); err == nil {
		t.Fatal("expected error compiling an invalid jq expression")
	}
}

func TestGeneric_MalformedJSONInput(t *testing.T) {
	adapter, err := NewGeneric("tool", ".")
	if err != nil {
		t.Fatalf("NewGeneric: %v", err)
	}
	_, warnings := adapter.Parse([]byte("not json"), model.Target{})
	if len(warnings) != 1 {
		t.Fatalf("expected one warning for malformed JSON, got %d", len(warnings))
	}
}

func TestParseWithFallback_UsesRegisteredAdapterFirst(t *testing.T) {
	shells, warnings, err := ParseWithFallback("gitleaks", "", []byte(gitleaksSample), model.Target{})
	if err != nil {
		t.Fatalf("ParseWithFallback: %v", err)
	}
	if len(warnings) != 0 || len(shells) != 1 {
		t.Fatalf("expected the registered gitleaks adapter to run, got shells=%d warnings=%d", len(shells), len(warnings))
	}
}

func TestParseWithFallback_NoAdapterNoExpression(t *testing.T) {
	_, _, err := ParseWithFallback("unknown-tool", "", []byte("{}"), model.Target{})
	if err == nil {
		t.Fatal("expected error when no adapter and no generic expression is configured")
	}
}

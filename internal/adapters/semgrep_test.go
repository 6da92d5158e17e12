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

const semgrepSample = `{
  "results": [
    {
      "check_id": "python.lang.security.audit.eval-detected",
      "path": "app/handlers.py",
      "start": {"line": 40, "col": 1},
      "end": {"line": 40, "col": 20},
      "extra": {
        "message": "Detected use of eval().",
        "severity": "ERROR",
        "metadata": {"cwe": ["CWE-95"], "owasp": ["A03:2021"]}
      }
    }
  ],
  "errors": []
}`

func TestParseSemgrep_BasicResult(t *testing.T) {
	shells, warnings := parseSemgrep([]byte(semgrepSample), model.Target{})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(shells) != 1 {
		t.Fatalf("len(shells) = %d, want 1", len(shells))
	}
	s := shells[0]
	if s.Severity != model.SeverityHigh {
		t.Errorf("Severity = %v, want HIGH (mapped from ERROR)", s.Severity)
	}
	if len(s.Tags) != 1 || s.Tags[0] != "CWE-95" {
		t.Errorf("Tags = %v, want [CWE-95]", s.Tags)
	}
}

func TestParseSemgrep_CollectsToolErrors(t *testing.T) {
	sample := `{"results": [], "errors": [{"message": "timeout scanning file"}]}`
	shells, warnings := parseSemgrep([]byte(sample), model.Target{})
	if len(shells) != 0 {
		t.Errorf("expected no shells, got %d", len(shells))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning from semgrep's own errors array, got %d", len(warnings))
	}
}

func TestParseSemgrep_MalformedJSON(t *testing.T) {
	_, warnings := parseSemgrep([]byte("not json"), model.Target{})
	if len(warnings) != 1 {
		t.Fatalf("expected one warning for malformed JSON, got %d", len(warnings))
	}
}

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
	"encoding/json"
	"strings"

	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/normalize"
)

// gitleaksFinding is one record from `gitleaks detect --report-format json`.
type gitleaksFinding struct {
	Description string `json:"Description"`
	StartLine   int    `json:"StartLine"`
	EndLine     int    `json:"EndLine"`
	File        string `json:"File"`
	RuleID      string `json:"RuleID"`
	Secret      string `json:"Secret"`
	Match       string `json:"Match"`
}

func parseGitleaks(raw []byte, target model.Target) ([]normalize.Shell, []normalize.Warning) {
	table := DefaultSeverityTables["gitleaks"]

	var shells []normalize.Shell
	var warnings []normalize.Warning
	for _, rec := range decodeRecords(raw) {
		var gf gitleaksFinding
		if err := json.Unmarshal(rec, &gf); err != nil {
			warnings = append(warnings, normalize.Warning{Tool: "gitleaks", Reason: "unparseable record: " + err.Error()})
			continue
		}
		if gf.File == "" || gf.RuleID == "" {
			warnings = append(warnings, normalize.Warning{Tool: "gitleaks", Reason: "record missing file or rule id"})
			continue
		}
		shells = append(shells, normalize.Shell{
			Tool:      model.Tool{Name: "gitleaks"},
			RuleID:    gf.RuleID,
			Severity:  table.Lookup(gf.RuleID, model.SeverityHigh),
			Path:      gf.File,
			StartLine: gf.StartLine,
			EndLine:   gf.EndLine,
			Message:   redactSecretFromMessage(gf.Description, gf.Secret),
			Context:   redactSecret(gf.Match, gf.Secret),
			// Every gitleaks rule is a hardcoded-credential match, so CWE-798
			// ("Use of Hard-coded Credentials") applies uniformly; tagging it
			// here is what lets internal/enrich.MapCompliance's CWE-798 row
			// fire without gitleaks needing to enumerate its own rule ids.
			Tags: []string{"secret", "CWE-798"},
			Raw:  rec,
		})
	}
	return shells, warnings
}

// redactSecretFromMessage ensures the raw secret value never survives into
// the human-readable message even if the tool embedded it there.
func redactSecretFromMessage(message, secret string) string {
	if message == "" {
		message = "hardcoded secret detected"
	}
	return redactSecret(message, secret)
}

func redactSecret(text, secret string) string {
	if secret == "" {
		return text
	}
	return strings.ReplaceAll(text, secret, "[REDACTED]")
}

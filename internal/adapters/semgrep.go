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

	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/normalize"
)

// semgrepOutput is `semgrep --json`'s top-level shape.
type semgrepOutput struct {
	Results []semgrepResult `json:"results"`
	Errors  []semgrepError  `json:"errors"`
}

type semgrepResult struct {
	CheckID string         `json:"check_id"`
	Path    string         `json:"path"`
	Start   semgrepPos     `json:"start"`
	End     semgrepPos     `json:"end"`
	Extra   semgrepExtra   `json:"extra"`
}

type semgrepPos struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

type semgrepExtra struct {
	Message  string          `json:"message"`
	Severity string          `json:"severity"`
	Lines    string          `json:"lines"`
	Metadata semgrepMetadata `json:"metadata"`
}

type semgrepMetadata struct {
	CWE        []string `json:"cwe"`
	OWASP      []string `json:"owasp"`
	References []string `json:"references"`
}

type semgrepError struct {
	Message string `json:"message"`
}

func parseSemgrep(raw []byte, target model.Target) ([]normalize.Shell, []normalize.Warning) {
	table := DefaultSeverityTables["semgrep"]

	var output semgrepOutput
	if err := json.Unmarshal(raw, &output); err != nil {
		return nil, []normalize.Warning{{Tool: "semgrep", Reason: "unparseable output: " + err.Error()}}
	}

	var shells []normalize.Shell
	var warnings []normalize.Warning
	for _, e := range output.Errors {
		warnings = append(warnings, normalize.Warning{Tool: "semgrep", Reason: e.Message})
	}

	for _, r := range output.Results {
		if r.Path == "" || r.CheckID == "" {
			warnings = append(warnings, normalize.Warning{Tool: "semgrep", Reason: "result missing path or check_id"})
			continue
		}
		recordBytes, _ := json.Marshal(r)
		shells = append(shells, normalize.Shell{
			Tool:      model.Tool{Name: "semgrep"},
			RuleID:    r.CheckID,
			Severity:  table.Lookup(r.Extra.Severity, model.SeverityMedium),
			Path:      r.Path,
			StartLine: r.Start.Line,
			EndLine:   r.End.Line,
			Message:   r.Extra.Message,
			Context:   r.Extra.Lines,
			References: r.Extra.Metadata.References,
			Tags:        cweTags(r.Extra.Metadata.CWE),
			Raw:         recordBytes,
		})
	}
	return shells, warnings
}

func cweTags(cwe []string) []string {
	if len(cwe) == 0 {
		return nil
	}
	return append([]string(nil), cwe...)
}

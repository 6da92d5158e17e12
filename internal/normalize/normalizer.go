// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/scanforge/scanforge/internal/model"
)

// SchemaVersion is stamped onto every Finding this package produces.
// internal/sink's JSON Schema document does not check per-finding fields.
const SchemaVersion = "1.0"

// Shell is what an adapter hands to the Normalizer: tool-native fields,
// not yet fingerprinted, not yet carrying a canonical path.
type Shell struct {
	Tool        model.Tool
	RuleID      string
	Severity    model.Severity
	Path        string
	StartLine   int
	EndLine     int
	Message     string
	Title       string
	Description string
	Remediation string
	References  []string
	Tags        []string
	CVSS        *model.CVSS
	Context     string
	Raw         json.RawMessage
}

// Warning is a non-fatal finding_shell rejection: the Normalizer reports it
// and drops the shell rather than emitting a malformed Finding.
type Warning struct {
	Tool   string
	Reason string
}

func (w Warning) Error() string {
	return fmt.Sprintf("normalize: dropped finding from %s: %s", w.Tool, w.Reason)
}

// Normalize converts one Shell into a canonical Finding, computing its
// fingerprint and canonical path. It rejects (returns ok=false plus a
// Warning) any shell missing tool, rule_id, or location, per §4.C.4.
//
// Normalize never mutates shell.Raw; every derived field lives on the
// returned Finding instead, preserving the "Normalizer may not modify raw"
// invariant.
func Normalize(shell Shell, targetRoot string) (model.Finding, *Warning, bool) {
	if shell.Tool.Name == "" {
		return model.Finding{}, &Warning{Tool: "unknown", Reason: "missing tool name"}, false
	}
	if shell.RuleID == "" {
		return model.Finding{}, &Warning{Tool: shell.Tool.Name, Reason: "missing rule_id"}, false
	}
	if shell.Path == "" {
		return model.Finding{}, &Warning{Tool: shell.Tool.Name, Reason: "missing location"}, false
	}

	toolVersion := shell.Tool.Version
	if toolVersion == "" {
		toolVersion = "unknown"
	}

	path := CanonicalPath(targetRoot, shell.Path)
	id := Fingerprint(shell.Tool.Name, shell.RuleID, path, shell.StartLine, shell.Message)

	f := model.Finding{
		SchemaVersion: SchemaVersion,
		ID:            id,
		RuleID:        shell.RuleID,
		Severity:      shell.Severity,
		Tool:          model.Tool{Name: shell.Tool.Name, Version: toolVersion},
		Location: model.Location{
			Path:      path,
			StartLine: shell.StartLine,
			EndLine:   shell.EndLine,
		},
		Message:     shell.Message,
		Title:       shell.Title,
		Description: shell.Description,
		Remediation: shell.Remediation,
		References:  shell.References,
		Tags:        shell.Tags,
		CVSS:        shell.CVSS,
		Context:     shell.Context,
		Raw:         shell.Raw,
	}
	return f, nil, true
}

// NormalizeAll runs Normalize over a batch, collecting warnings for dropped
// shells rather than aborting the batch on the first rejection.
func NormalizeAll(shells []Shell, targetRoot string) ([]model.Finding, []Warning) {
	findings := make([]model.Finding, 0, len(shells))
	var warnings []Warning
	for _, shell := range shells {
		f, warn, ok := Normalize(shell, targetRoot)
		if !ok {
			warnings = append(warnings, *warn)
			continue
		}
		findings = append(findings, f)
	}
	return findings, warnings
}

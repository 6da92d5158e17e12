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
	"strings"

	"github.com/scanforge/scanforge/internal/model"
)

// SeverityTable maps one tool's native severity tokens to the canonical
// enum. The gitleaks, semgrep and trivy parsers read their table from
// DefaultSeverityTables. config.ToolConfig.SeverityTable is copied into
// orchestrator.ToolProfile by cmd/scanforge/wire.go, but no parser reads
// it, so an operator-supplied table does not change any mapping.
type SeverityTable map[string]model.Severity

// Lookup maps token to a severity, case-insensitively, falling back to def
// when the token is unrecognized.
func (t SeverityTable) Lookup(token string, def model.Severity) model.Severity {
	if sev, ok := t[strings.ToLower(token)]; ok {
		return sev
	}
	return def
}

// DefaultSeverityTables are the built-in v1 mappings, used by every
// parser in this package; they are not merged with or replaced by config.
var DefaultSeverityTables = map[string]SeverityTable{
	"gitleaks": {
		// gitleaks has no native severity; every secret match is HIGH
		// unless Enrichment later verifies it live, which forces CRITICAL.
	},
	"semgrep": {
		"error":   model.SeverityHigh,
		"warning": model.SeverityMedium,
		"info":    model.SeverityInfo,
	},
	"trivy": {
		"critical": model.SeverityCritical,
		"high":     model.SeverityHigh,
		"medium":   model.SeverityMedium,
		"low":      model.SeverityLow,
		"unknown":  model.SeverityInfo,
	},
}

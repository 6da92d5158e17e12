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
	"strings"

	"github.com/scanforge/scanforge/internal/model"
)

// FrameworkMapping is one rule-to-framework row: Prefix matches against the
// start of "tool.rule_id" (case-insensitively) — not the bare rule_id alone,
// since adapters emit tool-native rule identifiers with no tool prefix of
// their own (gitleaks' "aws-access-token", not "gitleaks.aws-access-token")
// — and CWE matches against any tag already carrying a CWE identifier. A row
// with both set requires either to match, not both, since a tool may expose
// only one axis.
type FrameworkMapping struct {
	Prefix   string
	CWE      string
	OWASP    []string
	CIS      []string
	NISTCSF  []string
	PCIDSS   []string
	MITREATT []string
}

// DefaultComplianceTable is the built-in rule-id-prefix/CWE mapping table.
// Every framework is attempted independently per row; a framework absent
// from a row is simply not contributed, never an error, per §4.D.
var DefaultComplianceTable = []FrameworkMapping{
	{
		Prefix:   "gitleaks.",
		CWE:      "CWE-798",
		OWASP:    []string{"A07:2021"},
		PCIDSS:   []string{"PCI-DSS-3.2.1-8.2.1"},
		MITREATT: []string{"T1552.001"},
	},
	{
		Prefix:  "semgrep.sql-injection",
		CWE:     "CWE-89",
		OWASP:   []string{"A03:2021"},
		CIS:     []string{"CIS-18.1"},
		NISTCSF: []string{"PR.DS-5"},
	},
	{
		Prefix:  "semgrep.xss",
		CWE:     "CWE-79",
		OWASP:   []string{"A03:2021"},
		NISTCSF: []string{"PR.DS-5"},
	},
	{
		Prefix:   "semgrep.command-injection",
		CWE:      "CWE-78",
		OWASP:    []string{"A03:2021"},
		MITREATT: []string{"T1059"},
	},
	{
		Prefix:  "trivy.",
		CWE:     "CWE-1104",
		OWASP:   []string{"A06:2021"},
		CIS:     []string{"CIS-7.1"},
		NISTCSF: []string{"ID.RA-1"},
	},
}

// MapCompliance fills f.Compliance by matching "tool.rule_id" and f.Tags
// against table, accumulating every matching row's contributions rather than
// stopping at the first match — a single finding can legitimately satisfy
// more than one prefix/CWE row.
func MapCompliance(f *model.Finding, table []FrameworkMapping) {
	qualified := strings.ToLower(f.Tool.Name + "." + f.RuleID)
	for _, row := range table {
		prefixHit := row.Prefix != "" && strings.HasPrefix(qualified, strings.ToLower(row.Prefix))
		cweHit := row.CWE != "" && hasTag(f.Tags, row.CWE)
		if !prefixHit && !cweHit {
			continue
		}
		if row.CWE != "" {
			f.Compliance.CWE = appendUnique(f.Compliance.CWE, row.CWE)
		}
		f.Compliance.OWASP = appendAllUnique(f.Compliance.OWASP, row.OWASP)
		f.Compliance.CIS = appendAllUnique(f.Compliance.CIS, row.CIS)
		f.Compliance.NISTCSF = appendAllUnique(f.Compliance.NISTCSF, row.NISTCSF)
		f.Compliance.PCIDSS = appendAllUnique(f.Compliance.PCIDSS, row.PCIDSS)
		f.Compliance.MITREATT = appendAllUnique(f.Compliance.MITREATT, row.MITREATT)
	}
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}

func appendAllUnique(list, add []string) []string {
	for _, v := range add {
		list = appendUnique(list, v)
	}
	return list
}

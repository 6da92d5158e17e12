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
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/suppress"
)

// WriteSummaryMarkdown renders SUMMARY.md: the human-readable severity
// breakdown plus a table of every finding, sorted by the same canonical emit order as
// every other sink (severity desc, priority desc, path asc, rule_id asc).
func WriteSummaryMarkdown(dir string, scan model.Scan, findings []model.Finding) error {
	sorted := append([]model.Finding(nil), findings...)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	var b strings.Builder
	fmt.Fprintf(&b, "# Scan Summary\n\n")
	fmt.Fprintf(&b, "- Scan ID: `%s`\n", scan.ScanID)
	fmt.Fprintf(&b, "- Profile: `%s`\n", scan.ProfileName)
	fmt.Fprintf(&b, "- Outcome: **%s**\n", scan.Outcome)
	fmt.Fprintf(&b, "- Duration: %s\n\n", scan.Duration)

	fmt.Fprintf(&b, "Total findings: %d\n\n", len(findings))
	fmt.Fprintf(&b, "| Severity | Count |\n|---|---|\n")
	fmt.Fprintf(&b, "| CRITICAL | %d |\n", scan.Summary.Critical)
	fmt.Fprintf(&b, "| HIGH | %d |\n", scan.Summary.High)
	fmt.Fprintf(&b, "| MEDIUM | %d |\n", scan.Summary.Medium)
	fmt.Fprintf(&b, "| LOW | %d |\n", scan.Summary.Low)
	fmt.Fprintf(&b, "| INFO | %d |\n\n", scan.Summary.Info)

	if len(scan.Attempts) > 0 {
		fmt.Fprintf(&b, "## Tool attempts\n\n| Tool | Attempts |\n|---|---|\n")
		tools := make([]string, 0, len(scan.Attempts))
		for t := range scan.Attempts {
			tools = append(tools, t)
		}
		sort.Strings(tools)
		for _, t := range tools {
			fmt.Fprintf(&b, "| %s | %d |\n", t, scan.Attempts[t])
		}
		fmt.Fprintf(&b, "\n")
	}

	if len(sorted) > 0 {
		fmt.Fprintf(&b, "## Findings\n\n| Severity | Priority | Path | Rule | Message |\n|---|---|---|---|---|\n")
		for _, f := range sorted {
			fmt.Fprintf(&b, "| %s | %d | %s:%d | %s | %s |\n",
				f.Severity, f.Priority.Score, f.Location.Path, f.Location.StartLine, f.RuleID, escapeTable(f.Message))
		}
	}

	return writeFile(filepath.Join(dir, "SUMMARY.md"), []byte(b.String()))
}

// WriteSuppressionsMarkdown renders SUPPRESSIONS.md. It is only ever called
// when at least one rule matched, per §6's "present only if rules matched".
func WriteSuppressionsMarkdown(dir string, result suppress.Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Suppressions\n\n")
	fmt.Fprintf(&b, "%d finding(s) suppressed.\n\n", len(result.Suppressed))
	fmt.Fprintf(&b, "| Rule | Tool | Path | Rule ID | Message |\n|---|---|---|---|---|\n")
	for _, s := range result.Suppressed {
		fmt.Fprintf(&b, "| %s | %s | %s:%d | %s | %s |\n",
			s.RuleID, s.Finding.Tool.Name, s.Finding.Location.Path, s.Finding.Location.StartLine,
			s.Finding.RuleID, escapeTable(s.Finding.Message))
	}

	if len(result.Unused) > 0 {
		fmt.Fprintf(&b, "\n## Unused rules\n\n")
		for _, id := range result.Unused {
			fmt.Fprintf(&b, "- `%s`\n", id)
		}
	}

	return writeFile(filepath.Join(dir, "SUPPRESSIONS.md"), []byte(b.String()))
}

func escapeTable(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// less implements §5's canonical emit ordering: severity desc, priority
// desc, path asc, rule_id asc, fingerprint asc.
func less(a, b model.Finding) bool {
	if a.Severity != b.Severity {
		return a.Severity > b.Severity
	}
	if a.Priority.Score != b.Priority.Score {
		return a.Priority.Score > b.Priority.Score
	}
	if a.Location.Path != b.Location.Path {
		return a.Location.Path < b.Location.Path
	}
	if a.RuleID != b.RuleID {
		return a.RuleID < b.RuleID
	}
	return a.ID < b.ID
}

// Sort reorders findings into the canonical emit order in place. Exported
// so both this package and the control plane's REST handlers can present a
// stable, deterministic order.
func Sort(findings []model.Finding) {
	sort.Slice(findings, func(i, j int) bool { return less(findings[i], findings[j]) })
}

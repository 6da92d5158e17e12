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

// trivyOutput is `trivy image --format json`'s top-level shape; the same
// shape covers filesystem and IaC scans, just with different Class values.
type trivyOutput struct {
	Results []trivyResult `json:"Results"`
}

type trivyResult struct {
	Target          string                `json:"Target"`
	Vulnerabilities []trivyVulnerability  `json:"Vulnerabilities"`
}

type trivyVulnerability struct {
	VulnerabilityID  string      `json:"VulnerabilityID"`
	PkgName          string      `json:"PkgName"`
	InstalledVersion string      `json:"InstalledVersion"`
	FixedVersion     string      `json:"FixedVersion"`
	Title            string      `json:"Title"`
	Description      string      `json:"Description"`
	Severity         string      `json:"Severity"`
	References       []string    `json:"References"`
	CVSS             trivyCVSSes `json:"CVSS"`
}

// trivyCVSSes keys by the scoring source (nvd, redhat, ...); the adapter
// takes the first present entry rather than modeling every source.
type trivyCVSSes map[string]struct {
	V3Score  float64 `json:"V3Score"`
	V3Vector string  `json:"V3Vector"`
}

func parseTrivy(raw []byte, target model.Target) ([]normalize.Shell, []normalize.Warning) {
	table := DefaultSeverityTables["trivy"]

	var output trivyOutput
	if err := json.Unmarshal(raw, &output); err != nil {
		return nil, []normalize.Warning{{Tool: "trivy", Reason: "unparseable output: " + err.Error()}}
	}

	var shells []normalize.Shell
	var warnings []normalize.Warning
	for _, result := range output.Results {
		for _, v := range result.Vulnerabilities {
			if v.VulnerabilityID == "" {
				warnings = append(warnings, normalize.Warning{Tool: "trivy", Reason: "vulnerability missing id"})
				continue
			}
			recordBytes, _ := json.Marshal(v)
			shell := normalize.Shell{
				Tool:        model.Tool{Name: "trivy"},
				RuleID:      v.VulnerabilityID,
				Severity:    table.Lookup(v.Severity, model.SeverityMedium),
				Path:        firstNonEmpty(result.Target, target.Identifier),
				Message:     v.Title,
				Description: v.Description,
				Remediation: fixMessage(v.FixedVersion),
				References:  v.References,
				Tags:        []string{v.PkgName},
				Raw:         recordBytes,
			}
			if cvss, ok := firstCVSS(v.CVSS); ok {
				shell.CVSS = &model.CVSS{Version: "3.1", BaseScore: cvss.V3Score, Vector: cvss.V3Vector}
			}
			shells = append(shells, shell)
		}
	}
	return shells, warnings
}

func fixMessage(fixedVersion string) string {
	if fixedVersion == "" {
		return ""
	}
	return "upgrade to " + fixedVersion
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstCVSS(cvss trivyCVSSes) (struct {
	V3Score  float64 `json:"V3Score"`
	V3Vector string  `json:"V3Vector"`
}, bool) {
	for _, source := range []string{"nvd", "redhat", "ghsa"} {
		if entry, ok := cvss[source]; ok && entry.V3Score > 0 {
			return entry, true
		}
	}
	for _, entry := range cvss {
		if entry.V3Score > 0 {
			return entry, true
		}
	}
	return struct {
		V3Score  float64 `json:"V3Score"`
		V3Vector string  `json:"V3Vector"`
	}{}, false
}

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
	"encoding/json"
	"path/filepath"
	"sort"

	"github.com/scanforge/scanforge/internal/model"
)

// SARIF document shapes, trimmed to the fields §6 requires: rules, results,
// taxonomies (CWE/OWASP/MITRE), and baselineState on comparison runs.
type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool        `json:"tool"`
	Results    []sarifResult    `json:"results"`
	Taxonomies []sarifTaxonomy  `json:"taxonomies,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri,omitempty"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	ShortDescription sarifMsg               `json:"shortDescription"`
	FullDescription  *sarifMsg              `json:"fullDescription,omitempty"`
	Relationships    []sarifRuleRelationship `json:"relationships,omitempty"`
}

type sarifRuleRelationship struct {
	Target sarifReportingDescriptorRef `json:"target"`
	Kinds  []string                    `json:"kinds"`
}

type sarifReportingDescriptorRef struct {
	ID                string          `json:"id"`
	ToolComponent     sarifToolComponentRef `json:"toolComponent"`
}

type sarifToolComponentRef struct {
	Name string `json:"name"`
}

type sarifMsg struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID        string           `json:"ruleId"`
	Level         string           `json:"level"`
	Message       sarifMsg         `json:"message"`
	Locations     []sarifLocation  `json:"locations"`
	Fingerprints  map[string]string `json:"fingerprints,omitempty"`
	BaselineState string           `json:"baselineState,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine,omitempty"`
	EndLine   int `json:"endLine,omitempty"`
}

type sarifTaxonomy struct {
	Name           string      `json:"name"`
	InformationURI string      `json:"informationUri,omitempty"`
	Taxa           []sarifTaxon `json:"taxa"`
}

type sarifTaxon struct {
	ID string `json:"id"`
}

// severityToSARIFLevel maps the canonical severity onto SARIF's level enum.
func severityToSARIFLevel(s model.Severity) string {
	switch s {
	case model.SeverityCritical, model.SeverityHigh:
		return "error"
	case model.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

// BuildSARIF assembles one SARIF run per distinct tool name across
// findings, per §6: "one run per tool, rules[] populated, results[] linked
// by ruleId, taxonomies including CWE/OWASP/MITRE where present".
// baselineState, when non-nil, supplies a diffengine.RiskDelta-derived
// baselineState per finding id for comparison runs.
func BuildSARIF(findings []model.Finding, baselineState map[model.FindingID]string) sarifLog {
	byTool := make(map[string][]model.Finding)
	var toolOrder []string
	for _, f := range findings {
		if _, ok := byTool[f.Tool.Name]; !ok {
			toolOrder = append(toolOrder, f.Tool.Name)
		}
		byTool[f.Tool.Name] = append(byTool[f.Tool.Name], f)
	}
	sort.Strings(toolOrder)

	doc := sarifLog{
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Version: "2.1.0",
	}

	for _, toolName := range toolOrder {
		toolFindings := byTool[toolName]
		run := sarifRun{Tool: sarifTool{Driver: sarifDriver{Name: toolName}}}
		if len(toolFindings) > 0 {
			run.Tool.Driver.Version = toolFindings[0].Tool.Version
		}

		seenRules := make(map[string]bool)
		taxa := make(map[string]map[string]bool)

		for _, f := range toolFindings {
			if !seenRules[f.RuleID] {
				seenRules[f.RuleID] = true
				desc := f.Message
				if f.Title != "" {
					desc = f.Title
				}
				run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
					ID:               f.RuleID,
					ShortDescription: sarifMsg{Text: desc},
				})
			}

			result := sarifResult{
				RuleID:  f.RuleID,
				Level:   severityToSARIFLevel(f.Severity),
				Message: sarifMsg{Text: f.Message},
				Locations: []sarifLocation{{
					PhysicalLocation: sarifPhysicalLocation{
						ArtifactLocation: sarifArtifactLocation{URI: f.Location.Path},
						Region:           sarifRegionFor(f.Location),
					},
				}},
				Fingerprints: map[string]string{"scanforge/v1": string(f.ID)},
			}
			if baselineState != nil {
				if state, ok := baselineState[f.ID]; ok {
					result.BaselineState = state
				}
			}
			run.Results = append(run.Results, result)

			for _, cwe := range f.Compliance.CWE {
				addTaxon(taxa, "CWE", cwe)
			}
			for _, owasp := range f.Compliance.OWASP {
				addTaxon(taxa, "OWASP", owasp)
			}
			for _, att := range f.Compliance.MITREATT {
				addTaxon(taxa, "MITRE ATT&CK", att)
			}
		}

		for _, taxName := range []string{"CWE", "OWASP", "MITRE ATT&CK"} {
			ids, ok := taxa[taxName]
			if !ok {
				continue
			}
			taxonomy := sarifTaxonomy{Name: taxName}
			var idList []string
			for id := range ids {
				idList = append(idList, id)
			}
			sort.Strings(idList)
			for _, id := range idList {
				taxonomy.Taxa = append(taxonomy.Taxa, sarifTaxon{ID: id})
			}
			run.Taxonomies = append(run.Taxonomies, taxonomy)
		}

		doc.Runs = append(doc.Runs, run)
	}

	return doc
}

func addTaxon(taxa map[string]map[string]bool, name, id string) {
	if taxa[name] == nil {
		taxa[name] = make(map[string]bool)
	}
	taxa[name][id] = true
}

func sarifRegionFor(loc model.Location) *sarifRegion {
	if loc.StartLine == 0 {
		return nil
	}
	return &sarifRegion{StartLine: loc.StartLine, EndLine: loc.EndLine}
}

// WriteSARIF writes findings.sarif.
func WriteSARIF(dir string, scan model.Scan, findings []model.Finding) error {
	doc := BuildSARIF(findings, nil)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return model.NewError(model.ErrStorageError, "", err)
	}
	return writeFile(filepath.Join(dir, "findings.sarif"), data)
}

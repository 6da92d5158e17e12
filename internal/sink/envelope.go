// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sink renders a finished scan into the on-disk layout described in
// spec §6: findings.json/.yaml/.sarif, SUMMARY.md, SUPPRESSIONS.md,
// timings.json, and dashboard.html, plus an optional control-plane server
// that exposes the same data live. Every writer here is a pure function of
// a ScanResult; none of them touch the Orchestrator or History Store
// directly.
package sink

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-openapi/strfmt"
	"gopkg.in/yaml.v3"

	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/suppress"
)

// OutputVersion is the on-disk envelope format version, independent of
// model.Finding's own SchemaVersion.
const OutputVersion = "1.0.0"

// EnvelopeMeta is findings.json's meta block.
type EnvelopeMeta struct {
	OutputVersion string    `json:"output_version" yaml:"output_version"`
	ToolVersion   string           `json:"tool_version" yaml:"tool_version"`
	SchemaVersion string           `json:"schema_version" yaml:"schema_version"`
	Timestamp     strfmt.DateTime  `json:"timestamp" yaml:"timestamp"`
	ScanID        string           `json:"scan_id" yaml:"scan_id"`
	Profile       string    `json:"profile" yaml:"profile"`
	Tools         []string  `json:"tools" yaml:"tools"`
	TargetCount   int       `json:"target_count" yaml:"target_count"`
	FindingCount  int       `json:"finding_count" yaml:"finding_count"`
	Platform      string    `json:"platform" yaml:"platform"`
}

// Envelope is the full findings.json/.yaml document.
type Envelope struct {
	Meta     EnvelopeMeta    `json:"meta" yaml:"meta"`
	Findings []model.Finding `json:"findings" yaml:"findings"`
}

// Build assembles an Envelope from a scan and its emitted findings.
// ToolVersion is scanforge's own build version, reported separately from
// each finding's own Tool.Version.
func Build(scan model.Scan, findings []model.Finding, scanforgeVersion, targetCount int) Envelope {
	return Envelope{
		Meta: EnvelopeMeta{
			OutputVersion: OutputVersion,
			ToolVersion:   versionString(scanforgeVersion),
			SchemaVersion: "1.0.0",
			Timestamp:     strfmt.DateTime(scan.Timestamp),
			ScanID:        scan.ScanID,
			Profile:       scan.ProfileName,
			Tools:         scan.ToolsRequested,
			TargetCount:   targetCount,
			FindingCount:  len(findings),
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
		},
		Findings: findings,
	}
}

func versionString(v int) string {
	if v == 0 {
		return "dev"
	}
	return time.Unix(int64(v), 0).UTC().Format("2006.01.02")
}

// WriteJSON writes findings.json, after checking it against envelopeSchema.
func WriteJSON(dir string, env Envelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return model.NewError(model.ErrStorageError, "", err)
	}
	if err := validateEnvelope(data); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, "findings.json"), data)
}

// WriteYAML writes the optional findings.yaml.
func WriteYAML(dir string, env Envelope) error {
	data, err := yaml.Marshal(env)
	if err != nil {
		return model.NewError(model.ErrStorageError, "", err)
	}
	return writeFile(filepath.Join(dir, "findings.yaml"), data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return model.NewError(model.ErrStorageError, "", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return model.NewError(model.ErrStorageError, "", err)
	}
	return nil
}

// Timings is the optional per-job profiling artifact (timings.json),
// written only when profiling is enabled.
type Timings struct {
	ScanID       string      `json:"scan_id"`
	TotalJobs    int         `json:"total_jobs"`
	TotalElapsed time.Duration `json:"total_elapsed"`
	PerJob       []JobTiming `json:"per_job"`
}

// JobTiming is one job's wall-clock duration and outcome.
type JobTiming struct {
	Tool     string           `json:"tool"`
	Target   string           `json:"target"`
	Attempt  int              `json:"attempt"`
	Duration time.Duration    `json:"duration"`
	Outcome  model.JobOutcome `json:"outcome"`
}

// WriteTimings writes timings.json when profiling is enabled.
func WriteTimings(dir string, t Timings) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return model.NewError(model.ErrStorageError, "", err)
	}
	return writeFile(filepath.Join(dir, "timings.json"), data)
}

// WriteRawOutput persists one tool's raw stdout under
// individual-<target-type>/<sanitized-target>/<tool>.json, per §6.
func WriteRawOutput(resultsRoot string, targetKind model.TargetKind, target, tool string, raw []byte) error {
	dir := filepath.Join(resultsRoot, "individual-"+string(targetKind), sanitize(target))
	return writeFile(filepath.Join(dir, tool+".json"), raw)
}

func sanitize(s string) string {
	replacer := func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		out = append(out, replacer(r))
	}
	return string(out)
}

// WriteAll renders every configured artifact for one scan into
// resultsRoot/summaries/, per §6's on-disk layout. formats controls which
// of json/yaml/sarif are emitted; json is always emitted regardless of
// formats, since §7 requires "a scan always produces at least
// findings.json ... unless the primary sink itself failed".
func WriteAll(resultsRoot string, scan model.Scan, findings []model.Finding, suppressed suppress.Result, targetCount, scanforgeVersion int, formats []string) error {
	summariesDir := filepath.Join(resultsRoot, "summaries")
	env := Build(scan, findings, scanforgeVersion, targetCount)

	if err := WriteJSON(summariesDir, env); err != nil {
		return err
	}

	wantsYAML, wantsSARIF := false, false
	for _, f := range formats {
		switch f {
		case "yaml":
			wantsYAML = true
		case "sarif":
			wantsSARIF = true
		}
	}

	if wantsYAML {
		if err := WriteYAML(summariesDir, env); err != nil {
			return err
		}
	}
	if wantsSARIF {
		if err := WriteSARIF(summariesDir, scan, findings); err != nil {
			return err
		}
	}
	if err := WriteSummaryMarkdown(summariesDir, scan, findings); err != nil {
		return err
	}
	if len(suppressed.Suppressed) > 0 {
		if err := WriteSuppressionsMarkdown(summariesDir, suppressed); err != nil {
			return err
		}
	}
	return WriteDashboard(summariesDir, scan, findings)
}

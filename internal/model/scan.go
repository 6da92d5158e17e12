// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "time"

// ScanOutcome summarizes the terminal state of an entire scan.
type ScanOutcome string

const (
	ScanCompleted ScanOutcome = "completed"
	ScanPartial   ScanOutcome = "partial"
	ScanFailed    ScanOutcome = "failed"
	ScanCancelled ScanOutcome = "cancelled"
)

// GitContext captures the VCS state of a repo-shaped target, when available.
type GitContext struct {
	Commit string `json:"commit,omitempty"`
	Branch string `json:"branch,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Dirty  bool   `json:"dirty"`
}

// Summary is the per-severity finding count attached to a completed scan.
type Summary struct {
	Info     int `json:"info"`
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Total returns the sum across all severities.
func (s Summary) Total() int {
	return s.Info + s.Low + s.Medium + s.High + s.Critical
}

// Add increments the bucket matching sev by one.
func (s *Summary) Add(sev Severity) {
	switch sev {
	case SeverityInfo:
		s.Info++
	case SeverityLow:
		s.Low++
	case SeverityMedium:
		s.Medium++
	case SeverityHigh:
		s.High++
	case SeverityCritical:
		s.Critical++
	}
}

// TargetSpec is the set of targets a scan was asked to cover, grouped by
// kind as supplied on the command line or profile, before target discovery
// expands it into concrete Targets.
type TargetSpec struct {
	RepoPaths   []string `json:"repo_paths,omitempty"`
	Images      []string `json:"images,omitempty"`
	IaCFiles    []string `json:"iac_files,omitempty"`
	URLs        []string `json:"urls,omitempty"`
	HostedRepos []string `json:"hosted_repos,omitempty"`
	KubeContext []string `json:"kube_contexts,omitempty"`
}

// Scan is one invocation of the orchestrator, start to finish.
type Scan struct {
	ScanID         string      `json:"scan_id"`
	Timestamp      time.Time   `json:"timestamp"`
	ProfileName    string      `json:"profile_name"`
	ToolsRequested []string    `json:"tools_requested"`
	TargetSpec     TargetSpec  `json:"target_spec"`
	GitContext     *GitContext `json:"git_context,omitempty"`
	Summary        Summary     `json:"summary"`
	Duration       time.Duration `json:"duration"`
	Outcome        ScanOutcome   `json:"outcome"`

	// Attempts maps tool name to the number of attempts made against it
	// across every job in the scan (§4.G's "per-tool attempt map").
	Attempts map[string]int `json:"attempts,omitempty"`
}

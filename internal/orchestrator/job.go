// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"time"

	"github.com/scanforge/scanforge/internal/model"
)

// ToolProfile is the effective per-tool envelope a job inherits: binary,
// argument template, deadline, retry budget, and flag overrides, resolved
// once from internal/config before job expansion begins.
type ToolProfile struct {
	Name            string
	BinaryPath      string
	ArgsTemplate    []string
	SuccessCodes    []int
	Timeout         time.Duration
	RetryBudget     int
	FlagOverrides   []string
	GenericJQFilter string
	SeverityTable   map[string]string
}

// ExpandJobs builds one Job per (target, tool) pair compatible per the
// fixed TargetKind/tool matrix, per §4.G.2. Targets carrying warnings are
// still expanded: target validation failures are warnings, never a reason
// to skip scanning.
func ExpandJobs(targets []model.Target, tools []ToolProfile) []model.Job {
	byName := make(map[string]ToolProfile, len(tools))
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
		names = append(names, t.Name)
	}

	var jobs []model.Job
	for _, target := range targets {
		for _, name := range CompatibleTools(target.Kind, names) {
			profile := byName[name]
			jobs = append(jobs, model.Job{
				Target:        target,
				Tool:          name,
				Attempt:       1,
				Deadline:      profile.Timeout,
				RetryBudget:   profile.RetryBudget,
				FlagOverrides: profile.FlagOverrides,
			})
		}
	}
	return jobs
}

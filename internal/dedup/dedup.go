// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dedup merges findings that share a fingerprint within one scan
// into a single record carrying cross-tool consensus.
package dedup

import (
	"github.com/samber/lo"

	"github.com/scanforge/scanforge/internal/model"
)

// Merge groups findings by fingerprint and emits one merged finding per
// group: severity is the max seen, message is the longest non-empty, and
// detected_by lists every distinct (tool.name, tool.version) pair that
// reported the fingerprint. Raw payloads from every source are retained in
// RawPayloads, one entry per distinct contributing tool, in the same order
// as DetectedBy — merging never discards a non-winning contributor's raw
// output.
func Merge(findings []model.Finding) []model.Finding {
	groups := lo.GroupBy(findings, func(f model.Finding) model.FindingID { return f.ID })

	merged := make([]model.Finding, 0, len(groups))
	for _, group := range groups {
		merged = append(merged, mergeGroup(group))
	}
	return merged
}

func mergeGroup(group []model.Finding) model.Finding {
	if len(group) == 1 {
		base := group[0].Clone()
		base.DetectedBy = []model.Tool{group[0].Tool}
		base.RawPayloads = rawPayloads(group)
		return base
	}

	highest := lo.MaxBy(group, func(a, b model.Finding) bool { return a.Severity > b.Severity })
	longest := lo.MaxBy(group, func(a, b model.Finding) bool { return len(a.Message) > len(b.Message) })

	base := highest.Clone()
	base.Severity = highest.Severity
	if longest.Message != "" {
		base.Message = longest.Message
	}
	base.DetectedBy = consensus(group)
	base.RawPayloads = rawPayloads(group)
	return base
}

// rawPayloads collects one RawPayload per distinct contributing tool, in
// first-seen order, so every source's raw output survives the merge even
// when it lost the severity/message tie-break.
func rawPayloads(group []model.Finding) []model.RawPayload {
	seen := make(map[model.Tool]bool, len(group))
	payloads := make([]model.RawPayload, 0, len(group))
	for _, f := range group {
		if seen[f.Tool] {
			continue
		}
		seen[f.Tool] = true
		payloads = append(payloads, model.RawPayload{Tool: f.Tool, Raw: f.Raw})
	}
	return payloads
}

// consensus returns the set of distinct (tool.name, tool.version) pairs
// across group, in first-seen order so output stays deterministic for a
// fixed input ordering.
func consensus(group []model.Finding) []model.Tool {
	seen := make(map[model.Tool]bool, len(group))
	var tools []model.Tool
	for _, f := range group {
		if seen[f.Tool] {
			continue
		}
		seen[f.Tool] = true
		tools = append(tools, f.Tool)
	}
	return tools
}

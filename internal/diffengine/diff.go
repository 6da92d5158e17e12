// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diffengine compares two finding sets by fingerprint and classifies
// each fingerprint as new, resolved, modified, or unchanged.
package diffengine

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/scanforge/scanforge/internal/model"
)

// RiskDelta is the coarse direction of change for a modified finding.
type RiskDelta string

const (
	RiskImproved  RiskDelta = "improved"
	RiskWorsened  RiskDelta = "worsened"
	RiskUnchanged RiskDelta = "unchanged"
)

// TrendLabel summarizes the net direction of change across an entire diff.
type TrendLabel string

const (
	TrendImproving TrendLabel = "improving"
	TrendStable    TrendLabel = "stable"
	TrendWorsening TrendLabel = "worsening"
)

// AttributeChange records one changed attribute between the baseline and
// current version of a modified finding.
type AttributeChange struct {
	Attribute string `json:"attribute"`
	Old       string `json:"old"`
	New       string `json:"new"`
}

// Modification is a finding present in both sets with at least one tracked
// attribute changed.
type Modification struct {
	Baseline  model.Finding      `json:"baseline"`
	Current   model.Finding      `json:"current"`
	Changes   []AttributeChange  `json:"changes"`
	RiskDelta RiskDelta          `json:"risk_delta"`
}

// Options filters or toggles which part of the comparison runs.
type Options struct {
	// MinSeverity, if set above SeverityInfo, drops lower-severity findings
	// from both sets before classification.
	MinSeverity model.Severity
	// Tool, if non-empty, restricts comparison to findings from that tool.
	Tool string
	// DetectModifications disables the modified/unchanged distinction when
	// false: every shared fingerprint is reported as unchanged.
	DetectModifications bool
	// StableThreshold is the (net new - resolved) band, inclusive on both
	// ends, that maps to TrendStable. Outside the band the sign of the net
	// determines TrendWorsening or TrendImproving.
	StableThreshold int
}

// DefaultOptions matches the baseline behavior: no filtering, modification
// detection on, and a stable band of exactly 0 — any net worsening or
// improvement, including a single severity-escalating modification, moves
// the label off TrendStable. Callers wanting noise tolerance across small
// scans raise StableThreshold explicitly (the `diff` CLI command exposes
// this as --stable-threshold).
func DefaultOptions() Options {
	return Options{DetectModifications: true, StableThreshold: 0}
}

// Diff is the full classification of two finding sets.
type Diff struct {
	New         []model.Finding  `json:"new"`
	Resolved    []model.Finding  `json:"resolved"`
	Modified    []Modification   `json:"modified"`
	Unchanged   []model.Finding  `json:"unchanged"`
	BySeverity  map[model.Severity]SeverityCounts `json:"by_severity"`
	Trend       TrendLabel       `json:"trend"`
}

// SeverityCounts buckets one severity level's new/resolved/modified/unchanged
// counts for the summary view.
type SeverityCounts struct {
	New       int `json:"new"`
	Resolved  int `json:"resolved"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
}

// Compare classifies baseline (A) against current (B) by fingerprint in
// O(|A|+|B|) using hash-indexed lookup.
func Compare(baseline, current []model.Finding, opts Options) Diff {
	baseline = filter(baseline, opts)
	current = filter(current, opts)

	byID := func(fs []model.Finding) map[model.FindingID]model.Finding {
		m := make(map[model.FindingID]model.Finding, len(fs))
		for _, f := range fs {
			m[f.ID] = f
		}
		return m
	}
	a := byID(baseline)
	b := byID(current)

	d := Diff{BySeverity: make(map[model.Severity]SeverityCounts)}

	for id, cur := range b {
		base, ok := a[id]
		if !ok {
			d.New = append(d.New, cur)
			d.bump(cur.Severity, "new")
			continue
		}
		if !opts.DetectModifications {
			d.Unchanged = append(d.Unchanged, cur)
			d.bump(cur.Severity, "unchanged")
			continue
		}
		changes := diffAttributes(base, cur)
		if len(changes) == 0 {
			d.Unchanged = append(d.Unchanged, cur)
			d.bump(cur.Severity, "unchanged")
			continue
		}
		mod := Modification{
			Baseline:  base,
			Current:   cur,
			Changes:   changes,
			RiskDelta: riskDelta(base, cur),
		}
		d.Modified = append(d.Modified, mod)
		d.bump(cur.Severity, "modified")
	}

	for id, base := range a {
		if _, ok := b[id]; !ok {
			d.Resolved = append(d.Resolved, base)
			d.bump(base.Severity, "resolved")
		}
	}

	worsened, improved := 0, 0
	for _, mod := range d.Modified {
		switch mod.RiskDelta {
		case RiskWorsened:
			worsened++
		case RiskImproved:
			improved++
		}
	}
	d.Trend = trendLabel(len(d.New)+worsened, len(d.Resolved)+improved, opts.StableThreshold)
	return d
}

func filter(fs []model.Finding, opts Options) []model.Finding {
	if opts.MinSeverity == model.SeverityInfo && opts.Tool == "" {
		return fs
	}
	out := make([]model.Finding, 0, len(fs))
	for _, f := range fs {
		if f.Severity < opts.MinSeverity {
			continue
		}
		if opts.Tool != "" && f.Tool.Name != opts.Tool {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (d *Diff) bump(sev model.Severity, class string) {
	c := d.BySeverity[sev]
	switch class {
	case "new":
		c.New++
	case "resolved":
		c.Resolved++
	case "modified":
		c.Modified++
	case "unchanged":
		c.Unchanged++
	}
	d.BySeverity[sev] = c
}

// diffAttributes compares the tracked attribute set: severity, message,
// priority, compliance, and CWE tags.
func diffAttributes(base, cur model.Finding) []AttributeChange {
	var changes []AttributeChange
	if base.Severity != cur.Severity {
		changes = append(changes, AttributeChange{Attribute: "severity", Old: base.Severity.String(), New: cur.Severity.String()})
	}
	if base.Message != cur.Message {
		changes = append(changes, AttributeChange{Attribute: "message", Old: base.Message, New: cur.Message})
	}
	if base.Priority.Score != cur.Priority.Score {
		changes = append(changes, AttributeChange{Attribute: "priority", Old: strconv.Itoa(base.Priority.Score), New: strconv.Itoa(cur.Priority.Score)})
	}
	if !reflect.DeepEqual(base.Compliance, cur.Compliance) {
		changes = append(changes, AttributeChange{Attribute: "compliance", Old: "changed", New: "changed"})
	}
	if !reflect.DeepEqual(base.Compliance.CWE, cur.Compliance.CWE) {
		changes = append(changes, AttributeChange{Attribute: "cwe", Old: strings.Join(base.Compliance.CWE, ","), New: strings.Join(cur.Compliance.CWE, ",")})
	}
	// TODO: a CWE set change is reported flat, with no weighting for
	// families that imply a materially different exploitation risk (e.g.
	// CWE-89 added to a finding that only had CWE-20 before). riskDelta
	// below only looks at the severity field.
	return changes
}

func riskDelta(base, cur model.Finding) RiskDelta {
	switch {
	case cur.Severity > base.Severity:
		return RiskWorsened
	case cur.Severity < base.Severity:
		return RiskImproved
	case cur.Priority.Score > base.Priority.Score:
		return RiskWorsened
	case cur.Priority.Score < base.Priority.Score:
		return RiskImproved
	default:
		return RiskUnchanged
	}
}

// trendLabel derives the overall direction from (net new - resolved),
// where "new" and "resolved" each also count modified findings that
// worsened or improved respectively — a finding regressing from HIGH to
// CRITICAL moves the needle the same way a brand-new CRITICAL finding
// would.
func trendLabel(newCount, resolvedCount, stableThreshold int) TrendLabel {
	net := newCount - resolvedCount
	switch {
	case net > stableThreshold:
		return TrendWorsening
	case net < -stableThreshold:
		return TrendImproving
	default:
		return TrendStable
	}
}


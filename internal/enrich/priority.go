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
	"math"

	"github.com/scanforge/scanforge/internal/model"
)

// PriorityWeights are the tunable inputs to the priority formula. New sets
// Pipeline.Weights to DefaultPriorityWeights; a caller may replace that
// field, but internal/config has no priority-weight settings, so the
// weights are not read from a config file.
type PriorityWeights struct {
	SeverityWeight     float64
	EPSSWeight         float64
	KEVBonus           float64
	ReachabilityBonus  float64
	KEVFloor           int
}

// DefaultPriorityWeights matches the formula in §4.D: severity dominates,
// EPSS contributes a smaller slice, KEV presence is a flat bonus (and a
// floor), reachability nudges the score up or down a few points.
func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{
		SeverityWeight:    0.6,
		EPSSWeight:        0.3,
		KEVBonus:          15,
		ReachabilityBonus: 10,
		KEVFloor:          90,
	}
}

// severityScore maps the ordered enum onto a 0-100 scale so the weighted
// sum in Compute stays in a comparable range regardless of which component
// dominates.
func severityScore(s model.Severity) float64 {
	switch s {
	case model.SeverityCritical:
		return 100
	case model.SeverityHigh:
		return 75
	case model.SeverityMedium:
		return 50
	case model.SeverityLow:
		return 25
	default:
		return 0
	}
}

// Compute derives f.Priority from f's severity, EPSS score, KEV membership,
// and reachability multiplier, per §4.D's formula. It is deterministic and,
// per §8, fully reconstructable from priority.components alone: every term
// that fed the score is recorded there.
func Compute(f *model.Finding, weights PriorityWeights, reachability float64) {
	sevScore := severityScore(f.Severity)

	epssScore := 0.0
	if f.EPSS != nil {
		epssScore = f.EPSS.Score
	}

	kevMultiplier := 0.0
	if f.KEV {
		kevMultiplier = 1.0
	}

	raw := sevScore*weights.SeverityWeight +
		epssScore*100*weights.EPSSWeight +
		kevMultiplier*weights.KEVBonus +
		(reachability-1)*weights.ReachabilityBonus

	score := int(math.Round(raw))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	if f.KEV && score < weights.KEVFloor {
		score = weights.KEVFloor
	}

	f.Priority = model.Priority{
		Score: score,
		Components: model.PriorityComponents{
			SeverityScore:          sevScore,
			EPSSMultiplier:         epssScore,
			KEVMultiplier:          kevMultiplier,
			ReachabilityMultiplier: reachability,
		},
	}
}

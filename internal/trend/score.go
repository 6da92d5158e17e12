// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package trend

// ScoreWeights configures the §4.J security score formula:
// 100 − critical·w_c − high·w_h − medium·w_m + improvement_bonus.
type ScoreWeights struct {
	Critical          float64
	High              float64
	Medium            float64
	ImprovementBonus  float64 // awarded per net-resolved finding since the prior scan
	KLOCNormalization bool    // when true and LinesOfCode is known, counts are normalized per 1000 lines before weighting
}

// DefaultScoreWeights mirrors the teacher's RapidGrowthThreshold-style
// "sensible defaults" convention: conservative enough that a handful of
// mediums don't dominate the score, but criticals dominate fast.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Critical:          12,
		High:              6,
		Medium:            2,
		ImprovementBonus:  1,
		KLOCNormalization: true,
	}
}

// GradeBands maps a minimum score to its letter grade, checked highest
// first. A score below every band's minimum receives "F".
var GradeBands = []struct {
	Min   int
	Grade string
}{
	{90, "A"},
	{80, "B"},
	{70, "C"},
	{60, "D"},
}

// Grade returns the letter grade for score per GradeBands.
func Grade(score int) string {
	for _, band := range GradeBands {
		if score >= band.Min {
			return band.Grade
		}
	}
	return "F"
}

// Score computes the security score for the most recent point in series,
// using the point immediately before it (if any) to derive the
// improvement bonus from net-resolved findings. Result is clamped to
// [0,100].
func Score(series []SeriesPoint, weights ScoreWeights) (score int, grade string) {
	if len(series) == 0 {
		return 100, Grade(100)
	}

	current := series[len(series)-1]
	critical := float64(current.Counts.Critical)
	high := float64(current.Counts.High)
	medium := float64(current.Counts.Medium)

	if weights.KLOCNormalization && current.LinesOfCode > 0 {
		kloc := float64(current.LinesOfCode) / 1000.0
		if kloc > 0 {
			critical /= kloc
			high /= kloc
			medium /= kloc
		}
	}

	raw := 100 - critical*weights.Critical - high*weights.High - medium*weights.Medium

	if len(series) > 1 {
		prev := series[len(series)-2]
		netResolved := prev.Counts.Total() - current.Counts.Total()
		if netResolved > 0 {
			raw += float64(netResolved) * weights.ImprovementBonus
		}
	}

	clamped := int(raw)
	if clamped > 100 {
		clamped = 100
	}
	if clamped < 0 {
		clamped = 0
	}
	return clamped, Grade(clamped)
}

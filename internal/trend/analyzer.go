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

import (
	"github.com/scanforge/scanforge/internal/model"
)

// Report is the complete trend analysis for one branch's scan history.
type Report struct {
	Branch           string                            `json:"branch"`
	SampleSize       int                               `json:"sample_size"`
	PerSeverity      map[model.Severity]MannKendallResult `json:"per_severity"`
	SecurityScore    int                               `json:"security_score"`
	SecurityGrade    string                            `json:"security_grade"`
	Regression       *Regression                       `json:"regression,omitempty"`
}

// Analyzer is the Trend Analyzer component: statistical direction,
// security score, and regression detection over an ordered scan history,
// grounded on the teacher's TrendingAnalyzer shape (trending.go) but
// operating over severity-bucketed scan summaries rather than symbol
// caller counts.
type Analyzer struct {
	scoreWeights ScoreWeights
	regressOpts  RegressionOptions
}

// New returns an Analyzer with the given configuration. Zero-value
// ScoreWeights/RegressionOptions are replaced with their defaults.
func New(scoreWeights ScoreWeights, regressOpts RegressionOptions) *Analyzer {
	if scoreWeights == (ScoreWeights{}) {
		scoreWeights = DefaultScoreWeights()
	}
	if regressOpts == (RegressionOptions{}) {
		regressOpts = DefaultRegressionOptions()
	}
	return &Analyzer{scoreWeights: scoreWeights, regressOpts: regressOpts}
}

var trackedSeverities = []model.Severity{
	model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow, model.SeverityInfo,
}

// Analyze runs the full trend computation for branch over series. Series
// shorter than MinSampleSize still produce a descriptive Report (score and
// grade are always computable; PerSeverity entries report
// Applicable=false). Regression detection needs only two points, so
// Regression is nil for series of fewer than two scans.
func (a *Analyzer) Analyze(branch string, series []SeriesPoint) Report {
	report := Report{
		Branch:      branch,
		SampleSize:  len(series),
		PerSeverity: make(map[model.Severity]MannKendallResult, len(trackedSeverities)),
	}

	for _, sev := range trackedSeverities {
		report.PerSeverity[sev] = MannKendall(series, sev)
	}

	report.SecurityScore, report.SecurityGrade = Score(series, a.scoreWeights)

	if reg, ok := DetectRegression(series, a.regressOpts); ok {
		report.Regression = &reg
	}

	return report
}

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

// Regression is a net-new-HIGH/CRITICAL alert comparing the most recent
// scan to a rolling baseline (§4.J).
type Regression struct {
	ScanID         string  `json:"scan_id"`
	NetNewHigh     int     `json:"net_new_high"`
	NetNewCritical int     `json:"net_new_critical"`
	BaselineHigh   float64 `json:"baseline_high"`
	BaselineCrit   float64 `json:"baseline_critical"`
}

// RegressionOptions configures the rolling baseline and alert threshold.
type RegressionOptions struct {
	BaselineWindow int // number of prior scans averaged into the rolling baseline; excludes the most recent scan
	Threshold      int // net-new count, above the baseline, required to raise a Regression
}

// DefaultRegressionOptions matches the teacher's RapidGrowthThreshold-style
// defaults convention from trending.go: a week-ish window, small absolute
// threshold so a single new critical is never silently absorbed.
func DefaultRegressionOptions() RegressionOptions {
	return RegressionOptions{BaselineWindow: 5, Threshold: 1}
}

// DetectRegression compares series' most recent point against the mean of
// up to opts.BaselineWindow preceding points. It returns ok=false when
// there's no regression or not enough history to form a baseline.
func DetectRegression(series []SeriesPoint, opts RegressionOptions) (Regression, bool) {
	if len(series) < 2 {
		return Regression{}, false
	}

	current := series[len(series)-1]
	history := series[:len(series)-1]
	window := opts.BaselineWindow
	if window > len(history) {
		window = len(history)
	}
	baseline := history[len(history)-window:]

	var sumHigh, sumCrit float64
	for _, p := range baseline {
		sumHigh += float64(p.Counts.High)
		sumCrit += float64(p.Counts.Critical)
	}
	baselineHigh := sumHigh / float64(len(baseline))
	baselineCrit := sumCrit / float64(len(baseline))

	netHigh := current.Counts.High - int(baselineHigh)
	netCrit := current.Counts.Critical - int(baselineCrit)

	if netHigh < opts.Threshold && netCrit < opts.Threshold {
		return Regression{}, false
	}

	return Regression{
		ScanID:         current.ScanID,
		NetNewHigh:     netHigh,
		NetNewCritical: netCrit,
		BaselineHigh:   baselineHigh,
		BaselineCrit:   baselineCrit,
	}, true
}

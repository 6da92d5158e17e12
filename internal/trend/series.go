// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package trend computes statistical trend, a security score, and
// regression alerts from an ordered sequence of scans for a branch.
package trend

import (
	"time"

	"github.com/scanforge/scanforge/internal/model"
)

// SeriesPoint is one scan's severity-bucketed finding counts, the unit the
// rest of this package operates on.
type SeriesPoint struct {
	ScanID    string
	Timestamp time.Time
	Counts    model.Summary
	LinesOfCode int // 0 when unknown; Score skips size normalization in that case.
}

// BuildSeries projects a scan history into the ordered series this package
// analyzes. Callers are expected to have already filtered to one branch
// and sorted ascending by timestamp; BuildSeries re-sorts defensively.
func BuildSeries(scans []model.Scan, linesOfCode map[string]int) []SeriesPoint {
	points := make([]SeriesPoint, 0, len(scans))
	for _, s := range scans {
		points = append(points, SeriesPoint{
			ScanID:      s.ScanID,
			Timestamp:   s.Timestamp,
			Counts:      s.Summary,
			LinesOfCode: linesOfCode[s.ScanID],
		})
	}
	for i := 1; i < len(points); i++ {
		for j := i; j > 0 && points[j-1].Timestamp.After(points[j].Timestamp); j-- {
			points[j-1], points[j] = points[j], points[j-1]
		}
	}
	return points
}

// severityCount extracts the count for sev from a SeriesPoint's summary.
func severityCount(p SeriesPoint, sev model.Severity) int {
	switch sev {
	case model.SeverityCritical:
		return p.Counts.Critical
	case model.SeverityHigh:
		return p.Counts.High
	case model.SeverityMedium:
		return p.Counts.Medium
	case model.SeverityLow:
		return p.Counts.Low
	case model.SeverityInfo:
		return p.Counts.Info
	default:
		return 0
	}
}

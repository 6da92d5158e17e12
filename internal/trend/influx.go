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
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// InfluxExporter pushes the per-scan security-score time series to
// InfluxDB, per SPEC_FULL.md's optional secondary trend sink — the
// dashboard.html view covers the primary, in-repo presentation; this lets
// an operator graph the same series in Grafana or another InfluxDB
// consumer without scanforge depending on one.
type InfluxExporter struct {
	client influxdb2.Client
	org    string
	bucket string
}

// NewInfluxExporter dials url with token and targets org/bucket. The
// client isn't health-checked here; a down InfluxDB surfaces as a write
// error on the first WritePoint call, handled as EnrichmentUnavailable-
// class (never fatal to the scan itself).
func NewInfluxExporter(url, token, org, bucket string) *InfluxExporter {
	return &InfluxExporter{
		client: influxdb2.NewClient(url, token),
		org:    org,
		bucket: bucket,
	}
}

// Close releases the underlying HTTP client.
func (e *InfluxExporter) Close() {
	e.client.Close()
}

// WriteReport writes one point per severity bucket plus the aggregate
// security score for a single scan, tagged by branch and scan_id.
func (e *InfluxExporter) WriteReport(ctx context.Context, scanID string, point SeriesPoint, report Report) error {
	writeAPI := e.client.WriteAPIBlocking(e.org, e.bucket)

	p := write.NewPoint(
		"scan_summary",
		map[string]string{"branch": report.Branch, "scan_id": scanID},
		map[string]interface{}{
			"critical":       point.Counts.Critical,
			"high":           point.Counts.High,
			"medium":         point.Counts.Medium,
			"low":            point.Counts.Low,
			"info":           point.Counts.Info,
			"security_score": report.SecurityScore,
			"security_grade": report.SecurityGrade,
		},
		point.Timestamp,
	)
	if err := writeAPI.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("trend: influx write: %w", err)
	}
	return nil
}

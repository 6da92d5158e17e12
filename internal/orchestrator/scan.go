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
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scanforge/scanforge/internal/dedup"
	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/suppress"
)

// ScanResult bundles everything one Driver.RunScan call produces: the scan
// record ready for the History Store, the deduplicated-and-suppressed
// finding stream ready for the sinks, and the suppression sidecar.
type ScanResult struct {
	Scan       model.Scan
	Findings   []model.Finding
	Suppressed suppress.Result
}

// Driver owns one end-to-end scan: target discovery, job expansion,
// the bounded worker pool, dedup, and suppression. internal/history and
// internal/sink consume its ScanResult; the Driver itself never touches
// either.
type Driver struct {
	Discoverer   *Discoverer
	Orchestrator *Orchestrator
}

// NewDriver wires a Discoverer and Orchestrator into one Driver.
func NewDriver(d *Discoverer, o *Orchestrator) *Driver {
	return &Driver{Discoverer: d, Orchestrator: o}
}

// RunScan expands spec, drives every compatible (target, tool) job, and
// folds the results through Deduplicator (E) and Suppression (F) per the
// pipeline in §2. The returned Scan's Outcome follows §4.G.7: Completed if
// every job reached a terminal non-fatal outcome, Partial if any job
// failed after exhausting retries, Failed only on the infrastructure error
// returned by the Orchestrator itself.
func (d *Driver) RunScan(ctx context.Context, profileName string, targetSpec model.TargetSpec, tools []ToolProfile, opts Options) (ScanResult, error) {
	start := time.Now()
	scan := model.Scan{
		ScanID:      uuid.NewString(),
		Timestamp:   start,
		ProfileName: profileName,
		TargetSpec:  targetSpec,
		Attempts:    make(map[string]int),
	}
	for _, t := range tools {
		scan.ToolsRequested = append(scan.ToolsRequested, t.Name)
	}

	targets := d.Discoverer.Discover(ctx, targetSpec)
	if len(targetSpec.RepoPaths) > 0 {
		scan.GitContext = gitContext(ctx, targetSpec.RepoPaths[0])
	}

	records, err := d.Orchestrator.Run(ctx, targets, tools, opts)
	scan.Duration = time.Since(start)

	if err != nil {
		scan.Outcome = model.ScanFailed
		return ScanResult{Scan: scan}, err
	}

	var allFindings []model.Finding
	for _, rec := range records {
		attempts := rec.Attempts
		if attempts == 0 {
			attempts = 1
		}
		scan.Attempts[rec.Job.Tool] += attempts
		allFindings = append(allFindings, rec.Findings...)
	}

	merged := dedup.Merge(allFindings)
	for _, f := range merged {
		scan.Summary.Add(f.Severity)
	}

	result := ScanResult{Scan: scan, Findings: merged}
	if d.Orchestrator.Suppress != nil {
		result.Suppressed = d.Orchestrator.Suppress.Apply(merged)
		result.Findings = result.Suppressed.Kept
	}

	scan.Outcome = classifyScanOutcome(ctx.Err(), records)
	result.Scan = scan
	return result, nil
}

// classifyScanOutcome derives the scan-level outcome from its context error
// and every job's terminal outcome, per §4.G.7: Cancelled only for an
// actual interrupt (ctx cancellation or a job outcome of JobCancelled),
// Partial if any other job failed to reach a clean terminal outcome after
// retries — this includes JobBreakerOpen, since a tripped circuit breaker
// is a resilience-policy event, not a user/gate-initiated cancellation —
// and Completed otherwise.
func classifyScanOutcome(ctxErr error, records []JobOutcomeRecord) model.ScanOutcome {
	partial := false
	cancelled := ctxErr != nil
	for _, rec := range records {
		switch rec.Outcome {
		case model.JobSuccess, model.JobSuccessWithFindings:
			// terminal, non-fatal
		case model.JobCancelled:
			cancelled = true
		default:
			partial = true
		}
	}

	switch {
	case cancelled:
		return model.ScanCancelled
	case partial:
		return model.ScanPartial
	default:
		return model.ScanCompleted
	}
}

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
	"context"
	"os"
	"path/filepath"

	"github.com/scanforge/scanforge/internal/model"
)

// Pipeline runs the two enrichment concerns from §4.D, in order: EPSS/KEV
// lookup, then compliance mapping and priority scoring. A Pipeline is safe
// for concurrent use across orchestrator workers; its only mutable state is
// the Cache, which is itself concurrency-safe.
type Pipeline struct {
	Lookup        *Lookup
	ComplianceTbl []FrameworkMapping
	Weights       PriorityWeights
	Reach         *Reachability
	TargetRoot    string
}

// New builds a Pipeline with the given lookup and sensible defaults for the
// compliance table and priority weights; callers override either via the
// returned struct's exported fields before calling Run.
func New(lookup *Lookup, targetRoot string) *Pipeline {
	return &Pipeline{
		Lookup:        lookup,
		ComplianceTbl: DefaultComplianceTable,
		Weights:       DefaultPriorityWeights(),
		Reach:         NewReachability(),
		TargetRoot:    targetRoot,
	}
}

// Run enriches every finding in place: EPSS/KEV first (best-effort, never
// fatal), then compliance mapping, then the priority score. Findings with
// no extractable CVE skip EPSS/KEV entirely and still receive compliance
// mapping and a priority score from severity/reachability alone.
func (p *Pipeline) Run(ctx context.Context, findings []model.Finding) []model.Finding {
	cveByIndex := make(map[int]string)
	var cves []string
	for i, f := range findings {
		cve := ExtractCVE(append([]string{f.RuleID}, f.References...)...)
		if cve == "" {
			continue
		}
		cveByIndex[i] = cve
		cves = append(cves, cve)
	}

	var resolved map[string]cvssEntry
	if len(cves) > 0 && p.Lookup != nil {
		resolved = p.Lookup.Resolve(ctx, cves)
	}

	for i := range findings {
		f := &findings[i]

		if cve, ok := cveByIndex[i]; ok {
			if entry, ok := resolved[cve]; ok {
				if entry.HasEPSS {
					f.EPSS = &model.EPSS{Score: entry.EPSSScore, Percentile: entry.EPSSPctile}
				}
				f.KEV = entry.KEV
				f.KEVDueDate = entry.KEVDue
			}
		}

		MapCompliance(f, p.ComplianceTbl)

		reach := 1.0
		if p.Reach != nil {
			reach = p.Reach.Score(ctx, f.Location.Path, f.Location.StartLine, p.readSource(f.Location.Path))
		}
		Compute(f, p.Weights, reach)
	}

	return findings
}

// readSource best-effort reads the finding's source file for reachability
// scoring. A missing file (non-repo target, deleted file since scan) is not
// an error — Reachability.Score treats nil content as neutral.
func (p *Pipeline) readSource(path string) []byte {
	if p.TargetRoot == "" || path == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(p.TargetRoot, path))
	if err != nil {
		return nil
	}
	return data
}

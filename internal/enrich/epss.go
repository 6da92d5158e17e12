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
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/time/rate"
)

// cveRe pulls a CVE identifier out of a rule_id or reference string; EPSS
// and KEV are both keyed by CVE, so a finding with no recognizable CVE
// never enters the lookup path at all.
var cveRe = regexp.MustCompile(`CVE-\d{4}-\d{4,}`)

// ExtractCVE returns the first CVE-xxxx-xxxxx token found in candidates
// (rule_id followed by references), or "" if none is present.
func ExtractCVE(candidates ...string) string {
	for _, c := range candidates {
		if m := cveRe.FindString(c); m != "" {
			return m
		}
	}
	return ""
}

// EPSSSource performs the actual upstream EPSS lookup for a batch of CVEs.
// Production wiring wraps the FIRST.org EPSS API; tests inject a fake. A
// failed or partial lookup is not an error per §4.D — callers proceed
// without EPSS data for whatever CVEs did not come back.
type EPSSSource interface {
	LookupEPSS(ctx context.Context, cves []string) (map[string]EPSSResult, error)
}

// EPSSResult is one upstream EPSS answer.
type EPSSResult struct {
	Score      float64
	Percentile float64
}

// KEVSource performs the upstream CISA KEV catalog lookup.
type KEVSource interface {
	// LookupKEV returns the subset of cves present in the KEV catalog,
	// mapped to their due date (empty if the catalog lists no due date).
	LookupKEV(ctx context.Context, cves []string) (map[string]string, error)
}

// Lookup batches EPSS + KEV enrichment for a set of CVEs through Cache,
// performing upstream calls only for cache misses or stale entries, and
// rate-limiting those calls so a large scan doesn't hammer either upstream
// service.
type Lookup struct {
	cache   *Cache
	epss    EPSSSource
	kev     KEVSource
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewLookup builds a Lookup. limiter defaults to 5 requests/second if nil,
// matching the teacher's conservative default for best-effort external
// calls that must never become the scan's bottleneck.
func NewLookup(cache *Cache, epss EPSSSource, kev KEVSource, limiter *rate.Limiter, log *slog.Logger) *Lookup {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(5), 5)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Lookup{cache: cache, epss: epss, kev: kev, limiter: limiter, log: log}
}

// Resolve returns the merged EPSS/KEV entry for every cve in cves, using
// cache where fresh and falling back to a best-effort upstream refresh
// otherwise. Entries that could not be resolved (no cache hit, upstream
// failure, or lookup source missing) are simply absent from the result —
// EnrichmentUnavailable per §7 is never fatal.
func (l *Lookup) Resolve(ctx context.Context, cves []string) map[string]cvssEntry {
	out := make(map[string]cvssEntry, len(cves))
	now := time.Now()

	var needEPSS, needKEV []string
	for _, cve := range cves {
		entry, ok := l.cache.Get(ctx, cve)
		if ok {
			out[cve] = entry
		}
		if !ok || entry.epssStale(now) {
			needEPSS = append(needEPSS, cve)
		}
		if !ok || entry.kevStale(now) {
			needKEV = append(needKEV, cve)
		}
	}

	if len(needEPSS) > 0 && l.epss != nil {
		if err := l.limiter.Wait(ctx); err == nil {
			if results, err := l.epss.LookupEPSS(ctx, needEPSS); err != nil {
				l.log.Warn("enrich: EPSS lookup failed, proceeding without it", "error", err, "cve_count", len(needEPSS))
			} else {
				for cve, r := range results {
					entry := out[cve]
					entry.CVE = cve
					entry.HasEPSS = true
					entry.EPSSScore = r.Score
					entry.EPSSPctile = r.Percentile
					entry.FetchedAt = now
					out[cve] = entry
				}
			}
		}
	}

	if len(needKEV) > 0 && l.kev != nil {
		if err := l.limiter.Wait(ctx); err == nil {
			if results, err := l.kev.LookupKEV(ctx, needKEV); err != nil {
				l.log.Warn("enrich: KEV lookup failed, proceeding without it", "error", err, "cve_count", len(needKEV))
			} else {
				for cve, due := range results {
					entry := out[cve]
					entry.CVE = cve
					entry.KEV = true
					entry.KEVDue = due
					entry.FetchedAt = now
					out[cve] = entry
				}
			}
		}
	}

	for cve, entry := range out {
		l.cache.Put(ctx, cve, entry)
	}
	return out
}

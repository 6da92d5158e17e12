// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package suppress filters findings against user-defined rules, first match
// wins, and preserves an audit record of what was suppressed and why.
package suppress

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/scanforge/scanforge/internal/model"
)

// Engine evaluates an ordered rule set against a finding stream.
type Engine struct {
	rules []model.SuppressionRule
	now   func() time.Time
}

// New builds an Engine from rules, evaluated in the given order.
func New(rules []model.SuppressionRule) *Engine {
	return &Engine{rules: rules, now: time.Now}
}

// Result is the outcome of Apply: the findings that survived, and the
// sidecar of suppressed findings with their matching rule, plus which rule
// ids matched nothing in this run ("unused").
type Result struct {
	Kept       []model.Finding
	Suppressed []model.Suppressed
	Unused     []string
}

// Apply evaluates every finding against the rule set in definition order,
// first match wins. Expired rules are inert. Deterministic and idempotent:
// running Apply twice on the same input and rule set yields the same Kept
// and Suppressed sets.
func (e *Engine) Apply(findings []model.Finding) Result {
	now := e.now()
	used := make(map[string]bool, len(e.rules))

	result := Result{
		Kept: make([]model.Finding, 0, len(findings)),
	}

	for _, f := range findings {
		ruleID, matched := e.match(f, now)
		if !matched {
			result.Kept = append(result.Kept, f)
			continue
		}
		used[ruleID] = true
		result.Suppressed = append(result.Suppressed, model.Suppressed{Finding: f, RuleID: ruleID})
	}

	for _, rule := range e.rules {
		if !used[rule.ID] {
			result.Unused = append(result.Unused, rule.ID)
		}
	}
	return result
}

// match returns the id of the first non-expired rule matching f, if any.
func (e *Engine) match(f model.Finding, now time.Time) (string, bool) {
	for _, rule := range e.rules {
		if rule.Expired(now) {
			continue
		}
		if matches(rule.Match, f) {
			return rule.ID, true
		}
	}
	return "", false
}

func matches(m model.SuppressionMatch, f model.Finding) bool {
	if m.Tool != "" && !strings.EqualFold(m.Tool, f.Tool.Name) {
		return false
	}
	if m.RuleID != "" && m.RuleID != f.RuleID {
		return false
	}
	if m.PathGlob != "" {
		ok, err := filepath.Match(m.PathGlob, f.Location.Path)
		if err != nil || !ok {
			return false
		}
	}
	if m.SeverityMax != nil && f.Severity > *m.SeverityMax {
		return false
	}
	return true
}

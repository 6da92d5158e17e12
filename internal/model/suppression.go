// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "time"

// SuppressionMatch is the set of optional predicates a SuppressionRule
// tests against a finding. A nil/empty field matches any value.
type SuppressionMatch struct {
	Tool        string    `yaml:"tool,omitempty" json:"tool,omitempty"`
	RuleID      string    `yaml:"rule_id,omitempty" json:"rule_id,omitempty"`
	PathGlob    string    `yaml:"path_glob,omitempty" json:"path_glob,omitempty"`
	SeverityMax *Severity `yaml:"severity_max,omitempty" json:"severity_max,omitempty"`
}

// SuppressionRule filters matching findings out of emitted output while
// preserving an audit trail of what was suppressed and why. Rules are
// evaluated in definition order; the first match wins.
type SuppressionRule struct {
	ID      string           `yaml:"id" json:"id"`
	Match   SuppressionMatch `yaml:"match" json:"match"`
	Reason  string           `yaml:"reason" json:"reason"`
	Expires *time.Time       `yaml:"expires,omitempty" json:"expires,omitempty"`
}

// Expired reports whether the rule is inert at instant now.
func (r SuppressionRule) Expired(now time.Time) bool {
	return r.Expires != nil && now.After(*r.Expires)
}

// Suppressed pairs a suppressed finding with the rule that matched it, for
// the SUPPRESSIONS.md sidecar and the suppression audit trail.
type Suppressed struct {
	Finding Finding `json:"finding"`
	RuleID  string  `json:"rule_id"`
}

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

// ScanRecord is the History Store's row projection of a Scan: fields a
// list/trend query needs without deserializing every finding.
type ScanRecord struct {
	ScanID      string        `db:"scan_id"`
	Timestamp   time.Time     `db:"timestamp"`
	ProfileName string        `db:"profile_name"`
	Branch      string        `db:"branch"`
	Commit      string        `db:"commit"`
	Outcome     ScanOutcome   `db:"outcome"`
	Duration    time.Duration `db:"duration_ns"`
	Summary     Summary       `db:"-"`
	Digest      string        `db:"digest"`
}

// FindingRecord is the History Store's row projection of a Finding: enough
// to drive trend queries fast (fingerprint, severity, scan linkage) without
// touching the full canonical payload, which is stored alongside as JSONB.
type FindingRecord struct {
	ScanID    string    `db:"scan_id"`
	ID        FindingID `db:"id"`
	RuleID    string    `db:"rule_id"`
	Severity  Severity  `db:"severity"`
	Priority  int       `db:"priority"`
	Path      string    `db:"path"`
	ToolNames []string  `db:"tool_names"`
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history is the append-only store of scans and findings: an
// atomic write path, list/get/compare/prune/vacuum queries, and an
// integrity digest checked by Verify.
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/scanforge/scanforge/internal/model"
)

// Digest computes the integrity hash stored alongside a scan: a
// deterministic fold over every finding's id and severity, sorted by id so
// storage order never affects the result. Verify recomputes this digest
// from the persisted findings and compares it against the stored value.
func Digest(findings []model.Finding) string {
	ids := make([]string, len(findings))
	bySeverity := make(map[string]model.Severity, len(findings))
	for i, f := range findings {
		ids[i] = string(f.ID)
		bySeverity[string(f.ID)] = f.Severity
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		fmt.Fprintf(h, "%s|%d\n", id, bySeverity[id])
	}
	return hex.EncodeToString(h.Sum(nil))
}

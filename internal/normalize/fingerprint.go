// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package normalize turns an adapter's tool-native finding shell into the
// canonical Finding record: it computes the stable fingerprint, canonicalizes
// the location path, and attaches tool provenance.
package normalize

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strconv"
	"strings"

	"github.com/scanforge/scanforge/internal/model"
)

// fingerprintPrefixBytes truncates the SHA-256 digest to 160 bits: short
// enough to be filename-safe, long enough that collisions are not a
// practical concern at scan scale.
const fingerprintPrefixBytes = 20

// truncateLen bounds how much of a finding's message feeds the fingerprint,
// so two messages differing only past this point still collide as "the
// same defect" while two genuinely distinct messages rarely do.
const truncateLen = 120

var fingerprintEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Fingerprint computes the canonical finding id: H(tool.name | rule_id |
// normalized_path | start_line | truncated_message). Equal inputs to this
// function always produce an equal id, across runs and across processes.
func Fingerprint(toolName, ruleID, normalizedPath string, startLine int, message string) model.FindingID {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%s", toolName, ruleID, normalizedPath, startLine, truncateMessage(message))
	sum := h.Sum(nil)
	return model.FindingID(fingerprintEncoding.EncodeToString(sum[:fingerprintPrefixBytes]))
}

// truncateMessage collapses interior whitespace and cuts to truncateLen
// runes, so cosmetic differences in a tool's message (trailing detail that
// varies run to run) do not change the fingerprint.
func truncateMessage(message string) string {
	collapsed := strings.Join(strings.Fields(message), " ")
	runes := []rune(collapsed)
	if len(runes) <= truncateLen {
		return collapsed
	}
	return string(runes[:truncateLen])
}

// CanonicalPath converts path to the repo-relative, forward-slash form the
// fingerprint and every sink expect. It does not call filepath.ToSlash
// directly: an adapter may already hand back a forward-slash path taken
// from a container layer or URL target, and re-interpreting that as an
// OS path (on Windows, for example) would corrupt it. Only backslashes are
// converted, and a leading target root prefix is stripped if present.
func CanonicalPath(root, path string) string {
	clean := strings.ReplaceAll(path, "\\", "/")
	root = strings.ReplaceAll(root, "\\", "/")
	root = strings.TrimSuffix(root, "/")
	if root != "" && strings.HasPrefix(clean, root+"/") {
		clean = strings.TrimPrefix(clean, root+"/")
	}
	return strings.TrimPrefix(clean, "/")
}

// FormatLine renders a line number for inclusion in diagnostic text; kept
// separate from fmt.Sprintf call sites so the "0 means absent" convention
// has one place to change.
func FormatLine(line int) string {
	if line <= 0 {
		return "-"
	}
	return strconv.Itoa(line)
}

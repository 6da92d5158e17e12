// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package adapters

import (
	"bufio"
	"bytes"
	"encoding/json"
)

// decodeRecords tolerantly splits raw into individual JSON records,
// accepting (a) empty output, (b) a single JSON object, (c) a JSON array,
// and (d) newline-delimited JSON, per the Adapter Set contract. A truncated
// trailing record is silently discarded rather than failing the whole
// batch; everything decodable before it is kept.
func decodeRecords(raw []byte) []json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '[':
		var records []json.RawMessage
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		// Token-by-token so a truncated trailing element doesn't abort the
		// whole array; Decode would fail the entire unmarshal otherwise.
		if _, err := dec.Token(); err != nil {
			return nil
		}
		for dec.More() {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				break
			}
			records = append(records, append(json.RawMessage(nil), raw...))
		}
		return records
	case '{':
		// Could be a single object, or a wrapper whose caller pulls a
		// named array field back out (e.g. semgrep's {"results": [...]})
		// — callers that need the wrapper shape decode raw directly
		// instead of calling decodeRecords.
		return []json.RawMessage{append(json.RawMessage(nil), trimmed...)}
	default:
		// newline-delimited JSON
		var records []json.RawMessage
		scanner := bufio.NewScanner(bytes.NewReader(trimmed))
		scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			if !json.Valid(line) {
				// likely a truncated trailing line; stop here, keep what
				// was already parsed.
				break
			}
			records = append(records, append(json.RawMessage(nil), line...))
		}
		return records
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sink

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/scanforge/scanforge/internal/model"
)

// envelopeSchema is findings.json's shape, checked before every write so a
// future field rename or a bad manual edit to a fixture fails loudly
// instead of shipping a malformed artifact downstream consumers parse
// against this same contract.
const envelopeSchema = `{
  "type": "object",
  "required": ["meta", "findings"],
  "properties": {
    "meta": {
      "type": "object",
      "required": ["output_version", "schema_version", "timestamp", "scan_id"],
      "properties": {
        "output_version": {"type": "string"},
        "schema_version": {"type": "string"},
        "timestamp": {"type": "string", "format": "date-time"},
        "scan_id": {"type": "string", "minLength": 1}
      }
    },
    "findings": {"type": "array"}
  }
}`

var compiledEnvelopeSchema *jsonschema.Schema

func init() {
	var doc any
	if err := json.Unmarshal([]byte(envelopeSchema), &doc); err != nil {
		panic(fmt.Errorf("sink: envelope schema does not parse as JSON: %w", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("envelope.json", doc); err != nil {
		panic(fmt.Errorf("sink: envelope schema resource: %w", err))
	}
	schema, err := c.Compile("envelope.json")
	if err != nil {
		panic(fmt.Errorf("sink: envelope schema does not compile: %w", err))
	}
	compiledEnvelopeSchema = schema
}

// validateEnvelope checks a marshaled findings.json document against
// envelopeSchema before it is written to disk.
func validateEnvelope(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.NewError(model.ErrStorageError, "", err)
	}
	if err := compiledEnvelopeSchema.Validate(doc); err != nil {
		return model.NewError(model.ErrStorageError, "", fmt.Errorf("envelope failed schema validation: %w", err))
	}
	return nil
}

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
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/normalize"
)

// Generic parses a tool with no dedicated Go adapter by evaluating an
// operator-supplied jq expression against its raw JSON output. The
// expression is expected to project each record to an object with
// {rule_id, severity, path, start_line, end_line, message} fields — any
// other shape is skipped with a parse warning rather than failing the run.
//
// This exists so "add a tool" does not require a Go rebuild for the common
// case of another JSON-emitting scanner: config wires the jq expression,
// Parse does the rest.
type Generic struct {
	tool  string
	query *gojq.Code
}

// genericProjection is the shape Parse expects the jq expression to emit
// for each record.
type genericProjection struct {
	RuleID    string  `json:"rule_id"`
	Severity  string  `json:"severity"`
	Path      string  `json:"path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Message   string  `json:"message"`
	ToolName  string  `json:"tool,omitempty"`
}

// NewGeneric compiles expr once so repeated Parse calls across many jobs
// for the same tool don't re-parse the jq program each time.
func NewGeneric(tool, expr string) (*Generic, error) {
	parsed, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("adapters: invalid jq expression for %s: %w", tool, err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("adapters: compiling jq expression for %s: %w", tool, err)
	}
	return &Generic{tool: tool, query: code}, nil
}

func (g *Generic) Parse(raw []byte, target model.Target) ([]normalize.Shell, []normalize.Warning) {
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, []normalize.Warning{{Tool: g.tool, Reason: "unparseable output: " + err.Error()}}
	}

	var shells []normalize.Shell
	var warnings []normalize.Warning

	iter := g.query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			warnings = append(warnings, normalize.Warning{Tool: g.tool, Reason: "jq evaluation: " + err.Error()})
			continue
		}

		encoded, err := json.Marshal(v)
		if err != nil {
			warnings = append(warnings, normalize.Warning{Tool: g.tool, Reason: "projected record not JSON-encodable"})
			continue
		}
		var proj genericProjection
		if err := json.Unmarshal(encoded, &proj); err != nil {
			warnings = append(warnings, normalize.Warning{Tool: g.tool, Reason: "projected record did not match expected shape"})
			continue
		}
		if proj.RuleID == "" || proj.Path == "" {
			warnings = append(warnings, normalize.Warning{Tool: g.tool, Reason: "projected record missing rule_id or path"})
			continue
		}

		toolName := proj.ToolName
		if toolName == "" {
			toolName = g.tool
		}
		severity, _ := model.ParseSeverity(proj.Severity)

		shells = append(shells, normalize.Shell{
			Tool:      model.Tool{Name: toolName},
			RuleID:    proj.RuleID,
			Severity:  severity,
			Path:      proj.Path,
			StartLine: proj.StartLine,
			EndLine:   proj.EndLine,
			Message:   proj.Message,
			Raw:       encoded,
		})
	}

	return shells, warnings
}

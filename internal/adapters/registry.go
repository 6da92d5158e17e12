// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package adapters holds one parser per supported security tool, each
// translating that tool's native output into normalize.Shell values, plus a
// generic jq-driven fallback for tools with no dedicated adapter.
package adapters

import (
	"fmt"
	"sync"

	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/normalize"
)

// ParseFunc is the capability every adapter implements: parse a tool's raw
// output for one target into a list of pre-normalized shells. It must
// tolerate empty output, a single object, a JSON array, NDJSON, and
// truncated trailing records — never throwing on a well-formed-but-
// unexpected shape, returning a Warning instead.
type ParseFunc func(raw []byte, target model.Target) ([]normalize.Shell, []normalize.Warning)

// Entry is a tool's registration: its parser plus the adapter contract
// fields the Tool Runner and Orchestrator need (§6 "version-pinned").
type Entry struct {
	Tool         string
	SuccessCodes []int
	Parse        ParseFunc
}

var (
	mu       sync.RWMutex
	registry = map[string]Entry{}
)

// Register adds or replaces the adapter for a tool name. Adding a tool is
// exactly this call plus a severity table entry, per §9's design note on
// dynamic dispatch across adapters.
func Register(entry Entry) {
	mu.Lock()
	defer mu.Unlock()
	registry[entry.Tool] = entry
}

// Get returns the registered adapter for tool, or false if none exists —
// callers fall back to the generic jq-path adapter in that case.
func Get(tool string) (Entry, bool) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := registry[tool]
	return e, ok
}

// Tools lists every registered tool name.
func Tools() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

func init() {
	Register(Entry{Tool: "gitleaks", SuccessCodes: []int{0, 1}, Parse: parseGitleaks})
	Register(Entry{Tool: "semgrep", SuccessCodes: []int{0, 1}, Parse: parseSemgrep})
	Register(Entry{Tool: "trivy", SuccessCodes: []int{0}, Parse: parseTrivy})
}

// ParseWithFallback looks up tool's dedicated adapter; if none is
// registered it falls back to the generic jq-path adapter built from expr,
// satisfying §9's "adding a tool with no dedicated adapter" path.
func ParseWithFallback(tool string, expr string, raw []byte, target model.Target) ([]normalize.Shell, []normalize.Warning, error) {
	if entry, ok := Get(tool); ok {
		shells, warnings := entry.Parse(raw, target)
		return shells, warnings, nil
	}
	if expr == "" {
		return nil, nil, fmt.Errorf("adapters: no registered adapter and no generic expression for tool %q", tool)
	}
	adapter, err := NewGeneric(tool, expr)
	if err != nil {
		return nil, nil, err
	}
	shells, warnings := adapter.Parse(raw, target)
	return shells, warnings, nil
}

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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// Reachability turns "is this finding plausibly reachable from real
// program entry points" into the priority formula's reachability
// multiplier. It is a heuristic, not a true call-graph analysis: a finding
// in a test, vendored, testdata, fixture or minified-JS path scores 0.7; a
// finding at package scope scores 0.9; one inside an unexported function
// scores neutral (1.0); one inside an exported function scores 1.1. No call
// sites are examined. Parse failures or unsupported languages fall back to
// neutral — reachability never blocks or fails the scan.
type Reachability struct {
	parser *sitter.Parser
}

// NewReachability builds a Reachability scorer for Go source. Other
// languages fall back to the neutral multiplier until an adapter is added,
// matching §9's "adding a tool is adding a variant plus a table entry"
// design note applied to language support.
func NewReachability() *Reachability {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &Reachability{parser: p}
}

// Score returns the multiplier for a finding at (path, line) with source
// content. content may be nil if the file could not be read (e.g. the
// finding's target was an image or URL, not a repo) — in that case Score
// returns the neutral multiplier, unless the path itself is low-value.
func (r *Reachability) Score(ctx context.Context, path string, line int, content []byte) float64 {
	if isLowValuePath(path) {
		return 0.7
	}
	if content == nil || !strings.HasSuffix(path, ".go") || line <= 0 {
		return 1.0
	}

	tree, err := r.parser.ParseCtx(ctx, nil, content)
	if err != nil || tree == nil {
		return 1.0
	}
	defer tree.Close()

	root := tree.RootNode()
	fn := enclosingFunction(root, content, line)
	if fn == "" {
		// Package-level declaration, not inside any function: slightly
		// less interesting than code executed on a hot path.
		return 0.9
	}
	if isExported(fn) {
		return 1.1
	}
	return 1.0
}

// isLowValuePath flags paths whose findings are rarely operationally
// reachable: test files, vendored/generated code, and fixtures.
func isLowValuePath(path string) bool {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, "_test.go"),
		strings.Contains(lower, "/vendor/"),
		strings.Contains(lower, "/testdata/"),
		strings.Contains(lower, "/fixtures/"),
		strings.Contains(lower, ".min.js"):
		return true
	default:
		return false
	}
}

// enclosingFunction walks root's function/method declarations and returns
// the name of the one whose byte range covers line, or "" if line falls
// outside every function (i.e. at package scope).
func enclosingFunction(root *sitter.Node, content []byte, line int) string {
	var found string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "function_declaration" || n.Type() == "method_declaration" {
			start := int(n.StartPoint().Row) + 1
			end := int(n.EndPoint().Row) + 1
			if line >= start && line <= end {
				if name := n.ChildByFieldName("name"); name != nil {
					found = name.Content(content)
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return found
}

func isExported(name string) bool {
	if name == "" {
		return false
	}
	r := rune(name[0])
	return r >= 'A' && r <= 'Z'
}

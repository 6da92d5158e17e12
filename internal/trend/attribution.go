// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package trend

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	diff "github.com/sourcegraph/go-diff/diff"

	"github.com/scanforge/scanforge/internal/model"
)

// Attribution names the developer responsible for introducing or
// resolving a finding, per §4.J's optional developer-attribution feature.
// It is best-effort: any git failure (not a repo, file not tracked,
// shallow clone missing history) degrades to a zero-value Attribution
// rather than failing the surrounding trend computation.
type Attribution struct {
	FindingID  model.FindingID `json:"finding_id"`
	Commit     string          `json:"commit,omitempty"`
	Author     string          `json:"author,omitempty"`
	AuthorDate string          `json:"author_date,omitempty"`
	Kind       string          `json:"kind"` // "introduced" or "resolved"
}

// Attributor blames findings against a git working tree using the raw
// os/exec-invoked git pattern the teacher's GitAwareExecutor follows,
// rather than a pure-Go git implementation.
type Attributor struct {
	repoRoot string
}

// NewAttributor returns an Attributor rooted at repoRoot. No validation is
// done eagerly; a repoRoot that isn't a git working tree simply causes
// every subsequent call to return a best-effort empty Attribution.
func NewAttributor(repoRoot string) *Attributor {
	return &Attributor{repoRoot: repoRoot}
}

// Introduced blames the line that f was first reported at and returns who
// committed it, via `git blame --porcelain -L<line>,<line>`.
func (a *Attributor) Introduced(ctx context.Context, f model.Finding) Attribution {
	attr := Attribution{FindingID: f.ID, Kind: "introduced"}
	if f.Location.Path == "" || f.Location.StartLine <= 0 {
		return attr
	}

	lineArg := fmt.Sprintf("-L%d,%d", f.Location.StartLine, f.Location.StartLine)
	out, err := a.git(ctx, "blame", "--porcelain", lineArg, "--", f.Location.Path)
	if err != nil {
		return attr
	}

	scanner := bufio.NewScanner(strings.NewReader(out))
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			// the first porcelain line is "<sha> <orig-line> <final-line> [<lines>]"
			first = false
			if fields := strings.Fields(line); len(fields) > 0 && len(fields[0]) == 40 {
				attr.Commit = fields[0]
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, "author "):
			attr.Author = strings.TrimPrefix(line, "author ")
		case strings.HasPrefix(line, "author-time "):
			if ts, err := strconv.ParseInt(strings.TrimPrefix(line, "author-time "), 10, 64); err == nil {
				attr.AuthorDate = fmt.Sprintf("%d", ts)
			}
		}
	}
	return attr
}

// Resolved walks recent commits that touched f's file looking for a diff
// hunk that deletes f's reported line, using sourcegraph/go-diff to parse
// each commit's patch rather than hand-rolling unified-diff parsing.
func (a *Attributor) Resolved(ctx context.Context, f model.Finding) Attribution {
	attr := Attribution{FindingID: f.ID, Kind: "resolved"}
	if f.Location.Path == "" {
		return attr
	}

	out, err := a.git(ctx, "log", "--format=commit %H%nauthor %an%ndate %at", "-p", "-n", "20", "--", f.Location.Path)
	if err != nil {
		return attr
	}

	commits := strings.Split(out, "commit ")
	for _, block := range commits[1:] {
		lines := strings.SplitN(block, "\n", 4)
		if len(lines) < 4 {
			continue
		}
		sha := lines[0]
		author := strings.TrimPrefix(lines[1], "author ")
		date := strings.TrimPrefix(lines[2], "date ")
		patch := "diff --git a/" + f.Location.Path + " b/" + f.Location.Path + "\n" + lines[3]

		fileDiffs, err := diff.ParseMultiFileDiff([]byte(patch))
		if err != nil {
			continue
		}
		if hunksDeleteLine(fileDiffs, f.Location.StartLine) {
			attr.Commit, attr.Author, attr.AuthorDate = sha, author, date
			return attr
		}
	}
	return attr
}

func hunksDeleteLine(fileDiffs []*diff.FileDiff, line int) bool {
	for _, fd := range fileDiffs {
		for _, h := range fd.Hunks {
			origLine := int(h.OrigStartLine)
			for _, raw := range strings.Split(string(h.Body), "\n") {
				if strings.HasPrefix(raw, "-") && !strings.HasPrefix(raw, "---") {
					if origLine == line {
						return true
					}
					origLine++
				} else if !strings.HasPrefix(raw, "+") {
					origLine++
				}
			}
		}
	}
	return false
}

func (a *Attributor) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = a.repoRoot
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("trend: git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

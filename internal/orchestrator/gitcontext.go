// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/scanforge/scanforge/internal/model"
)

// gitContext inspects a repo-shaped target's working tree the same way
// trend.Attributor does: a raw os/exec-invoked git, never a pure-Go git
// implementation. A target that isn't a git working tree degrades to a
// nil *model.GitContext rather than failing target discovery.
func gitContext(ctx context.Context, repoRoot string) *model.GitContext {
	commit, err := runGit(ctx, repoRoot, "rev-parse", "HEAD")
	if err != nil {
		return nil
	}
	branch, _ := runGit(ctx, repoRoot, "rev-parse", "--abbrev-ref", "HEAD")
	tag, _ := runGit(ctx, repoRoot, "describe", "--tags", "--exact-match")

	_, dirty := ChangedFiles(ctx, repoRoot)
	gc := &model.GitContext{
		Commit: strings.TrimSpace(commit),
		Branch: strings.TrimSpace(branch),
		Tag:    strings.TrimSpace(tag),
		Dirty:  dirty,
	}
	return gc
}

// ChangedFiles parses `git diff` via sourcegraph/go-diff (the same library
// trend.Attributor uses against `git log -p`) to produce the dirty
// worktree's changed-file set, rather than re-parsing `git status
// --porcelain` output by hand. gitContext keeps only the dirty flag and
// discards the file list; the set is not used to filter jobs.
func ChangedFiles(ctx context.Context, repoRoot string) ([]string, bool) {
	raw, err := runGit(ctx, repoRoot, "diff", "--no-color", "HEAD")
	if err != nil || strings.TrimSpace(raw) == "" {
		return nil, false
	}

	fileDiffs, err := godiff.ParseMultiFileDiff([]byte(raw))
	if err != nil {
		return nil, true
	}

	files := make([]string, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		name := strings.TrimPrefix(fd.NewName, "b/")
		if name == "" {
			name = strings.TrimPrefix(fd.OrigName, "a/")
		}
		files = append(files, name)
	}
	return files, true
}

func runGit(ctx context.Context, repoRoot string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stdout.String(), nil
}

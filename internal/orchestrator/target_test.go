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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/scanforge/scanforge/internal/model"
)

func TestDiscoverRepoPaths_ExpandsSubrepos(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "service-a")
	if err := os.MkdirAll(filepath.Join(sub, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	plainDir := filepath.Join(root, "docs")
	if err := os.MkdirAll(plainDir, 0o755); err != nil {
		t.Fatal(err)
	}

	d := NewDiscoverer(nil)
	targets := d.discoverRepoPaths([]string{root})

	if len(targets) != 2 {
		t.Fatalf("discoverRepoPaths = %d targets, want 2 (root + service-a); got %+v", len(targets), targets)
	}
	foundSub := false
	for _, tgt := range targets {
		if tgt.Identifier == sub {
			foundSub = true
		}
		if tgt.Identifier == plainDir {
			t.Errorf("non-repo subdirectory %s should not be discovered as its own target", plainDir)
		}
	}
	if !foundSub {
		t.Error("expected the nested git repo to be discovered as its own target")
	}
}

func TestDiscoverRepoPaths_MissingPathWarns(t *testing.T) {
	d := NewDiscoverer(nil)
	targets := d.discoverRepoPaths([]string{"/does/not/exist"})
	if len(targets) != 1 || len(targets[0].Warnings) == 0 {
		t.Fatalf("expected one target with a warning, got %+v", targets)
	}
	if targets[0].Valid() {
		t.Error("a target with warnings must report Valid() == false")
	}
}

func TestDiscoverIaCFiles_MissingFileWarns(t *testing.T) {
	d := NewDiscoverer(nil)
	targets := d.discoverIaCFiles([]string{"/does/not/exist.tf"})
	if len(targets) != 1 || len(targets[0].Warnings) == 0 {
		t.Fatal("expected a warning for a missing IaC file")
	}
}

func TestDiscoverHostedRepos_NoCredentialsStoreSkipsResolution(t *testing.T) {
	d := NewDiscoverer(nil)
	targets := d.discoverHostedRepos([]string{"github.com/org/repo"})
	if len(targets) != 1 {
		t.Fatalf("got %d targets, want 1", len(targets))
	}
	if targets[0].Kind != model.TargetHostedRepo {
		t.Errorf("Kind = %v, want TargetHostedRepo", targets[0].Kind)
	}
	if targets[0].Credential != nil {
		t.Error("expected nil Credential with no credential store configured")
	}
}

func TestDiscover_CombinesAllSpecFields(t *testing.T) {
	d := NewDiscoverer(nil)
	spec := model.TargetSpec{
		Images:      []string{"alpine:latest"},
		KubeContext: []string{"prod/default"},
	}
	targets := d.Discover(context.Background(), spec)
	if len(targets) != 2 {
		t.Fatalf("Discover produced %d targets, want 2", len(targets))
	}
}

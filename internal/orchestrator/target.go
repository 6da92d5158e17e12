// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package orchestrator is the heart of the system: it expands a TargetSpec and
a tools list into a bounded worker pool of jobs, drives each job through
Tool Runner -> Adapter -> Normalizer -> Enrichment -> Deduplicator ->
Suppression, and hands the merged result to the history store and sinks.
*/
package orchestrator

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/scanforge/scanforge/internal/credential"
	"github.com/scanforge/scanforge/internal/model"
)

// compatibility is the fixed matrix between TargetKind and tool: which
// tools may run against which kind of target. A tool absent from a kind's
// set is simply never scheduled against targets of that kind.
var compatibility = map[model.TargetKind]map[string]bool{
	model.TargetRepoPath: {
		"gitleaks": true, "semgrep": true, "trivy": true,
	},
	model.TargetHostedRepo: {
		"gitleaks": true, "semgrep": true, "trivy": true,
	},
	model.TargetImage: {
		"trivy": true,
	},
	model.TargetIaCFile: {
		"trivy": true, "semgrep": true,
	},
	model.TargetURL: {
		// DAST-shaped tools only; none are wired into the adapter set yet,
		// so a URL target currently produces zero compatible jobs rather
		// than a synthetic one.
	},
	model.TargetKubeContext: {
		"trivy": true,
	},
}

// CompatibleTools returns the tools from candidates that may run against a
// target of kind k, in the order candidates were given.
func CompatibleTools(k model.TargetKind, candidates []string) []string {
	allowed := compatibility[k]
	out := make([]string, 0, len(candidates))
	for _, tool := range candidates {
		if allowed[tool] {
			out = append(out, tool)
		}
	}
	return out
}

// Discoverer expands a model.TargetSpec into concrete model.Targets,
// per §4.G.1: a directory becomes itself plus its immediate
// subrepositories, a URL
// list becomes one target per URL, and so on. Validation failures are
// recorded as Target.Warnings, never as errors: every discovered target is
// still scanned.
type Discoverer struct {
	// Credentials resolves a hosted-repo reference to a CredentialRef; nil
	// means hosted repos are discovered without attached credentials.
	Credentials *credential.Store

	// HTTPClient is used for URL reachability checks; defaults to
	// http.DefaultClient, whose lack of a timeout is covered by the 5-second
	// per-request deadline discoverURLs applies.
	HTTPClient *http.Client
}

// NewDiscoverer builds a Discoverer with sensible defaults.
func NewDiscoverer(creds *credential.Store) *Discoverer {
	return &Discoverer{Credentials: creds, HTTPClient: http.DefaultClient}
}

// Discover expands spec into the full set of concrete targets.
func (d *Discoverer) Discover(ctx context.Context, spec model.TargetSpec) []model.Target {
	var targets []model.Target
	targets = append(targets, d.discoverRepoPaths(spec.RepoPaths)...)
	targets = append(targets, d.discoverImages(spec.Images)...)
	targets = append(targets, d.discoverIaCFiles(spec.IaCFiles)...)
	targets = append(targets, d.discoverURLs(ctx, spec.URLs)...)
	targets = append(targets, d.discoverHostedRepos(spec.HostedRepos)...)
	targets = append(targets, d.discoverKubeContexts(spec.KubeContext)...)
	return targets
}

// discoverRepoPaths expands each path into itself, plus one target per
// immediate subdirectory that looks like its own git repository (has a
// .git entry). A leaf repo with no nested repos yields just itself.
func (d *Discoverer) discoverRepoPaths(paths []string) []model.Target {
	var out []model.Target
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			out = append(out, model.Target{
				Kind:       model.TargetRepoPath,
				Identifier: p,
				Warnings:   []string{"target path does not exist: " + err.Error()},
			})
			continue
		}
		if !info.IsDir() {
			out = append(out, model.Target{Kind: model.TargetRepoPath, Identifier: p})
			continue
		}

		out = append(out, model.Target{Kind: model.TargetRepoPath, Identifier: p})
		entries, err := os.ReadDir(p)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			sub := filepath.Join(p, e.Name())
			if _, err := os.Stat(filepath.Join(sub, ".git")); err == nil {
				out = append(out, model.Target{Kind: model.TargetRepoPath, Identifier: sub})
			}
		}
	}
	return out
}

func (d *Discoverer) discoverImages(refs []string) []model.Target {
	out := make([]model.Target, 0, len(refs))
	for _, ref := range refs {
		out = append(out, model.Target{Kind: model.TargetImage, Identifier: ref})
	}
	return out
}

func (d *Discoverer) discoverIaCFiles(paths []string) []model.Target {
	out := make([]model.Target, 0, len(paths))
	for _, p := range paths {
		t := model.Target{Kind: model.TargetIaCFile, Identifier: p}
		if _, err := os.Stat(p); err != nil {
			t.Warnings = append(t.Warnings, "IaC file does not exist: "+err.Error())
		}
		out = append(out, t)
	}
	return out
}

// discoverURLs validates reachability with a short HEAD request; an
// unreachable URL is still scanned, with a warning attached (§3 "Target"
// validation rules are warnings not errors).
func (d *Discoverer) discoverURLs(ctx context.Context, urls []string) []model.Target {
	out := make([]model.Target, 0, len(urls))
	for _, u := range urls {
		t := model.Target{Kind: model.TargetURL, Identifier: u}
		reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, u, nil)
		if err == nil {
			resp, doErr := d.HTTPClient.Do(req)
			if doErr != nil {
				t.Warnings = append(t.Warnings, "URL unreachable: "+doErr.Error())
			} else {
				resp.Body.Close()
			}
		}
		cancel()
		out = append(out, t)
	}
	return out
}

// namedCredentialRef is a lookup-only model.CredentialRef: the Store keys
// credentials by the hosted-repo identifier itself, so a Target only ever
// needs to carry its own identifier back to the Store at dial time.
type namedCredentialRef string

func (n namedCredentialRef) Ref() string { return string(n) }

func (d *Discoverer) discoverHostedRepos(refs []string) []model.Target {
	out := make([]model.Target, 0, len(refs))
	for _, ref := range refs {
		t := model.Target{Kind: model.TargetHostedRepo, Identifier: ref}
		if d.Credentials != nil {
			if _, err := d.Credentials.Resolve(namedCredentialRef(ref)); err == nil {
				t.Credential = namedCredentialRef(ref)
			} else {
				t.Warnings = append(t.Warnings, "no credential registered for hosted repo: "+ref)
			}
		}
		out = append(out, t)
	}
	return out
}

func (d *Discoverer) discoverKubeContexts(contexts []string) []model.Target {
	out := make([]model.Target, 0, len(contexts))
	for _, c := range contexts {
		out = append(out, model.Target{Kind: model.TargetKubeContext, Identifier: c})
	}
	return out
}

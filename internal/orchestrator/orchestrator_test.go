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
	"errors"
	"testing"
	"time"

	"github.com/scanforge/scanforge/internal/model"
)

func TestCompatibleTools_FiltersByTargetKind(t *testing.T) {
	got := CompatibleTools(model.TargetImage, []string{"gitleaks", "trivy", "semgrep"})
	if len(got) != 1 || got[0] != "trivy" {
		t.Fatalf("CompatibleTools(image) = %v, want [trivy]", got)
	}
}

func TestCompatibleTools_URLHasNoCompatibleTools(t *testing.T) {
	got := CompatibleTools(model.TargetURL, []string{"gitleaks", "trivy", "semgrep"})
	if len(got) != 0 {
		t.Fatalf("CompatibleTools(url) = %v, want empty", got)
	}
}

func TestExpandJobs_OnePerCompatiblePair(t *testing.T) {
	targets := []model.Target{
		{Kind: model.TargetRepoPath, Identifier: "/repo"},
		{Kind: model.TargetImage, Identifier: "alpine:latest"},
	}
	tools := []ToolProfile{
		{Name: "gitleaks", Timeout: time.Minute, RetryBudget: 1},
		{Name: "trivy", Timeout: time.Minute, RetryBudget: 2},
	}

	jobs := ExpandJobs(targets, tools)
	if len(jobs) != 2 {
		t.Fatalf("ExpandJobs produced %d jobs, want 2 (gitleaks/repo, trivy/image)", len(jobs))
	}
	for _, j := range jobs {
		if j.Target.Kind == model.TargetImage && j.Tool != "trivy" {
			t.Errorf("image target got incompatible tool %s", j.Tool)
		}
	}
}

func TestProgressEmitter_ComputesETAFromMedian(t *testing.T) {
	p := NewProgressEmitter(4, nil)
	p.JobDone(10 * time.Millisecond)
	p.JobDone(20 * time.Millisecond)
	snap := p.JobDone(30 * time.Millisecond)

	if snap.Completed != 3 || snap.Total != 4 {
		t.Fatalf("snapshot = %+v, want Completed=3 Total=4", snap)
	}
	if snap.EstimatedRemaining <= 0 {
		t.Error("expected a positive ETA with one job remaining")
	}
}

func TestProgressEmitter_NoETAWhenComplete(t *testing.T) {
	p := NewProgressEmitter(1, nil)
	snap := p.JobDone(5 * time.Millisecond)
	if snap.EstimatedRemaining != 0 {
		t.Errorf("EstimatedRemaining = %v, want 0 with no jobs remaining", snap.EstimatedRemaining)
	}
}

func TestRecoverJob_CatchesPanic(t *testing.T) {
	var caught PanicResult
	err := recoverJob(func(r PanicResult) { caught = r }, func() error {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected a non-nil error from a panicking job")
	}
	if caught.PanicValue != "boom" {
		t.Errorf("caught.PanicValue = %v, want boom", caught.PanicValue)
	}
}

func TestRecoverJob_PropagatesOrdinaryError(t *testing.T) {
	want := errors.New("ordinary failure")
	err := recoverJob(nil, func() error { return want })
	if err != want {
		t.Fatalf("recoverJob returned %v, want %v", err, want)
	}
}

func TestBuildSpec_RendersArgsTemplate(t *testing.T) {
	job := model.Job{
		Tool:   "trivy",
		Target: model.Target{Identifier: "/repo"},
	}
	profile := ToolProfile{
		Name:         "trivy",
		BinaryPath:   "trivy",
		ArgsTemplate: []string{"fs", "--format", "json", "{{.Target}}"},
		SuccessCodes: []int{0},
	}

	spec, err := buildSpec(job, profile)
	if err != nil {
		t.Fatalf("buildSpec: %v", err)
	}
	if spec.Args[len(spec.Args)-1] != "/repo" {
		t.Errorf("rendered args = %v, want last element /repo", spec.Args)
	}
	if spec.Command != "trivy" {
		t.Errorf("spec.Command = %q, want trivy", spec.Command)
	}
}

func TestClassifyScanOutcome_BreakerOpenIsPartialNotCancelled(t *testing.T) {
	records := []JobOutcomeRecord{
		{Job: model.Job{Tool: "trivy"}, Outcome: model.JobSuccessWithFindings},
		{Job: model.Job{Tool: "semgrep"}, Outcome: model.JobBreakerOpen, Err: &errToolUnstable{tool: "semgrep"}},
	}

	got := classifyScanOutcome(nil, records)
	if got != model.ScanPartial {
		t.Fatalf("classifyScanOutcome with a tripped breaker = %v, want %v (a breaker trip is a resilience-policy event, not a user/gate-initiated cancellation)", got, model.ScanPartial)
	}
}

func TestClassifyScanOutcome_AllSuccessIsCompleted(t *testing.T) {
	records := []JobOutcomeRecord{
		{Job: model.Job{Tool: "trivy"}, Outcome: model.JobSuccess},
		{Job: model.Job{Tool: "semgrep"}, Outcome: model.JobSuccessWithFindings},
	}
	if got := classifyScanOutcome(nil, records); got != model.ScanCompleted {
		t.Fatalf("classifyScanOutcome = %v, want %v", got, model.ScanCompleted)
	}
}

func TestClassifyScanOutcome_ActualCancellation(t *testing.T) {
	records := []JobOutcomeRecord{
		{Job: model.Job{Tool: "trivy"}, Outcome: model.JobCancelled},
	}
	if got := classifyScanOutcome(nil, records); got != model.ScanCancelled {
		t.Fatalf("classifyScanOutcome with a JobCancelled record = %v, want %v", got, model.ScanCancelled)
	}
	if got := classifyScanOutcome(context.Canceled, nil); got != model.ScanCancelled {
		t.Fatalf("classifyScanOutcome with ctx.Err() set = %v, want %v", got, model.ScanCancelled)
	}
}

func TestChangedFiles_NonRepoDegradesGracefully(t *testing.T) {
	files, dirty := ChangedFiles(context.Background(), t.TempDir())
	if dirty {
		t.Error("expected dirty=false for a directory with no git history")
	}
	if files != nil {
		t.Errorf("files = %v, want nil", files)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/scanforge/scanforge/internal/config"
	"github.com/scanforge/scanforge/internal/credential"
	"github.com/scanforge/scanforge/internal/history"
	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/orchestrator"
	"github.com/scanforge/scanforge/internal/runner"
	"github.com/scanforge/scanforge/internal/sink"
)

var scanFlags struct {
	profile       string
	tools         []string
	repos         []string
	images        []string
	iacFiles      []string
	urls          []string
	hostedRepos   []string
	kubeContexts  []string
	concurrency   int
	scanDeadline  time.Duration
	resultsRoot   string
	formats       []string
	ci            bool
	failOn        string
	failOnMissing bool
	profileTimers bool
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan across the given targets",
	RunE:  runScan,
}

func init() {
	f := scanCmd.Flags()
	f.StringVar(&scanFlags.profile, "profile", "default", "named scan profile")
	f.StringSliceVar(&scanFlags.tools, "tools", nil, "override the profile's tool list")
	f.StringSliceVar(&scanFlags.repos, "repo", nil, "repository path target (repeatable)")
	f.StringSliceVar(&scanFlags.images, "image", nil, "container image reference target (repeatable)")
	f.StringSliceVar(&scanFlags.iacFiles, "iac", nil, "IaC file target (repeatable)")
	f.StringSliceVar(&scanFlags.urls, "url", nil, "URL target (repeatable)")
	f.StringSliceVar(&scanFlags.hostedRepos, "hosted-repo", nil, "hosted repo reference target (repeatable)")
	f.StringSliceVar(&scanFlags.kubeContexts, "kube-context", nil, "Kubernetes context/namespace target (repeatable)")
	f.IntVar(&scanFlags.concurrency, "concurrency", 0, "worker pool size (0 = auto)")
	f.DurationVar(&scanFlags.scanDeadline, "scan-deadline", 0, "overall scan deadline (0 = none)")
	f.StringVar(&scanFlags.resultsRoot, "results", "", "override config's sink.results_root")
	f.StringSliceVar(&scanFlags.formats, "format", nil, "override config's sink.formats")
	f.BoolVar(&scanFlags.ci, "ci", false, "gate: exit non-zero if any non-suppressed finding >= --fail-on")
	f.StringVar(&scanFlags.failOn, "fail-on", "HIGH", "minimum severity that fails --ci")
	f.BoolVar(&scanFlags.failOnMissing, "fail-on-missing-tool", false, "abort the scan if a tool binary is missing, instead of stubbing it")
	f.BoolVar(&scanFlags.profileTimers, "timings", false, "write timings.json alongside the other sink artifacts")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Warn("scanforge: received interrupt, draining in-flight jobs")
		cancel()
	}()

	profile, tools, err := resolveProfile(scanFlags.profile, scanFlags.tools, scanFlags.concurrency)
	if err != nil {
		return err
	}
	toolProfiles, err := buildToolProfiles(tools, profile)
	if err != nil {
		return err
	}

	creds := credential.NewStore()
	defer creds.Purge()

	targetSpec := model.TargetSpec{
		RepoPaths:   scanFlags.repos,
		Images:      scanFlags.images,
		IaCFiles:    scanFlags.iacFiles,
		URLs:        scanFlags.urls,
		HostedRepos: scanFlags.hostedRepos,
		KubeContext: scanFlags.kubeContexts,
	}

	targetRoot := ""
	if len(scanFlags.repos) > 0 {
		targetRoot = scanFlags.repos[0]
	}

	enrichPipeline, closeEnrich, err := buildEnrichPipeline(ctx, targetRoot, slog.Default())
	if err != nil {
		slog.Warn("scanforge: enrichment pipeline unavailable, continuing without it", "error", err)
		enrichPipeline = nil
	}
	defer closeEnrich()

	suppressEngine := buildSuppressEngine()

	toolRunner := runner.New(slog.Default())
	discoverer := orchestrator.NewDiscoverer(creds)
	orch := orchestrator.New(toolRunner, enrichPipeline, suppressEngine, slog.Default())
	driver := orchestrator.NewDriver(discoverer, orch)

	missingPolicy := orchestrator.StubMissingTool
	if scanFlags.failOnMissing {
		missingPolicy = orchestrator.FailOnMissingTool
	}

	bar := newProgressBar(isatty.IsTerminal(os.Stdout.Fd()))
	opts := orchestrator.Options{
		Concurrency:  profile.MaxConcurrency,
		MissingTool:  missingPolicy,
		ScanDeadline: scanFlags.scanDeadline,
		OnProgress:   bar.Update,
	}
	if jobMetrics != nil {
		opts.OnJobMetric = func(tool string, outcome model.JobOutcome, dur time.Duration) {
			jobMetrics.Record(ctx, tool, string(outcome), dur.Seconds())
		}
	}

	result, err := driver.RunScan(ctx, scanFlags.profile, targetSpec, toolProfiles, opts)
	bar.Finish()
	if err != nil && result.Scan.Outcome == model.ScanFailed {
		return fmt.Errorf("scanforge: scan failed: %w", err)
	}

	resultsRoot := scanFlags.resultsRoot
	if resultsRoot == "" {
		resultsRoot = config.Global.Sink.ResultsRoot
	}
	formats := scanFlags.formats
	if len(formats) == 0 {
		formats = config.Global.Sink.Formats
	}

	if err := sink.WriteAll(resultsRoot, result.Scan, result.Findings, result.Suppressed, len(toolProfiles), buildVersionStamp(), formats); err != nil {
		return fmt.Errorf("scanforge: failed to write primary output sink: %w", err)
	}
	if scanFlags.profileTimers {
		totalJobs := 0
		for _, n := range result.Scan.Attempts {
			totalJobs += n
		}
		timings := sink.Timings{
			ScanID:       result.Scan.ScanID,
			TotalJobs:    totalJobs,
			TotalElapsed: result.Scan.Duration,
		}
		if err := sink.WriteTimings(filepath.Join(resultsRoot, "summaries"), timings); err != nil {
			slog.Warn("scanforge: failed to write timings.json", "error", err)
		}
	}

	if store, storeErr := openHistoryStore(ctx); storeErr != nil {
		slog.Error("scanforge: history store unavailable, scan output was still written", "error", storeErr)
	} else if store != nil {
		defer store.Close()
		branch, commit := "", ""
		if result.Scan.GitContext != nil {
			branch, commit = result.Scan.GitContext.Branch, result.Scan.GitContext.Commit
		}
		if err := store.StoreScan(ctx, result.Scan, result.Findings, branch, commit); err != nil {
			slog.Error("scanforge: failed to persist scan to history", "error", err)
		}
	}

	if bucket := config.Global.History.ArchiveBucket; bucket != "" {
		archiver, err := history.OpenArchiver(ctx, bucket)
		if err != nil {
			slog.Warn("scanforge: scan archive unavailable, scan output was still written", "error", err)
		} else {
			defer archiver.Close()
			if err := archiver.ArchiveScan(ctx, result.Scan, result.Findings); err != nil {
				slog.Warn("scanforge: failed to archive scan to GCS", "error", err)
			}
		}
	}

	fmt.Printf("scan %s: %s — %d findings (critical=%d high=%d medium=%d low=%d info=%d)\n",
		result.Scan.ScanID, result.Scan.Outcome, len(result.Findings),
		result.Scan.Summary.Critical, result.Scan.Summary.High, result.Scan.Summary.Medium,
		result.Scan.Summary.Low, result.Scan.Summary.Info)

	if scanFlags.ci {
		threshold, err := model.ParseSeverity(scanFlags.failOn)
		if err != nil {
			return err
		}
		for _, f := range result.Findings {
			if f.Severity >= threshold {
				os.Exit(1)
			}
		}
	}
	return nil
}

// buildVersionStamp reports scanforge's own build time as a unix seconds
// value for sink.Build's ToolVersion; left at zero ("dev") for local
// builds that carry no embedded version.
func buildVersionStamp() int {
	return 0
}

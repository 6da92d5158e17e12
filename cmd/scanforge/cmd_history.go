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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scanforge/scanforge/internal/diffengine"
	"github.com/scanforge/scanforge/internal/history"
	"github.com/scanforge/scanforge/internal/trend"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query the History Store: list, show, prune, and trend-analyze past scans",
}

var historyListFlags struct {
	limit  int
	branch string
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent scans",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <scan-id>",
	Short: "Show one scan's findings",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyPruneFlags struct {
	keepLastN     int
	olderThanDays int
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old scans per the retention policy",
	RunE:  runHistoryPrune,
}

var historyTrendFlags struct {
	branch string
	limit  int
}

var historyTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Run the Trend Analyzer over a branch's scan history",
	RunE:  runHistoryTrend,
}

func init() {
	historyListCmd.Flags().IntVar(&historyListFlags.limit, "limit", 20, "max scans to list")
	historyListCmd.Flags().StringVar(&historyListFlags.branch, "branch", "", "filter to one git branch")

	historyPruneCmd.Flags().IntVar(&historyPruneFlags.keepLastN, "keep-last", 50, "prune every scan beyond the most recent N (0 disables)")
	historyPruneCmd.Flags().IntVar(&historyPruneFlags.olderThanDays, "older-than-days", 90, "prune scans older than this many days (0 disables); applied independently of --keep-last")

	historyTrendCmd.Flags().StringVar(&historyTrendFlags.branch, "branch", "main", "branch to analyze")
	historyTrendCmd.Flags().IntVar(&historyTrendFlags.limit, "limit", 50, "number of recent scans to include in the series")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyPruneCmd, historyTrendCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := requireHistoryStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	scans, err := store.ListScans(ctx, historyListFlags.limit, historyListFlags.branch)
	if err != nil {
		return fmt.Errorf("scanforge history list: %w", err)
	}
	for _, s := range scans {
		fmt.Printf("%s  %-10s  %-20s  %s  findings=%d\n", s.ScanID, s.Outcome, s.ProfileName, s.Timestamp.Format("2006-01-02T15:04:05"), s.Summary.Total())
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := requireHistoryStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	scan, findings, err := store.GetScan(ctx, args[0])
	if err != nil {
		return fmt.Errorf("scanforge history show: %w", err)
	}
	out, err := json.MarshalIndent(map[string]any{"scan": scan, "findings": findings}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := requireHistoryStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Prune(ctx, historyPruneFlags.keepLastN, historyPruneFlags.olderThanDays)
	if err != nil {
		return fmt.Errorf("scanforge history prune: %w", err)
	}
	fmt.Printf("pruned %d scans\n", n)
	return nil
}

func runHistoryTrend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := requireHistoryStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	scans, err := store.ListScans(ctx, historyTrendFlags.limit, historyTrendFlags.branch)
	if err != nil {
		return fmt.Errorf("scanforge history trend: %w", err)
	}

	series := trend.BuildSeries(scans, nil)
	analyzer := trend.New(trend.DefaultScoreWeights(), trend.DefaultRegressionOptions())
	report := analyzer.Analyze(historyTrendFlags.branch, series)

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// diffCmd is registered here since it shares requireHistoryStore with the
// history subcommands, but stays a top-level command per §6 rather than
// "history diff". It takes two stored scan ids and loads both finding sets
// from the History Store.
var diffFlags struct {
	stableThreshold int
}

var diffCmd = &cobra.Command{
	Use:   "diff <baseline-scan-id> <current-scan-id>",
	Short: "Diff two stored scans: new, resolved, modified, and unchanged findings",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func init() {
	diffCmd.Flags().IntVar(&diffFlags.stableThreshold, "stable-threshold", 3, "net change ((new + worsened) - (resolved + improved)) within which the trend label stays stable")
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := requireHistoryStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	baseline, current, err := store.Compare(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("scanforge diff: %w", err)
	}

	opts := diffengine.DefaultOptions()
	opts.StableThreshold = diffFlags.stableThreshold
	diff := diffengine.Compare(baseline, current, opts)

	out, err := json.MarshalIndent(diff, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func requireHistoryStore(ctx context.Context) (*history.Store, error) {
	store, err := openHistoryStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanforge: history store unavailable: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("scanforge: history is not enabled in config (history.enabled: true)")
	}
	return store, nil
}

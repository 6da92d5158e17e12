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
	"path/filepath"
	"strings"

	"github.com/scanforge/scanforge/internal/config"
	"github.com/scanforge/scanforge/internal/enrich"
	"github.com/scanforge/scanforge/internal/history"
	"github.com/scanforge/scanforge/internal/orchestrator"
	"github.com/scanforge/scanforge/internal/suppress"
)

// resolveProfile merges profileName's ProfileConfig with the tools and
// concurrency overrides supplied on the command line, per §6's
// configuration precedence ("tools overrides the list", etc.). Timeout and
// retries always come from the profile.
func resolveProfile(profileName string, toolsOverride []string, concurrencyOverride int) (config.ProfileConfig, []string, error) {
	profile, ok := config.Global.Profiles[profileName]
	if !ok {
		return config.ProfileConfig{}, nil, fmt.Errorf("scanforge: unknown profile %q", profileName)
	}
	tools := profile.Tools
	if len(toolsOverride) > 0 {
		tools = toolsOverride
	}
	if concurrencyOverride > 0 {
		profile.MaxConcurrency = concurrencyOverride
	}
	return profile, tools, nil
}

// buildToolProfiles resolves the effective orchestrator.ToolProfile for
// each requested tool name from internal/config's per-tool entry
// (internal/config.Config.Tools) for binary, arguments, exit codes and jq
// filter. Every tool gets the profile's shared timeout and retry budget;
// there is no per-tool timeout or retry override.
func buildToolProfiles(tools []string, profile config.ProfileConfig) ([]orchestrator.ToolProfile, error) {
	out := make([]orchestrator.ToolProfile, 0, len(tools))
	for _, name := range tools {
		tc, ok := config.Global.Tools[name]
		if !ok {
			return nil, fmt.Errorf("scanforge: tool %q has no configuration entry", name)
		}
		successCodes := tc.SuccessExitCodes
		if len(successCodes) == 0 {
			successCodes = []int{0}
		}
		out = append(out, orchestrator.ToolProfile{
			Name:            name,
			BinaryPath:      tc.BinaryPath,
			ArgsTemplate:    tc.ArgsTemplate,
			SuccessCodes:    successCodes,
			Timeout:         profile.PerToolTimeout,
			RetryBudget:     profile.MaxRetries,
			GenericJQFilter: tc.GenericJQFilter,
			SeverityTable:   tc.SeverityTable,
		})
	}
	return out, nil
}

// buildEnrichPipeline wires the EPSS/KEV cache and upstream sources from
// config.Global.Cache. A nil return means enrichment is entirely disabled
// (cache.Open failures are themselves best-effort per §4.D — the returned
// error here only ever signals an unrecoverable local configuration
// problem, not an upstream outage).
func buildEnrichPipeline(ctx context.Context, targetRoot string, log *slog.Logger) (*enrich.Pipeline, func(), error) {
	cacheCfg := enrich.Config{}
	if config.Global.Cache.L2Backend == "badger" {
		cacheCfg.L2Dir = expandHome(config.Global.Cache.L2Path)
	}
	if config.Global.Cache.L2Backend == "redis" {
		cacheCfg.L3Addr = config.Global.Cache.RedisAddr
	}

	cache, err := enrich.Open(cacheCfg, log)
	if err != nil {
		return nil, func() {}, err
	}

	epssSource := enrich.NewFIRSTEPSSSource(config.Global.Cache.EPSSFeedURL, nil)
	kevSource := enrich.NewCISAKEVSource(config.Global.Cache.KEVFeedURL, nil)
	lookup := enrich.NewLookup(cache, epssSource, kevSource, nil, log)

	pipeline := enrich.New(lookup, targetRoot)
	return pipeline, func() { cache.Close() }, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// buildSuppressEngine returns a suppress.Engine from the configured rule
// set.
func buildSuppressEngine() *suppress.Engine {
	return suppress.New(config.Global.Suppressions)
}

// openHistoryStore opens the History Store when enabled. A disabled or
// unreachable store is not fatal to a scan per §4.H/§7 — callers treat a
// nil store and non-nil error as "log and continue without history".
func openHistoryStore(ctx context.Context) (*history.Store, error) {
	if !config.Global.History.Enabled {
		return nil, nil
	}
	return history.Open(ctx, config.Global.History.DSN)
}

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
Package config provides configuration types and loading for scanforge.

# Overview

This package defines the configuration schema for scanforge, including:
  - Scan profiles (which tools run, concurrency, timeouts)
  - Per-tool argument templates and severity table overrides
  - Suppression rules
  - Enrichment cache backend settings
  - History store connection settings

# Configuration File

The configuration is stored at ~/.scanforge/scanforge.yaml and is created
automatically on first run with sensible defaults.
*/
package config

import (
	"time"

	"github.com/scanforge/scanforge/internal/model"
)

// CurrentConfigVersion is the current configuration schema version.
const CurrentConfigVersion = "1.0.0"

// Config is the root configuration structure for scanforge.
type Config struct {
	Meta ConfigMeta `yaml:"meta" validate:"-"`

	// Profiles names scan profiles; "default" must always be present.
	Profiles map[string]ProfileConfig `yaml:"profiles" validate:"required,dive"`

	// Tools configures per-tool invocation details, keyed by tool name.
	Tools map[string]ToolConfig `yaml:"tools" validate:"dive"`

	// Suppressions lists findings to silently drop, evaluated first-match-wins.
	Suppressions []model.SuppressionRule `yaml:"suppressions,omitempty"`

	Cache     CacheConfig     `yaml:"cache"`
	History   HistoryConfig   `yaml:"history"`
	Sink      SinkConfig      `yaml:"sink"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// TelemetryConfig configures the tracer provider shared by the Orchestrator
// and the control plane's otelgin instrumentation.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	OTLPEndpoint   string `yaml:"otlp_endpoint,omitempty"`
	StdoutFallback bool   `yaml:"stdout_fallback"`
	// MetricsEnabled installs the Prometheus-backed MeterProvider and
	// serves it at the control plane's /metrics route.
	MetricsEnabled bool `yaml:"metrics_enabled"`
	// MetricsStdout additionally (or instead, if MetricsEnabled is false)
	// logs periodic metric snapshots to stdout, for local runs with no
	// scrape target.
	MetricsStdout bool `yaml:"metrics_stdout"`
}

// ConfigMeta tracks when and how the configuration was created or modified.
type ConfigMeta struct {
	Version    string `yaml:"version"`
	CreatedAt  int64  `yaml:"created_at"`
	ModifiedAt int64  `yaml:"modified_at"`
}

// ProfileConfig is one named scan profile: which tools to run and the
// concurrency/timeout envelope the Orchestrator honors for it.
type ProfileConfig struct {
	Tools          []string      `yaml:"tools" validate:"required,min=1"`
	MaxConcurrency int           `yaml:"max_concurrency" validate:"required,min=1"`
	PerToolTimeout time.Duration `yaml:"per_tool_timeout" validate:"required"`
	ScanDeadline   time.Duration `yaml:"scan_deadline,omitempty"`
	MaxRetries     int           `yaml:"max_retries" validate:"min=0"`
}

// ToolConfig configures one tool's invocation: its binary path, argument
// template, exit codes and jq filter. SeverityTable is loaded and carried
// into the tool profile, but the adapters map severities with their
// built-in tables and do not read it.
type ToolConfig struct {
	BinaryPath      string            `yaml:"binary_path" validate:"required"`
	ArgsTemplate    []string          `yaml:"args_template,omitempty"`
	SeverityTable   map[string]string `yaml:"severity_table,omitempty"`
	SuccessExitCodes []int            `yaml:"success_exit_codes,omitempty"`
	GenericJQFilter string            `yaml:"generic_jq_filter,omitempty"`
}

// CacheConfig configures the tiered EPSS/KEV enrichment cache.
type CacheConfig struct {
	L1MaxEntries int           `yaml:"l1_max_entries" validate:"min=0"`
	L2Backend    string        `yaml:"l2_backend" validate:"omitempty,oneof=badger redis none"`
	L2Path       string        `yaml:"l2_path,omitempty"`
	RedisAddr    string        `yaml:"redis_addr,omitempty"`
	EPSSFeedURL  string        `yaml:"epss_feed_url,omitempty"`
	KEVFeedURL   string        `yaml:"kev_feed_url,omitempty"`
	RefreshEvery time.Duration `yaml:"refresh_every,omitempty"`
}

// HistoryConfig configures the Postgres-backed history store.
type HistoryConfig struct {
	DSN            string `yaml:"dsn" validate:"required_if=Enabled true"`
	Enabled        bool   `yaml:"enabled"`
	PruneKeepLastN int    `yaml:"prune_keep_last_n,omitempty"`
	PruneOlderDays int    `yaml:"prune_older_days,omitempty"`
	// ArchiveBucket, if set, additionally uploads every stored scan to this
	// GCS bucket as cold storage. Empty disables archival entirely.
	ArchiveBucket string `yaml:"archive_bucket,omitempty"`
}

// SinkConfig configures which output sinks are written per scan and the
// optional control-plane server.
type SinkConfig struct {
	ResultsRoot  string `yaml:"results_root" validate:"required"`
	Formats      []string `yaml:"formats" validate:"required,min=1,dive,oneof=json yaml sarif"`
	ControlPlane ControlPlaneConfig `yaml:"control_plane"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
}

// ControlPlaneConfig configures the optional REST+websocket server.
// GRPCAddr is accepted in config but no gRPC server reads it.
type ControlPlaneConfig struct {
	Enabled  bool   `yaml:"enabled"`
	HTTPAddr string `yaml:"http_addr,omitempty" validate:"required_if=Enabled true"`
	GRPCAddr string `yaml:"grpc_addr,omitempty"`
}

// InfluxDBConfig configures the optional trend-series export sink.
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty" validate:"required_if=Enabled true"`
	Token   string `yaml:"token,omitempty"`
	Org     string `yaml:"org,omitempty"`
	Bucket  string `yaml:"bucket,omitempty"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Meta: ConfigMeta{Version: CurrentConfigVersion},
		Profiles: map[string]ProfileConfig{
			"default": {
				Tools:          []string{"gitleaks", "semgrep", "trivy"},
				MaxConcurrency: 4,
				PerToolTimeout: 5 * time.Minute,
				MaxRetries:     1,
			},
		},
		Tools: map[string]ToolConfig{
			"gitleaks": {BinaryPath: "gitleaks", ArgsTemplate: []string{"detect", "--source", "{{.Target}}", "--report-format", "json"}},
			"semgrep":  {BinaryPath: "semgrep", ArgsTemplate: []string{"--config", "auto", "--json", "{{.Target}}"}},
			"trivy":    {BinaryPath: "trivy", ArgsTemplate: []string{"fs", "--format", "json", "{{.Target}}"}},
		},
		Cache: CacheConfig{
			L1MaxEntries: 10000,
			L2Backend:    "badger",
			L2Path:       "~/.scanforge/cache",
			RefreshEvery: 24 * time.Hour,
		},
		History: HistoryConfig{Enabled: false},
		Sink: SinkConfig{
			ResultsRoot: "./scanforge-results",
			Formats:     []string{"json", "sarif"},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "scanforge",
			StdoutFallback: true,
		},
	}
}

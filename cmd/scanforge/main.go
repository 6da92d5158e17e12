// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command scanforge is the thin entrypoint wiring the core engine
// (internal/orchestrator, internal/history, internal/sink, ...) into a
// handful of subcommands: scan, serve, history, diff. It deliberately does
// not implement the interactive wizard or the CLI's own flag-parsing
// surface beyond what exercises the library — both are out of scope per
// spec §1.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"

	"github.com/scanforge/scanforge/internal/config"
	"github.com/scanforge/scanforge/internal/credential"
	"github.com/scanforge/scanforge/pkg/logging"
	"github.com/scanforge/scanforge/pkg/telemetry"
)

// metricsHandler serves the Prometheus exposition format from InitMetrics;
// cmd_serve.go mounts it at /metrics. jobMetrics is the OnJobMetric callback
// target every scan wires into orchestrator.Options in cmd_scan.go. Both are
// package-level because they are process-wide resources installed once in
// main, same as config.Global and the tracer provider.
var (
	metricsHandler http.Handler = http.NotFoundHandler()
	jobMetrics     *telemetry.JobMetrics
)

func main() {
	credential.Init()

	if err := config.Load(); err != nil {
		log.Fatalf("scanforge: failed to load configuration: %v", err)
	}

	logger := logging.Default()
	slog.SetDefault(logger.Slog())

	shutdownTracing, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    config.Global.Telemetry.ServiceName,
		OTLPEndpoint:   config.Global.Telemetry.OTLPEndpoint,
		StdoutFallback: config.Global.Telemetry.StdoutFallback,
	})
	if err != nil {
		slog.Warn("scanforge: tracing disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer shutdownTracing(context.Background())

	handler, shutdownMetrics, err := telemetry.InitMetrics(context.Background(), telemetry.MetricsConfig{
		ServiceName:    config.Global.Telemetry.ServiceName,
		Enabled:        config.Global.Telemetry.MetricsEnabled,
		StdoutFallback: config.Global.Telemetry.MetricsStdout,
	})
	if err != nil {
		slog.Warn("scanforge: metrics disabled", "error", err)
	} else {
		metricsHandler = handler
		defer shutdownMetrics(context.Background())
	}

	if jm, err := telemetry.NewJobMetrics(); err != nil {
		slog.Warn("scanforge: job metrics unavailable", "error", err)
	} else {
		jobMetrics = jm
	}

	if err := rootCmd.Execute(); err != nil {
		slog.Error("scanforge: command failed", "error", err)
		log.Fatal(err)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// JobMetrics records per-job counters and durations for the Orchestrator's
// worker pool (§5's shared-resource policy names the progress emitter as
// one of the only shared mutable resources; these instruments are the
// metrics-side counterpart, recorded once per completed Job rather than
// held as scan-scoped state).
type JobMetrics struct {
	jobsTotal   metric.Int64Counter
	jobDuration metric.Float64Histogram
}

var (
	jobMetricsOnce   sync.Once
	jobMetricsShared *JobMetrics
	jobMetricsErr    error
)

// NewJobMetrics builds the Int64Counter/Float64Histogram instruments off
// the process-wide MeterProvider installed by InitMetrics. Safe to call
// before InitMetrics — it then records into the OTel no-op meter until a
// real provider is installed. The instruments are created once per process
// and shared by every caller, the same guard the teacher's own
// impact/metrics.go uses for its otel.Meter-backed instruments.
func NewJobMetrics() (*JobMetrics, error) {
	jobMetricsOnce.Do(func() {
		meter := otel.Meter("github.com/scanforge/scanforge/internal/orchestrator")

		jm := &JobMetrics{}
		var err error
		jm.jobsTotal, err = meter.Int64Counter(
			"scanforge.jobs.total",
			metric.WithDescription("Total tool-runner jobs completed, labeled by tool and outcome"),
			metric.WithUnit("{job}"),
		)
		if err != nil {
			jobMetricsErr = fmt.Errorf("telemetry: building jobs counter: %w", err)
			return
		}
		jm.jobDuration, err = meter.Float64Histogram(
			"scanforge.job.duration",
			metric.WithDescription("Wall-clock duration of one tool-runner job"),
			metric.WithUnit("s"),
		)
		if err != nil {
			jobMetricsErr = fmt.Errorf("telemetry: building job duration histogram: %w", err)
			return
		}
		jobMetricsShared = jm
	})
	return jobMetricsShared, jobMetricsErr
}

// Record is the orchestrator.Options.OnJobMetric callback shape: tool name,
// outcome token, and the job's wall-clock duration in seconds.
func (jm *JobMetrics) Record(ctx context.Context, tool, outcome string, durationSeconds float64) {
	if jm == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	)
	jm.jobsTotal.Add(ctx, 1, attrs)
	jm.jobDuration.Record(ctx, durationSeconds, attrs)
}

// MetricsConfig configures the optional Prometheus-backed MeterProvider.
type MetricsConfig struct {
	ServiceName string
	Enabled     bool
	// StdoutFallback additionally registers a periodic stdout reader
	// alongside (or, if Enabled is false, instead of) the Prometheus
	// reader — the metrics-side counterpart of Config.StdoutFallback, for
	// operators running scanforge locally with no scrape target configured.
	StdoutFallback bool
}

// InitMetrics installs a global MeterProvider backed by the OTel Prometheus
// exporter, mirroring telemetry.Init's tracer bootstrap. The returned
// http.Handler serves the Prometheus text exposition format from its own
// registry (not prometheus.DefaultRegisterer, so scanforge never collides
// with a host process's own metrics if embedded); mount it at the control
// plane's /metrics route. A disabled, non-stdout config returns a 404
// handler and a no-op shutdown.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (http.Handler, func(context.Context) error, error) {
	if !cfg.Enabled && !cfg.StdoutFallback {
		return http.NotFoundHandler(), func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	handler := http.Handler(http.NotFoundHandler())

	if cfg.Enabled {
		registry := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: building prometheus exporter: %w", err)
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(exporter))
		handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	if cfg.StdoutFallback {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: building stdout metric exporter: %w", err)
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	mp := sdkmetric.NewMeterProvider(mpOpts...)
	otel.SetMeterProvider(mp)

	return handler, mp.Shutdown, nil
}

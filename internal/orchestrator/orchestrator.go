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
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/avast/retry-go"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/scanforge/scanforge/internal/adapters"
	"github.com/scanforge/scanforge/internal/enrich"
	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/normalize"
	"github.com/scanforge/scanforge/internal/runner"
	"github.com/scanforge/scanforge/internal/suppress"
	"github.com/scanforge/scanforge/pkg/logging"
)

// tracer emits one span per job via runJob, a child of whatever span the
// caller (cmd/scanforge or the control plane's otelgin middleware) already
// has open; it reports into whichever TracerProvider pkg/telemetry.Init
// installed, or the OTel no-op tracer if tracing was never initialized.
var tracer = otel.Tracer("github.com/scanforge/scanforge/internal/orchestrator")

// MinConcurrency and MaxConcurrency bound the "auto" concurrency heuristic
// from §4.G's inputs: ~0.75 x logical CPUs, clamped to [2, 16].
const (
	MinConcurrency = 2
	MaxConcurrency = 16
)

// AutoConcurrency computes the default worker pool size.
func AutoConcurrency() int {
	n := int(float64(runtime.NumCPU()) * 0.75)
	if n < MinConcurrency {
		return MinConcurrency
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

// MissingToolPolicy selects the §4.G.4 NotFound behavior.
type MissingToolPolicy int

const (
	// StubMissingTool records a "tool missing" marker and continues.
	StubMissingTool MissingToolPolicy = iota
	// FailOnMissingTool aborts the whole scan.
	FailOnMissingTool
)

// Options configures one Run call.
type Options struct {
	Concurrency   int
	MissingTool   MissingToolPolicy
	ScanDeadline  time.Duration
	OnProgress    func(Progress)
	OnWorkerPanic func(tool string, result PanicResult)
	// OnJobMetric, if set, is called once per completed job with its tool
	// name, terminal outcome, and wall-clock duration — the hook
	// pkg/telemetry.JobMetrics.Record is wired through from cmd/scanforge,
	// kept as a plain callback here so this package stays decoupled from
	// the telemetry stack (same pattern as OnProgress).
	OnJobMetric func(tool string, outcome model.JobOutcome, dur time.Duration)
}

// JobOutcomeRecord is what one completed Job contributes to the scan: its
// terminal outcome plus whatever findings and warnings it produced.
type JobOutcomeRecord struct {
	Job      model.Job
	Outcome  model.JobOutcome
	Findings []model.Finding
	Warnings []normalize.Warning
	Err      error

	// Attempts is the number of Tool Runner invocations this job went
	// through, including retries, per §8 scenario 3 ("attempts =
	// {<tool>: 2}" after one timeout and one retry). Zero for a job
	// short-circuited by an open circuit breaker, which is never attempted.
	Attempts int
}

// Orchestrator drives target discovery, job expansion, and the bounded
// worker pool described in §4.G and §5. It holds no scan-specific state
// between Run calls beyond the lazily built per-tool circuit breakers.
type Orchestrator struct {
	Runner   *runner.Runner
	Enrich   *enrich.Pipeline
	Suppress *suppress.Engine
	Log      *slog.Logger

	breakers *breakerRegistry
}

// New builds an Orchestrator. enrichPipeline and suppressEngine may be nil
// (enrichment and suppression are then no-ops); log defaults to
// slog.Default().
func New(r *runner.Runner, enrichPipeline *enrich.Pipeline, suppressEngine *suppress.Engine, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		Runner:   r,
		Enrich:   enrichPipeline,
		Suppress: suppressEngine,
		Log:      log,
		breakers: newBreakerRegistry(),
	}
}

// Run expands targets x tools into jobs and drives them through the full
// runner -> adapter -> normalize -> enrich pipeline on a bounded worker
// pool, per §4.G.3 and §5. It returns every JobOutcomeRecord (including
// failed/stubbed ones, for the scan's per-tool attempt map), each carrying
// its job's enriched, not yet deduplicated findings; dedup and suppression
// are applied by the caller, which also owns persistence into the History
// Store.
func (o *Orchestrator) Run(ctx context.Context, targets []model.Target, tools []ToolProfile, opts Options) ([]JobOutcomeRecord, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = AutoConcurrency()
	}
	if opts.ScanDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ScanDeadline)
		defer cancel()
	}

	jobs := ExpandJobs(targets, tools)
	toolByName := make(map[string]ToolProfile, len(tools))
	for _, t := range tools {
		toolByName[t.Name] = t
	}

	progress := NewProgressEmitter(len(jobs), opts.OnProgress)

	sem := semaphore.NewWeighted(int64(concurrency))
	group, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	records := make([]JobOutcomeRecord, 0, len(jobs))

	for _, job := range jobs {
		job := job
		profile := toolByName[job.Tool]

		if err := sem.Acquire(gctx, 1); err != nil {
			// Context cancelled while waiting for a slot: stop launching
			// new jobs but let in-flight ones finish (cooperative
			// cancellation at job boundaries, per §5).
			break
		}

		group.Go(func() error {
			defer sem.Release(1)

			start := time.Now()
			rec := o.runJob(gctx, job, profile, opts)
			elapsed := time.Since(start)
			progress.JobDone(elapsed)
			if opts.OnJobMetric != nil {
				opts.OnJobMetric(job.Tool, rec.Outcome, elapsed)
			}

			mu.Lock()
			records = append(records, rec)
			mu.Unlock()

			if rec.Outcome == model.JobNotFound && opts.MissingTool == FailOnMissingTool {
				return model.NewError(model.ErrToolMissing, job.Tool, rec.Err)
			}
			return nil
		})
	}

	// Infra errors only: per §4.G.7 a scan is Failed only on infrastructure
	// errors, never on a single job's recoverable outcome.
	err := group.Wait()

	mu.Lock()
	defer mu.Unlock()
	return records, err
}

// runJob drives exactly one job through retry-go, honoring the per-tool
// circuit breaker and the §4.G.4 retry policy (only Timeout and
// CrashedSignal retry; NonZeroNoFindings and NotFound are terminal).
func (o *Orchestrator) runJob(ctx context.Context, job model.Job, profile ToolProfile, opts Options) JobOutcomeRecord {
	ctx, span := tracer.Start(ctx, "orchestrator.runJob",
		trace.WithAttributes(
			attribute.String("scanforge.tool", job.Tool),
			attribute.String("scanforge.target", job.Target.Identifier),
		),
	)
	defer span.End()

	rec := o.runJobTraced(ctx, job, profile, opts)

	span.SetAttributes(attribute.String("scanforge.outcome", string(rec.Outcome)))
	if rec.Err != nil {
		span.SetStatus(codes.Error, rec.Err.Error())
	}
	return rec
}

func (o *Orchestrator) runJobTraced(ctx context.Context, job model.Job, profile ToolProfile, opts Options) JobOutcomeRecord {
	breaker := o.breakers.get(job.Tool)

	if breaker.State() == gobreaker.StateOpen {
		return JobOutcomeRecord{Job: job, Outcome: model.JobBreakerOpen, Err: &errToolUnstable{tool: job.Tool}}
	}

	var result JobOutcomeRecord
	attempt := 0

	execErr := retry.Do(
		func() error {
			attempt++
			var err error
			result, err = recoverableRunJob(ctx, o, job, profile, attempt, opts)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(job.RetryBudget+1)),
		retry.LastErrorOnly(true),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return result.Outcome.Retriable()
		}),
	)

	if _, cbErr := breaker.Execute(func() (interface{}, error) {
		if result.Outcome == model.JobTimeout || result.Outcome == model.JobCrashedSignal {
			return nil, result.Err
		}
		return nil, nil
	}); cbErr != nil {
		args := append(logging.JobAttrs(job.Tool, job.Target.Identifier, attempt), "error", cbErr)
		o.Log.Debug("circuit breaker recorded failure", args...)
	}

	if execErr != nil && result.Err == nil {
		result.Err = execErr
	}
	result.Job.Attempt = attempt
	result.Attempts = attempt
	return result
}

// recoverableRunJob wraps one attempt body in the panic-safe recovery
// helper so a panicking adapter or parser degrades to a recorded job
// failure instead of crashing the whole worker pool.
func recoverableRunJob(ctx context.Context, o *Orchestrator, job model.Job, profile ToolProfile, attempt int, opts Options) (JobOutcomeRecord, error) {
	rec := JobOutcomeRecord{Job: job}

	panicErr := recoverJob(func(r PanicResult) {
		if opts.OnWorkerPanic != nil {
			opts.OnWorkerPanic(job.Tool, r)
		}
		o.Log.Error("worker panic recovered", logging.JobAttrs(job.Tool, job.Target.Identifier, attempt)...)
	}, func() error {
		spec, err := buildSpec(job, profile)
		if err != nil {
			rec.Outcome = model.JobNonZeroNoFindings
			rec.Err = err
			return nil
		}

		runResult, err := o.Runner.Run(ctx, spec)
		if err != nil {
			rec.Outcome = model.JobCrashedSignal
			rec.Err = err
			return err
		}

		rec.Outcome = mapOutcome(runResult.Outcome)
		if rec.Outcome == model.JobTimeout || rec.Outcome == model.JobCrashedSignal {
			rec.Err = model.NewError(outcomeErrKind(runResult.Outcome), job.Tool, nil)
			return rec.Err
		}
		if rec.Outcome == model.JobNotFound || rec.Outcome == model.JobNonZeroNoFindings {
			return nil
		}

		shells, warnings, parseErr := adapters.ParseWithFallback(job.Tool, profile.GenericJQFilter, runResult.Stdout, job.Target)
		if parseErr != nil {
			rec.Err = model.NewError(model.ErrToolMalformedOutput, job.Tool, parseErr)
		}
		rec.Warnings = warnings

		findings, normWarnings := normalize.NormalizeAll(shells, job.Target.Identifier)
		for _, w := range normWarnings {
			rec.Warnings = append(rec.Warnings, w)
		}

		if o.Enrich != nil {
			findings = o.Enrich.Run(ctx, findings)
		}
		rec.Findings = findings
		return nil
	})
	if panicErr != nil {
		rec.Outcome = model.JobCrashedSignal
		rec.Err = panicErr
	}
	return rec, rec.Err
}

func mapOutcome(o runner.Outcome) model.JobOutcome {
	switch o {
	case runner.Success:
		return model.JobSuccess
	case runner.SuccessWithFindings:
		return model.JobSuccessWithFindings
	case runner.Timeout:
		return model.JobTimeout
	case runner.NotFound:
		return model.JobNotFound
	case runner.CrashedSignal:
		return model.JobCrashedSignal
	case runner.NonZeroNoFindings:
		return model.JobNonZeroNoFindings
	default:
		return model.JobCrashedSignal
	}
}

func outcomeErrKind(o runner.Outcome) model.ErrorKind {
	if o == runner.Timeout {
		return model.ErrToolTimeout
	}
	return model.ErrToolCrashed
}

// buildSpec renders profile.ArgsTemplate against the job's target (the
// template's only variable is .Target, matching internal/config's
// ArgsTemplate documentation) and assembles a runner.Spec.
func buildSpec(job model.Job, profile ToolProfile) (runner.Spec, error) {
	args := make([]string, 0, len(profile.ArgsTemplate)+len(job.FlagOverrides))
	for _, a := range profile.ArgsTemplate {
		rendered, err := renderArg(a, job.Target.Identifier)
		if err != nil {
			return runner.Spec{}, err
		}
		args = append(args, rendered)
	}
	args = append(args, job.FlagOverrides...)

	return runner.Spec{
		Tool:         job.Tool,
		Command:      profile.BinaryPath,
		Args:         args,
		SuccessCodes: profile.SuccessCodes,
		Deadline:     job.Deadline,
	}, nil
}

func renderArg(arg, target string) (string, error) {
	if !strings.Contains(arg, "{{") {
		return arg, nil
	}
	tmpl, err := template.New("arg").Parse(arg)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Target string }{Target: target}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/scanforge/scanforge/pkg/logging"
)

// Outcome classifies a completed (or aborted) Job run. It mirrors
// model.JobOutcome's terminal states but is kept package-local so this
// package has no dependency on the orchestrator's retry bookkeeping.
type Outcome string

const (
	Success             Outcome = "success"
	SuccessWithFindings Outcome = "success_with_findings"
	Timeout             Outcome = "timeout"
	NotFound            Outcome = "not_found"
	CrashedSignal       Outcome = "crashed_signal"
	NonZeroNoFindings   Outcome = "non_zero_no_findings"
)

// defaultOutputCap bounds captured stdout/stderr per run; 8 MiB comfortably
// fits any tool's JSON report for one target while bounding worst-case
// memory across a wide worker pool.
const defaultOutputCap = 8 << 20

// gracePeriod is how long a tool gets to exit cleanly after SIGTERM before
// the runner escalates to SIGKILL.
const gracePeriod = 5 * time.Second

// Spec is one invocation request: a tool command against one target.
type Spec struct {
	Tool       string
	Command    string
	Args       []string
	WorkingDir string
	Env        []string // appended to the current process environment

	// SuccessCodes is the tool's declared success exit-code set; an exit
	// code in this set means the run succeeded (findings or not), any other
	// non-zero code is NonZeroNoFindings.
	SuccessCodes []int

	Deadline  time.Duration
	OutputCap int
}

// Result is what Run produces for one Spec.
type Result struct {
	ExitCode  int
	Stdout    []byte
	Stderr    []byte
	Outcome   Outcome
	Truncated bool
	Duration  time.Duration
}

// Runner executes tool Specs. It holds no state beyond a logger, and is
// safe for concurrent use by many orchestrator workers at once.
type Runner struct {
	log *slog.Logger
}

// New returns a Runner that logs through log.
func New(log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{log: log}
}

// Run spawns spec.Command, enforces spec.Deadline, and classifies the
// outcome. Within one Job the Tool Runner is always a single process; the
// caller (internal/orchestrator) is responsible for bounding how many Runs
// happen concurrently across jobs.
func (r *Runner) Run(ctx context.Context, spec Spec) (result Result, err error) {
	start := time.Now()
	defer func() {
		r.log.Debug("tool run finished", logging.ToolOutcomeAttrs(spec.Tool, string(result.Outcome), time.Since(start))...)
	}()
	return r.run(ctx, spec)
}

func (r *Runner) run(ctx context.Context, spec Spec) (Result, error) {
	if _, err := exec.LookPath(spec.Command); err != nil {
		return Result{Outcome: NotFound}, nil
	}

	outputCap := spec.OutputCap
	if outputCap <= 0 {
		outputCap = defaultOutputCap
	}
	stdout := newCappedBuffer(outputCap)
	stderr := newCappedBuffer(outputCap)

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Deadline)
		defer cancel()
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.WorkingDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(spec.Env) > 0 {
		cmd.Env = append(cmd.Environ(), spec.Env...)
	}
	// Run the tool in its own process group so a deadline kill also reaps
	// any children it spawned, not just the direct child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{Outcome: NotFound}, fmt.Errorf("runner: starting %s: %w", spec.Tool, err)
	}

	waitErr := r.wait(runCtx, cmd)
	duration := time.Since(start)

	result := Result{
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
		Duration:  duration,
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.Outcome = Timeout
		return result, nil
	}
	if ctx.Err() != nil {
		result.Outcome = Timeout
		return result, ctx.Err()
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		result.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		if exitErr.ExitCode() < 0 {
			result.Outcome = CrashedSignal
			return result, nil
		}
	default:
		result.Outcome = CrashedSignal
		return result, nil
	}

	if isSuccessCode(result.ExitCode, spec.SuccessCodes) {
		if result.ExitCode == 0 {
			result.Outcome = Success
		} else {
			result.Outcome = SuccessWithFindings
		}
		return result, nil
	}

	result.Outcome = NonZeroNoFindings
	return result, nil
}

// wait blocks for the command to exit, escalating to SIGKILL via the
// process group if ctx is done and the process has not exited within
// gracePeriod after SIGTERM.
func (r *Runner) wait(ctx context.Context, cmd *exec.Cmd) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		r.terminate(cmd)
		select {
		case err := <-done:
			return err
		case <-time.After(gracePeriod):
			r.kill(cmd)
			return <-done
		}
	}
}

func (r *Runner) terminate(cmd *exec.Cmd) {
	pgid := cmd.Process.Pid
	if err := unix.Kill(-pgid, unix.SIGTERM); err != nil {
		r.log.Warn("runner: SIGTERM to process group failed", "pid", pgid, "error", err)
	}
}

func (r *Runner) kill(cmd *exec.Cmd) {
	pgid := cmd.Process.Pid
	if err := unix.Kill(-pgid, unix.SIGKILL); err != nil {
		r.log.Warn("runner: SIGKILL to process group failed", "pid", pgid, "error", err)
	}
}

func isSuccessCode(code int, successCodes []int) bool {
	if len(successCodes) == 0 {
		return code == 0
	}
	for _, c := range successCodes {
		if c == code {
			return true
		}
	}
	return false
}

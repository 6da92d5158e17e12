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
	"fmt"
	"os"

	"github.com/scanforge/scanforge/internal/orchestrator"
)

// progressBar renders orchestrator.Progress snapshots to stderr as a single
// overwritten line when attached to a terminal, and as one line per
// snapshot (no carriage-return tricks) otherwise, so piped/CI output stays
// readable.
type progressBar struct {
	interactive bool
}

func newProgressBar(interactive bool) *progressBar {
	return &progressBar{interactive: interactive}
}

func (b *progressBar) Update(p orchestrator.Progress) {
	line := fmt.Sprintf("scanforge: %d/%d jobs complete (elapsed %s, eta %s)",
		p.Completed, p.Total, p.Elapsed.Round(1e9), p.EstimatedRemaining.Round(1e9))
	if b.interactive {
		fmt.Fprintf(os.Stderr, "\r\033[K%s", line)
	} else {
		fmt.Fprintln(os.Stderr, line)
	}
}

func (b *progressBar) Finish() {
	if b.interactive {
		fmt.Fprintln(os.Stderr)
	}
}

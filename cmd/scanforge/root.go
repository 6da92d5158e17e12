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
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scanforge",
	Short: "Fan out external security-analysis tools and fuse their output",
	Long: `scanforge orchestrates external secret scanners, SAST engines,
SBOM generators, vulnerability scanners, IaC linters, and container/cluster
auditors across a set of targets, then fuses their raw output into a single
deduplicated, compliance-enriched finding set.`,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(diffCmd)
}

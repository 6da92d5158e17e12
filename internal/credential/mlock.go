// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package credential

import (
	"log/slog"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"
)

// MinMlockKB is the smallest RLIMIT_MEMLOCK this package expects before it
// considers secure memory reliable for a handful of small access tokens.
const MinMlockKB = 64

var initOnce sync.Once

// Init arms memguard's interrupt handler (so SIGINT/SIGTERM purge locked
// memory before the process exits) and logs whether the host's mlock
// limit is sufficient. Safe to call more than once; only the first call
// does anything. cmd/scanforge calls this once at startup.
func Init() {
	initOnce.Do(func() {
		memguard.CatchInterrupt()
		if ok, limitKB := checkMlockLimit(); !ok {
			slog.Warn("mlock limit may be insufficient for locked credential storage",
				"limit_kb", limitKB, "required_kb", MinMlockKB)
		}
	})
}

func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		return true, -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}
	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= MinMlockKB, limitKB
}

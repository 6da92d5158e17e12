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

import "runtime/debug"

// PanicResult captures a recovered worker panic: the value passed to
// panic() plus the stack at the time, so one misbehaving adapter or parser
// cannot take the whole scan down with it.
type PanicResult struct {
	PanicValue interface{}
	Stack      string
}

// recoverJob runs fn and converts any panic into an error rather than
// letting it propagate past the errgroup goroutine that's running this
// job. Every worker wraps its job body in this exactly once.
func recoverJob(onPanic func(PanicResult), fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			result := PanicResult{PanicValue: r, Stack: string(debug.Stack())}
			if onPanic != nil {
				onPanic(result)
			}
			err = &panicError{result: result}
		}
	}()
	return fn()
}

type panicError struct{ result PanicResult }

func (e *panicError) Error() string {
	return "orchestrator: worker panic recovered: " + panicMessage(e.result.PanicValue)
}

func panicMessage(v interface{}) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "non-error panic value"
}

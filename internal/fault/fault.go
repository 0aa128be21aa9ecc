// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package fault implements the fatal precondition checks shared by the
// boxlayout packages. Each helper panics with a *errors.Error of
// severity errors.Fatal; the error's kind identifies the class of
// violation so that callers (and tests) can tell them apart with
// errors.Is.
package fault

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

const (
	// Definition is the kind used when a structure is defined in the
	// wrong lifecycle state: defining a closed layout, or redefining
	// without clearing first.
	Definition = errors.NotAllowed
	// Argument is the kind used for invalid arguments: mismatched
	// box/assignment counts, negative ranks, zero-sized requests.
	Argument = errors.Invalid
	// Allocation is the kind used when a node pool or buffer cannot
	// grow any further.
	Allocation = errors.OOM
	// Invariant is the kind used when a structure is queried in a state
	// that does not support the query, e.g. asking an unpacked region
	// for its packed box.
	Invariant = errors.Precondition
)

func panicf(kind errors.Kind, format string, args ...interface{}) {
	panic(errors.E(kind, errors.Fatal, fmt.Sprintf(format, args...)))
}

// Definitionf panics with a Definition error.
func Definitionf(format string, args ...interface{}) {
	panicf(Definition, format, args...)
}

// Argumentf panics with an Argument error.
func Argumentf(format string, args ...interface{}) {
	panicf(Argument, format, args...)
}

// Allocationf panics with an Allocation error.
func Allocationf(format string, args ...interface{}) {
	panicf(Allocation, format, args...)
}

// Invariantf panics with an Invariant error.
func Invariantf(format string, args ...interface{}) {
	panicf(Invariant, format, args...)
}

// Check panics with an Invariant error if cond is false.
func Check(cond bool, format string, args ...interface{}) {
	if !cond {
		panicf(Invariant, format, args...)
	}
}

// Catch runs fn and returns the *errors.Error it panicked with, or nil
// if it returned normally. Panics that are not *errors.Error are
// re-raised.
func Catch(fn func()) (err *errors.Error) {
	defer func() {
		e := recover()
		if e == nil {
			return
		}
		var ok bool
		if err, ok = e.(*errors.Error); !ok {
			panic(e)
		}
	}()
	fn()
	return nil
}

// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package metrics_test

import (
	"fmt"
	"testing"

	"github.com/grailbio/boxlayout/metrics"
)

func TestCounter(t *testing.T) {
	var (
		a, b metrics.Scope
		c    = metrics.NewCounter("test.counter")
	)
	c.Incr(&a, 2)
	if got, want := c.Value(&a), int64(2); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	c.Incr(&b, 123)
	if got, want := c.Value(&a), int64(2); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := c.Value(&b), int64(123); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	a.Merge(&b)
	if got, want := c.Value(&a), int64(125); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	c.Decr(&a, 5)
	if got, want := c.Value(&a), int64(120); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func ExampleCounter() {
	var (
		scope  metrics.Scope
		evens  = metrics.NewCounter("example.evens")
		values = []int{1, 2, 3, 4, 5, 6}
	)
	for _, v := range values {
		if v%2 == 0 {
			evens.Incr(&scope, 1)
		}
	}
	fmt.Println("evens:", evens.Value(&scope))
	// Output: evens: 3
}

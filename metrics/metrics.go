// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package metrics provides diagnostic counters whose values live in an
// explicit Scope rather than in process-wide state. Counters are
// registered once, typically at package initialization; their values
// are kept per Scope, and Scopes may be merged and linearized so that
// per-rank diagnostics can be gathered onto a single process.
//
// Metric identities are assigned in registration order. Scopes
// exchanged between processes are therefore meaningful only between
// instances of the same binary.
package metrics

import (
	"sync"
	"sync/atomic"
)

var (
	mu sync.Mutex
	// metrics maps all registered metrics by id. We reserve index 0 to minimize
	// the chances of zero-valued metrics instances begin used uninitialized.
	metrics = []Metric{nil}
	names   = []string{""}
)

func newMetric(name string, makeMetric func(id int) Metric) {
	mu.Lock()
	metrics = append(metrics, makeMetric(len(metrics)))
	names = append(names, name)
	mu.Unlock()
}

func lookup(id int) (Metric, string) {
	mu.Lock()
	defer mu.Unlock()
	if id <= 0 || id >= len(metrics) {
		return nil, ""
	}
	return metrics[id], names[id]
}

// Metric is a registered metric. Its per-scope state is an instance
// created on first use within each Scope.
type Metric interface {
	metricID() int
	newInstance() interface{}

	merge(interface{}, interface{})
	load(interface{}) int64
	store(interface{}, int64)
}

// A Counter is a signed integer metric. Counters may be decremented,
// so that a count can be retracted when the counted object is
// redefined.
type Counter struct {
	id int
}

// NewCounter registers and returns a new counter with the provided
// name. The name is used only for reporting.
func NewCounter(name string) Counter {
	var c Counter
	newMetric(name, func(id int) Metric {
		c.id = id
		return c
	})
	return c
}

// Value returns the counter's value in the provided scope.
func (c Counter) Value(scope *Scope) int64 {
	return atomic.LoadInt64(scope.instance(c).(*int64))
}

// Incr adds n to the counter's value in the provided scope.
func (c Counter) Incr(scope *Scope, n int64) {
	atomic.AddInt64(scope.instance(c).(*int64), n)
}

// Decr subtracts n from the counter's value in the provided scope.
func (c Counter) Decr(scope *Scope, n int64) {
	c.Incr(scope, -n)
}

func (c Counter) metricID() int { return c.id }
func (c Counter) newInstance() interface{} {
	return new(int64)
}
func (c Counter) merge(x, y interface{}) {
	atomic.AddInt64(x.(*int64), atomic.LoadInt64(y.(*int64)))
}
func (c Counter) load(x interface{}) int64 {
	return atomic.LoadInt64(x.(*int64))
}
func (c Counter) store(x interface{}, v int64) {
	atomic.StoreInt64(x.(*int64), v)
}

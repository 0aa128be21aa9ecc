// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/grailbio/base/errors"
)

// Scope is a collection of metric instances.
type Scope struct {
	storage unsafe.Pointer // stores *[]interface{}
}

// entrySize is the linearized size of one (id, value) pair.
const entrySize = 4 + 8

// LinearSize returns the size of the scope's linearized image.
func (s *Scope) LinearSize() int {
	n := 0
	for _, inst := range s.list() {
		if inst != nil {
			n++
		}
	}
	return 4 + n*entrySize
}

// LinearOut writes the scope as a count followed by (metric id, value)
// pairs, all little-endian.
func (s *Scope) LinearOut(p []byte) {
	var n int
	off := 4
	for id, inst := range s.list() {
		if inst == nil {
			continue
		}
		m, _ := lookup(id)
		binary.LittleEndian.PutUint32(p[off:], uint32(id))
		binary.LittleEndian.PutUint64(p[off+4:], uint64(m.load(inst)))
		off += entrySize
		n++
	}
	binary.LittleEndian.PutUint32(p, uint32(n))
}

// LinearIn replaces the contents of the scope with those written by
// LinearOut.
func (s *Scope) LinearIn(p []byte) error {
	if len(p) < 4 {
		return errors.E(errors.Integrity, "metrics: short scope header")
	}
	n := int(binary.LittleEndian.Uint32(p))
	if n < 0 || 4+n*entrySize > len(p) {
		return errors.E(errors.Integrity, fmt.Sprintf("metrics: corrupt scope count %d", n))
	}
	var list []interface{}
	for i := 0; i < n; i++ {
		off := 4 + i*entrySize
		id := int(binary.LittleEndian.Uint32(p[off:]))
		m, _ := lookup(id)
		if m == nil {
			return errors.E(errors.Integrity, fmt.Sprintf("metrics: unknown metric %d", id))
		}
		for len(list) <= id {
			list = append(list, nil)
		}
		inst := m.newInstance()
		m.store(inst, int64(binary.LittleEndian.Uint64(p[off+4:])))
		list[id] = inst
	}
	atomic.StorePointer(&s.storage, unsafe.Pointer(&list))
	return nil
}

// GobEncode implements a custom gob encoder for scopes.
func (s *Scope) GobEncode() ([]byte, error) {
	p := make([]byte, s.LinearSize())
	s.LinearOut(p)
	return p, nil
}

// GobDecode implements a custom gob decoder for scopes.
func (s *Scope) GobDecode(p []byte) error {
	return s.LinearIn(p)
}

// Merge merges instances from Scope u into Scope s.
func (s *Scope) Merge(u *Scope) {
	ulist := u.list()
	if ulist == nil {
		return
	}
	for i, inst := range ulist {
		if inst == nil {
			continue
		}
		m, _ := lookup(i)
		m.merge(s.instance(m), inst)
	}
}

// Reset resets the scope s to u. It is reset to its initial (zero) state
// if u is nil.
func (s *Scope) Reset(u *Scope) {
	if u == nil {
		atomic.StorePointer(&s.storage, nil)
	} else {
		atomic.StorePointer(&s.storage, u.storage)
	}
}

// Values returns the values of every metric instantiated in the scope,
// keyed by metric name.
func (s *Scope) Values() map[string]int64 {
	vals := make(map[string]int64)
	for id, inst := range s.list() {
		if inst == nil {
			continue
		}
		m, name := lookup(id)
		vals[name] += m.load(inst)
	}
	return vals
}

// instance returns the instance associated with metrics m in the scope s. A new
// instance is created if none exists yet.
func (s *Scope) instance(m Metric) interface{} {
	if inst := s.load(m); inst != nil {
		return inst
	}
	for {
		ptr := atomic.LoadPointer(&s.storage)
		var list []interface{}
		if ptr != nil {
			list = append(list, *(*[]interface{})(ptr)...)
		}
		for len(list) <= m.metricID() {
			list = append(list, nil)
		}
		if inst := list[m.metricID()]; inst != nil {
			return inst
		}
		inst := m.newInstance()
		if inst == nil {
			panic("metric: metric returned nil instance")
		}
		list[m.metricID()] = inst
		if ok := atomic.CompareAndSwapPointer(&s.storage, ptr, unsafe.Pointer(&list)); ok {
			return inst
		}
	}
}

// load loads the metric m from the Scope s, returning the value and whether it
// was found.
func (s *Scope) load(m Metric) interface{} {
	list := s.list()
	if len(list) <= m.metricID() {
		return nil
	}
	return list[m.metricID()]
}

// list returns the slice of instances in this scope.
func (s *Scope) list() []interface{} {
	list := atomic.LoadPointer(&s.storage)
	if list == nil {
		return nil
	}
	return *(*[]interface{})(list)
}

// contextKeyType is used to create unique context key for scopes,
// available only to code in this package.
type contextKeyType struct{}

// contextKey is the key used to attach scopes to contexts.
var contextKey contextKeyType

// ScopedContext returns a context with the provided scope attached.
// The scope may be retrieved by ContextScope.
func ScopedContext(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, contextKey, scope)
}

// ContextScope returns the scope attached to the provided context. ContextScope
// panics if the context does not have an attached scope.
func ContextScope(ctx context.Context) *Scope {
	s := ctx.Value(contextKey)
	if s == nil {
		panic("metrics: context does not provide metrics")
	}
	return s.(*Scope)
}

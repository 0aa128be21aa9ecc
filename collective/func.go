// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package collective

import (
	"context"
	"sort"
	"sync"

	"github.com/grailbio/base/log"
)

// A Func is a program run by every member of a group. Each member's
// result is returned to the caller that started the run.
type Func func(ctx context.Context, g *Group) ([]byte, error)

var (
	funcsMu sync.Mutex
	funcs   = make(map[string]Func)
)

// Register associates fn with name. Funcs must be registered
// identically in every process that participates in a run, typically
// from package initialization, so that remote machines can resolve
// them by name. Register panics if name is already taken.
func Register(name string, fn Func) {
	funcsMu.Lock()
	defer funcsMu.Unlock()
	if _, ok := funcs[name]; ok {
		log.Panicf("collective.Register: func %q registered twice", name)
	}
	funcs[name] = fn
}

// Lookup returns the Func registered with name, or nil.
func Lookup(name string) Func {
	funcsMu.Lock()
	defer funcsMu.Unlock()
	return funcs[name]
}

// Funcs returns the names of all registered Funcs, sorted.
func Funcs() []string {
	funcsMu.Lock()
	defer funcsMu.Unlock()
	names := make([]string, 0, len(funcs))
	for name := range funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Params are named integer settings that a run carries from the
// caller's context to the context of every member, including members
// on remote machines.
type Params map[string]int

type paramsKey struct{}

// WithParam returns a context whose Params hold key set to val, in
// addition to the Params of ctx.
func WithParam(ctx context.Context, key string, val int) context.Context {
	old := ParamsFrom(ctx)
	p := make(Params, len(old)+1)
	for k, v := range old {
		p[k] = v
	}
	p[key] = val
	return context.WithValue(ctx, paramsKey{}, p)
}

// ParamsFrom returns the Params carried by ctx. The returned map must
// not be modified.
func ParamsFrom(ctx context.Context) Params {
	p, _ := ctx.Value(paramsKey{}).(Params)
	return p
}

func withParams(ctx context.Context, p Params) context.Context {
	if len(p) == 0 {
		return ctx
	}
	return context.WithValue(ctx, paramsKey{}, p)
}

// RunLocal runs the Func registered with name on every member of a
// fresh in-process group of size n and returns the members' results
// indexed by rank.
func RunLocal(ctx context.Context, n int, name string) ([][]byte, error) {
	fn := Lookup(name)
	if fn == nil {
		return nil, errNoFunc(name)
	}
	results := make([][]byte, n)
	err := Run(ctx, n, func(ctx context.Context, g *Group) error {
		p, err := fn(ctx, g)
		results[g.Rank()] = p
		return err
	})
	return results, err
}

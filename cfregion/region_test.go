// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

//go:build !dim3
// +build !dim3

package cfregion

import (
	"context"
	"fmt"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/boxlayout"
	"github.com/grailbio/boxlayout/collective"
	"github.com/grailbio/boxlayout/ibox"
	"github.com/grailbio/boxlayout/internal/fault"
	"github.com/grailbio/boxlayout/metrics"
	"github.com/grailbio/boxlayout/treeset"
)

type proc struct{ rank, size int }

func (p proc) Rank() int { return p.rank }
func (p proc) Size() int { return p.size }

func box(x0, y0, x1, y1 int) ibox.Box {
	return ibox.New(ibox.IV(x0, y0), ibox.IV(x1, y1))
}

var domain = ibox.NewDomain(box(0, 0, 9, 9))

func checkAllEmpty(t *testing.T, r *Region, l *boxlayout.Layout) {
	t.Helper()
	if !r.IsEmpty() {
		t.Error("region is not empty")
	}
	for _, di := range l.DataIndexes() {
		for dir := 0; dir < ibox.SpaceDim; dir++ {
			for _, side := range ibox.Sides {
				if c := r.CFIVS(di, dir, side); !c.IsEmpty() {
					t.Errorf("%v dir %d %v: got %v, want empty", l.Box(di.Global), dir, side, c.IVS())
				}
			}
		}
	}
}

func TestDomainBox(t *testing.T) {
	var scope metrics.Scope
	l := boxlayout.Define(nil, []ibox.Box{domain.Box()}, nil)
	r := New(l, domain, ibox.Cell, &scope)
	checkAllEmpty(t, r, l)
	if got, want := PackedRegions.Value(&scope), int64(4); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := SparseRegions.Value(&scope), int64(0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSiblingEdge(t *testing.T) {
	boxes := []ibox.Box{box(0, 0, 4, 9), box(5, 0, 9, 9)}
	for rank := 0; rank < 2; rank++ {
		b := boxlayout.NewBuilder(proc{rank, 2})
		b.Define(boxes, []int{0, 1})
		l := b.Close()
		r := New(l, domain, ibox.Cell, nil)
		checkAllEmpty(t, r, l)
	}
}

func TestFaceCentered(t *testing.T) {
	l := boxlayout.Define(nil, []ibox.Box{box(0, 0, 4, 9), box(5, 0, 9, 9)}, nil)
	r := New(l, domain, ibox.Face(0), nil)
	checkAllEmpty(t, r, l)
}

func TestCoarseFine(t *testing.T) {
	var scope metrics.Scope
	fine := ibox.NewDomain(box(0, 0, 15, 15))
	l := boxlayout.Define(nil, []ibox.Box{box(2, 2, 5, 5)}, nil)
	r := New(l, fine, ibox.Cell, &scope)
	if r.IsEmpty() {
		t.Fatal("region is empty")
	}
	di := l.DataIndexes()[0]
	for _, c := range []struct {
		dir  int
		side ibox.Side
		want ibox.Box
	}{
		{0, ibox.Lo, box(1, 2, 1, 5)},
		{0, ibox.Hi, box(6, 2, 6, 5)},
		{1, ibox.Lo, box(2, 1, 5, 1)},
		{1, ibox.Hi, box(2, 6, 5, 6)},
	} {
		cf := r.CFIVS(di, c.dir, c.side)
		if !cf.IsPacked() {
			t.Errorf("dir %d %v: not packed", c.dir, c.side)
			continue
		}
		if got, want := cf.PackedBox(), c.want; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	if got, want := r.Lo(di, 1), r.CFIVS(di, 1, ibox.Lo); got != want {
		t.Errorf("got %p, want %p", got, want)
	}
	if got, want := PackedRegions.Value(&scope), int64(4); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSparse(t *testing.T) {
	var scope metrics.Scope
	fine := ibox.NewDomain(box(0, 0, 15, 15))
	l := boxlayout.Define(nil, []ibox.Box{box(0, 0, 3, 5), box(4, 2, 7, 3)}, nil)
	r := New(l, fine, ibox.Cell, &scope)
	di := l.DataIndexes()[0]
	c := r.Hi(di, 0)
	if c.IsPacked() || c.IsEmpty() {
		t.Fatalf("got %v, want a sparse set", c.IVS())
	}
	if got, want := c.IVS().NumPts(), int64(4); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := c.MinBox(), box(4, 0, 4, 5); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	err := fault.Catch(func() { c.PackedBox() })
	if err == nil || !errors.Is(errors.Precondition, err) {
		t.Errorf("expected invariant violation, got %v", err)
	}
	if got, want := SparseRegions.Value(&scope), int64(1); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := PackedRegions.Value(&scope), int64(7); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if !r.Lo(l.DataIndexes()[1], 0).IsEmpty() {
		t.Error("sibling face is not empty")
	}
}

func TestPeriodic(t *testing.T) {
	periodic := ibox.NewDomain(box(0, 0, 9, 9), 0)
	l := boxlayout.Define(nil, []ibox.Box{box(0, 0, 4, 9)}, nil)
	di := l.DataIndexes()[0]

	r := New(l, periodic, ibox.Cell, nil)
	c := r.Lo(di, 0)
	if !c.IsPacked() || c.IsEmpty() {
		t.Fatalf("got %v, want a packed set", c.IVS())
	}
	if got, want := c.PackedBox(), box(-1, 0, -1, 9); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if !New(l, domain, ibox.Cell, nil).Lo(di, 0).IsEmpty() {
		t.Error("physical boundary is not empty")
	}

	// The periodic image of the sibling covers the low face.
	l = boxlayout.Define(nil, []ibox.Box{box(0, 0, 4, 9), box(5, 0, 9, 9)}, nil)
	checkAllEmpty(t, New(l, periodic, ibox.Cell, nil), l)
}

func TestRedefine(t *testing.T) {
	var (
		scope metrics.Scope
		c     CFIVS
	)
	if c.IsDefined() {
		t.Error("zero set is defined")
	}
	err := fault.Catch(func() { c.IsEmpty() })
	if err == nil || !errors.Is(errors.Precondition, err) {
		t.Errorf("expected invariant violation, got %v", err)
	}
	sparse := treeset.NewPoints(ibox.IV(0, 0), ibox.IV(2, 2))
	c.Define(sparse, ibox.Cell, &scope)
	if got, want := SparseRegions.Value(&scope), int64(1); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	c.Define(treeset.New(box(0, 0, 2, 2)), ibox.Cell, &scope)
	if got, want := SparseRegions.Value(&scope), int64(0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := PackedRegions.Value(&scope), int64(1); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRedefineSelf(t *testing.T) {
	var (
		scope metrics.Scope
		c     CFIVS
	)
	c.Define(treeset.NewPoints(ibox.IV(0, 0), ibox.IV(2, 2)), ibox.Cell, &scope)
	c.Define(c.IVS(), ibox.Node(), &scope)
	if got, want := c.IVS().NumPts(), int64(2); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if !c.IVS().Contains(ibox.IV(2, 2)) || c.IsEmpty() || c.IsPacked() {
		t.Errorf("got %v, want the original sparse set", c.IVS())
	}
	want := box(0, 0, 2, 2)
	want.Type = ibox.Node()
	if got := c.MinBox(); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := SparseRegions.Value(&scope), int64(1); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := PackedRegions.Value(&scope), int64(0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	c.Define(treeset.New(box(0, 0, 2, 2)), ibox.Cell, &scope)
	c.Define(c.IVS(), ibox.Cell, &scope)
	if got, want := c.PackedBox(), box(0, 0, 2, 2); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := SparseRegions.Value(&scope), int64(0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := PackedRegions.Value(&scope), int64(1); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCoarsen(t *testing.T) {
	var scope metrics.Scope
	fine := ibox.NewDomain(box(0, 0, 15, 15))
	l := boxlayout.Define(nil, []ibox.Box{box(2, 2, 5, 5)}, nil)
	r := New(l, fine, ibox.Cell, &scope)
	r.Coarsen(ibox.Uniform(2))
	di := l.DataIndexes()[0]
	if got, want := r.Lo(di, 0).PackedBox(), box(0, 1, 0, 2); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := r.Layout().Box(0), box(1, 1, 2, 2); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := PackedRegions.Value(&scope), int64(4); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	err := fault.Catch(func() { r.Coarsen(ibox.Uniform(2)) })
	if err == nil || !errors.Is(errors.Precondition, err) {
		t.Errorf("expected invariant violation, got %v", err)
	}
}

func TestAllEmpty(t *testing.T) {
	for _, c := range []struct {
		boxes []ibox.Box
		want  bool
	}{
		{[]ibox.Box{box(0, 0, 4, 9), box(5, 0, 9, 9)}, true},
		{[]ibox.Box{box(0, 0, 4, 9)}, false},
	} {
		err := collective.Run(context.Background(), 2, func(ctx context.Context, g *collective.Group) error {
			procs := make([]int, len(c.boxes))
			for i := range procs {
				procs[i] = i
			}
			l := boxlayout.Define(g, c.boxes, procs)
			r := New(l, domain, ibox.Cell, nil)
			empty, err := r.AllEmpty(ctx, g)
			if err != nil {
				return err
			}
			if empty != c.want {
				return fmt.Errorf("rank %d: got %v, want %v", g.Rank(), empty, c.want)
			}
			return nil
		})
		if err != nil {
			t.Error(err)
		}
	}
}

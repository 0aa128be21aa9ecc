// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

//go:build !dim3
// +build !dim3

package ibox

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/boxlayout/internal/fault"
)

func TestNumPts(t *testing.T) {
	for _, c := range []struct {
		b    Box
		want int64
	}{
		{New(IV(0, 0), IV(9, 9)), 100},
		{New(IV(0, 0), IV(4, 9)), 50},
		{New(IV(0, 0), IV(9, 9)).SurroundingNodesDir(0), 110},
		{New(IV(0, 0), IV(9, 9)).SurroundingNodes(), 121},
		{New(IV(3, 3), IV(2, 9)), 0},
		{Empty, 0},
	} {
		if got, want := c.b.NumPts(), c.want; got != want {
			t.Errorf("%v: got %v, want %v", c.b, got, want)
		}
	}
}

func TestIntersect(t *testing.T) {
	a := New(IV(0, 0), IV(4, 9))
	b := New(IV(3, 5), IV(7, 12))
	if got, want := a.Intersect(b), New(IV(3, 5), IV(4, 9)); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	c := New(IV(5, 0), IV(9, 9))
	if !a.Intersect(c).IsEmpty() {
		t.Errorf("expected empty intersection")
	}
	if a.Intersects(c) {
		t.Errorf("%v and %v should not intersect", a, c)
	}
	err := fault.Catch(func() { a.Intersect(c.SurroundingNodes()) })
	if err == nil || !errors.Is(errors.Invalid, err) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestCoarsenRefine(t *testing.T) {
	for _, c := range []struct {
		b, coarse, refined Box
	}{
		{New(IV(0, 0), IV(5, 5)), New(IV(0, 0), IV(2, 2)), New(IV(0, 0), IV(5, 5))},
		{New(IV(1, 0), IV(5, 6)), New(IV(0, 0), IV(2, 3)), New(IV(0, 0), IV(5, 7))},
		{New(IV(-3, -4), IV(-1, 3)), New(IV(-2, -2), IV(-1, 1)), New(IV(-4, -4), IV(-1, 3))},
		{NewTyped(IV(0, 0), IV(5, 3), Node()), NewTyped(IV(0, 0), IV(3, 2), Node()), NewTyped(IV(0, 0), IV(6, 4), Node())},
	} {
		coarse := c.b.Coarsen(2)
		if got, want := coarse, c.coarse; got != want {
			t.Errorf("coarsen %v: got %v, want %v", c.b, got, want)
		}
		if got, want := coarse.Refine(2), c.refined; got != want {
			t.Errorf("refine %v: got %v, want %v", coarse, got, want)
		}
		if got, want := c.b.Coarsenable(Uniform(2)), c.b == c.refined; got != want {
			t.Errorf("coarsenable %v: got %v, want %v", c.b, got, want)
		}
	}
}

func TestAdjCell(t *testing.T) {
	b := New(IV(0, 0), IV(4, 9))
	if got, want := b.AdjCell(0, Lo, 1), New(IV(-1, 0), IV(-1, 9)); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := b.AdjCell(1, Hi, 2), New(IV(0, 10), IV(4, 11)); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestConvert(t *testing.T) {
	fz := fuzz.NewWithSeed(1234)
	for i := 0; i < 100; i++ {
		var lo, ext IntVect
		fz.Fuzz(&lo)
		fz.Fuzz(&ext)
		for d := range lo {
			lo[d] %= 1000
			ext[d] = abs(ext[d]%50) + 1
		}
		b := New(lo, lo.Add(ext))
		n := b.SurroundingNodes()
		if got, want := n.EnclosedCells(), b; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
		if got, want := n.Convert(Cell), b; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
		if got, want := b.Convert(Face(1)), b.SurroundingNodesDir(1); got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestLinearize(t *testing.T) {
	fz := fuzz.NewWithSeed(4321)
	for i := 0; i < 100; i++ {
		var b Box
		fz.Fuzz(&b.Lo)
		fz.Fuzz(&b.Hi)
		b.Type = IndexType(i) & Node()
		p := make([]byte, b.LinearSize())
		b.LinearOut(p)
		var c Box
		if err := c.LinearIn(p); err != nil {
			t.Fatal(err)
		}
		if got, want := c, b; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestDomain(t *testing.T) {
	d := NewDomain(New(IV(0, 0), IV(9, 9)), 1)
	if got, want := d.Clip(New(IV(-1, -1), IV(3, 10))), New(IV(0, -1), IV(3, 10)); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := len(d.PeriodicShifts()), 2; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got, want := d.PeriodicShifts()[0], IV(0, -10); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	all := NewDomain(New(IV(0, 0), IV(9, 9)), 0, 1)
	if got, want := len(all.PeriodicShifts()), 8; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	nonp := NewDomain(New(IV(0, 0), IV(9, 9)))
	if nonp.IsPeriodicAny() || len(nonp.PeriodicShifts()) != 0 {
		t.Errorf("expected no periodic shifts")
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

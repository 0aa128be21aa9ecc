// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package treeset

import "github.com/grailbio/boxlayout/ibox"

// An Iterator visits the points of a set depth first in octant order;
// within each full leaf, points are visited with axis 0 varying
// fastest. An Iterator does not modify its set, and the set must not be
// modified while the iterator is in use.
//
//	for it := s.Iterator(); it.Ok(); it.Next() {
//		p := it.Value()
//		...
//	}
type Iterator struct {
	s     *Set
	stack []frame
	leaf  ibox.Box
	cur   ibox.IntVect
	ok    bool
}

type frame struct {
	n    node
	lo   ibox.IntVect
	side int
	next int
}

// Iterator returns an iterator positioned at the set's first point.
func (s *Set) Iterator() *Iterator {
	it := &Iterator{s: s}
	it.Begin()
	return it
}

// Begin restarts the iteration at the set's first point.
func (it *Iterator) Begin() {
	it.stack = it.stack[:0]
	it.ok = false
	s := it.s
	switch s.root.kind {
	case full:
		it.enter(s.Span())
	case inner:
		it.stack = append(it.stack, frame{n: s.root, lo: s.lo, side: s.side()})
		it.seek()
	}
}

// Ok reports whether the iterator is positioned at a point.
func (it *Iterator) Ok() bool { return it.ok }

// Value returns the current point.
func (it *Iterator) Value() ibox.IntVect { return it.cur }

// Next advances the iterator to the next point.
func (it *Iterator) Next() {
	if !it.ok {
		return
	}
	for d := 0; d < ibox.SpaceDim; d++ {
		if it.cur[d] < it.leaf.Hi[d] {
			it.cur[d]++
			return
		}
		it.cur[d] = it.leaf.Lo[d]
	}
	it.seek()
}

func (it *Iterator) enter(leaf ibox.Box) {
	it.leaf = leaf
	it.cur = leaf.Lo
	it.ok = true
}

// seek advances to the next full leaf on the stack.
func (it *Iterator) seek() {
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		if top.next == nkids {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		k := top.next
		top.next++
		half := top.side / 2
		lo := childLo(top.lo, half, k)
		n := it.s.a.nodes[top.n.kids+int32(k)]
		switch n.kind {
		case full:
			it.enter(cube(lo, half))
			return
		case inner:
			it.stack = append(it.stack, frame{n: n, lo: lo, side: half})
		}
	}
	it.ok = false
}

// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package treeset

import "github.com/grailbio/boxlayout/ibox"

// Or adds the points of o to s.
func (s *Set) Or(o *Set) {
	if o == s || o.IsEmpty() {
		return
	}
	if s.IsEmpty() {
		s.release(s.root)
		s.lo, s.depth = o.lo, o.depth
		s.root = s.copy(o, o.root)
		s.update()
		return
	}
	if s.aligned() && o.aligned() {
		s.cover(o.Span())
	}
	if !s.nests(o) {
		for _, b := range o.Boxes() {
			s.addBox(b)
		}
		s.update()
		return
	}
	s.root = s.at(s.root, s.lo, s.side(), o.lo, o.side(), func(n node) node {
		return s.merge(opOr, n, o, o.root)
	})
	s.update()
}

// And removes the points of s that are not in o.
func (s *Set) And(o *Set) {
	if o == s || s.IsEmpty() {
		return
	}
	if o.IsEmpty() || !s.Span().Intersects(o.Span()) {
		s.Clear()
		return
	}
	switch {
	case s.nests(o):
		// Only the part of s inside o's span can survive.
		s.root = s.extract(s.root, s.lo, s.side(), o.lo, o.side())
		s.lo, s.depth = o.lo, o.depth
		s.root = s.merge(opAnd, s.root, o, o.root)
	case o.nests(s):
		s.root = s.merge(opAnd, s.root, o, o.find(s.lo, s.side()))
	default:
		outside := New(s.min)
		outside.Sub(o)
		s.Sub(outside)
		outside.Release()
		return
	}
	s.update()
}

// Sub removes the points of o from s.
func (s *Set) Sub(o *Set) {
	if o == s {
		s.Clear()
		return
	}
	if s.IsEmpty() || o.IsEmpty() || !s.Span().Intersects(o.Span()) {
		return
	}
	switch {
	case o.nests(s):
		s.root = s.merge(opSub, s.root, o, o.find(s.lo, s.side()))
	case s.nests(o):
		s.root = s.at(s.root, s.lo, s.side(), o.lo, o.side(), func(n node) node {
			return s.merge(opSub, n, o, o.root)
		})
	default:
		for _, b := range o.Boxes() {
			s.root = s.boxOp(opSub, s.root, s.lo, s.side(), b)
		}
	}
	s.update()
}

// at replaces the node covering the aligned cube (tlo, tside) below n,
// which covers (lo, side), with fn applied to it. Leaves on the path
// are split as needed and the path is renormalized.
func (s *Set) at(n node, lo ibox.IntVect, side int, tlo ibox.IntVect, tside int, fn func(node) node) node {
	if side == tside {
		return fn(n)
	}
	if n.kind != inner {
		n = s.split(n.kind)
	}
	half := side / 2
	k := octant(lo, half, tlo)
	i := n.kids + int32(k)
	m := s.at(s.a.nodes[i], childLo(lo, half, k), half, tlo, tside, fn)
	s.a.nodes[i] = m
	return s.normalize(n)
}

// extract returns the node covering the aligned cube (tlo, tside) below
// n and frees the rest of n's subtree.
func (s *Set) extract(n node, lo ibox.IntVect, side int, tlo ibox.IntVect, tside int) node {
	if side == tside {
		return n
	}
	if n.kind != inner {
		return n
	}
	half := side / 2
	k := octant(lo, half, tlo)
	i := n.kids + int32(k)
	sub := s.extract(s.a.nodes[i], childLo(lo, half, k), half, tlo, tside)
	s.a.nodes[i] = node{}
	s.release(n)
	return sub
}

// merge combines node a of s with node b of o covering the same cube.
// A leaf b may also stand for a larger cube that contains a's.
func (s *Set) merge(op op, a node, o *Set, b node) node {
	switch op {
	case opOr:
		if a.kind == full || b.kind == empty {
			return a
		}
		if b.kind == full {
			s.release(a)
			return node{kind: full}
		}
		if a.kind == empty {
			return s.copy(o, b)
		}
	case opAnd:
		if a.kind == empty || b.kind == full {
			return a
		}
		if b.kind == empty {
			s.release(a)
			return node{}
		}
		if a.kind == full {
			return s.copy(o, b)
		}
	case opSub:
		if a.kind == empty || b.kind == empty {
			return a
		}
		if b.kind == full {
			s.release(a)
			return node{}
		}
		if a.kind == full {
			a = s.split(full)
		}
	}
	for k := int32(0); k < nkids; k++ {
		i := a.kids + k
		m := s.merge(op, s.a.nodes[i], o, o.a.nodes[b.kids+k])
		s.a.nodes[i] = m
	}
	return s.normalize(a)
}

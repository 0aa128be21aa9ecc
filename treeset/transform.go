// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package treeset

import (
	"github.com/grailbio/boxlayout/ibox"
	"github.com/grailbio/boxlayout/internal/fault"
)

// Grow adds every point within n of the set along each axis
// separately. Negative n erodes the set.
func (s *Set) Grow(n int) { s.GrowVect(ibox.Uniform(n)) }

// GrowVect grows the set by v[d] along each axis d.
func (s *Set) GrowVect(v ibox.IntVect) {
	for d, n := range v {
		s.GrowDir(d, n)
	}
}

// GrowDir adds every point within n of the set along axis dir. For
// negative n, GrowDir instead keeps only the points whose neighbors
// within -n along dir are all in the set.
func (s *Set) GrowDir(dir, n int) {
	checkDir(dir)
	if n == 0 || s.IsEmpty() {
		return
	}
	if n > 0 {
		s.rebuild(func(b ibox.Box) ibox.Box { return b.GrowDir(dir, n) })
		return
	}
	comp := New(s.min.GrowDir(dir, -n))
	comp.Sub(s)
	comp.GrowDir(dir, -n)
	s.Sub(comp)
	comp.Release()
}

// GrowHi adds every point within n above the set along axis dir.
func (s *Set) GrowHi(dir, n int) {
	checkDir(dir)
	if n < 0 {
		fault.Argumentf("treeset.GrowHi: negative growth %d", n)
	}
	if n == 0 || s.IsEmpty() {
		return
	}
	s.rebuild(func(b ibox.Box) ibox.Box { return b.GrowHi(dir, n) })
}

// Refine replaces every point p with the box [p*r, p*r+r-1].
func (s *Set) Refine(r int) { s.RefineVect(ibox.Uniform(r)) }

// RefineVect refines the set by the per-axis ratio r.
func (s *Set) RefineVect(r ibox.IntVect) {
	checkRatio("RefineVect", r)
	if s.IsEmpty() {
		return
	}
	if k, ok := log2Uniform(r); ok {
		if s.depth+k > maxDepth {
			fault.Allocationf("treeset: refining %v by %v exceeds the index space", s.Span(), r)
		}
		// Refinement by a power of two only scales the span.
		s.lo = s.lo.Mul(r)
		s.depth += k
		s.update()
		return
	}
	s.rebuild(func(b ibox.Box) ibox.Box { return b.RefineVect(r) })
}

// Coarsen replaces every point p with floor(p/r).
func (s *Set) Coarsen(r int) { s.CoarsenVect(ibox.Uniform(r)) }

// CoarsenVect coarsens the set by the per-axis ratio r.
func (s *Set) CoarsenVect(r ibox.IntVect) {
	checkRatio("CoarsenVect", r)
	if s.IsEmpty() {
		return
	}
	if k, ok := log2Uniform(r); ok && k <= alignBits && s.aligned() {
		if k == 0 {
			return
		}
		// Aligned cubes at least r wide start at multiples of r.
		for s.depth < k {
			s.double(s.Span())
		}
		s.root = s.trim(s.root, s.side(), 1<<uint(k))
		s.lo = s.lo.Coarsen(r)
		s.depth -= k
		s.update()
		return
	}
	s.rebuild(func(b ibox.Box) ibox.Box { return b.CoarsenVect(r) })
}

// trim turns every nonempty node of the given side into a full leaf.
func (s *Set) trim(n node, side, leaf int) node {
	if n.kind != inner {
		return n
	}
	if side == leaf {
		s.release(n)
		return node{kind: full}
	}
	half := side / 2
	for k := int32(0); k < nkids; k++ {
		m := s.trim(s.a.nodes[n.kids+k], half, leaf)
		s.a.nodes[n.kids+k] = m
	}
	return s.normalize(n)
}

// Shift translates the set by v.
func (s *Set) Shift(v ibox.IntVect) {
	if s.IsEmpty() || v == ibox.Zero {
		return
	}
	side := s.side()
	aligned := true
	for _, x := range v {
		if x%side != 0 {
			aligned = false
		}
	}
	if aligned {
		s.lo = s.lo.Add(v)
		s.update()
		return
	}
	s.rebuild(func(b ibox.Box) ibox.Box { return b.Shift(v) })
}

// Chop splits the set at pnt along axis dir: s keeps the points below
// pnt and the returned set holds the rest.
func (s *Set) Chop(dir, pnt int) *Set {
	checkDir(dir)
	hi := new(Set)
	if s.IsEmpty() {
		return hi
	}
	upper := s.Span()
	if pnt > upper.Hi[dir] {
		return hi
	}
	if pnt > upper.Lo[dir] {
		upper.Lo[dir] = pnt
	}
	hi = s.Clone()
	hi.AndBox(upper)
	s.SubBox(upper)
	return hi
}

// Compact shrinks the span to the smallest aligned cube that contains
// the set.
func (s *Set) Compact() {
	if s.IsEmpty() {
		s.lo, s.depth = ibox.Zero, 0
		return
	}
	for s.root.kind == inner {
		only := -1
		for k := 0; k < nkids; k++ {
			if s.a.nodes[s.root.kids+int32(k)].kind == empty {
				continue
			}
			if only >= 0 {
				return
			}
			only = k
		}
		i := s.root.kids + int32(only)
		child := s.a.nodes[i]
		s.a.nodes[i] = node{}
		s.release(s.root)
		s.root = child
		s.lo = childLo(s.lo, s.side()/2, only)
		s.depth--
	}
}

// rebuild replaces the set with the union of fn applied to each box
// of its decomposition.
func (s *Set) rebuild(fn func(ibox.Box) ibox.Box) {
	boxes := s.Boxes()
	s.Clear()
	for _, b := range boxes {
		s.addBox(fn(b))
	}
	s.update()
}

func log2Uniform(r ibox.IntVect) (int, bool) {
	for _, x := range r {
		if x != r[0] {
			return 0, false
		}
	}
	if !ibox.IsPowerOfTwo(r[0]) {
		return 0, false
	}
	return ibox.Log2(r[0]), true
}

func checkRatio(op string, r ibox.IntVect) {
	for _, x := range r {
		if x <= 0 {
			fault.Argumentf("treeset.%s: nonpositive ratio %v", op, r)
		}
	}
}

func checkDir(dir int) {
	if dir < 0 || dir >= ibox.SpaceDim {
		fault.Argumentf("treeset: invalid direction %d", dir)
	}
}

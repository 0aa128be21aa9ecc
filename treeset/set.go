// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package treeset implements Set, a compressed set of lattice points.
//
// A Set is a 2^d-ary tree over an aligned cubic span: a cube whose side
// is a power of two and whose low corner is a multiple of that side.
// Each inner node divides its cube into 2^d equal octants; leaves are
// either entirely empty or entirely full. Trees are kept normalized: no
// inner node has children that are all empty or all full. Nodes live in
// a per-set arena; arenas are recycled through a process-wide pool
// when sets are released.
//
// Sets are not safe for concurrent mutation.
package treeset

import (
	"fmt"
	"strings"

	"github.com/grailbio/boxlayout/ibox"
	"github.com/grailbio/boxlayout/internal/fault"
)

// maxDepth bounds the span of a set to 2^maxDepth points per axis.
const maxDepth = 62

// A Set is a set of lattice points. The zero Set is empty and ready to
// use.
type Set struct {
	a     *arena
	root  node
	lo    ibox.IntVect
	depth int

	min  ibox.Box
	npts int64
}

// New returns the set of points in box b.
func New(b ibox.Box) *Set {
	s := new(Set)
	s.OrBox(b)
	return s
}

// NewPoints returns the set containing the provided points.
func NewPoints(ivs ...ibox.IntVect) *Set {
	s := new(Set)
	for _, iv := range ivs {
		s.addBox(ibox.Point(iv))
	}
	s.update()
	return s
}

// NumPts returns the number of points in the set.
func (s *Set) NumPts() int64 { return s.npts }

// IsEmpty reports whether the set has no points.
func (s *Set) IsEmpty() bool { return s.root.kind == empty }

// MinBox returns the smallest box containing every point of the set,
// or ibox.Empty.
func (s *Set) MinBox() ibox.Box {
	if s.IsEmpty() {
		return ibox.Empty
	}
	return s.min
}

// Span returns the aligned cube covered by the set's tree.
func (s *Set) Span() ibox.Box { return cube(s.lo, s.side()) }

// Contains reports whether iv is in the set.
func (s *Set) Contains(iv ibox.IntVect) bool {
	if s.IsEmpty() || !s.Span().Contains(iv) {
		return false
	}
	return s.find(iv, 1).kind == full
}

// ContainsBox reports whether every point of b is in the set. The
// empty box is contained in every set.
func (s *Set) ContainsBox(b ibox.Box) bool {
	b.Type = ibox.Cell
	if b.IsEmpty() {
		return true
	}
	if !s.Span().ContainsBox(b) {
		return false
	}
	return s.covers(s.root, s.lo, s.side(), b)
}

func (s *Set) covers(n node, lo ibox.IntVect, side int, b ibox.Box) bool {
	if !cube(lo, side).Intersects(b) {
		return true
	}
	switch n.kind {
	case full:
		return true
	case empty:
		return false
	}
	half := side / 2
	for k := 0; k < nkids; k++ {
		if !s.covers(s.a.nodes[n.kids+int32(k)], childLo(lo, half, k), half, b) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the set with its own arena.
func (s *Set) Clone() *Set {
	c := &Set{lo: s.lo, depth: s.depth, min: s.min, npts: s.npts}
	c.root = c.copy(s, s.root)
	return c
}

// Clear removes every point from the set.
func (s *Set) Clear() {
	s.release(s.root)
	s.root = node{}
	s.lo = ibox.Zero
	s.depth = 0
	s.update()
}

// Release clears the set and returns its node arena to the pool. The
// set may be reused afterwards.
func (s *Set) Release() {
	if s.a != nil {
		s.a.Release()
		s.a = nil
	}
	s.root = node{}
	s.lo = ibox.Zero
	s.depth = 0
	s.update()
}

// String formats the set as its box decomposition.
func (s *Set) String() string {
	boxes := s.Boxes()
	parts := make([]string, len(boxes))
	for i, b := range boxes {
		parts[i] = b.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// OrBox adds the points of b to the set.
func (s *Set) OrBox(b ibox.Box) {
	s.addBox(b)
	s.update()
}

// AndBox removes the points of the set outside b.
func (s *Set) AndBox(b ibox.Box) {
	b.Type = ibox.Cell
	if b.IsEmpty() {
		s.Clear()
		return
	}
	s.root = s.boxOp(opAnd, s.root, s.lo, s.side(), b)
	s.update()
}

// SubBox removes the points of b from the set.
func (s *Set) SubBox(b ibox.Box) {
	b.Type = ibox.Cell
	if b.IsEmpty() || s.IsEmpty() {
		return
	}
	s.root = s.boxOp(opSub, s.root, s.lo, s.side(), b)
	s.update()
}

// OrPoint adds iv to the set.
func (s *Set) OrPoint(iv ibox.IntVect) { s.OrBox(ibox.Point(iv)) }

// SubPoint removes iv from the set.
func (s *Set) SubPoint(iv ibox.IntVect) { s.SubBox(ibox.Point(iv)) }

// AndDomain removes the points outside the domain along its
// non-periodic axes.
func (s *Set) AndDomain(d ibox.ProblemDomain) {
	if s.IsEmpty() {
		return
	}
	s.AndBox(d.Clip(s.Span()))
}

func (s *Set) addBox(b ibox.Box) {
	b.Type = ibox.Cell
	if b.IsEmpty() {
		return
	}
	s.cover(b)
	s.root = s.boxOp(opOr, s.root, s.lo, s.side(), b)
}

type op int

const (
	opOr op = iota
	opAnd
	opSub
)

// boxOp applies op with box b to node n covering the cube at lo with
// the given side, returning the replacement node.
func (s *Set) boxOp(op op, n node, lo ibox.IntVect, side int, b ibox.Box) node {
	c := cube(lo, side)
	in := b.ContainsBox(c)
	meets := in || b.Intersects(c)
	switch op {
	case opOr:
		if n.kind == full || !meets {
			return n
		}
		if in {
			s.release(n)
			return node{kind: full}
		}
	case opAnd:
		if n.kind == empty || in {
			return n
		}
		if !meets {
			s.release(n)
			return node{}
		}
	case opSub:
		if n.kind == empty || !meets {
			return n
		}
		if in {
			s.release(n)
			return node{}
		}
	}
	// b covers part of the cube, so side > 1.
	if n.kind != inner {
		n = s.split(n.kind)
	}
	half := side / 2
	for k := 0; k < nkids; k++ {
		i := n.kids + int32(k)
		m := s.boxOp(op, s.a.nodes[i], childLo(lo, half, k), half, b)
		s.a.nodes[i] = m
	}
	return s.normalize(n)
}

func (s *Set) side() int { return 1 << uint(s.depth) }

func cube(lo ibox.IntVect, side int) ibox.Box {
	return ibox.New(lo, lo.Add(ibox.Uniform(side-1)))
}

func childLo(lo ibox.IntVect, half, k int) ibox.IntVect {
	for d := range lo {
		if k>>uint(d)&1 != 0 {
			lo[d] += half
		}
	}
	return lo
}

// octant returns the child of the cube at lo with half-side half that
// contains p.
func octant(lo ibox.IntVect, half int, p ibox.IntVect) int {
	var k int
	for d := range lo {
		if p[d] >= lo[d]+half {
			k |= 1 << uint(d)
		}
	}
	return k
}

// split returns a new inner node whose children are all leaves of kind k.
func (s *Set) split(k kind) node {
	if s.a == nil {
		s.a = newArena()
	}
	i := s.a.Alloc(nkids)
	if k != empty {
		for j := int32(0); j < nkids; j++ {
			s.a.nodes[i+j] = node{kind: k}
		}
	}
	return node{kind: inner, kids: i}
}

// release frees the subtree below n.
func (s *Set) release(n node) {
	if n.kind != inner {
		return
	}
	for k := int32(0); k < nkids; k++ {
		s.release(s.a.nodes[n.kids+k])
	}
	s.a.Free(n.kids, nkids)
}

// normalize collapses n into a leaf if its children are uniform leaves.
func (s *Set) normalize(n node) node {
	if n.kind != inner {
		return n
	}
	first := s.a.nodes[n.kids].kind
	if first == inner {
		return n
	}
	for k := int32(1); k < nkids; k++ {
		if s.a.nodes[n.kids+k].kind != first {
			return n
		}
	}
	s.a.Free(n.kids, nkids)
	return node{kind: first}
}

// copy copies the subtree n of set o into s's arena.
func (s *Set) copy(o *Set, n node) node {
	if n.kind != inner {
		return n
	}
	c := s.split(empty)
	for k := int32(0); k < nkids; k++ {
		m := s.copy(o, o.a.nodes[n.kids+k])
		s.a.nodes[c.kids+k] = m
	}
	return c
}

// find returns the node covering the aligned cube at tlo with side
// tside, or the leaf above it if the tree is coarser there. The cube
// must lie within the span.
func (s *Set) find(tlo ibox.IntVect, tside int) node {
	n, lo, side := s.root, s.lo, s.side()
	for side > tside && n.kind == inner {
		half := side / 2
		k := octant(lo, half, tlo)
		n = s.a.nodes[n.kids+int32(k)]
		lo = childLo(lo, half, k)
		side = half
	}
	return n
}

// origin anchors cube alignment: a cube of side 2^k is aligned when
// its low corner minus origin is a multiple of 2^k. The low alignBits
// bits of origin are zero, so small cubes are aligned to multiples of
// their side; its alternating high bits keep boxes that straddle zero
// in shallow trees.
const (
	alignBits = 20
	origin    = -0x5555555555 << alignBits
)

func alignDown(x, side int) int {
	return origin + ibox.FloorDiv(x-origin, side)*side
}

// aligned reports whether the span is an aligned cube. Spans may lose
// alignment through fast refinement.
func (s *Set) aligned() bool {
	side := s.side()
	for _, x := range s.lo {
		if (x-origin)%side != 0 {
			return false
		}
	}
	return true
}

// nests reports whether o's span is the cube of a node in s's tree.
func (s *Set) nests(o *Set) bool {
	if o.depth > s.depth || !s.Span().ContainsBox(o.Span()) {
		return false
	}
	side := o.side()
	for d := range s.lo {
		if (o.lo[d]-s.lo[d])%side != 0 {
			return false
		}
	}
	return true
}

// cover grows the span until it contains the nonempty box b.
func (s *Set) cover(b ibox.Box) {
	if s.root.kind == empty {
		s.lo, s.depth = alignedCube(b)
		return
	}
	for !s.Span().ContainsBox(b) {
		s.double(b)
	}
}

// alignedCube returns the smallest aligned cube containing b.
func alignedCube(b ibox.Box) (lo ibox.IntVect, depth int) {
	for ; ; depth++ {
		if depth > maxDepth {
			fault.Allocationf("treeset: box %v exceeds the index space", b)
		}
		side := 1 << uint(depth)
		ok := true
		for d := range b.Lo {
			if alignDown(b.Lo[d], side) != alignDown(b.Hi[d], side) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		for d := range b.Lo {
			lo[d] = alignDown(b.Lo[d], side)
		}
		return lo, depth
	}
}

// double doubles the side of the span. An aligned span stays aligned;
// otherwise the span extends toward b along each axis.
func (s *Set) double(b ibox.Box) {
	if s.depth >= maxDepth {
		fault.Allocationf("treeset: span %v cannot grow further", s.Span())
	}
	var (
		side    = s.side()
		aligned = s.aligned()
		lo      ibox.IntVect
		k       int
	)
	for d := range lo {
		switch {
		case aligned:
			lo[d] = alignDown(s.lo[d], 2*side)
		case b.Lo[d] < s.lo[d]:
			lo[d] = s.lo[d] - side
		default:
			lo[d] = s.lo[d]
		}
		if lo[d] != s.lo[d] {
			k |= 1 << uint(d)
		}
	}
	if s.root.kind != empty {
		root := s.root
		n := s.split(empty)
		s.a.nodes[n.kids+int32(k)] = root
		s.root = n
	}
	s.lo = lo
	s.depth++
}

// walk calls fn with the cube of every full leaf, in octant order.
func (s *Set) walk(n node, lo ibox.IntVect, side int, fn func(ibox.Box)) {
	switch n.kind {
	case full:
		fn(cube(lo, side))
	case inner:
		half := side / 2
		for k := 0; k < nkids; k++ {
			s.walk(s.a.nodes[n.kids+int32(k)], childLo(lo, half, k), half, fn)
		}
	}
}

// update recomputes the cached point count and bounding box.
func (s *Set) update() {
	s.npts = 0
	s.min = ibox.Empty
	s.walk(s.root, s.lo, s.side(), func(b ibox.Box) {
		s.npts += b.NumPts()
		s.min = ibox.MinBox(s.min, b)
	})
}

func (n node) String() string {
	if n.kind == inner {
		return fmt.Sprintf("inner@%d", n.kids)
	}
	return n.kind.String()
}

// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package ibox implements the integer geometry used throughout
// boxlayout: lattice points (IntVect), axis-aligned rectangles with a
// per-axis centering (Box), and problem domains with optional periodic
// directions (ProblemDomain).
//
// Box bounds are inclusive and stored in the box's own index space: a
// face-centered box derived from a cell box by SurroundingNodes has one
// more point along the face-centered axis. Boxes are values; all
// operations return new boxes.
package ibox

import (
	"encoding/binary"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/boxlayout/internal/fault"
)

// IndexType is the per-axis centering of a box. Bit d is set when the
// box is node (face) centered along axis d; a zero IndexType is cell
// centered on every axis.
type IndexType uint8

// Cell is the all-cell-centered index type.
const Cell IndexType = 0

// Node returns the index type that is node centered on every axis.
func Node() IndexType { return IndexType(1<<SpaceDim - 1) }

// Face returns the index type that is node centered on axis dir only.
func Face(dir int) IndexType { return IndexType(1 << uint(dir)) }

// TypeOf returns the index type whose node-centered axes are those
// where v is nonzero.
func TypeOf(v IntVect) IndexType {
	var t IndexType
	for d, x := range v {
		if x != 0 {
			t |= 1 << uint(d)
		}
	}
	return t
}

// IsNode reports whether t is node centered along axis dir.
func (t IndexType) IsNode(dir int) bool { return t&(1<<uint(dir)) != 0 }

// Vect returns t as a 0/1 vector.
func (t IndexType) Vect() IntVect {
	var v IntVect
	for d := range v {
		if t.IsNode(d) {
			v[d] = 1
		}
	}
	return v
}

// Side identifies the low or high side of a box along an axis.
type Side int

const (
	// Lo is the low side.
	Lo Side = iota
	// Hi is the high side.
	Hi
)

// Sides lists both sides in order.
var Sides = [2]Side{Lo, Hi}

// Sign returns -1 for Lo and +1 for Hi.
func (s Side) Sign() int {
	if s == Lo {
		return -1
	}
	return 1
}

// Flip returns the opposite side.
func (s Side) Flip() Side { return 1 - s }

func (s Side) String() string {
	switch s {
	case Lo:
		return "lo"
	case Hi:
		return "hi"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// A Box is an axis-aligned rectangle of lattice points with inclusive
// bounds Lo and Hi and centering Type. A box is empty when Hi < Lo on
// any axis.
type Box struct {
	Lo, Hi IntVect
	Type   IndexType
}

// Empty is the canonical empty cell-centered box.
var Empty = Box{Lo: Zero, Hi: Uniform(-1)}

// New returns the cell-centered box [lo, hi].
func New(lo, hi IntVect) Box {
	return Box{Lo: lo, Hi: hi}
}

// NewTyped returns the box [lo, hi] with index type t.
func NewTyped(lo, hi IntVect, t IndexType) Box {
	return Box{Lo: lo, Hi: hi, Type: t}
}

// Point returns the single-point cell-centered box at iv.
func Point(iv IntVect) Box {
	return Box{Lo: iv, Hi: iv}
}

func emptyOf(t IndexType) Box {
	b := Empty
	b.Type = t
	return b
}

// IsEmpty reports whether b contains no points.
func (b Box) IsEmpty() bool {
	for d := range b.Lo {
		if b.Hi[d] < b.Lo[d] {
			return true
		}
	}
	return false
}

// Size returns the number of points along each axis.
func (b Box) Size() IntVect {
	if b.IsEmpty() {
		return Zero
	}
	return b.Hi.Sub(b.Lo).Add(Unit())
}

// NumPts returns the number of points in b.
func (b Box) NumPts() int64 {
	if b.IsEmpty() {
		return 0
	}
	n := int64(1)
	for d := range b.Lo {
		n *= int64(b.Hi[d] - b.Lo[d] + 1)
	}
	return n
}

// Contains reports whether the point iv lies in b.
func (b Box) Contains(iv IntVect) bool {
	for d := range iv {
		if iv[d] < b.Lo[d] || iv[d] > b.Hi[d] {
			return false
		}
	}
	return true
}

// ContainsBox reports whether every point of c lies in b. The empty
// box is contained in every box.
func (b Box) ContainsBox(c Box) bool {
	if c.IsEmpty() {
		return true
	}
	return b.Lo.AllLE(c.Lo) && c.Hi.AllLE(b.Hi)
}

// Intersects reports whether b and c share a point.
func (b Box) Intersects(c Box) bool {
	return !b.Intersect(c).IsEmpty()
}

// Intersect returns the points common to b and c. Both boxes must have
// the same index type.
func (b Box) Intersect(c Box) Box {
	if b.Type != c.Type {
		fault.Argumentf("ibox.Intersect: index type mismatch: %v, %v", b, c)
	}
	r := Box{Lo: b.Lo.Max(c.Lo), Hi: b.Hi.Min(c.Hi), Type: b.Type}
	if r.IsEmpty() {
		return emptyOf(b.Type)
	}
	return r
}

// MinBox returns the smallest box containing both b and c. Empty boxes
// are ignored.
func MinBox(b, c Box) Box {
	switch {
	case b.IsEmpty():
		return c
	case c.IsEmpty():
		return b
	}
	return Box{Lo: b.Lo.Min(c.Lo), Hi: b.Hi.Max(c.Hi), Type: b.Type}
}

// Grow returns b grown by n points on every side. Negative n shrinks.
func (b Box) Grow(n int) Box { return b.GrowVect(Uniform(n)) }

// GrowVect returns b grown by v[d] points on both sides of axis d.
func (b Box) GrowVect(v IntVect) Box {
	if b.IsEmpty() {
		return b
	}
	b.Lo = b.Lo.Sub(v)
	b.Hi = b.Hi.Add(v)
	return b
}

// GrowDir returns b grown by n points on both sides of axis dir.
func (b Box) GrowDir(dir, n int) Box {
	if b.IsEmpty() {
		return b
	}
	b.Lo[dir] -= n
	b.Hi[dir] += n
	return b
}

// GrowLo returns b grown by n points on the low side of axis dir.
func (b Box) GrowLo(dir, n int) Box {
	if b.IsEmpty() {
		return b
	}
	b.Lo[dir] -= n
	return b
}

// GrowHi returns b grown by n points on the high side of axis dir.
func (b Box) GrowHi(dir, n int) Box {
	if b.IsEmpty() {
		return b
	}
	b.Hi[dir] += n
	return b
}

// GrowSide returns b grown by n points on the given side of axis dir.
func (b Box) GrowSide(dir, n int, side Side) Box {
	if side == Lo {
		return b.GrowLo(dir, n)
	}
	return b.GrowHi(dir, n)
}

// Shift returns b translated by v.
func (b Box) Shift(v IntVect) Box {
	b.Lo = b.Lo.Add(v)
	b.Hi = b.Hi.Add(v)
	return b
}

// ShiftDir returns b translated by n along axis dir.
func (b Box) ShiftDir(dir, n int) Box {
	b.Lo[dir] += n
	b.Hi[dir] += n
	return b
}

// AdjCell returns the len-thick box of points just outside b on the
// given side of axis dir. The result keeps b's index type.
func (b Box) AdjCell(dir int, side Side, len int) Box {
	if len <= 0 {
		fault.Argumentf("ibox.AdjCell: nonpositive length %d", len)
	}
	r := b
	if side == Lo {
		r.Hi[dir] = b.Lo[dir] - 1
		r.Lo[dir] = b.Lo[dir] - len
	} else {
		r.Lo[dir] = b.Hi[dir] + 1
		r.Hi[dir] = b.Hi[dir] + len
	}
	return r
}

// SurroundingNodes converts b to node centering on every axis.
func (b Box) SurroundingNodes() Box {
	for d := 0; d < SpaceDim; d++ {
		b = b.SurroundingNodesDir(d)
	}
	return b
}

// SurroundingNodesDir converts b to node centering along axis dir. A
// cell-centered axis gains one point on its high side.
func (b Box) SurroundingNodesDir(dir int) Box {
	if b.Type.IsNode(dir) {
		return b
	}
	b.Type |= Face(dir)
	if !b.IsEmpty() {
		b.Hi[dir]++
	}
	return b
}

// EnclosedCells converts b to cell centering on every axis.
func (b Box) EnclosedCells() Box {
	for d := 0; d < SpaceDim; d++ {
		b = b.EnclosedCellsDir(d)
	}
	return b
}

// EnclosedCellsDir converts b to cell centering along axis dir. A
// node-centered axis loses one point on its high side.
func (b Box) EnclosedCellsDir(dir int) Box {
	if !b.Type.IsNode(dir) {
		return b
	}
	b.Type &^= Face(dir)
	if !b.IsEmpty() {
		b.Hi[dir]--
	}
	return b
}

// Convert converts b to index type t.
func (b Box) Convert(t IndexType) Box {
	for d := 0; d < SpaceDim; d++ {
		if t.IsNode(d) {
			b = b.SurroundingNodesDir(d)
		} else {
			b = b.EnclosedCellsDir(d)
		}
	}
	return b
}

// Coarsen returns b coarsened by the uniform ratio r.
func (b Box) Coarsen(r int) Box { return b.CoarsenVect(Uniform(r)) }

// CoarsenVect returns b coarsened by the per-axis ratio r. The low
// corner rounds down; on node-centered axes the high corner rounds up
// so that the coarse box still covers every fine node.
func (b Box) CoarsenVect(r IntVect) Box {
	checkRatio("Coarsen", r)
	if b.IsEmpty() {
		return b
	}
	for d := range r {
		lo, hi := b.Lo[d], b.Hi[d]
		b.Lo[d] = FloorDiv(lo, r[d])
		b.Hi[d] = FloorDiv(hi, r[d])
		if b.Type.IsNode(d) && hi%r[d] != 0 {
			b.Hi[d]++
		}
	}
	return b
}

// Refine returns b refined by the uniform ratio r.
func (b Box) Refine(r int) Box { return b.RefineVect(Uniform(r)) }

// RefineVect returns b refined by the per-axis ratio r. Cell-centered
// axes cover the r fine cells of every coarse cell; node-centered axes
// map node i to node i*r.
func (b Box) RefineVect(r IntVect) Box {
	checkRatio("Refine", r)
	if b.IsEmpty() {
		return b
	}
	for d := range r {
		b.Lo[d] *= r[d]
		if b.Type.IsNode(d) {
			b.Hi[d] *= r[d]
		} else {
			b.Hi[d] = (b.Hi[d]+1)*r[d] - 1
		}
	}
	return b
}

// Coarsenable reports whether coarsening b by r and refining it back
// recovers b exactly.
func (b Box) Coarsenable(r IntVect) bool {
	return b.CoarsenVect(r).RefineVect(r) == b
}

// Less orders boxes lexicographically by low corner, then high corner,
// then index type.
func (b Box) Less(c Box) bool {
	if b.Lo != c.Lo {
		return b.Lo.LexLess(c.Lo)
	}
	if b.Hi != c.Hi {
		return b.Hi.LexLess(c.Hi)
	}
	return b.Type < c.Type
}

// String formats b as ((lo) (hi) (type)).
func (b Box) String() string {
	return fmt.Sprintf("(%v %v %v)", b.Lo, b.Hi, b.Type.Vect())
}

func checkRatio(op string, r IntVect) {
	for _, x := range r {
		if x <= 0 {
			fault.Argumentf("ibox.%s: nonpositive ratio %v", op, r)
		}
	}
}

// BoxLinearSize is the number of bytes in a linearized Box.
const BoxLinearSize = 2*SpaceDim*8 + 1

// LinearSize implements linear.Linearizer.
func (b Box) LinearSize() int { return BoxLinearSize }

// LinearOut implements linear.Linearizer.
func (b Box) LinearOut(p []byte) {
	for d := 0; d < SpaceDim; d++ {
		binary.LittleEndian.PutUint64(p[8*d:], uint64(int64(b.Lo[d])))
		binary.LittleEndian.PutUint64(p[8*(SpaceDim+d):], uint64(int64(b.Hi[d])))
	}
	p[2*SpaceDim*8] = byte(b.Type)
}

// LinearIn implements linear.Unlinearizer.
func (b *Box) LinearIn(p []byte) error {
	if len(p) < BoxLinearSize {
		return errors.E(errors.Integrity, fmt.Sprintf("ibox: short box buffer: %d bytes", len(p)))
	}
	for d := 0; d < SpaceDim; d++ {
		b.Lo[d] = int(int64(binary.LittleEndian.Uint64(p[8*d:])))
		b.Hi[d] = int(int64(binary.LittleEndian.Uint64(p[8*(SpaceDim+d):])))
	}
	b.Type = IndexType(p[2*SpaceDim*8])
	return nil
}

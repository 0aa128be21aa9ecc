// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package treeset

import (
	"sort"

	"github.com/grailbio/boxlayout/ibox"
)

// Boxes returns disjoint cell-centered boxes whose union is the set. A
// set that fills its bounding box is returned as that single box.
// Otherwise the boxes of each subtree are merged wherever two of them
// abut with identical cross sections.
func (s *Set) Boxes() []ibox.Box {
	if s.IsEmpty() {
		return nil
	}
	if s.root.kind == full || s.npts == s.min.NumPts() {
		return []ibox.Box{s.min}
	}
	return s.boxes(s.root, s.lo, s.side())
}

// IsPacked reports whether the set is exactly its bounding box.
func (s *Set) IsPacked() bool {
	return !s.IsEmpty() && s.npts == s.min.NumPts()
}

func (s *Set) boxes(n node, lo ibox.IntVect, side int) []ibox.Box {
	switch n.kind {
	case empty:
		return nil
	case full:
		return []ibox.Box{cube(lo, side)}
	}
	var boxes []ibox.Box
	half := side / 2
	for k := 0; k < nkids; k++ {
		boxes = append(boxes, s.boxes(s.a.nodes[n.kids+int32(k)], childLo(lo, half, k), half)...)
	}
	return mergeBoxes(boxes)
}

// mergeBoxes repeatedly joins pairs of boxes that abut along an axis
// and agree on every other axis.
func mergeBoxes(boxes []ibox.Box) []ibox.Box {
	for merged := true; merged && len(boxes) > 1; {
		merged = false
		for dir := 0; dir < ibox.SpaceDim; dir++ {
			var ok bool
			boxes, ok = mergeDir(boxes, dir)
			merged = merged || ok
		}
	}
	return boxes
}

func mergeDir(boxes []ibox.Box, dir int) ([]ibox.Box, bool) {
	if len(boxes) < 2 {
		return boxes, false
	}
	sort.Slice(boxes, func(i, j int) bool {
		return lessAcross(boxes[i], boxes[j], dir)
	})
	var (
		out    = boxes[:1]
		merged bool
	)
	for _, b := range boxes[1:] {
		last := &out[len(out)-1]
		if sameAcross(*last, b, dir) && last.Hi[dir]+1 == b.Lo[dir] {
			last.Hi[dir] = b.Hi[dir]
			merged = true
			continue
		}
		out = append(out, b)
	}
	return out, merged
}

// lessAcross orders boxes by their extents on the axes other than dir,
// then by their low corner along dir.
func lessAcross(a, b ibox.Box, dir int) bool {
	for d := 0; d < ibox.SpaceDim; d++ {
		if d == dir {
			continue
		}
		if a.Lo[d] != b.Lo[d] {
			return a.Lo[d] < b.Lo[d]
		}
		if a.Hi[d] != b.Hi[d] {
			return a.Hi[d] < b.Hi[d]
		}
	}
	return a.Lo[dir] < b.Lo[dir]
}

func sameAcross(a, b ibox.Box, dir int) bool {
	for d := 0; d < ibox.SpaceDim; d++ {
		if d != dir && (a.Lo[d] != b.Lo[d] || a.Hi[d] != b.Hi[d]) {
			return false
		}
	}
	return true
}

// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package boxlayout

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/grailbio/boxlayout/ibox"
	"github.com/grailbio/boxlayout/internal/fault"
)

// An Entry is a box together with the rank of the process that owns
// it.
type Entry struct {
	Box  ibox.Box
	Proc int
}

func (e Entry) String() string {
	return fmt.Sprintf("%v:%d", e.Box, e.Proc)
}

// entryLess orders entries by box, then by owner.
func entryLess(e, f Entry) bool {
	if e.Box != f.Box {
		return e.Box.Less(f.Box)
	}
	return e.Proc < f.Proc
}

// A Builder assembles the table of a Layout. A Builder is defined at
// most once and closed at most once; closing it yields the Layout.
type Builder struct {
	proc    Proc
	entries []Entry
	defined bool
	closed  bool
}

// NewBuilder returns an open, undefined builder for a layout seen from
// process p. A nil p is the single-process Serial.
func NewBuilder(p Proc) *Builder {
	if p == nil {
		p = Serial
	}
	return &Builder{proc: p}
}

// Define sets the builder's boxes and their owners. In a group of more
// than one process, procs must have one rank per box; with a single
// process every box is owned by rank 0 and procs may be nil.
func (b *Builder) Define(boxes []ibox.Box, procs []int) {
	if b.closed {
		fault.Definitionf("boxlayout: define on a closed layout")
	}
	if b.defined {
		fault.Definitionf("boxlayout: layout is already defined")
	}
	parallel := b.proc.Size() > 1
	if parallel && len(boxes) != len(procs) {
		fault.Argumentf("boxlayout: %d boxes but %d processor assignments", len(boxes), len(procs))
	}
	for i, p := range procs {
		if p < 0 {
			fault.Argumentf("boxlayout: negative processor assignment %d for box %d", p, i)
		}
	}
	b.entries = make([]Entry, len(boxes))
	for i, box := range boxes {
		b.entries[i].Box = box
		if parallel {
			b.entries[i].Proc = procs[i]
		}
	}
	b.defined = true
}

// Reset discards the builder's definition so that it may be defined
// again.
func (b *Builder) Reset() {
	if b.closed {
		fault.Definitionf("boxlayout: reset of a closed layout")
	}
	b.entries = nil
	b.defined = false
}

// Len returns the number of entries defined so far.
func (b *Builder) Len() int { return len(b.entries) }

// Close sorts the entries by box, then by owner, and returns the
// resulting Layout. The sort is stable.
func (b *Builder) Close() *Layout {
	b.checkOpen()
	sort.SliceStable(b.entries, func(i, j int) bool {
		return entryLess(b.entries[i], b.entries[j])
	})
	return b.close(true)
}

// CloseNoSort returns the Layout of the entries in their defined
// order.
func (b *Builder) CloseNoSort() *Layout {
	b.checkOpen()
	return b.close(false)
}

func (b *Builder) checkOpen() {
	if b.closed {
		fault.Definitionf("boxlayout: layout is already closed")
	}
}

func (b *Builder) close(sorted bool) *Layout {
	b.closed = true
	return newLayout(b.proc, b.entries, sorted)
}

// Define returns the sorted Layout of the given boxes and owners, seen
// from process p.
func Define(p Proc, boxes []ibox.Box, procs []int) *Layout {
	b := NewBuilder(p)
	b.Define(boxes, procs)
	return b.Close()
}

// A Layout is a closed, immutable table of boxes and their owners.
// Layouts are safe for concurrent use.
type Layout struct {
	proc    Proc
	entries []Entry
	sorted  bool
	// local holds the global positions of the entries owned by proc,
	// in table order; an entry's local slot is its position in local.
	local []int

	nbrOnce sync.Once
	nbr     *bucketIndex
}

func newLayout(p Proc, entries []Entry, sorted bool) *Layout {
	l := &Layout{proc: p, entries: entries, sorted: sorted}
	rank := p.Rank()
	for i, e := range entries {
		if e.Proc == rank {
			l.local = append(l.local, i)
		}
	}
	return l
}

// Process returns the process from which the layout is seen.
func (l *Layout) Process() Proc { return l.proc }

// Size returns the number of boxes in the layout.
func (l *Layout) Size() int { return len(l.entries) }

// Box returns the box at global position i.
func (l *Layout) Box(i int) ibox.Box { return l.entries[i].Box }

// Proc returns the rank that owns the box at global position i.
func (l *Layout) Proc(i int) int { return l.entries[i].Proc }

// Entry returns the entry at global position i.
func (l *Layout) Entry(i int) Entry { return l.entries[i] }

// NumBoxes returns the number of boxes owned by rank.
func (l *Layout) NumBoxes(rank int) int {
	var n int
	for _, e := range l.entries {
		if e.Proc == rank {
			n++
		}
	}
	return n
}

// NumLocal returns the number of boxes owned by the calling process.
func (l *Layout) NumLocal() int { return len(l.local) }

// NumCells returns the total number of points in the layout's boxes.
func (l *Layout) NumCells() int64 {
	var n int64
	for _, e := range l.entries {
		n += e.Box.NumPts()
	}
	return n
}

// Boxes returns the layout's boxes in table order.
func (l *Layout) Boxes() []ibox.Box {
	boxes := make([]ibox.Box, len(l.entries))
	for i, e := range l.entries {
		boxes[i] = e.Box
	}
	return boxes
}

// Procs returns the owner of each box in table order.
func (l *Layout) Procs() []int {
	procs := make([]int, len(l.entries))
	for i, e := range l.entries {
		procs[i] = e.Proc
	}
	return procs
}

// Sorted reports whether the layout was closed with Close, which sorts
// its entries.
func (l *Layout) Sorted() bool { return l.sorted }

// Index returns the data index of the box at global position i, and
// whether the calling process owns it.
func (l *Layout) Index(i int) (DataIndex, bool) {
	j := sort.SearchInts(l.local, i)
	if j < len(l.local) && l.local[j] == i {
		return DataIndex{Global: i, Local: j}, true
	}
	return DataIndex{Global: i, Local: -1}, false
}

// SameBoxes reports whether l and m hold the same boxes in the same
// order, regardless of ownership.
func (l *Layout) SameBoxes(m *Layout) bool {
	if len(l.entries) != len(m.entries) {
		return false
	}
	for i := range l.entries {
		if l.entries[i].Box != m.entries[i].Box {
			return false
		}
	}
	return true
}

// Coarsenable reports whether every box survives coarsening by r
// followed by refinement by r unchanged.
func (l *Layout) Coarsenable(r int) bool {
	ratio := ibox.Uniform(r)
	for _, e := range l.entries {
		if !e.Box.Coarsenable(ratio) {
			return false
		}
	}
	return true
}

func (l *Layout) String() string {
	var b strings.Builder
	b.WriteString("[")
	for i, e := range l.entries {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(e.String())
	}
	b.WriteString("]")
	return b.String()
}

// Builder returns an open builder defined with a copy of the layout's
// entries.
func (l *Layout) Builder() *Builder {
	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	return &Builder{proc: l.proc, entries: entries, defined: true}
}

// transform returns the layout whose boxes are fn applied to l's,
// keeping order and ownership.
func (l *Layout) transform(fn func(ibox.Box) ibox.Box) *Layout {
	entries := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		entries[i] = Entry{Box: fn(e.Box), Proc: e.Proc}
	}
	return newLayout(l.proc, entries, false)
}

// Coarsen returns the layout with every box coarsened by r.
func (l *Layout) Coarsen(r int) *Layout { return l.CoarsenVect(ibox.Uniform(r)) }

// CoarsenVect returns the layout with every box coarsened by the
// per-axis ratio r.
func (l *Layout) CoarsenVect(r ibox.IntVect) *Layout {
	return l.transform(func(b ibox.Box) ibox.Box { return b.CoarsenVect(r) })
}

// Refine returns the layout with every box refined by r.
func (l *Layout) Refine(r int) *Layout { return l.RefineVect(ibox.Uniform(r)) }

// RefineVect returns the layout with every box refined by the per-axis
// ratio r.
func (l *Layout) RefineVect(r ibox.IntVect) *Layout {
	return l.transform(func(b ibox.Box) ibox.Box { return b.RefineVect(r) })
}

// Grow returns the layout with every box grown by n on every side.
func (l *Layout) Grow(n int) *Layout {
	return l.transform(func(b ibox.Box) ibox.Box { return b.Grow(n) })
}

// GrowDir returns the layout with every box grown by n on both sides
// of axis dir.
func (l *Layout) GrowDir(dir, n int) *Layout {
	return l.transform(func(b ibox.Box) ibox.Box { return b.GrowDir(dir, n) })
}

// GrowSide returns the layout with every box grown by n on one side of
// axis dir.
func (l *Layout) GrowSide(dir, n int, side ibox.Side) *Layout {
	return l.transform(func(b ibox.Box) ibox.Box { return b.GrowSide(dir, n, side) })
}

// AdjCellSide returns the layout of the n-thick slabs just outside each
// box on one side of axis dir.
func (l *Layout) AdjCellSide(dir, n int, side ibox.Side) *Layout {
	return l.transform(func(b ibox.Box) ibox.Box { return b.AdjCell(dir, side, n) })
}

// SurroundingNodes returns the node-centered layout of the nodes
// surrounding each box.
func (l *Layout) SurroundingNodes() *Layout {
	return l.transform(ibox.Box.SurroundingNodes)
}

// EnclosedCells returns the cell-centered layout of the cells enclosed
// by each box.
func (l *Layout) EnclosedCells() *Layout {
	return l.transform(ibox.Box.EnclosedCells)
}

// Intersect returns the layout with every box intersected with b.
// Boxes that miss b become empty but keep their place.
func (l *Layout) Intersect(b ibox.Box) *Layout {
	return l.transform(func(c ibox.Box) ibox.Box { return c.Intersect(b) })
}

// IntersectDomain returns the layout with every box clipped to the
// domain along its non-periodic axes.
func (l *Layout) IntersectDomain(d ibox.ProblemDomain) *Layout {
	return l.transform(d.Clip)
}

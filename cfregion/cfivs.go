// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package cfregion computes, for every box of a layout, the ghost
// points just outside each face of the box that no other box of the
// layout covers. These are the points where a box meets a coarser
// level (coarse-fine interfaces) rather than a sibling at its own
// level. Physical boundaries of the problem domain are excluded;
// periodic boundaries are resolved through the periodic images of the
// layout.
package cfregion

import (
	"github.com/grailbio/boxlayout"
	"github.com/grailbio/boxlayout/ibox"
	"github.com/grailbio/boxlayout/internal/fault"
	"github.com/grailbio/boxlayout/metrics"
	"github.com/grailbio/boxlayout/treeset"
)

var (
	// PackedRegions counts the defined sets that are exactly a box,
	// including empty sets.
	PackedRegions = metrics.NewCounter("cfregion.packed")
	// SparseRegions counts the defined sets that are not a box.
	SparseRegions = metrics.NewCounter("cfregion.sparse")
)

// A CFIVS is a set of coarse-fine ghost points. When the set is
// exactly a box it is also kept in packed form, which callers may use
// as a fast path.
type CFIVS struct {
	set     *treeset.Set
	typ     ibox.IndexType
	box     ibox.Box
	scope   *metrics.Scope
	queried bool

	packed, empty, defined bool
}

// Define sets c to the provided set of points of index type typ. The
// set is owned by c afterwards; it may be c's current set. The outcome
// is counted in scope, which may be nil.
func (c *CFIVS) Define(set *treeset.Set, typ ibox.IndexType, scope *metrics.Scope) {
	if set == c.set {
		// Keep the set alive through clear.
		c.set = nil
	}
	c.clear()
	c.set, c.typ, c.scope = set, typ, scope
	c.pack()
}

// DefineGeneral sets c to the points of ghost that lie inside the
// domain, along its non-periodic axes, and that no box of grids or of
// its periodic images covers. The boxes of grids are converted to the
// index type of ghost. The box at di is subtracted like any other. The
// outcome is counted in scope, which may be nil.
func (c *CFIVS) DefineGeneral(di boxlayout.DataIndex, grids *boxlayout.Layout, domain ibox.ProblemDomain, ghost ibox.Box, scope *metrics.Scope) {
	if di.Global < 0 || di.Global >= grids.Size() {
		fault.Argumentf("cfregion: data index %v out of range [0, %d)", di, grids.Size())
	}
	ghost = domain.Clip(ghost)
	set := treeset.New(ghost)
	if !set.IsEmpty() {
		shifts := append([]ibox.IntVect{ibox.Zero}, domain.PeriodicShifts()...)
		for _, s := range shifts {
			// A box b covers part of ghost through the image b+s
			// exactly when b meets ghost-s. Converted boxes reach one
			// point further on node axes, hence the margin.
			query := ghost.Shift(s.Scale(-1)).Grow(1)
			for _, j := range grids.Intersecting(query) {
				set.SubBox(grids.Box(j).Convert(ghost.Type).Shift(s))
			}
			if set.IsEmpty() {
				break
			}
		}
	}
	c.Define(set, ghost.Type, scope)
}

// clear retracts the outcome of a previous definition from its scope
// and releases its set.
func (c *CFIVS) clear() {
	if !c.defined {
		return
	}
	c.count(-1)
	if c.set != nil {
		c.set.Release()
	}
	*c = CFIVS{}
}

func (c *CFIVS) pack() {
	c.defined = true
	c.empty = c.set.IsEmpty()
	c.packed = c.empty || c.set.IsPacked()
	c.box = c.set.MinBox()
	c.box.Type = c.typ
	c.count(1)
}

func (c *CFIVS) count(n int64) {
	if c.scope == nil {
		return
	}
	if c.packed {
		PackedRegions.Incr(c.scope, n)
	} else {
		SparseRegions.Incr(c.scope, n)
	}
}

// Coarsen coarsens the set by the per-axis ratio r. Coarsen may not be
// called once the packed box has been queried.
func (c *CFIVS) Coarsen(r ibox.IntVect) {
	c.checkDefined()
	if c.queried {
		fault.Invariantf("cfregion: coarsen after the packed box was queried")
	}
	c.count(-1)
	c.set.CoarsenVect(r)
	c.pack()
}

// PackedBox returns the set as a box. It is an invariant violation to
// call PackedBox on a set that is not packed.
func (c *CFIVS) PackedBox() ibox.Box {
	c.checkDefined()
	if !c.packed {
		fault.Invariantf("cfregion: packed box of a sparse set %v", c.set)
	}
	c.queried = true
	return c.box
}

// MinBox returns the smallest box that contains the set.
func (c *CFIVS) MinBox() ibox.Box { return c.box }

// IVS returns the set. It must not be modified.
func (c *CFIVS) IVS() *treeset.Set { return c.set }

// IsPacked reports whether the set is exactly a box.
func (c *CFIVS) IsPacked() bool {
	c.checkDefined()
	return c.packed
}

// IsEmpty reports whether the set is empty.
func (c *CFIVS) IsEmpty() bool {
	c.checkDefined()
	return c.empty
}

// IsDefined reports whether the set has been defined.
func (c *CFIVS) IsDefined() bool { return c.defined }

func (c *CFIVS) checkDefined() {
	if !c.defined {
		fault.Invariantf("cfregion: use of an undefined set")
	}
}

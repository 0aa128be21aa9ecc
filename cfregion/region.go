// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cfregion

import (
	"context"

	"github.com/grailbio/boxlayout"
	"github.com/grailbio/boxlayout/collective"
	"github.com/grailbio/boxlayout/ibox"
	"github.com/grailbio/boxlayout/internal/fault"
	"github.com/grailbio/boxlayout/metrics"
)

// A Region holds the coarse-fine sets of every box owned by the
// calling process, for each direction and side.
type Region struct {
	grids *boxlayout.Layout
	typ   ibox.IndexType
	// sets[dir][side] is indexed by local slot.
	sets  [ibox.SpaceDim][2][]CFIVS
	empty bool
}

// New computes the region of the boxes of grids owned by the calling
// process. Each set is the one-point-thick layer just outside a box
// face, converted to index type typ, less every box of grids (and of
// its periodic images under domain) and less everything outside the
// domain along its non-periodic axes. Set outcomes are counted in
// scope, which may be nil.
func New(grids *boxlayout.Layout, domain ibox.ProblemDomain, typ ibox.IndexType, scope *metrics.Scope) *Region {
	r := &Region{grids: grids, typ: typ, empty: true}
	n := grids.NumLocal()
	for dir := range r.sets {
		for _, side := range ibox.Sides {
			r.sets[dir][side] = make([]CFIVS, n)
		}
	}
	for it := grids.DataIterator(); it.Ok(); it.Next() {
		var (
			di = it.Index()
			b  = it.Box().Convert(typ)
		)
		for dir := range r.sets {
			for _, side := range ibox.Sides {
				c := &r.sets[dir][side][di.Local]
				c.DefineGeneral(di, grids, domain, b.AdjCell(dir, side, 1), scope)
				if !c.IsEmpty() {
					r.empty = false
				}
			}
		}
	}
	return r
}

// CFIVS returns the set outside the given side of the box at di along
// axis dir.
func (r *Region) CFIVS(di boxlayout.DataIndex, dir int, side ibox.Side) *CFIVS {
	if dir < 0 || dir >= ibox.SpaceDim {
		fault.Argumentf("cfregion: invalid direction %d", dir)
	}
	if di.Local < 0 || di.Local >= len(r.sets[dir][side]) {
		fault.Argumentf("cfregion: data index %v is not local", di)
	}
	return &r.sets[dir][side][di.Local]
}

// Lo returns the set below the box at di along axis dir.
func (r *Region) Lo(di boxlayout.DataIndex, dir int) *CFIVS { return r.CFIVS(di, dir, ibox.Lo) }

// Hi returns the set above the box at di along axis dir.
func (r *Region) Hi(di boxlayout.DataIndex, dir int) *CFIVS { return r.CFIVS(di, dir, ibox.Hi) }

// IsEmpty reports whether every set of the region is empty, that is,
// whether the calling process's boxes have no coarse-fine interface.
func (r *Region) IsEmpty() bool { return r.empty }

// AllEmpty reports whether the regions of every member of g are empty.
// Every member must call AllEmpty.
func (r *Region) AllEmpty(ctx context.Context, g *collective.Group) (bool, error) {
	var v int
	if !r.empty {
		v = 1
	}
	max, err := collective.AllreduceMax(ctx, g, v)
	if err != nil {
		return false, err
	}
	return max == 0, nil
}

// Coarsen coarsens every set of the region by the per-axis ratio ref.
// It is an invariant violation to coarsen a region after any packed
// box has been queried.
func (r *Region) Coarsen(ref ibox.IntVect) {
	for dir := range r.sets {
		for _, side := range ibox.Sides {
			for i := range r.sets[dir][side] {
				if r.sets[dir][side][i].queried {
					fault.Invariantf("cfregion: coarsen after a packed box was queried")
				}
			}
		}
	}
	r.empty = true
	for dir := range r.sets {
		for _, side := range ibox.Sides {
			for i := range r.sets[dir][side] {
				c := &r.sets[dir][side][i]
				c.Coarsen(ref)
				if !c.IsEmpty() {
					r.empty = false
				}
			}
		}
	}
	r.grids = r.grids.CoarsenVect(ref)
}

// Layout returns the layout the region was computed from, coarsened
// along with the region.
func (r *Region) Layout() *boxlayout.Layout { return r.grids }

// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"math"

	"github.com/grailbio/boxlayout"
	"github.com/grailbio/boxlayout/cfregion"
	"github.com/grailbio/boxlayout/collective"
	"github.com/grailbio/boxlayout/ibox"
	"github.com/grailbio/boxlayout/layoutio"
	"github.com/grailbio/boxlayout/metrics"
	"github.com/grailbio/boxlayout/treeset"
	"github.com/vmihailenco/msgpack/v5"
)

// A geometry describes a synthetic refined level: the cells of a
// periodic cubic domain that lie within a spherical shell, tagged in
// blocks and cut into boxes no larger than maxBox on a side.
type geometry struct {
	n      int
	block  int
	maxBox int
	radius float64
	width  float64
}

var levels = map[string]geometry{
	"small":  {n: 64, block: 4, maxBox: 16, radius: 20, width: 6},
	"medium": {n: 256, block: 8, maxBox: 32, radius: 80, width: 16},
	"large":  {n: 1024, block: 16, maxBox: 64, radius: 320, width: 48},
}

func init() {
	for name, geom := range levels {
		collective.Register("boxpart."+name, geom.partition)
	}
}

func (geom geometry) domain() ibox.ProblemDomain {
	return ibox.NewDomain(ibox.New(ibox.Zero, ibox.Uniform(geom.n-1)), 0)
}

// tags returns the set of blocks whose centers lie within the shell.
func (geom geometry) tags() *treeset.Set {
	var (
		s      = new(treeset.Set)
		nblock = geom.n / geom.block
		center = float64(geom.n) / 2
		lo     ibox.IntVect
	)
	for {
		var r2 float64
		for d := range lo {
			x := float64(lo[d]*geom.block) + float64(geom.block)/2 - center
			r2 += x * x
		}
		if r := math.Sqrt(r2); math.Abs(r-geom.radius) <= geom.width/2 {
			b := ibox.New(lo, lo).Refine(geom.block)
			s.OrBox(b)
		}
		d := 0
		for ; d < ibox.SpaceDim; d++ {
			lo[d]++
			if lo[d] < nblock {
				break
			}
			lo[d] = 0
		}
		if d == ibox.SpaceDim {
			return s
		}
	}
}

// boxes decomposes the tagged set into boxes no larger than maxBox on
// a side.
func (geom geometry) boxes() []ibox.Box {
	tags := geom.tags()
	defer tags.Release()
	var boxes []ibox.Box
	for _, b := range tags.Boxes() {
		boxes = append(boxes, split(b, geom.maxBox)...)
	}
	return boxes
}

// split cuts b into boxes no larger than max on a side.
func split(b ibox.Box, max int) []ibox.Box {
	boxes := []ibox.Box{b}
	for d := 0; d < ibox.SpaceDim; d++ {
		var next []ibox.Box
		for _, c := range boxes {
			for lo := c.Lo[d]; lo <= c.Hi[d]; lo += max {
				piece := c
				piece.Lo[d] = lo
				if hi := lo + max - 1; hi < c.Hi[d] {
					piece.Hi[d] = hi
				}
				next = append(next, piece)
			}
		}
		boxes = next
	}
	return boxes
}

// A report summarizes one process's share of a partitioned level.
type report struct {
	Rank     int              `msgpack:"rank"`
	Boxes    int              `msgpack:"boxes"`
	Cells    int64            `msgpack:"cells"`
	CFCells  int64            `msgpack:"cfcells"`
	AllEmpty bool             `msgpack:"allempty"`
	Metrics  map[string]int64 `msgpack:"metrics"`
	Stats    map[string]int64 `msgpack:"stats"`
	// Layout is the layoutio snapshot of the partitioned level; it is
	// set only by rank 0.
	Layout []byte `msgpack:"layout,omitempty"`
}

// partition partitions the level across the group, computes its
// coarse-fine region, and reports this process's share.
func (geom geometry) partition(ctx context.Context, g *collective.Group) ([]byte, error) {
	l, err := boxlayout.Partition(ctx, g, geom.boxes())
	if err != nil {
		return nil, err
	}
	if err := boxlayout.Verify(ctx, g, l); err != nil {
		return nil, err
	}
	var scope metrics.Scope
	region := cfregion.New(l, geom.domain(), ibox.Cell, &scope)
	rep := report{Rank: g.Rank(), Boxes: l.NumLocal()}
	for it := l.DataIterator(); it.Ok(); it.Next() {
		rep.Cells += it.Box().NumPts()
		for dir := 0; dir < ibox.SpaceDim; dir++ {
			for _, side := range []ibox.Side{ibox.Lo, ibox.Hi} {
				rep.CFCells += region.CFIVS(it.Index(), dir, side).IVS().NumPts()
			}
		}
	}
	if rep.AllEmpty, err = region.AllEmpty(ctx, g); err != nil {
		return nil, err
	}
	rep.Metrics = scope.Values()
	rep.Stats = g.Stats()
	if g.Rank() == 0 {
		var buf bytes.Buffer
		if err := layoutio.WriteLayout(&buf, l); err != nil {
			return nil, err
		}
		rep.Layout = buf.Bytes()
	}
	return msgpack.Marshal(&rep)
}

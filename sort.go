// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package boxlayout

import (
	"context"
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/boxlayout/collective"
	"github.com/grailbio/boxlayout/ibox"
	"github.com/grailbio/boxlayout/internal/fault"
	"github.com/grailbio/boxlayout/linear"
)

// MortonThreshold is the number of boxes below which MortonOrder sorts
// serially instead of dividing the work across the group. A context
// made by WithMortonThreshold overrides it.
var MortonThreshold = 2000

const mortonThresholdParam = "boxlayout.morton-threshold"

// WithMortonThreshold returns a context under which MortonOrder uses
// threshold n in place of MortonThreshold. The setting is carried to
// every member of collective runs started with the context.
func WithMortonThreshold(ctx context.Context, n int) context.Context {
	if n <= 0 {
		fault.Argumentf("boxlayout.WithMortonThreshold: threshold %d <= 0", n)
	}
	return collective.WithParam(ctx, mortonThresholdParam, n)
}

// MortonThresholdFrom returns the Morton ordering threshold in effect
// under ctx.
func MortonThresholdFrom(ctx context.Context) int {
	if n, ok := collective.ParamsFrom(ctx)[mortonThresholdParam]; ok {
		return n
	}
	return MortonThreshold
}

// MaxBits returns the number of bits needed to represent the largest
// absolute low-corner coordinate of boxes. It is at least 1.
func MaxBits(boxes []ibox.Box) int {
	var max int
	for _, b := range boxes {
		if m := b.Lo.MaxAbs(); m > max {
			max = m
		}
	}
	bits := 1
	for max>>uint(bits) > 0 {
		bits++
	}
	return bits
}

// mortonLess compares the low corners of a and b along the Morton
// curve: bit levels from bits down to 0, and at each level the highest
// axis first. Coordinates are shifted arithmetically, so negative
// coordinates order below positive ones. Boxes with equal low corners
// are ordered by Box.Less, which makes the order total.
//
// Any bits of at least MaxBits of both boxes yields the same order: the
// levels above MaxBits reduce every coordinate to 0 or -1.
func mortonLess(a, b ibox.Box, bits int) bool {
	for i := bits; i >= 0; i-- {
		for d := ibox.SpaceDim - 1; d >= 0; d-- {
			x, y := a.Lo[d]>>uint(i), b.Lo[d]>>uint(i)
			if x != y {
				return x < y
			}
		}
	}
	return a.Less(b)
}

// SortMorton sorts boxes along the Morton curve.
func SortMorton(boxes []ibox.Box) {
	sortMorton(boxes, MaxBits(boxes))
}

func sortMorton(boxes []ibox.Box, bits int) {
	sort.SliceStable(boxes, func(i, j int) bool {
		return mortonLess(boxes[i], boxes[j], bits)
	})
}

// MortonOrder sorts boxes along the Morton curve, dividing the work
// across the members of g. Every member must call MortonOrder with the
// same boxes; on return every member holds the sorted list. The result
// is the same as SortMorton's for any group size.
//
// Lists shorter than MortonThresholdFrom(ctx) are sorted serially. Otherwise the
// group is split by rank parity: even ranks sort the lower half of the
// list and odd ranks the upper half, recursively. Each rank then
// exchanges its half with a partner of the other parity and merges.
// In a group of odd size the last rank, which is even, exchanges with
// its predecessor, which therefore exchanges twice.
func MortonOrder(ctx context.Context, g *collective.Group, boxes []ibox.Box) error {
	_, err := mortonOrder(ctx, g, boxes)
	return err
}

func mortonOrder(ctx context.Context, g *collective.Group, boxes []ibox.Box) (int, error) {
	if g.Size() <= 1 || len(boxes) < MortonThresholdFrom(ctx) {
		bits := MaxBits(boxes)
		sortMorton(boxes, bits)
		return bits, nil
	}
	var (
		rank, size = g.Rank(), g.Size()
		color      = rank % 2
		mid        = len(boxes) / 2
		lo, hi     = boxes[:mid], boxes[mid:]
	)
	log.Debug.Printf("boxlayout: %v: morton ordering %d boxes", g, len(boxes))
	sub := g.Split(func(r int) int { return r % 2 })
	mine := lo
	if color == 1 {
		mine = hi
	}
	bits, err := mortonOrder(ctx, sub, mine)
	if err != nil {
		return 0, err
	}
	if color == 0 {
		peer := rank + 1
		if size%2 != 0 && rank == size-1 {
			peer = rank - 1
		}
		err = exchange(ctx, g, peer, lo, hi)
	} else {
		err = exchange(ctx, g, rank-1, hi, lo)
		if err == nil && size%2 != 0 && rank == size-2 {
			err = exchange(ctx, g, rank+1, hi, lo)
		}
	}
	if err != nil {
		return 0, err
	}
	if bits, err = collective.AllreduceMax(ctx, g, bits); err != nil {
		return 0, err
	}
	mergeMorton(boxes, mid, bits)
	return bits, nil
}

// exchange sends the boxes of send to peer and replaces the boxes of
// recv with the peer's.
func exchange(ctx context.Context, g *collective.Group, peer int, send, recv []ibox.Box) error {
	p, err := g.SendRecv(ctx, peer, linear.MarshalSlice(send))
	if err != nil {
		return err
	}
	boxes, err := linear.SliceIn[ibox.Box](p)
	if err != nil {
		return err
	}
	if len(boxes) != len(recv) {
		return errors.E(errors.Integrity, fmt.Sprintf("boxlayout: rank %d sent %d boxes, expected %d", peer, len(boxes), len(recv)))
	}
	copy(recv, boxes)
	return nil
}

// mergeMorton merges the sorted runs boxes[:mid] and boxes[mid:]
// stably.
func mergeMorton(boxes []ibox.Box, mid, bits int) {
	var (
		out  = make([]ibox.Box, 0, len(boxes))
		i, j = 0, mid
	)
	for i < mid && j < len(boxes) {
		if mortonLess(boxes[j], boxes[i], bits) {
			out = append(out, boxes[j])
			j++
		} else {
			out = append(out, boxes[i])
			i++
		}
	}
	out = append(out, boxes[i:mid]...)
	out = append(out, boxes[j:]...)
	copy(boxes, out)
}

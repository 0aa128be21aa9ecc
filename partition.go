// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package boxlayout

import (
	"context"

	"github.com/grailbio/boxlayout/collective"
	"github.com/grailbio/boxlayout/ibox"
	"github.com/grailbio/boxlayout/internal/fault"
)

// LoadBalance assigns the boxes, in order, to nproc ranks in contiguous
// runs so that every rank holds about the same number of points. Each
// box goes to the rank whose share contains the box's midpoint in the
// running point count. Ranks are nondecreasing along the list.
func LoadBalance(boxes []ibox.Box, nproc int) []int {
	if nproc <= 0 {
		fault.Argumentf("boxlayout.LoadBalance: invalid process count %d", nproc)
	}
	var total int64
	for _, b := range boxes {
		total += b.NumPts()
	}
	var (
		procs = make([]int, len(boxes))
		acc   int64
		rank  int
	)
	for i, b := range boxes {
		n := b.NumPts()
		if total == 0 {
			rank = i * nproc / len(boxes)
		} else {
			// Doubled to keep the midpoint integral.
			mid := 2*acc + n
			for rank < nproc-1 && mid*int64(nproc) >= 2*total*int64(rank+1) {
				rank++
			}
		}
		procs[i] = rank
		acc += n
	}
	return procs
}

// Partition orders boxes along the Morton curve, balances them across
// the members of g and returns the closed layout seen from g. Every
// member must call Partition with the same boxes. The boxes argument
// is not modified.
func Partition(ctx context.Context, g *collective.Group, boxes []ibox.Box) (*Layout, error) {
	sorted := make([]ibox.Box, len(boxes))
	copy(sorted, boxes)
	if err := MortonOrder(ctx, g, sorted); err != nil {
		return nil, err
	}
	b := NewBuilder(g)
	b.Define(sorted, LoadBalance(sorted, g.Size()))
	return b.Close(), nil
}

// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package boxlayout

import (
	"sort"

	"github.com/grailbio/boxlayout/ibox"
)

// Intersecting returns, in increasing order, the global positions of
// the boxes that share a point with b. Boxes are compared as lattice
// rectangles; index types are not checked. The first call builds a
// bucket index over the layout.
func (l *Layout) Intersecting(b ibox.Box) []int {
	if b.IsEmpty() {
		return nil
	}
	l.nbrOnce.Do(func() { l.nbr = newBucketIndex(l.entries) })
	return l.nbr.query(l.entries, b)
}

// A bucketIndex hashes boxes into a uniform grid of buckets at least
// as wide as the largest box, so that each box lands in at most 2^d
// buckets.
type bucketIndex struct {
	size    ibox.IntVect
	buckets map[ibox.IntVect][]int
}

func newBucketIndex(entries []Entry) *bucketIndex {
	x := &bucketIndex{
		size:    ibox.Unit(),
		buckets: make(map[ibox.IntVect][]int),
	}
	for _, e := range entries {
		x.size = x.size.Max(e.Box.Size())
	}
	for i, e := range entries {
		if e.Box.IsEmpty() {
			continue
		}
		forEach(x.keys(e.Box), func(k ibox.IntVect) {
			x.buckets[k] = append(x.buckets[k], i)
		})
	}
	return x
}

// keys returns the box of bucket keys that b touches.
func (x *bucketIndex) keys(b ibox.Box) ibox.Box {
	return ibox.New(b.Lo.Coarsen(x.size), b.Hi.Coarsen(x.size))
}

func (x *bucketIndex) query(entries []Entry, b ibox.Box) []int {
	var (
		keys = x.keys(b)
		hits []int
	)
	if keys.NumPts() > int64(len(entries)) {
		for i, e := range entries {
			if overlaps(e.Box, b) {
				hits = append(hits, i)
			}
		}
		return hits
	}
	forEach(keys, func(k ibox.IntVect) {
		for _, i := range x.buckets[k] {
			if overlaps(entries[i].Box, b) {
				hits = append(hits, i)
			}
		}
	})
	sort.Ints(hits)
	// A box that spans several buckets is found once per bucket.
	out := hits[:0]
	for i, h := range hits {
		if i == 0 || h != hits[i-1] {
			out = append(out, h)
		}
	}
	return out
}

func overlaps(a, b ibox.Box) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return false
	}
	for d := range a.Lo {
		if a.Hi[d] < b.Lo[d] || b.Hi[d] < a.Lo[d] {
			return false
		}
	}
	return true
}

// forEach calls fn for every point of b, axis 0 varying fastest.
func forEach(b ibox.Box, fn func(ibox.IntVect)) {
	if b.IsEmpty() {
		return
	}
	iv := b.Lo
	for {
		fn(iv)
		d := 0
		for ; d < ibox.SpaceDim; d++ {
			if iv[d] < b.Hi[d] {
				iv[d]++
				break
			}
			iv[d] = b.Lo[d]
		}
		if d == ibox.SpaceDim {
			return
		}
	}
}

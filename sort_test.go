// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package boxlayout

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"sort"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/boxlayout/collective"
	"github.com/grailbio/boxlayout/ibox"
)

func TestMaxBits(t *testing.T) {
	for _, c := range []struct {
		lo   int
		bits int
	}{
		{0, 1}, {1, 1}, {2, 2}, {5, 3}, {-8, 4}, {1023, 10}, {1024, 11},
	} {
		boxes := []ibox.Box{ibox.Point(ibox.Zero), ibox.Point(ibox.BasisV(0).Scale(c.lo))}
		if got, want := MaxBits(boxes), c.bits; got != want {
			t.Errorf("%d: got %v, want %v", c.lo, got, want)
		}
	}
}

// mortonKey interleaves the bits of a nonnegative point, axis 0 least
// significant at each level.
func mortonKey(iv ibox.IntVect, bits int) uint64 {
	var key uint64
	for i := 0; i < bits; i++ {
		for d := 0; d < ibox.SpaceDim; d++ {
			key |= uint64(iv[d]>>uint(i)&1) << uint(i*ibox.SpaceDim+d)
		}
	}
	return key
}

func TestSortMorton(t *testing.T) {
	var boxes []ibox.Box
	forEach(ibox.New(ibox.Zero, ibox.Uniform(7)), func(iv ibox.IntVect) {
		boxes = append(boxes, ibox.Point(iv))
	})
	r := rand.New(rand.NewSource(2))
	r.Shuffle(len(boxes), func(i, j int) { boxes[i], boxes[j] = boxes[j], boxes[i] })
	SortMorton(boxes)
	for i := 1; i < len(boxes); i++ {
		if a, b := mortonKey(boxes[i-1].Lo, 3), mortonKey(boxes[i].Lo, 3); a >= b {
			t.Fatalf("%v (key %d) sorted before %v (key %d)", boxes[i-1], a, boxes[i], b)
		}
	}
}

func TestSortMortonNegative(t *testing.T) {
	var (
		neg  = ibox.Point(ibox.Uniform(-1))
		zero = ibox.Point(ibox.Zero)
		pos  = ibox.Point(ibox.Uniform(3))
		// Boxes with equal low corners are ordered by their high
		// corners.
		big   = ibox.New(ibox.Zero, ibox.Uniform(4))
		boxes = []ibox.Box{pos, big, zero, neg}
	)
	SortMorton(boxes)
	if got, want := boxes, []ibox.Box{neg, zero, big, pos}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func randomBoxes(r *rand.Rand, n int) []ibox.Box {
	boxes := make([]ibox.Box, n)
	for i := range boxes {
		var lo, size ibox.IntVect
		for d := range lo {
			lo[d] = r.Intn(128) - 64
			size[d] = r.Intn(3)
		}
		boxes[i] = ibox.New(lo, lo.Add(size))
	}
	// Duplicates exercise the tie-break.
	return append(boxes, boxes[:n/10]...)
}

func TestMortonOrder(t *testing.T) {
	save := MortonThreshold
	MortonThreshold = 16
	defer func() { MortonThreshold = save }()

	boxes := randomBoxes(rand.New(rand.NewSource(3)), 500)
	want := make([]ibox.Box, len(boxes))
	copy(want, boxes)
	SortMorton(want)

	for _, n := range []int{1, 2, 3, 4, 5, 8} {
		err := collective.Run(context.Background(), n, func(ctx context.Context, g *collective.Group) error {
			got := make([]ibox.Box, len(boxes))
			copy(got, boxes)
			if err := MortonOrder(ctx, g, got); err != nil {
				return err
			}
			if !reflect.DeepEqual(got, want) {
				return fmt.Errorf("rank %d of %d: parallel order differs from serial order", g.Rank(), n)
			}
			return nil
		})
		if err != nil {
			t.Errorf("group of %d: %v", n, err)
		}
	}
}

func TestMortonThresholdContext(t *testing.T) {
	ctx := context.Background()
	if got, want := MortonThresholdFrom(ctx), MortonThreshold; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	small := WithMortonThreshold(ctx, 16)
	if got, want := MortonThresholdFrom(small), 16; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := MortonThresholdFrom(WithMortonThreshold(small, 32)), 32; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := MortonThresholdFrom(small), 16; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	expectKind(t, errors.Invalid, func() { WithMortonThreshold(ctx, 0) })

	boxes := randomBoxes(rand.New(rand.NewSource(5)), 300)
	want := make([]ibox.Box, len(boxes))
	copy(want, boxes)
	SortMorton(want)
	err := collective.Run(small, 4, func(ctx context.Context, g *collective.Group) error {
		if got, want := MortonThresholdFrom(ctx), 16; got != want {
			return fmt.Errorf("rank %d: threshold %d, want %d", g.Rank(), got, want)
		}
		got := make([]ibox.Box, len(boxes))
		copy(got, boxes)
		if err := MortonOrder(ctx, g, got); err != nil {
			return err
		}
		if !reflect.DeepEqual(got, want) {
			return fmt.Errorf("rank %d: parallel order differs from serial order", g.Rank())
		}
		return nil
	})
	if err != nil {
		t.Error(err)
	}
}

func TestMortonMerge(t *testing.T) {
	boxes := randomBoxes(rand.New(rand.NewSource(4)), 100)
	want := make([]ibox.Box, len(boxes))
	copy(want, boxes)
	SortMorton(want)

	mid := len(boxes) / 3
	SortMorton(boxes[:mid])
	SortMorton(boxes[mid:])
	mergeMorton(boxes, mid, MaxBits(boxes))
	if !reflect.DeepEqual(boxes, want) {
		t.Error("merged order differs from sorted order")
	}
	if !sort.SliceIsSorted(boxes, func(i, j int) bool { return mortonLess(boxes[i], boxes[j], 64) }) {
		t.Error("order depends on the bit width")
	}
}

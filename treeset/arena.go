// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package treeset

import (
	"math"
	"sync"

	"github.com/grailbio/boxlayout/ibox"
	"github.com/grailbio/boxlayout/internal/fault"
)

// nkids is the number of children of an inner node.
const nkids = 1 << ibox.SpaceDim

// maxNodes bounds the number of nodes in an arena. Node handles are
// int32s.
var maxNodes = math.MaxInt32

type kind uint8

const (
	empty kind = iota
	full
	inner
)

func (k kind) String() string {
	switch k {
	case empty:
		return "empty"
	case full:
		return "full"
	case inner:
		return "inner"
	}
	return "invalid"
}

// A node is a tagged tree node. The children of an inner node occupy
// nkids consecutive slots of the arena starting at kids, in octant
// order: bit d of a child's offset is set when the child covers the
// upper half of its parent along axis d.
type node struct {
	kind kind
	kids int32
}

// An arena holds the nodes of one set. Freed blocks are kept on
// per-size free lists and reused before the arena grows.
type arena struct {
	nodes []node
	free  map[int][]int32
}

var arenas = sync.Pool{
	New: func() interface{} {
		return &arena{free: make(map[int][]int32)}
	},
}

func newArena() *arena {
	return arenas.Get().(*arena)
}

// Release resets the arena and returns it to the pool. The arena must
// not be used afterwards.
func (a *arena) Release() {
	a.nodes = a.nodes[:0]
	for n := range a.free {
		delete(a.free, n)
	}
	arenas.Put(a)
}

// Alloc returns the handle of a block of n consecutive empty nodes.
func (a *arena) Alloc(n int) int32 {
	if n <= 0 {
		fault.Argumentf("treeset: allocation of %d nodes", n)
	}
	if list := a.free[n]; len(list) > 0 {
		i := list[len(list)-1]
		a.free[n] = list[:len(list)-1]
		block := a.nodes[i : int(i)+n]
		for j := range block {
			block[j] = node{}
		}
		return i
	}
	i := len(a.nodes)
	if i+n > maxNodes || i+n < i {
		fault.Allocationf("treeset: node arena exhausted: %d nodes in use, %d requested", i, n)
	}
	for j := 0; j < n; j++ {
		a.nodes = append(a.nodes, node{})
	}
	return int32(i)
}

// Free returns the block of n nodes at handle i to the arena.
func (a *arena) Free(i int32, n int) {
	a.free[n] = append(a.free[n], i)
}

// Live returns the number of allocated nodes not on a free list.
func (a *arena) Live() int {
	n := len(a.nodes)
	for size, list := range a.free {
		n -= size * len(list)
	}
	return n
}

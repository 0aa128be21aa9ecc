// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package boxlayout

import "github.com/grailbio/boxlayout/ibox"

// A DataIndex names a box owned by the calling process: Global is its
// position in the layout's table and Local its zero-based slot among
// the process's boxes. Local slots are stable for the lifetime of the
// layout and are used to index per-box data.
type DataIndex struct {
	Global, Local int
}

// A LayoutIterator visits every box of a layout in table order.
//
//	for it := l.LayoutIterator(); it.Ok(); it.Next() {
//		b := it.Box()
//		...
//	}
type LayoutIterator struct {
	l *Layout
	i int
}

// LayoutIterator returns an iterator positioned at the layout's first
// box.
func (l *Layout) LayoutIterator() *LayoutIterator {
	return &LayoutIterator{l: l}
}

// Begin restarts the iteration.
func (it *LayoutIterator) Begin() { it.i = 0 }

// Ok reports whether the iterator is positioned at a box.
func (it *LayoutIterator) Ok() bool { return it.i < len(it.l.entries) }

// Next advances the iterator.
func (it *LayoutIterator) Next() { it.i++ }

// Index returns the global position of the current box.
func (it *LayoutIterator) Index() int { return it.i }

// Box returns the current box.
func (it *LayoutIterator) Box() ibox.Box { return it.l.entries[it.i].Box }

// Proc returns the owner of the current box.
func (it *LayoutIterator) Proc() int { return it.l.entries[it.i].Proc }

// A DataIterator visits the boxes owned by the calling process in
// table order.
type DataIterator struct {
	l *Layout
	i int
}

// DataIterator returns an iterator over the calling process's boxes.
func (l *Layout) DataIterator() *DataIterator {
	return &DataIterator{l: l}
}

// Begin restarts the iteration.
func (it *DataIterator) Begin() { it.i = 0 }

// Ok reports whether the iterator is positioned at a box.
func (it *DataIterator) Ok() bool { return it.i < len(it.l.local) }

// Next advances the iterator.
func (it *DataIterator) Next() { it.i++ }

// Len returns the number of boxes the iterator visits.
func (it *DataIterator) Len() int { return len(it.l.local) }

// Index returns the data index of the current box.
func (it *DataIterator) Index() DataIndex {
	return DataIndex{Global: it.l.local[it.i], Local: it.i}
}

// Box returns the current box.
func (it *DataIterator) Box() ibox.Box { return it.l.entries[it.l.local[it.i]].Box }

// DataIndexes returns the data indices of the calling process's boxes
// in table order.
func (l *Layout) DataIndexes() []DataIndex {
	dis := make([]DataIndex, len(l.local))
	for i, g := range l.local {
		dis[i] = DataIndex{Global: g, Local: i}
	}
	return dis
}

// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
	Package boxlayout distributes the boxes of a block-structured
	adaptive mesh across a group of cooperating processes.

	A Layout is an immutable table of boxes, each owned by one process.
	Layouts are assembled by a Builder: boxes and their owners are
	defined once, and Close (or CloseNoSort) freezes the table and
	computes, for the calling process, the zero-based local slot of each
	box it owns. Every process that participates in a computation builds
	the same table, so global positions agree everywhere; local slots are
	specific to the process.

	Boxes are usually ordered along a Morton (Z-order) space-filling
	curve before they are assigned to processes, so that each process
	owns a spatially compact region. MortonOrder sorts a box list in
	parallel over a collective.Group, and its result does not depend on
	the size of the group. Partition combines Morton ordering, load
	balancing and layout construction.

	Subsets of the index space are represented by package treeset;
	package cfregion derives the coarse-fine and inter-process boundary
	sets of a layout.
*/
package boxlayout

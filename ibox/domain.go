// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package ibox

import (
	"fmt"

	"github.com/grailbio/boxlayout/internal/fault"
)

// A ProblemDomain is the cell-centered box covering a level's whole
// index space, together with the axes along which it wraps around.
type ProblemDomain struct {
	box      Box
	periodic [SpaceDim]bool
}

// NewDomain returns the problem domain covering box b. The axes listed
// in periodic wrap around.
func NewDomain(b Box, periodic ...int) ProblemDomain {
	if b.Type != Cell {
		fault.Argumentf("ibox.NewDomain: domain box %v is not cell centered", b)
	}
	if b.IsEmpty() {
		fault.Argumentf("ibox.NewDomain: empty domain box")
	}
	d := ProblemDomain{box: b}
	for _, dir := range periodic {
		if dir < 0 || dir >= SpaceDim {
			fault.Argumentf("ibox.NewDomain: invalid periodic axis %d", dir)
		}
		d.periodic[dir] = true
	}
	return d
}

// Box returns the domain's cell-centered box.
func (d ProblemDomain) Box() Box { return d.box }

// IsPeriodic reports whether the domain wraps along axis dir.
func (d ProblemDomain) IsPeriodic(dir int) bool { return d.periodic[dir] }

// IsPeriodicAny reports whether the domain wraps along any axis.
func (d ProblemDomain) IsPeriodicAny() bool {
	for _, p := range d.periodic {
		if p {
			return true
		}
	}
	return false
}

// Contains reports whether the cell iv lies inside the domain box.
func (d ProblemDomain) Contains(iv IntVect) bool { return d.box.Contains(iv) }

// Clip returns the part of b that lies within the domain along every
// non-periodic axis. Periodic axes are left unbounded. The domain is
// converted to b's index type before clipping.
func (d ProblemDomain) Clip(b Box) Box {
	if b.IsEmpty() {
		return b
	}
	db := d.box.Convert(b.Type)
	for dir := 0; dir < SpaceDim; dir++ {
		if d.periodic[dir] {
			continue
		}
		if b.Lo[dir] < db.Lo[dir] {
			b.Lo[dir] = db.Lo[dir]
		}
		if b.Hi[dir] > db.Hi[dir] {
			b.Hi[dir] = db.Hi[dir]
		}
	}
	if b.IsEmpty() {
		return emptyOf(b.Type)
	}
	return b
}

// PeriodicShifts returns every nonzero translation by which a box may
// be imaged across periodic boundaries: each periodic axis contributes
// a shift of -L, 0 or +L, where L is the domain length along that
// axis. The zero shift is omitted.
func (d ProblemDomain) PeriodicShifts() []IntVect {
	shifts := []IntVect{Zero}
	size := d.box.Size()
	for dir := 0; dir < SpaceDim; dir++ {
		if !d.periodic[dir] {
			continue
		}
		n := len(shifts)
		for i := 0; i < n; i++ {
			for _, sign := range [2]int{-1, 1} {
				s := shifts[i]
				s[dir] = sign * size[dir]
				shifts = append(shifts, s)
			}
		}
	}
	return shifts[1:]
}

// Coarsen returns the domain coarsened by r.
func (d ProblemDomain) Coarsen(r IntVect) ProblemDomain {
	d.box = d.box.CoarsenVect(r)
	return d
}

// Refine returns the domain refined by r.
func (d ProblemDomain) Refine(r IntVect) ProblemDomain {
	d.box = d.box.RefineVect(r)
	return d
}

func (d ProblemDomain) String() string {
	var p IntVect
	for dir, ok := range d.periodic {
		if ok {
			p[dir] = 1
		}
	}
	return fmt.Sprintf("%v periodic %v", d.box, p)
}

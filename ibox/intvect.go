// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package ibox

import (
	"fmt"
	"strings"
)

// An IntVect is a point in the SpaceDim-dimensional integer lattice.
type IntVect [SpaceDim]int

// Zero is the origin.
var Zero IntVect

// Unit returns the vector with every component set to 1.
func Unit() IntVect { return Uniform(1) }

// Uniform returns the vector with every component set to n.
func Uniform(n int) IntVect {
	var v IntVect
	for d := range v {
		v[d] = n
	}
	return v
}

// BasisV returns the unit vector along axis dir.
func BasisV(dir int) IntVect {
	var v IntVect
	v[dir] = 1
	return v
}

// IV builds an IntVect from its components. Missing trailing
// components are zero; extra components are ignored.
func IV(xs ...int) IntVect {
	var v IntVect
	copy(v[:], xs)
	return v
}

// Add returns v+w.
func (v IntVect) Add(w IntVect) IntVect {
	for d := range v {
		v[d] += w[d]
	}
	return v
}

// Sub returns v-w.
func (v IntVect) Sub(w IntVect) IntVect {
	for d := range v {
		v[d] -= w[d]
	}
	return v
}

// Mul returns the component-wise product of v and w.
func (v IntVect) Mul(w IntVect) IntVect {
	for d := range v {
		v[d] *= w[d]
	}
	return v
}

// Scale returns v*n.
func (v IntVect) Scale(n int) IntVect {
	for d := range v {
		v[d] *= n
	}
	return v
}

// Min returns the component-wise minimum of v and w.
func (v IntVect) Min(w IntVect) IntVect {
	for d := range v {
		if w[d] < v[d] {
			v[d] = w[d]
		}
	}
	return v
}

// Max returns the component-wise maximum of v and w.
func (v IntVect) Max(w IntVect) IntVect {
	for d := range v {
		if w[d] > v[d] {
			v[d] = w[d]
		}
	}
	return v
}

// Coarsen returns v divided by ratio, rounding toward negative
// infinity on every axis.
func (v IntVect) Coarsen(ratio IntVect) IntVect {
	for d := range v {
		v[d] = FloorDiv(v[d], ratio[d])
	}
	return v
}

// AllLE reports whether v[d] <= w[d] on every axis.
func (v IntVect) AllLE(w IntVect) bool {
	for d := range v {
		if v[d] > w[d] {
			return false
		}
	}
	return true
}

// LexLess reports whether v precedes w lexicographically, comparing
// axis 0 first.
func (v IntVect) LexLess(w IntVect) bool {
	for d := range v {
		if v[d] != w[d] {
			return v[d] < w[d]
		}
	}
	return false
}

// MaxAbs returns the largest absolute component of v.
func (v IntVect) MaxAbs() int {
	var m int
	for _, x := range v {
		if x < 0 {
			x = -x
		}
		if x > m {
			m = x
		}
	}
	return m
}

// String returns v formatted as (x,y,...).
func (v IntVect) String() string {
	parts := make([]string, SpaceDim)
	for d, x := range v {
		parts[d] = fmt.Sprint(x)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// FloorDiv returns a/b rounded toward negative infinity. b must be
// positive.
func FloorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns the base-2 logarithm of n, which must be a power of two.
func Log2(n int) int {
	var k int
	for n > 1 {
		n >>= 1
		k++
	}
	return k
}

// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package treeset

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/boxlayout/ibox"
	"github.com/spaolacci/murmur3"
)

// headerSize is the size of the linearized span: depth, low corner and
// node count.
const headerSize = 4 + 8*ibox.SpaceDim + 4

// LinearSize implements linear.Linearizer.
func (s *Set) LinearSize() int {
	return headerSize + s.count(s.root)
}

// LinearOut implements linear.Linearizer. The set is written as its
// span followed by one tag byte per node in depth-first pre-order.
func (s *Set) LinearOut(p []byte) {
	binary.LittleEndian.PutUint32(p, uint32(s.depth))
	for d := 0; d < ibox.SpaceDim; d++ {
		binary.LittleEndian.PutUint64(p[4+8*d:], uint64(int64(s.lo[d])))
	}
	n := s.count(s.root)
	binary.LittleEndian.PutUint32(p[headerSize-4:], uint32(n))
	tags := p[headerSize : headerSize+n]
	s.writeTags(s.root, tags[:0])
}

// LinearIn implements linear.Unlinearizer.
func (s *Set) LinearIn(p []byte) error {
	if len(p) < headerSize {
		return errors.E(errors.Integrity, fmt.Sprintf("treeset: short buffer: %d bytes", len(p)))
	}
	depth := int(int32(binary.LittleEndian.Uint32(p)))
	if depth < 0 || depth > maxDepth {
		return errors.E(errors.Integrity, fmt.Sprintf("treeset: invalid depth %d", depth))
	}
	var lo ibox.IntVect
	for d := 0; d < ibox.SpaceDim; d++ {
		lo[d] = int(int64(binary.LittleEndian.Uint64(p[4+8*d:])))
	}
	n := int(int32(binary.LittleEndian.Uint32(p[headerSize-4:])))
	if n < 1 || headerSize+n > len(p) {
		return errors.E(errors.Integrity, fmt.Sprintf("treeset: invalid node count %d", n))
	}
	s.Clear()
	tags := p[headerSize : headerSize+n]
	var pos int
	root, err := s.readNode(tags, &pos, depth)
	if err != nil {
		return err
	}
	if pos != n {
		s.release(root)
		return errors.E(errors.Integrity, fmt.Sprintf("treeset: %d trailing node tags", n-pos))
	}
	s.root, s.lo, s.depth = root, lo, depth
	s.update()
	return nil
}

func (s *Set) count(n node) int {
	if n.kind != inner {
		return 1
	}
	c := 1
	for k := int32(0); k < nkids; k++ {
		c += s.count(s.a.nodes[n.kids+k])
	}
	return c
}

func (s *Set) writeTags(n node, tags []byte) []byte {
	tags = append(tags, byte(n.kind))
	if n.kind == inner {
		for k := int32(0); k < nkids; k++ {
			tags = s.writeTags(s.a.nodes[n.kids+k], tags)
		}
	}
	return tags
}

func (s *Set) readNode(tags []byte, pos *int, depth int) (node, error) {
	if *pos >= len(tags) {
		return node{}, errors.E(errors.Integrity, "treeset: truncated node tags")
	}
	k := kind(tags[*pos])
	*pos++
	switch k {
	case empty, full:
		return node{kind: k}, nil
	case inner:
		if depth == 0 {
			return node{}, errors.E(errors.Integrity, "treeset: inner node below unit cube")
		}
	default:
		return node{}, errors.E(errors.Integrity, fmt.Sprintf("treeset: invalid node tag %d", k))
	}
	n := s.split(empty)
	for i := int32(0); i < nkids; i++ {
		m, err := s.readNode(tags, pos, depth-1)
		if err != nil {
			s.release(n)
			return node{}, err
		}
		s.a.nodes[n.kids+i] = m
	}
	return n, nil
}

// canonical returns the set's compacted form rebuilt on an aligned
// span, which depends only on the set's points.
func (s *Set) canonical() *Set {
	var c *Set
	if s.aligned() {
		c = s.Clone()
	} else {
		c = new(Set)
		for _, b := range s.Boxes() {
			c.addBox(b)
		}
		c.update()
	}
	c.Compact()
	return c
}

func (s *Set) canonicalBytes() []byte {
	c := s.canonical()
	defer c.Release()
	p := make([]byte, c.LinearSize())
	c.LinearOut(p)
	return p
}

// Fingerprint returns a hash of the set's points.
func (s *Set) Fingerprint() uint64 {
	return murmur3.Sum64(s.canonicalBytes())
}

// Equal reports whether s and o contain the same points.
func (s *Set) Equal(o *Set) bool {
	if s == o {
		return true
	}
	if s.npts != o.npts || s.MinBox() != o.MinBox() {
		return false
	}
	return bytes.Equal(s.canonicalBytes(), o.canonicalBytes())
}

// Less orders sets by point count, then by their points in iteration
// order of their compacted forms.
func (s *Set) Less(o *Set) bool {
	if s.npts != o.npts {
		return s.npts < o.npts
	}
	a, b := s.canonical(), o.canonical()
	defer a.Release()
	defer b.Release()
	ia, ib := a.Iterator(), b.Iterator()
	for ; ia.Ok() && ib.Ok(); ia.Next() {
		if x, y := ia.Value(), ib.Value(); x != y {
			return x.LexLess(y)
		}
		ib.Next()
	}
	return false
}

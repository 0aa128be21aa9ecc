// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package layoutio reads and writes snapshots of layouts and point
// sets. Snapshots are MessagePack documents that record the space
// dimension in which they were written; a snapshot can be read only
// by a binary built for the same dimension.
package layoutio

import (
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/boxlayout"
	"github.com/grailbio/boxlayout/ibox"
	"github.com/grailbio/boxlayout/internal/fault"
	"github.com/grailbio/boxlayout/treeset"
	"github.com/vmihailenco/msgpack/v5"
)

const version = 1

type box struct {
	Lo   []int `msgpack:"lo"`
	Hi   []int `msgpack:"hi"`
	Type uint8 `msgpack:"type,omitempty"`
}

type layoutSnapshot struct {
	Version int   `msgpack:"version"`
	Dim     int   `msgpack:"dim"`
	Sorted  bool  `msgpack:"sorted"`
	Boxes   []box `msgpack:"boxes"`
	Procs   []int `msgpack:"procs"`
}

type setSnapshot struct {
	Version int    `msgpack:"version"`
	Dim     int    `msgpack:"dim"`
	Tree    []byte `msgpack:"tree"`
}

func fromBox(b ibox.Box) box {
	return box{Lo: b.Lo[:], Hi: b.Hi[:], Type: uint8(b.Type)}
}

func (b box) toBox() (ibox.Box, error) {
	var out ibox.Box
	if len(b.Lo) != ibox.SpaceDim || len(b.Hi) != ibox.SpaceDim {
		return out, errors.E(errors.Integrity, fmt.Sprintf("layoutio: box has %d,%d coordinates", len(b.Lo), len(b.Hi)))
	}
	copy(out.Lo[:], b.Lo)
	copy(out.Hi[:], b.Hi)
	out.Type = ibox.IndexType(b.Type)
	return out, nil
}

func checkHeader(v, dim int) error {
	if v != version {
		return errors.E(errors.NotSupported, fmt.Sprintf("layoutio: unsupported snapshot version %d", v))
	}
	if dim != ibox.SpaceDim {
		return errors.E(errors.Precondition, fmt.Sprintf("layoutio: snapshot has dimension %d; expected %d", dim, ibox.SpaceDim))
	}
	return nil
}

// WriteLayout writes a snapshot of the layout's table to w.
func WriteLayout(w io.Writer, l *boxlayout.Layout) error {
	snap := layoutSnapshot{
		Version: version,
		Dim:     ibox.SpaceDim,
		Sorted:  l.Sorted(),
		Boxes:   make([]box, l.Size()),
		Procs:   l.Procs(),
	}
	for i := range snap.Boxes {
		snap.Boxes[i] = fromBox(l.Box(i))
	}
	if err := msgpack.NewEncoder(w).Encode(&snap); err != nil {
		return errors.E("layoutio: write layout", err)
	}
	return nil
}

// ReadLayout reads a layout snapshot from r and returns the layout it
// describes as seen from process p. A nil p is boxlayout.Serial.
func ReadLayout(r io.Reader, p boxlayout.Proc) (*boxlayout.Layout, error) {
	var snap layoutSnapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, errors.E(errors.Integrity, "layoutio: read layout", err)
	}
	if err := checkHeader(snap.Version, snap.Dim); err != nil {
		return nil, err
	}
	if len(snap.Procs) != len(snap.Boxes) {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("layoutio: %d boxes but %d owners", len(snap.Boxes), len(snap.Procs)))
	}
	boxes := make([]ibox.Box, len(snap.Boxes))
	for i, b := range snap.Boxes {
		var err error
		if boxes[i], err = b.toBox(); err != nil {
			return nil, err
		}
	}
	var l *boxlayout.Layout
	if err := fault.Catch(func() {
		b := boxlayout.NewBuilder(p)
		b.Define(boxes, snap.Procs)
		if snap.Sorted {
			l = b.Close()
		} else {
			l = b.CloseNoSort()
		}
	}); err != nil {
		return nil, err
	}
	return l, nil
}

// WriteSet writes a snapshot of the set to w.
func WriteSet(w io.Writer, s *treeset.Set) error {
	tree := make([]byte, s.LinearSize())
	s.LinearOut(tree)
	snap := setSnapshot{Version: version, Dim: ibox.SpaceDim, Tree: tree}
	if err := msgpack.NewEncoder(w).Encode(&snap); err != nil {
		return errors.E("layoutio: write set", err)
	}
	return nil
}

// ReadSet reads a set snapshot from r.
func ReadSet(r io.Reader) (*treeset.Set, error) {
	var snap setSnapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, errors.E(errors.Integrity, "layoutio: read set", err)
	}
	if err := checkHeader(snap.Version, snap.Dim); err != nil {
		return nil, err
	}
	s := new(treeset.Set)
	if err := s.LinearIn(snap.Tree); err != nil {
		return nil, err
	}
	return s, nil
}

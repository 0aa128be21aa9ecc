// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package boxlayout

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/boxlayout/collective"
	"github.com/grailbio/boxlayout/ibox"
	"github.com/grailbio/boxlayout/linear"
	"github.com/spaolacci/murmur3"
)

const entrySize = ibox.BoxLinearSize + 4

// LinearSize implements linear.Linearizer.
func (e Entry) LinearSize() int { return entrySize }

// LinearOut implements linear.Linearizer.
func (e Entry) LinearOut(p []byte) {
	e.Box.LinearOut(p)
	binary.LittleEndian.PutUint32(p[ibox.BoxLinearSize:], uint32(e.Proc))
}

// LinearIn implements linear.Unlinearizer.
func (e *Entry) LinearIn(p []byte) error {
	if len(p) < entrySize {
		return errors.E(errors.Integrity, fmt.Sprintf("boxlayout: short entry buffer: %d bytes", len(p)))
	}
	if err := e.Box.LinearIn(p); err != nil {
		return err
	}
	e.Proc = int(int32(binary.LittleEndian.Uint32(p[ibox.BoxLinearSize:])))
	return nil
}

// table is the linearized form of a layout: a sorted flag followed by
// the entry sequence.
type table struct {
	sorted  bool
	entries []Entry
}

func (t table) LinearSize() int { return 1 + linear.SliceSize(t.entries) }

func (t table) LinearOut(p []byte) {
	if t.sorted {
		p[0] = 1
	}
	linear.SliceOut(p[1:], t.entries)
}

func (t *table) LinearIn(p []byte) error {
	if len(p) < 1 {
		return errors.E(errors.Integrity, "boxlayout: empty layout buffer")
	}
	entries, err := linear.SliceIn[Entry](p[1:])
	if err != nil {
		return err
	}
	t.sorted, t.entries = p[0] == 1, entries
	return nil
}

// Fingerprint returns a hash of the layout's table: its sort flag and
// every box and owner in order.
func (l *Layout) Fingerprint() uint64 {
	return murmur3.Sum64(linear.Marshal(table{l.sorted, l.entries}))
}

// Broadcast ships the layout held by rank src to every member of g. On
// src, l must be non-nil; other members may pass nil. Every member
// returns the layout seen from itself.
func Broadcast(ctx context.Context, g *collective.Group, l *Layout, src int) (*Layout, error) {
	var t table
	if g.Rank() == src {
		t = table{l.sorted, l.entries}
	}
	if err := collective.Broadcast(ctx, g, &t, src); err != nil {
		return nil, err
	}
	return newLayout(g, t.entries, t.sorted), nil
}

// Verify checks that every member of g holds the same layout table. It
// returns an errors.Integrity error on every member if any two differ.
func Verify(ctx context.Context, g *collective.Group, l *Layout) error {
	fps, err := collective.Gather(ctx, g, l.Fingerprint(), 0)
	if err != nil {
		return err
	}
	var bad int32 = -1
	for r, fp := range fps {
		if fp != fps[0] {
			log.Error.Printf("boxlayout: layout fingerprint of rank %d %x differs from rank 0 %x", r, fp, fps[0])
			bad = int32(r)
			break
		}
	}
	if err := collective.Broadcast(ctx, g, &bad, 0); err != nil {
		return err
	}
	if bad >= 0 {
		return errors.E(errors.Integrity, fmt.Sprintf("boxlayout: layout of rank %d differs from rank 0", bad))
	}
	return nil
}

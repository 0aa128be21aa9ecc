// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package collective

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/boxlayout/linear"
)

// sizeBytes is the size of a size announcement.
const sizeBytes = 8

func sizeMsg(n int) []byte {
	p := make([]byte, sizeBytes)
	binary.LittleEndian.PutUint64(p, uint64(n))
	return p
}

func readSize(p []byte) (int, error) {
	if len(p) != sizeBytes {
		return 0, errors.E(errors.Integrity, fmt.Sprintf("collective: malformed size message of %d bytes", len(p)))
	}
	return int(binary.LittleEndian.Uint64(p)), nil
}

// Gather collects v from every member onto rank dest. On dest, Gather
// returns the values indexed by rank; other members receive nil.
// Sizes are exchanged first so that dest can lay out a single buffer
// for all payloads. With a single member, Gather returns []T{v}.
func Gather[T any](ctx context.Context, g *Group, v T, dest int) ([]T, error) {
	g.checkPeer(dest)
	if g.Size() == 1 {
		// Fault on unlinearizable values regardless of group size.
		linear.Size(v)
		return []T{v}, nil
	}
	p := linear.Marshal(v)
	if g.Rank() != dest {
		if err := g.Send(ctx, dest, sizeMsg(len(p))); err != nil {
			return nil, err
		}
		return nil, g.Send(ctx, dest, p)
	}
	offsets := make([]int, g.Size()+1)
	for r := 0; r < g.Size(); r++ {
		n := len(p)
		if r != dest {
			msg, err := g.Recv(ctx, r)
			if err != nil {
				return nil, err
			}
			if n, err = readSize(msg); err != nil {
				return nil, err
			}
		}
		offsets[r+1] = offsets[r] + n
	}
	buf := make([]byte, offsets[g.Size()])
	for r := 0; r < g.Size(); r++ {
		slot := buf[offsets[r]:offsets[r+1]]
		if r == dest {
			copy(slot, p)
			continue
		}
		msg, err := g.Recv(ctx, r)
		if err != nil {
			return nil, err
		}
		if len(msg) != len(slot) {
			return nil, errors.E(errors.Integrity,
				fmt.Sprintf("collective: rank %d announced %d bytes, sent %d", r, len(slot), len(msg)))
		}
		copy(slot, msg)
	}
	log.Debug.Printf("collective: gather %s: %d bytes at rank %d", g, len(buf), dest)
	vs := make([]T, g.Size())
	for r := range vs {
		if err := linear.In(buf[offsets[r]:offsets[r+1]], &vs[r]); err != nil {
			return nil, errors.E(fmt.Sprintf("collective: decode value from rank %d", r), err)
		}
	}
	return vs, nil
}

// Broadcast replaces *v on every member with the value held by rank
// src. The value travels down a binomial tree rooted at src, each hop
// carrying its size and then its payload. With a single member,
// Broadcast does nothing.
func Broadcast[T any](ctx context.Context, g *Group, v *T, src int) error {
	g.checkPeer(src)
	size := g.Size()
	if size == 1 {
		linear.Size(*v)
		return nil
	}
	var (
		rel = (g.Rank() - src + size) % size
		p   []byte
	)
	if rel == 0 {
		p = linear.Marshal(*v)
	}
	mask := 1
	for ; mask < size; mask <<= 1 {
		if rel&mask == 0 {
			continue
		}
		from := (rel - mask + src) % size
		msg, err := g.Recv(ctx, from)
		if err != nil {
			return err
		}
		n, err := readSize(msg)
		if err != nil {
			return err
		}
		if p, err = g.Recv(ctx, from); err != nil {
			return err
		}
		if len(p) != n {
			return errors.E(errors.Integrity,
				fmt.Sprintf("collective: rank %d announced %d bytes, sent %d", from, n, len(p)))
		}
		break
	}
	for mask >>= 1; mask > 0; mask >>= 1 {
		if rel+mask >= size {
			continue
		}
		to := (rel + mask + src) % size
		if err := g.Send(ctx, to, sizeMsg(len(p))); err != nil {
			return err
		}
		if err := g.Send(ctx, to, p); err != nil {
			return err
		}
	}
	if rel == 0 {
		return nil
	}
	return linear.In(p, v)
}

// Barrier returns once every member of the group has entered it.
func Barrier(ctx context.Context, g *Group) error {
	if g.Size() == 1 {
		return nil
	}
	if _, err := Gather(ctx, g, uint8(0), 0); err != nil {
		return err
	}
	var token uint8
	return Broadcast(ctx, g, &token, 0)
}

// AllreduceMax returns the maximum of v over all members, on every
// member.
func AllreduceMax(ctx context.Context, g *Group, v int) (int, error) {
	if g.Size() == 1 {
		return v, nil
	}
	vs, err := Gather(ctx, g, int64(v), 0)
	if err != nil {
		return 0, err
	}
	var max int64
	if g.Rank() == 0 {
		max = vs[0]
		for _, x := range vs[1:] {
			if x > max {
				max = x
			}
		}
	}
	if err := Broadcast(ctx, g, &max, 0); err != nil {
		return 0, err
	}
	return int(max), nil
}

// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package collective implements point-to-point messaging and the
// synchronous collectives (gather, broadcast, barrier, and a max
// reduction) used to coordinate a fixed group of processes.
//
// Every member of a Group must invoke the same sequence of collectives
// in the same order; a mismatch deadlocks the group. Operations take a
// context, and a canceled context surfaces as an error from the
// pending operation. Callers treat any error from a collective as
// fatal for the whole run: there is no partial-failure mode.
//
// Groups are connected either in-process (Local, Run), where each
// rank is a goroutine, or across bigmachine machines (Cluster), where
// each rank is a machine hosting a Mailbox service.
package collective

import (
	"context"
	"fmt"
	"strconv"

	"github.com/grailbio/base/log"
	"github.com/grailbio/boxlayout/internal/fault"
	"github.com/grailbio/boxlayout/stats"
	"golang.org/x/sync/errgroup"
)

// A Group is one member's handle to an ordered set of communicating
// ranks. A Group is used by a single goroutine.
type Group struct {
	comm  string
	rank  int
	world []int // world rank of each member
	tr    transport
	stats *stats.Map
}

func newWorld(comm string, rank, size int, tr transport) *Group {
	world := make([]int, size)
	for i := range world {
		world[i] = i
	}
	return &Group{
		comm:  comm,
		rank:  rank,
		world: world,
		tr:    tr,
		stats: stats.NewMap(),
	}
}

// Rank returns this member's rank in [0, Size()).
func (g *Group) Rank() int { return g.rank }

// Size returns the number of members in the group.
func (g *Group) Size() int { return len(g.world) }

// Stats returns a snapshot of the traffic counters of this member.
// Counters are shared between a group and the groups split from it.
func (g *Group) Stats() stats.Values { return g.stats.Snapshot() }

func (g *Group) String() string {
	return fmt.Sprintf("%s[%d/%d]", g.comm, g.rank, len(g.world))
}

func (g *Group) route(from, to int) route {
	return route{Comm: g.comm, From: g.world[from], To: g.world[to]}
}

func (g *Group) checkPeer(peer int) {
	if peer < 0 || peer >= len(g.world) {
		fault.Argumentf("collective: rank %d out of range [0, %d) in group %s", peer, len(g.world), g)
	}
}

// Send sends the payload p to rank to. Send does not wait for the
// receiver to post a matching Recv. The payload must not be modified
// after it is sent.
func (g *Group) Send(ctx context.Context, to int, p []byte) error {
	g.checkPeer(to)
	if err := g.tr.Send(ctx, g.route(g.rank, to), p); err != nil {
		return err
	}
	n := int64(len(p))
	g.stats.Int(stats.SendBytes).Add(n)
	g.stats.Int(stats.SendMessages).Add(1)
	g.stats.Int(stats.SendMax).Max(n)
	return nil
}

// Recv receives the next payload sent to this member by rank from.
func (g *Group) Recv(ctx context.Context, from int) ([]byte, error) {
	g.checkPeer(from)
	p, err := g.tr.Recv(ctx, g.route(from, g.rank))
	if err != nil {
		return nil, err
	}
	n := int64(len(p))
	g.stats.Int(stats.RecvBytes).Add(n)
	g.stats.Int(stats.RecvMessages).Add(1)
	g.stats.Int(stats.RecvMax).Max(n)
	return p, nil
}

// SendRecv sends p to peer and returns the payload peer sends to this
// member. Both members must call SendRecv naming each other.
func (g *Group) SendRecv(ctx context.Context, peer int, p []byte) ([]byte, error) {
	if err := g.Send(ctx, peer, p); err != nil {
		return nil, err
	}
	return g.Recv(ctx, peer)
}

// Split partitions the group by color: members for which color returns
// the same value form a subgroup, ranked in their order in g. Every
// member must call Split with the same function; no messages are
// exchanged.
func (g *Group) Split(color func(rank int) int) *Group {
	mine := color(g.rank)
	sub := &Group{
		comm:  g.comm + "/" + strconv.Itoa(mine),
		tr:    g.tr,
		stats: g.stats,
	}
	for r, w := range g.world {
		if color(r) != mine {
			continue
		}
		if r == g.rank {
			sub.rank = len(sub.world)
		}
		sub.world = append(sub.world, w)
	}
	log.Debug.Printf("collective: split %s: color %d -> %s", g, mine, sub)
	return sub
}

// Local returns the n members of an in-process group. Each member must
// be used by its own goroutine.
func Local(n int) []*Group {
	if n <= 0 {
		fault.Argumentf("collective.Local: invalid group size %d", n)
	}
	tr := memTransport{newMailbox()}
	groups := make([]*Group, n)
	for i := range groups {
		groups[i] = newWorld("local", i, n, tr)
	}
	return groups
}

// Run runs fn concurrently on each member of a fresh in-process group of
// size n. If any member fails, the context passed to the others is
// canceled so that pending collectives return; Run returns the first
// error.
func Run(ctx context.Context, n int, fn func(ctx context.Context, g *Group) error) error {
	groups := Local(n)
	eg, ctx := errgroup.WithContext(ctx)
	for _, g := range groups {
		g := g
		eg.Go(func() error {
			if err := fn(ctx, g); err != nil {
				log.Debug.Printf("collective: rank %d failed: %v", g.Rank(), err)
				return err
			}
			return nil
		})
	}
	return eg.Wait()
}

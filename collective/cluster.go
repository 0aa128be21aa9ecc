// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package collective

import (
	"context"
	"encoding/gob"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigmachine"
	"golang.org/x/sync/errgroup"
)

func init() {
	gob.Register(&Mailbox{})
}

// Envelope is a message in transit between machines.
type Envelope struct {
	Comm     string
	From, To int
	Payload  []byte
}

// RunRequest asks a machine to run a registered Func as one member of a
// group.
type RunRequest struct {
	// Comm names the group; it is distinct for every run.
	Comm string
	// Func is the name of the registered Func.
	Func string
	// Rank is this machine's world rank.
	Rank int
	// Addrs holds the address of every member, indexed by rank.
	Addrs []string
	// Params are installed in the context of the Func.
	Params Params
}

// Mailbox is the bigmachine service that hosts one member of a
// cluster group: it buffers messages delivered by peers and runs
// registered Funcs on request.
type Mailbox struct {
	// Exported just satisfies gob's persnickety nature: we need at least
	// one exported field.
	Exported struct{}

	b   *bigmachine.B
	box *mailbox

	mu    sync.Mutex
	peers map[string]*bigmachine.Machine
}

// Init implements bigmachine's service initialization.
func (m *Mailbox) Init(b *bigmachine.B) error {
	m.b = b
	m.box = newMailbox()
	m.peers = make(map[string]*bigmachine.Machine)
	return nil
}

// Deliver buffers a message sent by a peer.
func (m *Mailbox) Deliver(ctx context.Context, env Envelope, _ *struct{}) error {
	m.box.Put(route{Comm: env.Comm, From: env.From, To: env.To}, env.Payload)
	return nil
}

// Run runs the requested Func as member req.Rank of the group whose
// members live at req.Addrs.
func (m *Mailbox) Run(ctx context.Context, req RunRequest, reply *[]byte) error {
	fn := Lookup(req.Func)
	if fn == nil {
		return errNoFunc(req.Func)
	}
	tr := &machineTransport{mailbox: m, addrs: req.Addrs, self: req.Rank}
	g := newWorld(req.Comm, req.Rank, len(req.Addrs), tr)
	log.Debug.Printf("collective: running %s as %s", req.Func, g)
	p, err := fn(withParams(ctx, req.Params), g)
	if err != nil {
		log.Error.Printf("collective: %s failed on %s: %v", req.Func, g, err)
		return err
	}
	*reply = p
	return nil
}

func (m *Mailbox) dial(ctx context.Context, addr string) (*bigmachine.Machine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if machine := m.peers[addr]; machine != nil {
		return machine, nil
	}
	machine, err := m.b.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	m.peers[addr] = machine
	return machine, nil
}

// machineTransport sends messages by calling Deliver on the receiving
// machine's Mailbox and receives from the local Mailbox.
type machineTransport struct {
	mailbox *Mailbox
	addrs   []string
	self    int
}

func (t *machineTransport) Send(ctx context.Context, r route, p []byte) error {
	if r.To == t.self {
		t.mailbox.box.Put(r, p)
		return nil
	}
	machine, err := t.mailbox.dial(ctx, t.addrs[r.To])
	if err != nil {
		return errors.E(errors.Net, fmt.Sprintf("collective: dial rank %d", r.To), err)
	}
	env := Envelope{Comm: r.Comm, From: r.From, To: r.To, Payload: p}
	return machine.Call(ctx, "Mailbox.Deliver", env, nil)
}

func (t *machineTransport) Recv(ctx context.Context, r route) ([]byte, error) {
	return t.mailbox.box.Take(ctx, r)
}

// A Cluster is a group of bigmachine machines, each hosting a Mailbox,
// on which registered Funcs are run collectively.
type Cluster struct {
	machines []*bigmachine.Machine
	addrs    []string
	runs     int64
}

// StartCluster starts n machines on b and waits for them to become
// ready.
func StartCluster(ctx context.Context, b *bigmachine.B, n int, params ...bigmachine.Param) (*Cluster, error) {
	params = append([]bigmachine.Param{bigmachine.Services{"Mailbox": &Mailbox{}}}, params...)
	machines, err := b.Start(ctx, n, params...)
	if err != nil {
		return nil, err
	}
	c := &Cluster{machines: machines, addrs: make([]string, len(machines))}
	for i, m := range machines {
		<-m.Wait(bigmachine.Running)
		if err := m.Err(); err != nil {
			return nil, errors.E(errors.Unavailable, fmt.Sprintf("collective: machine %s failed to start", m.Addr), err)
		}
		log.Printf("collective: rank %d is machine %s", i, m.Addr)
		c.addrs[i] = m.Addr
	}
	return c, nil
}

// Size returns the number of machines in the cluster.
func (c *Cluster) Size() int { return len(c.machines) }

// Addrs returns the machine addresses, indexed by rank.
func (c *Cluster) Addrs() []string { return c.addrs }

// Run runs the Func registered with name on every machine of the
// cluster and returns each member's result indexed by rank. If any
// member fails, the others are canceled. The Params of ctx are passed
// to every member.
func (c *Cluster) Run(ctx context.Context, name string) ([][]byte, error) {
	if Lookup(name) == nil {
		return nil, errNoFunc(name)
	}
	params := ParamsFrom(ctx)
	comm := fmt.Sprintf("%s.%d", name, atomic.AddInt64(&c.runs, 1))
	results := make([][]byte, len(c.machines))
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range c.machines {
		i, m := i, m
		g.Go(func() error {
			req := RunRequest{Comm: comm, Func: name, Rank: i, Addrs: c.addrs, Params: params}
			return m.Call(ctx, "Mailbox.Run", req, &results[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func errNoFunc(name string) error {
	return errors.E(errors.NotExist, fmt.Sprintf("collective: no func named %q", name))
}

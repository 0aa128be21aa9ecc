// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package collective

import (
	"context"
	"sync"
)

// A cond is a condition variable that implements a context-aware Wait.
type cond struct {
	l     sync.Locker
	waitc chan struct{}
}

func newCond(l sync.Locker) *cond {
	return &cond{l: l}
}

// Broadcast notifies waiters of a state change. Broadcast must only
// be called while the cond's lock is held.
func (c *cond) Broadcast() {
	if c.waitc != nil {
		close(c.waitc)
		c.waitc = nil
	}
}

// Wait returns after the next call to Broadcast, or if the context
// is complete. The cond's lock must be held when calling Wait.
// An error returns with the context's error if the context completes
// while waiting.
func (c *cond) Wait(ctx context.Context) error {
	if c.waitc == nil {
		c.waitc = make(chan struct{})
	}
	waitc := c.waitc
	c.l.Unlock()
	var err error
	select {
	case <-waitc:
	case <-ctx.Done():
		err = ctx.Err()
	}
	c.l.Lock()
	return err
}

// A route identifies an ordered message stream: messages sent on the
// same route are received in the order in which they were sent.
// Ranks are world ranks.
type route struct {
	Comm     string
	From, To int
}

// A mailbox holds undelivered messages keyed by route. Messages are
// buffered without bound, so that sending never blocks on the
// receiver.
type mailbox struct {
	mu     sync.Mutex
	cond   *cond
	queues map[route][][]byte
}

func newMailbox() *mailbox {
	m := &mailbox{queues: make(map[route][][]byte)}
	m.cond = newCond(&m.mu)
	return m
}

// Put enqueues the payload p on route r.
func (m *mailbox) Put(r route, p []byte) {
	m.mu.Lock()
	m.queues[r] = append(m.queues[r], p)
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Take dequeues the next payload on route r, blocking until one is
// available or the context is done.
func (m *mailbox) Take(ctx context.Context, r route) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queues[r]) == 0 {
		if err := m.cond.Wait(ctx); err != nil {
			return nil, err
		}
	}
	q := m.queues[r]
	p := q[0]
	if len(q) == 1 {
		delete(m.queues, r)
	} else {
		q[0] = nil
		m.queues[r] = q[1:]
	}
	return p, nil
}

// Pending returns the number of undelivered messages.
func (m *mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for _, q := range m.queues {
		n += len(q)
	}
	return n
}

// A transport moves payloads between world ranks.
type transport interface {
	// Send delivers p on route r. Send returns once the payload is
	// buffered at the receiver.
	Send(ctx context.Context, r route, p []byte) error
	// Recv returns the next payload on route r.
	Recv(ctx context.Context, r route) ([]byte, error)
}

// memTransport connects ranks that share a process through a single
// mailbox.
type memTransport struct {
	box *mailbox
}

func (t memTransport) Send(ctx context.Context, r route, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.box.Put(r, p)
	return nil
}

func (t memTransport) Recv(ctx context.Context, r route) ([]byte, error) {
	return t.box.Take(ctx, r)
}

// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package collective

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCond(t *testing.T) {
	var (
		mu          sync.Mutex
		c           = newCond(&mu)
		start, done sync.WaitGroup
	)
	const N = 100
	start.Add(N)
	done.Add(N)
	for i := 0; i < N; i++ {
		go func() {
			mu.Lock()
			start.Done()
			if err := c.Wait(context.Background()); err != nil {
				t.Error(err)
			}
			mu.Unlock()
			done.Done()
		}()
	}
	start.Wait()
	mu.Lock()
	c.Broadcast()
	mu.Unlock()
	done.Wait()
}

func TestCondCancel(t *testing.T) {
	var (
		mu sync.Mutex
		c  = newCond(&mu)
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mu.Lock()
	if got, want := c.Wait(ctx), context.Canceled; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	mu.Unlock()
}

func TestMailboxOrder(t *testing.T) {
	var (
		box = newMailbox()
		ctx = context.Background()
		r   = route{Comm: "test", From: 1, To: 0}
		s   = route{Comm: "test", From: 2, To: 0}
	)
	box.Put(r, []byte("a"))
	box.Put(s, []byte("x"))
	box.Put(r, []byte("b"))
	if got, want := box.Pending(), 3; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	for _, want := range []string{"a", "b"} {
		p, err := box.Take(ctx, r)
		if err != nil {
			t.Fatal(err)
		}
		if got := string(p); got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	p, err := box.Take(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(p), "x"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := box.Pending(), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMailboxWait(t *testing.T) {
	box := newMailbox()
	r := route{Comm: "test", From: 0, To: 1}
	go func() {
		time.Sleep(10 * time.Millisecond)
		box.Put(r, []byte("late"))
	}()
	p, err := box.Take(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(p), "late"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := box.Take(ctx, r); err != context.DeadlineExceeded {
		t.Errorf("got %v, want %v", err, context.DeadlineExceeded)
	}
}

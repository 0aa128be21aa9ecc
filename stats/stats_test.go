// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package stats

import "testing"

func TestStats(t *testing.T) {
	coll := NewMap()
	var (
		x = coll.Int(SendBytes)
		m = coll.Int(SendMax)
		_ = coll.Int(RecvBytes)
	)
	if got, want := x.Get(), int64(0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	x.Add(123)
	x.Add(123)
	m.Max(10)
	m.Max(4)
	if got, want := x.Get(), int64(123*2); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := m.Get(), int64(10); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	all := coll.Snapshot()
	all.Merge(coll.Snapshot())
	if got, want := len(all), 3; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := all[SendBytes], int64(123*4); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := all[SendMax], int64(10); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := all[RecvBytes], int64(0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := all.String(), "recv.bytes:0 send.bytes:492 send.max:10"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNil(t *testing.T) {
	var m *Map
	v := m.Int("x")
	v.Add(1)
	v.Max(3)
	if got, want := v.Get(), int64(0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := m.Snapshot(); len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

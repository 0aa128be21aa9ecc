// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package linear

import (
	"encoding/binary"
	"reflect"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/boxlayout/internal/fault"
)

type fixed struct {
	A int32
	B [3]int64
	C uint8
}

// name is a variable-sized type with explicit linearization.
type name struct{ s string }

func (n name) LinearSize() int { return 2 + len(n.s) }

func (n name) LinearOut(p []byte) {
	binary.LittleEndian.PutUint16(p, uint16(len(n.s)))
	copy(p[2:], n.s)
}

func (n *name) LinearIn(p []byte) error {
	k := int(binary.LittleEndian.Uint16(p))
	n.s = string(p[2 : 2+k])
	return nil
}

func TestFixed(t *testing.T) {
	fz := fuzz.NewWithSeed(1)
	for i := 0; i < 50; i++ {
		var v fixed
		fz.Fuzz(&v)
		p := Marshal(v)
		if got, want := len(p), 4+24+1; got != want {
			t.Fatalf("got %v, want %v", got, want)
		}
		var w fixed
		if err := Unmarshal(p, &w); err != nil {
			t.Fatal(err)
		}
		if got, want := w, v; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

type platform struct {
	lo, hi [2]int
	n      uint
	ok     bool
	f      float32
}

func TestPlatformInts(t *testing.T) {
	if got, want := Size(42), 8; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	var n int
	if err := Unmarshal(Marshal(-42), &n); err != nil {
		t.Fatal(err)
	}
	if got, want := n, -42; got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	fz := fuzz.NewWithSeed(3)
	for i := 0; i < 50; i++ {
		var v platform
		fz.Fuzz(&v.lo)
		fz.Fuzz(&v.hi)
		fz.Fuzz(&v.n)
		fz.Fuzz(&v.ok)
		fz.Fuzz(&v.f)
		p := Marshal(v)
		if got, want := len(p), 4*8+8+1+4; got != want {
			t.Fatalf("got %v, want %v", got, want)
		}
		var w platform
		if err := Unmarshal(p, &w); err != nil {
			t.Fatal(err)
		}
		if got, want := w, v; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	var w platform
	if err := Unmarshal(make([]byte, 10), &w); !errors.Is(errors.Integrity, err) {
		t.Errorf("got %v, want integrity error", err)
	}
}

func TestExplicit(t *testing.T) {
	p := Marshal(name{"hello"})
	if got, want := len(p), 7; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	var n name
	if err := Unmarshal(p, &n); err != nil {
		t.Fatal(err)
	}
	if got, want := n.s, "hello"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNotLinearizable(t *testing.T) {
	for _, fn := range []func(){
		func() { Size("a string") },
		func() { Size(new(int)) },
		func() { Size(struct{ p *int }{}) },
		func() { Marshal([]int64{1, 2}) },
	} {
		err := fault.Catch(fn)
		if err == nil || !errors.Is(errors.Invalid, err) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	}
}

func TestSlice(t *testing.T) {
	fz := fuzz.NewWithSeed(2)
	var strs []string
	fz.NilChance(0).NumElements(10, 20).Fuzz(&strs)
	names := make([]name, len(strs))
	for i := range strs {
		if len(strs[i]) > 100 {
			strs[i] = strs[i][:100]
		}
		names[i] = name{strs[i]}
	}
	p := MarshalSlice(names)
	if got, want := len(p), SliceSize(names); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	out, err := SliceIn[name](p)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out, names) {
		t.Errorf("got %v, want %v", out, names)
	}
	// Random access decodes one element only.
	for _, i := range []int{len(names) - 1, 0, len(names) / 2} {
		var n name
		if err := SliceAt(p, i, &n); err != nil {
			t.Fatal(err)
		}
		if got, want := n, names[i]; got != want {
			t.Errorf("element %d: got %v, want %v", i, got, want)
		}
	}
}

func TestSliceLayout(t *testing.T) {
	p := MarshalSlice([]int32{7, 8, 9})
	want := []uint32{3, 16, 20, 24, 7, 8, 9}
	if got, want := len(p), 4*len(want); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, w := range want {
		if got := binary.LittleEndian.Uint32(p[4*i:]); got != w {
			t.Errorf("word %d: got %v, want %v", i, got, w)
		}
	}
}

func TestEmptySlice(t *testing.T) {
	p := MarshalSlice([]int64(nil))
	if got, want := len(p), 4; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	out, err := SliceIn[int64](p)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Errorf("got %v, want empty", out)
	}
}

func TestCorrupt(t *testing.T) {
	if _, err := SliceIn[int32]([]byte{1}); !errors.Is(errors.Integrity, err) {
		t.Errorf("got %v, want integrity error", err)
	}
	if _, err := SliceIn[int32]([]byte{9, 0, 0, 0}); !errors.Is(errors.Integrity, err) {
		t.Errorf("got %v, want integrity error", err)
	}
}

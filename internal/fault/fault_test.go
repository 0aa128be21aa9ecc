// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package fault

import (
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
)

func TestCatch(t *testing.T) {
	for _, c := range []struct {
		fn   func()
		kind errors.Kind
	}{
		{func() { Definitionf("closed %d", 1) }, errors.NotAllowed},
		{func() { Argumentf("bad rank %d", -1) }, errors.Invalid},
		{func() { Allocationf("pool exhausted") }, errors.OOM},
		{func() { Invariantf("not packed") }, errors.Precondition},
		{func() { Check(false, "check") }, errors.Precondition},
	} {
		err := Catch(c.fn)
		if err == nil {
			t.Fatal("expected panic")
		}
		if !errors.Is(c.kind, err) {
			t.Errorf("got %v, want kind %v", err, c.kind)
		}
		if got, want := err.Severity, errors.Fatal; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	if err := Catch(func() { Check(true, "fine") }); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	err := Catch(func() { Argumentf("count mismatch: %d != %d", 3, 4) })
	if !strings.Contains(err.Error(), "count mismatch: 3 != 4") {
		t.Errorf("bad message %q", err.Error())
	}
}

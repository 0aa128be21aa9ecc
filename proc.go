// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package boxlayout

// A Proc identifies the calling process within its group.
// *collective.Group implements Proc.
type Proc interface {
	// Rank returns the process's zero-based rank.
	Rank() int
	// Size returns the number of processes in the group.
	Size() int
}

type serial struct{}

func (serial) Rank() int { return 0 }
func (serial) Size() int { return 1 }

// Serial is the Proc of a single-process program.
var Serial Proc = serial{}

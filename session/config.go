// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package session

import (
	"github.com/grailbio/base/config"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/boxlayout"
)

func init() {
	config.Register("boxlayout", func(inst *config.Constructor) {
		sess := newSession()
		inst.IntVar(&sess.procs, "procs", 1, "number of processes in the session's group")
		inst.IntVar(&sess.threshold, "morton-threshold", boxlayout.MortonThreshold, "box count below which Morton ordering is serial")
		var system bigmachine.System
		inst.InstanceVar(&system, "system", "", "the bigmachine system on which processes run; local goroutines if empty")
		inst.Doc = "boxlayout configures the processes on which layouts are partitioned"
		inst.New = func() (interface{}, error) {
			sess.system = system
			sess.start()
			return sess, nil
		}
	})
}

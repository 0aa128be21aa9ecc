// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package session runs registered collective funcs on a group of
// processes, either as goroutines of the calling binary or on
// machines managed by bigmachine.
//
// Funcs are registered with collective.Register during package
// initialization, before Start is called:
//
//	func init() {
//		collective.Register("partition", func(ctx context.Context, g *collective.Group) ([]byte, error) {
//			l, err := boxlayout.Partition(ctx, g, boxes)
//			...
//		})
//	}
//
//	func main() {
//		sess := session.Start(session.Procs(8))
//		defer sess.Shutdown()
//		results, err := sess.Run(ctx, "partition")
//		...
//	}
//
// With a bigmachine system, Start launches the binary on every
// machine; in those copies Start does not return, and the machines
// serve the funcs that the driver runs.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/grailbio/base/backgroundcontext"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/boxlayout"
	"github.com/grailbio/boxlayout/collective"
)

// A Session is a group of processes on which collective funcs are run.
// A session is valid for the run of the binary and may run any number
// of funcs, one after another or concurrently.
type Session struct {
	context.Context
	procs     int
	threshold int
	system    bigmachine.System
	params    []bigmachine.Param
	status    *status.Status

	b        *bigmachine.B
	shutdown func()

	mu      sync.Mutex
	cluster *collective.Cluster
}

// An Option represents a session configuration parameter value.
type Option func(s *Session)

// Local configures a session that runs every process as a goroutine of
// the calling binary.
var Local Option = func(s *Session) {
	s.system = nil
}

// Bigmachine configures a session that runs every process on its own
// machine of the provided bigmachine system. Params are applied to
// each machine.
func Bigmachine(system bigmachine.System, params ...bigmachine.Param) Option {
	return func(s *Session) {
		s.system = system
		s.params = params
	}
}

// Procs configures the number of processes in the session's group.
func Procs(n int) Option {
	if n <= 0 {
		panic("session.Procs: n <= 0")
	}
	return func(s *Session) {
		s.procs = n
	}
}

// MortonThreshold sets the list length below which Morton ordering is
// serial for funcs run by the session. It does not change
// boxlayout.MortonThreshold.
func MortonThreshold(n int) Option {
	if n <= 0 {
		panic("session.MortonThreshold: n <= 0")
	}
	return func(s *Session) {
		s.threshold = n
	}
}

// Status configures the session with a status object to which runs are
// reported.
func Status(status *status.Status) Option {
	return func(s *Session) {
		s.status = status
	}
}

func newSession() *Session {
	return &Session{Context: backgroundcontext.Get()}
}

// Start creates and starts a session configured by the provided
// options. Without options, the session runs a single local process.
func Start(options ...Option) *Session {
	s := newSession()
	for _, opt := range options {
		opt(s)
	}
	s.start()
	return s
}

func (s *Session) start() {
	if s.procs == 0 {
		s.procs = 1
	}
	if s.system != nil {
		s.b = bigmachine.Start(s.system)
		s.shutdown = s.b.Shutdown
	}
}

// Procs returns the number of processes in the session's group.
func (s *Session) Procs() int { return s.procs }

// Status returns the session's status aggregator, if any.
func (s *Session) Status() *status.Status { return s.status }

// Run runs the collective func registered with name on every process of
// the session and returns the processes' results indexed by rank.
func (s *Session) Run(ctx context.Context, name string) ([][]byte, error) {
	if collective.Lookup(name) == nil {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("session: no func named %q", name))
	}
	if s.threshold > 0 {
		ctx = boxlayout.WithMortonThreshold(ctx, s.threshold)
	}
	var task *status.Task
	if s.status != nil {
		task = s.status.Group("boxlayout").Startf("%s", name)
		task.Printf("running on %d processes", s.procs)
		defer task.Done()
	}
	if s.b == nil {
		return collective.RunLocal(ctx, s.procs, name)
	}
	c, err := s.startCluster(ctx)
	if err != nil {
		return nil, err
	}
	results, err := c.Run(ctx, name)
	if err != nil {
		log.Error.Printf("session: run %s: %v", name, err)
	}
	return results, err
}

// Must is a version of Run that panics if the func fails.
func (s *Session) Must(ctx context.Context, name string) [][]byte {
	results, err := s.Run(ctx, name)
	if err != nil {
		log.Panicf("session.Run: %v", err)
	}
	return results
}

func (s *Session) startCluster(ctx context.Context) (*collective.Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cluster != nil {
		return s.cluster, nil
	}
	c, err := collective.StartCluster(ctx, s.b, s.procs, s.params...)
	if err != nil {
		return nil, err
	}
	log.Printf("session: started %d machines", c.Size())
	s.cluster = c
	return c, nil
}

// HandleDebug registers bigmachine's diagnostic handlers on mux. It
// does nothing for a local session.
func (s *Session) HandleDebug(mux *http.ServeMux) {
	if s.b != nil {
		s.b.HandleDebug(mux)
	}
}

// Shutdown tears down the session's machines. It should be called when
// the session is discarded.
func (s *Session) Shutdown() {
	if s.shutdown != nil {
		s.shutdown()
	}
}

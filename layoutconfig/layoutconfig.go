// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package layoutconfig creates a session from a shared configuration.
// It uses the configuration mechanism in package
// github.com/grailbio/base/config and reads a default profile from
// $HOME/.boxlayout/config. A profile might contain:
//
//	param boxlayout (
//		procs = 8
//		system = bigmachine/ec2system
//		morton-threshold = 4096
//	)
package layoutconfig

import (
	"flag"
	"os"

	"github.com/grailbio/base/config"
	"github.com/grailbio/base/must"

	// Used to provide ec2system.System bigmachines.
	_ "github.com/grailbio/bigmachine/ec2system"
	"github.com/grailbio/boxlayout/session"
)

// Path is the location of the profile read by Parse.
var Path = os.ExpandEnv("$HOME/.boxlayout/config")

// Parse registers configuration flags, calls flag.Parse, and returns
// the session configured by the profile at Path and any flags
// provided. Parse panics if the session cannot be created.
func Parse() (sess *session.Session, shutdown func()) {
	config.RegisterFlags("", Path)
	flag.Parse()
	must.Nil(config.ProcessFlags())
	config.Must("boxlayout", &sess)
	return sess, sess.Shutdown
}

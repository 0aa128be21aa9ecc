// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package layoutcmd provides utilities for command line tools that
// partition layouts on a session. Main configures a session from a
// common set of flags and then invokes the tool's driver code:
//
//	func main() {
//		layoutcmd.Main(func(sess *session.Session, args []string) error {
//			results, err := sess.Run(context.Background(), "mytool.partition")
//			...
//		})
//	}
package layoutcmd

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Pprof is exposed on the diagnostic web server.
	"os"
	"sort"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/boxlayout/layoutflags"
	"github.com/grailbio/boxlayout/session"
)

// Main parses the command line flags, starts a session as they
// specify, and invokes main with the session and the remaining
// arguments. Main does not return: the process exits with code 1 if
// main returns an error and 0 otherwise.
//
// Main starts a diagnostic web server (default address :3333) on
// http.DefaultServeMux, serving pprof handlers, the session status,
// and bigmachine's handlers when processes run on machines.
func Main(main func(sess *session.Session, args []string) error) {
	var fl layoutflags.Flags
	layoutflags.RegisterFlags(flag.CommandLine, &fl, "")
	log.AddFlags()
	flag.Parse()
	sess := Init(fl)
	err := main(sess, flag.Args())
	sess.Shutdown()
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(0)
}

// Init starts a session as specified by the flags. If the flags ask
// for system help, Init prints it and exits.
func Init(fl layoutflags.Flags) *session.Session {
	if fl.SystemHelp {
		printSystemHelp(fl)
		os.Exit(0)
	}
	sess := session.Start(fl.SessionOptions()...)
	DisplayStatus(fl, sess)
	return sess
}

func printSystemHelp(fl layoutflags.Flags) {
	providers, profiles := layoutflags.ProvidersAndProfiles()
	sort.Strings(providers)
	w := fl.Output()
	fmt.Fprintf(w, "%s\n\n", layoutflags.SystemHelpLong)
	fmt.Fprintf(w, "The available providers are: %v\n", strings.Join(providers, ", "))
	var lines []string
	for k, v := range profiles {
		lines = append(lines, fmt.Sprintf("%v is shorthand for: %v\n", k, v))
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprint(w, line)
	}
}

// DisplayStatus arranges for the session's status to be shown on the
// console, on the web page /debug/status of http.DefaultServeMux, or
// both, as the flags specify.
func DisplayStatus(fl layoutflags.Flags, sess *session.Session) {
	if sess.Status() == nil {
		return
	}
	if fl.ConsoleStatus {
		var console status.Reporter
		go console.Go(os.Stdout, sess.Status())
	}
	if len(fl.HTTPAddress.Address) > 0 {
		sess.HandleDebug(http.DefaultServeMux)
		http.Handle("/debug/status", status.Handler(sess.Status()))
		go func() {
			log.Printf("HTTP status at: %v", fl.HTTPAddress)
			if err := http.ListenAndServe(fl.HTTPAddress.Address, nil); err != nil {
				log.Error.Printf("failed to start HTTP at %v: %v", fl.HTTPAddress, err)
			}
		}()
	}
}

// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package layoutflags provides flag support for command line
// applications that partition layouts on a session.
package layoutflags

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/bigmachine/ec2system"
	"github.com/grailbio/boxlayout"
	"github.com/grailbio/boxlayout/session"
)

var (
	mu        sync.Mutex
	providers = map[string]Provider{} // protected by mu
	profiles  = map[string]string{}   // protected by mu
)

// Provider represents a process provider that can be configured by
// setting options via Set.
type Provider interface {
	// Name returns the name of the provider.
	Name() string
	// Set sets one option, specified as key=val.
	Set(string) error
	// SessionOption returns the session.Option that requests
	// processes as configured by the currently set options.
	SessionOption() session.Option
	// DefaultProcs returns the default number of processes for the
	// provider.
	DefaultProcs() int
}

// RegisterSystemProvider registers a provider of processes under name.
func RegisterSystemProvider(name string, provider Provider) {
	mu.Lock()
	defer mu.Unlock()
	if _, present := providers[name]; present {
		log.Panicf("system %s is already registered", name)
	}
	providers[name] = provider
}

// RegisterSystemProfile registers a named shorthand for a system and
// its options. For example, after
//
//	layoutflags.RegisterSystemProfile("big", "ec2:instance=m5.4xlarge")
//
// the flag value -system=big is a synonym for
// -system=ec2:instance=m5.4xlarge.
func RegisterSystemProfile(name, profile string) {
	mu.Lock()
	defer mu.Unlock()
	if _, present := providers[name]; present {
		log.Panicf("profile %s is already used as a provider name", name)
	}
	if _, present := profiles[name]; present {
		log.Panicf("profile %s is already registered", name)
	}
	profiles[name] = profile
}

// ProvidersAndProfiles returns the names of the registered providers
// and the registered profiles.
func ProvidersAndProfiles() ([]string, map[string]string) {
	mu.Lock()
	defer mu.Unlock()
	prv := make([]string, 0, len(providers))
	for k := range providers {
		prv = append(prv, k)
	}
	prf := make(map[string]string, len(profiles))
	for k, v := range profiles {
		prf[k] = v
	}
	return prv, prf
}

// Internal runs processes as goroutines of the calling binary.
type Internal struct{}

// Name implements Provider.Name.
func (*Internal) Name() string { return "internal" }

// Set implements Provider.Set.
func (*Internal) Set(string) error {
	return fmt.Errorf("the internal provider does not support any configuration")
}

// SessionOption implements Provider.SessionOption.
func (*Internal) SessionOption() session.Option { return session.Local }

// DefaultProcs implements Provider.DefaultProcs.
func (*Internal) DefaultProcs() int { return runtime.GOMAXPROCS(0) }

// Local runs each process as a separate local bigmachine process.
type Local struct{}

// Name implements Provider.Name.
func (*Local) Name() string { return "local" }

// Set implements Provider.Set.
func (*Local) Set(string) error {
	return fmt.Errorf("the local provider does not support any configuration")
}

// SessionOption implements Provider.SessionOption.
func (*Local) SessionOption() session.Option { return session.Bigmachine(bigmachine.Local) }

// DefaultProcs implements Provider.DefaultProcs.
func (*Local) DefaultProcs() int { return 2 }

// EC2 runs each process on its own EC2 instance.
type EC2 struct {
	InstanceType    string
	InstanceProfile string
	// Dataspace and Rootsize are volume sizes in GiB.
	Dataspace, Rootsize uint
	OnDemand            bool
}

// Name implements Provider.Name.
func (*EC2) Name() string { return "EC2" }

// Set implements Provider.Set.
func (ec2 *EC2) Set(v string) error {
	key, val, ok := strings.Cut(v, "=")
	if !ok || strings.Contains(val, "=") {
		return fmt.Errorf("not in key=val format %q", v)
	}
	switch key {
	case "instance":
		ec2.InstanceType = val
	case "profile":
		ec2.InstanceProfile = val
	case "dataspace", "rootsize":
		n, err := strconv.ParseUint(val, 10, 0)
		if err != nil {
			return fmt.Errorf("%s: not an unsigned int: %v", key, val)
		}
		if key == "dataspace" {
			ec2.Dataspace = uint(n)
		} else {
			ec2.Rootsize = uint(n)
		}
	case "ondemand":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("ondemand: not a bool: %v", val)
		}
		ec2.OnDemand = b
	default:
		return fmt.Errorf("unsupported option: %v", key)
	}
	return nil
}

// DefaultProcs implements Provider.DefaultProcs.
func (*EC2) DefaultProcs() int { return 4 }

// SessionOption implements Provider.SessionOption.
func (ec2 *EC2) SessionOption() session.Option {
	system := &ec2system.System{
		Username:        "unknown",
		InstanceType:    ec2.InstanceType,
		InstanceProfile: ec2.InstanceProfile,
		Dataspace:       ec2.Dataspace,
		Diskspace:       ec2.Rootsize,
		OnDemand:        ec2.OnDemand,
	}
	if u, err := user.Current(); err == nil {
		system.Username = u.Username
	} else {
		log.Printf("layoutflags: get current user: %v", err)
	}
	return session.Bigmachine(system)
}

func init() {
	RegisterSystemProvider("local", &Local{})
	RegisterSystemProvider("internal", &Internal{})
	RegisterSystemProvider("ec2", &EC2{})
}

// SystemHelpShort is a short explanation of the allowed system flag
// values.
func SystemHelpShort(prefix string) string {
	return fmt.Sprintf("a system is specified as {internal,local,ec2:[key=val,],name}, use -%s for more information", prefix+"system-help")
}

// SystemHelpLong explains the allowed system flag values in full.
const SystemHelpLong = `A system is specified as follows:

<system-type>:<options> where options is [key=value,]+

The supported system types and their options are:

internal: goroutines of this process, the default.
local: separate processes on this machine.
ec2: AWS EC2 instances. The supported options are:
	instance=<AWS instance type> - the AWS instance type, e.g. m5.xlarge
	dataspace=<number> - size of the data volume in GiB
	rootsize=<number> - size of the root volume in GiB
	ondemand=<bool> - true to use on-demand rather than spot instances
	profile=<name> - the AWS instance profile to use

Applications may also register profiles that name a system together
with its options.
`

// SystemFlag is a flag.Value that selects a provider and its options.
type SystemFlag struct {
	Provider  Provider
	Options   []string
	Specified bool
}

// String implements flag.Value.String.
func (sys *SystemFlag) String() string {
	if sys.Provider == nil {
		return ""
	}
	if len(sys.Options) == 0 {
		return sys.Provider.Name()
	}
	return fmt.Sprintf("%v:%v", sys.Provider.Name(), strings.Join(sys.Options, ","))
}

// Set implements flag.Value.Set. A value names a provider or a
// profile, optionally followed by a colon and comma-separated options;
// a profile's own options precede those given in the value.
func (sys *SystemFlag) Set(v string) error {
	name, options := splitSystem(v)
	mu.Lock()
	if profile, ok := profiles[name]; ok {
		base, baseOptions := splitSystem(profile)
		name, options = base, append(baseOptions, options...)
	}
	provider := providers[name]
	mu.Unlock()
	if provider == nil {
		return fmt.Errorf("unsupported system or profile: %v", name)
	}
	for _, opt := range options {
		if err := provider.Set(opt); err != nil {
			return err
		}
	}
	sys.Provider, sys.Options, sys.Specified = provider, options, true
	return nil
}

func splitSystem(v string) (name string, options []string) {
	name, rest, ok := strings.Cut(v, ":")
	if ok {
		options = strings.Split(rest, ",")
	}
	return name, options
}

// Get implements flag.Getter.
func (sys *SystemFlag) Get() interface{} { return sys.String() }

// Flags holds the flags that configure a session.
type Flags struct {
	System          SystemFlag
	SystemHelp      bool
	HTTPAddress     cmdutil.NetworkAddressFlag
	ConsoleStatus   bool
	Procs           int
	MortonThreshold int
	fs              *flag.FlagSet
}

// Output returns the writer for help and usage messages.
func (f *Flags) Output() io.Writer {
	if f.fs == nil {
		return os.Stderr
	}
	if w := f.fs.Output(); w != nil {
		return w
	}
	return os.Stderr
}

// RegisterFlags registers the session flags with fs, each name
// prefixed with prefix.
func RegisterFlags(fs *flag.FlagSet, f *Flags, prefix string) {
	fs.Var(&f.System, prefix+"system", SystemHelpShort(prefix))
	must(f.System.Set("internal"))
	f.System.Specified = false
	fs.Var(&f.HTTPAddress, prefix+"http", "address of http status server")
	must(f.HTTPAddress.Set(":3333"))
	f.HTTPAddress.Specified = false
	fs.BoolVar(&f.ConsoleStatus, prefix+"console-status", false, "print status to stdout")
	fs.IntVar(&f.Procs, prefix+"procs", 0, "number of processes; 0 requests the system's default")
	fs.IntVar(&f.MortonThreshold, prefix+"morton-threshold", boxlayout.MortonThreshold, "box count below which Morton ordering is serial")
	fs.BoolVar(&f.SystemHelp, prefix+"system-help", false, "provide help on system providers and profiles")
	f.fs = fs
}

// SessionOptions returns the session options selected by the flags.
func (f *Flags) SessionOptions() []session.Option {
	var st status.Status
	options := []session.Option{session.Status(&st), f.System.Provider.SessionOption()}
	if f.Procs > 0 {
		options = append(options, session.Procs(f.Procs))
	} else {
		options = append(options, session.Procs(f.System.Provider.DefaultProcs()))
	}
	if f.MortonThreshold > 0 {
		options = append(options, session.MortonThreshold(f.MortonThreshold))
	}
	return options
}

func must(err error) {
	if err != nil {
		log.Panicf("layoutflags: %v", err)
	}
}

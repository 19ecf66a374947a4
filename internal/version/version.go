// Package version reports which skypack build is running.
//
// Release builds set Version, Commit and Date with -ldflags. Builds made with
// go install or go build from a checkout leave them unset, and the module
// version and VCS stamp recorded in the binary are used instead.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the resolved build identity.
type Info struct {
	Version string
	Commit  string
	Date    string
	// Modified reports uncommitted changes in the build's checkout.
	Modified bool
}

// Get returns the build identity, filling fields not set at link time from
// the build information embedded in the binary.
func Get() Info {
	return resolve(debug.ReadBuildInfo())
}

func resolve(bi *debug.BuildInfo, ok bool) Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	if !ok || bi == nil {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "none" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// Short returns the version with an abbreviated commit, e.g. "v1.2.0+3f2a9c1".
func (i Info) Short() string {
	if i.Commit == "none" {
		return i.Version
	}
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	s := i.Version + "+" + commit
	if i.Modified {
		s += ".dirty"
	}
	return s
}

// String returns the version, commit and build date.
func (i Info) String() string {
	commit := i.Commit
	if i.Modified {
		commit += ", modified"
	}
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, commit, i.Date)
}

// String returns the running build's identity in long form.
func String() string {
	return Get().String()
}

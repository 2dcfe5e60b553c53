// Package version reports which build of nanrtt is running.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/gangulaabhinav/ARWalking/internal/version.Version=v0.3.0 \
//	                   -X github.com/gangulaabhinav/ARWalking/internal/version.Commit=abc1234"
var (
	Version = ""
	Commit  = ""
)

// Info describes the running binary.
type Info struct {
	Version   string
	Commit    string
	GoVersion string
	// Modified is set for builds from a dirty work tree.
	Modified bool
}

func (i Info) String() string {
	commit := i.Commit
	if i.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit: %s, %s)", i.Version, commit, i.GoVersion)
}

var (
	once sync.Once
	info Info
)

// Get returns the build information. Values not set with ldflags come from
// the VCS stamp of the build, and fall back to "dev" and "unknown".
func Get() Info {
	once.Do(func() {
		info = resolve(Version, Commit, readBuildSettings())
	})
	return info
}

func readBuildSettings() map[string]string {
	settings := make(map[string]string)
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return settings
	}
	for _, s := range bi.Settings {
		settings[s.Key] = s.Value
	}
	if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		settings["main.version"] = bi.Main.Version
	}
	return settings
}

func resolve(version, commit string, settings map[string]string) Info {
	i := Info{
		Version:   version,
		Commit:    commit,
		GoVersion: runtime.Version(),
		Modified:  settings["vcs.modified"] == "true",
	}
	if i.Version == "" {
		i.Version = settings["main.version"]
	}
	if i.Version == "" {
		i.Version = "dev"
		if t := settings["vcs.time"]; len(t) >= 10 {
			i.Version = "dev-" + t[:4] + t[5:7] + t[8:10]
		}
	}
	if i.Commit == "" {
		i.Commit = settings["vcs.revision"]
		if len(i.Commit) > 7 {
			i.Commit = i.Commit[:7]
		}
	}
	if i.Commit == "" {
		i.Commit = "unknown"
	}
	return i
}

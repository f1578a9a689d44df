// Package version reports the build identity of the brc binary.
package version

import (
	"fmt"
	"runtime/debug"
)

const unknown = "unknown"

// Set at build time with -ldflags "-X github.com/LetzteFee/1brc/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// Info is the resolved build identity.
type Info struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
}

// Get returns the build identity. Fields not set through ldflags fall back
// to the module and VCS data embedded by the Go toolchain.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date, GoVersion: unknown}

	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	info.GoVersion = build.GoVersion

	if info.Version == "dev" && build.Main.Version != "" && build.Main.Version != "(devel)" {
		info.Version = build.Main.Version
	}

	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.Commit == unknown {
				info.Commit = setting.Value
			}
		case "vcs.time":
			if info.Date == unknown {
				info.Date = setting.Value
			}
		}
	}

	return info
}

// String renders the identity on one line.
func (i Info) String() string {
	return fmt.Sprintf("brc %s (commit: %s, built: %s, %s)", i.Version, i.Commit, i.Date, i.GoVersion)
}

// Package version holds build metadata stamped in by the linker:
//
//	go build -ldflags "-X github.com/dkoosis/testplan/internal/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are populated by the Go linker (LDFLAGS) at build time.
var (
	Version    = "dev"     // Default value if not built with LDFLAGS
	CommitHash = "unknown" // Default value
	BuildDate  = "unknown" // Default value
)

// String describes the build on one line. For go install builds that were
// not stamped, the module version and VCS revision are read from build info.
func String() string {
	v, commit := Version, CommitHash
	if info, ok := debug.ReadBuildInfo(); ok {
		if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
		if commit == "unknown" {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 12 {
					commit = s.Value[:12]
				}
			}
		}
	}
	return fmt.Sprintf("testplan %s (commit %s, built %s, %s)", v, commit, BuildDate, runtime.Version())
}

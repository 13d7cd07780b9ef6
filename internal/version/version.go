// Package version reports the build version of ghexporter.
package version

import "runtime/debug"

// Version is set at build time with
// -ldflags "-X github.com/neox5/ghexporter/internal/version.Version=v1.2.3".
var Version = ""

// String returns the build version, falling back to the module version
// recorded by the go tool and then to "dev".
func String() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

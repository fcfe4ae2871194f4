// Package buildmeta holds the testbed version. Release builds set it with
//
//	go build -ldflags="-X github.com/devantler-tech/testbed/internal/buildmeta.Version=v1.0.0 ..."
//
// and `go install` builds fall back to the module and VCS data the go tool
// embeds in the binary.
//
//nolint:gochecknoglobals
package buildmeta

import "runtime/debug"

var (
	// Version is the semantic version of the build (e.g., "v1.0.0").
	Version = "dev"
	// Commit is the Git SHA of the build.
	Commit = "none"
	// Date is the build timestamp.
	Date = "unknown"
)

// Build is the version triple printed by `testbed --version`.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Current returns the ldflags values, completed from the embedded build info.
func Current() Build {
	info, _ := debug.ReadBuildInfo()

	return Complete(Build{Version: Version, Commit: Commit, Date: Date}, info)
}

// Complete fills the placeholder fields of build from info. info may be nil.
func Complete(build Build, info *debug.BuildInfo) Build {
	if info == nil {
		return build
	}

	if build.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		build.Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch {
		case setting.Key == "vcs.revision" && build.Commit == "none":
			build.Commit = setting.Value
		case setting.Key == "vcs.time" && build.Date == "unknown":
			build.Date = setting.Value
		}
	}

	return build
}

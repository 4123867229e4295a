// Package build holds build information, set at link time with -ldflags, e.g.,
// -X github.com/talos-perf/talos/internal/talos/build.ReleaseVersion=v0.3.0
package build

var (
	ReleaseVersion = "UNKNOWN"
	GitCommit      = "UNKNOWN"
	GoVersion      = "UNKNOWN"
	BuildTime      = "UNKNOWN"
)

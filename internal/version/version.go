// Package version exposes build metadata injected via ldflags.
package version

import "fmt"

// Build-time variables set by ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the version, git commit, and build date.
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String returns a single-line human-readable version description.
func String() string {
	return fmt.Sprintf("engrave %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}

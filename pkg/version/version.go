// Package version provides build version information for groundctx.
package version

import "fmt"

// Build information. Populated at build time via -ldflags:
//
//	-X github.com/groundctx/groundctx/pkg/version.Version=v0.3.0
//	-X github.com/groundctx/groundctx/pkg/version.Commit=abc1234
//	-X github.com/groundctx/groundctx/pkg/version.Date=2026-08-24
var (
	// Version is the semantic version of the build.
	Version = "dev"

	// Commit is the git commit hash of the build.
	Commit = "unknown"

	// Date is the build date.
	Date = "unknown"
)

// String returns the full version string.
func String() string {
	return fmt.Sprintf("groundctx %s (commit %s, built %s)", Version, Commit, Date)
}

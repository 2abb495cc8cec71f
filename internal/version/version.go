// Package version holds the build-time version variables for the orgsweep
// binary. The zero values ("dev", "none", "unknown") are used for local
// builds; release builds set them via -ldflags.
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns the formatted version string printed by orgsweep version.
func Info() string {
	return fmt.Sprintf(
		"orgsweep version %s\ncommit: %s\nbuilt: %s\n",
		Version,
		Commit,
		Date,
	)
}

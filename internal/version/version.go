/*
Package version provides version information for mcpgw.

Version values are set via ldflags during build:
  - Version: git tag (e.g., v1.0.1)
  - Commit: git commit hash (short form)
  - Date: build date in UTC (YYYY-MM-DD)

If not set via ldflags, defaults to "dev" build.
*/
package version

// Version information (set via ldflags during build)
var (
	// Version is the current version (e.g., v1.0.1)
	Version = "dev"
	// Commit is the git commit hash (short form)
	Commit = "none"
	// Date is the build date in UTC (YYYY-MM-DD)
	Date = "unknown"
)

// GetVersionComponents returns the raw version, commit, and date values
func GetVersionComponents() (string, string, string) {
	return Version, Commit, Date
}

// GetVersion returns version information as a formatted string
func GetVersion() string {
	if Version == "dev" {
		return Version + " (development build)"
	}
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}

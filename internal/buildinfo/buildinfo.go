// Package buildinfo carries version stamps set with -ldflags -X.
package buildinfo

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the version, or the commit for untagged builds.
func Short() string {
	switch {
	case Version != "" && Version != "dev":
		return Version
	case Commit != "" && Commit != "unknown":
		return Commit
	}
	return "dev"
}

// String is the full stamp, e.g. "v1.2.0 (commit abc123, built 2024-05-01)".
func String() string {
	return Version + " (commit " + Commit + ", built " + Date + ")"
}

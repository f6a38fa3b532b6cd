package version

import "fmt"

// These variables are injected at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String returns a human-readable version string.
func String() string {
	return fmt.Sprintf("dockerbuild-images %s (%s, %s)", Version, Commit, BuildDate)
}

// IsDev reports whether this binary was built without a release version.
func IsDev() bool {
	return Version == "" || Version == "dev"
}

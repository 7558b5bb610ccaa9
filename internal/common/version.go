package common

// Version, Build, and GitCommit are overridden at build time via -ldflags.
var (
	Version   = "0.3.0"
	Build     = "dev"
	GitCommit = "unknown"
)

// GetVersion returns the application version string.
func GetVersion() string {
	return Version
}

// GetBuild returns the build identifier.
func GetBuild() string {
	return Build
}

// GetGitCommit returns the git commit the binary was built from.
func GetGitCommit() string {
	return GitCommit
}

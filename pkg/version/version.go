package version

// Version is the service version, overridden at build time via -ldflags.
var Version = "dev"

// GitCommit is the git commit hash, overridden at build time via -ldflags.
var GitCommit = "unknown"

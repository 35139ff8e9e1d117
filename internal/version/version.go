// Package version holds the build version stamped at release time.
package version

// Version is overridden with -ldflags on release builds.
var Version = "dev"

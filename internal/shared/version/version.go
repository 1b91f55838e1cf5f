// Package version holds build metadata injected with -ldflags.
package version

// Version is overridden at build time:
//
//	go build -ldflags "-X importcheck/internal/shared/version.Version=v1.2.0"
var Version = "dev"

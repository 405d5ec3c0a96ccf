// Package version carries build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/ejmockler/indra-cogex-mcp/pkg/version.Version=1.4.0"
package version

import (
	"fmt"
	"runtime"
)

// Name is the binary name reported by String and the OTel resource.
const Name = "cogex-adapter"

// Version is the semantic version, injected at build time.
var Version = "dev"

// GitCommit is the git commit hash, injected at build time.
var GitCommit = "unknown"

// BuildTime is the timestamp when the binary was built, injected at build time.
var BuildTime = "unknown"

// BuildInfo is the structured form printed by `cogex-adapter version -o json`.
type BuildInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// String returns a one-line version string.
func String() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, go: %s)",
		Name, Version, GitCommit, BuildTime, runtime.Version())
}

// Get returns the build metadata.
func Get() BuildInfo {
	return BuildInfo{
		Name:      Name,
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

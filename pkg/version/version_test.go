package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuild(t *testing.T, version, commit, built string) {
	t.Helper()
	origVersion, origCommit, origBuilt := Version, GitCommit, BuildTime
	t.Cleanup(func() {
		Version, GitCommit, BuildTime = origVersion, origCommit, origBuilt
	})
	Version, GitCommit, BuildTime = version, commit, built
}

func TestString(t *testing.T) {
	withBuild(t, "1.2.3", "abc123def", "2024-01-15T10:30:00Z")

	s := String()
	assert.Contains(t, s, "cogex-adapter 1.2.3")
	assert.Contains(t, s, "commit: abc123def")
	assert.Contains(t, s, "built: 2024-01-15T10:30:00Z")
	assert.Contains(t, s, runtime.Version())
}

func TestGet(t *testing.T) {
	withBuild(t, "2.0.0", "fedcba987", "2024-02-20T15:45:30Z")

	assert.Equal(t, BuildInfo{
		Name:      "cogex-adapter",
		Version:   "2.0.0",
		Commit:    "fedcba987",
		BuildTime: "2024-02-20T15:45:30Z",
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}, Get())
}

func TestDefaultsNotEmpty(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, GitCommit)
	assert.NotEmpty(t, BuildTime)
}

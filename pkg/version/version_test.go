package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func setVersion(t *testing.T, v, commit, built string) {
	t.Helper()
	oldV, oldC, oldB := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = v, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldV, oldC, oldB })
}

func TestGetVersionInfo(t *testing.T) {
	is := is.New(t)
	info := GetVersionInfo()
	is.True(strings.HasPrefix(info, "utero-voice version dev"))
	is.True(strings.Contains(info, "commit: unknown"))
	is.True(strings.Contains(info, runtime.Version()))

	setVersion(t, "v0.4.0", "9f1c2ab", "2026-10-01T08:00:00Z")
	is.Equal(GetVersionInfo(), "utero-voice version v0.4.0 (commit: 9f1c2ab, built: 2026-10-01T08:00:00Z, go: "+runtime.Version()+")")
}

func TestUserAgent(t *testing.T) {
	is := is.New(t)
	setVersion(t, "v0.3.1", "", "")
	is.Equal(UserAgent(), "utero-voice/v0.3.1")
}

package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withBuild sets the ldflags variables and the embedded VCS settings for one
// test.
func withBuild(t *testing.T, version, commit, date string, settings map[string]string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, Commit, Date
	origRead := readBuildInfo
	t.Cleanup(func() {
		Version, Commit, Date = origVersion, origCommit, origDate
		readBuildInfo = origRead
		vcsOnce = sync.Once{}
		vcs = nil
	})

	Version, Commit, Date = version, commit, date
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		if settings == nil {
			return nil, false
		}
		bi := &debug.BuildInfo{}
		for k, v := range settings {
			bi.Settings = append(bi.Settings, debug.BuildSetting{Key: k, Value: v})
		}
		return bi, true
	}
	vcsOnce = sync.Once{}
	vcs = nil
}

func TestGetInfo(t *testing.T) {
	withBuild(t, "1.2.3", "0123456789abcdef", "2026-01-02T03:04:05Z", nil)

	info := GetInfo()
	assert.Equal(t, ApplicationName, info.Name)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "0123456789abcdef", info.Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", info.Date)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.False(t, info.Modified)
}

func TestGetInfo_VCSFallback(t *testing.T) {
	tests := []struct {
		name       string
		commit     string
		settings   map[string]string
		wantCommit string
		wantDate   string
		modified   bool
	}{
		{
			name:   "vcs stamp fills unknowns",
			commit: "unknown",
			settings: map[string]string{
				"vcs.revision": "fedcba9876543210",
				"vcs.time":     "2026-03-04T05:06:07Z",
				"vcs.modified": "true",
			},
			wantCommit: "fedcba9876543210",
			wantDate:   "2026-03-04T05:06:07Z",
			modified:   true,
		},
		{
			name:       "ldflags win",
			commit:     "0123456789abcdef",
			settings:   map[string]string{"vcs.revision": "fedcba9876543210"},
			wantCommit: "0123456789abcdef",
			wantDate:   "unknown",
		},
		{
			name:       "no build info",
			commit:     "unknown",
			wantCommit: "unknown",
			wantDate:   "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withBuild(t, "dev", tt.commit, "unknown", tt.settings)

			info := GetInfo()
			assert.Equal(t, tt.wantCommit, info.Commit)
			assert.Equal(t, tt.wantDate, info.Date)
			assert.Equal(t, tt.modified, info.Modified)
		})
	}
}

func TestString(t *testing.T) {
	t.Run("with commit", func(t *testing.T) {
		withBuild(t, "1.2.3", "0123456789abcdef", "2026-01-02T03:04:05Z", nil)
		assert.Contains(t, String(), "tvplay version 1.2.3 (commit: 01234567, built: 2026-01-02T03:04:05Z)")
	})

	t.Run("dirty tree", func(t *testing.T) {
		withBuild(t, "dev", "unknown", "unknown", map[string]string{
			"vcs.revision": "fedcba9876543210",
			"vcs.modified": "true",
		})
		assert.Contains(t, String(), "commit: fedcba98-dirty")
	})

	t.Run("without commit", func(t *testing.T) {
		withBuild(t, "dev", "unknown", "unknown", nil)
		s := String()
		assert.Contains(t, s, "tvplay version dev")
		assert.NotContains(t, s, "commit")
	})
}

func TestShort(t *testing.T) {
	withBuild(t, "1.0.0", "0123456789abcdef", "unknown", nil)
	assert.Equal(t, "1.0.0 (01234567)", Short())

	withBuild(t, "1.0.0", "abc", "unknown", nil)
	assert.Equal(t, "1.0.0", Short())
}

func TestUserAgent(t *testing.T) {
	withBuild(t, "2.0.0", "unknown", "unknown", nil)
	assert.Equal(t, "tvplay/2.0.0", UserAgent())
}

func TestIsRelease(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"dev", false},
		{"1.2.3", true},
		{"1.2.4-SNAPSHOT.abc1234", false},
		{"1.2.3-rc.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			withBuild(t, tt.version, "unknown", "unknown", nil)
			assert.Equal(t, tt.want, IsRelease())
		})
	}
}

func TestInfoJSON(t *testing.T) {
	withBuild(t, "1.2.3", "0123456789abcdef", "unknown", nil)

	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "tvplay", m["name"])
	assert.Equal(t, "1.2.3", m["version"])
	assert.NotContains(t, m, "modified")
}

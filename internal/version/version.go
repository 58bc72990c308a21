// Package version reports build information for tvplay.
//
// Release builds inject Version, Commit and Date via ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/tvplay/internal/version.Version=x.y.z \
//	                   -X github.com/jmylchreest/tvplay/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/jmylchreest/tvplay/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Plain `go build` and `go install` builds fall back to the VCS stamp the Go
// toolchain embeds in the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

// Build-time variables injected via ldflags.
var (
	// Version is the SemVer version; "dev" for local builds.
	Version = "dev"

	// Commit is the full git commit SHA.
	Commit = "unknown"

	// Date is the build timestamp in RFC3339 format.
	Date = "unknown"
)

// ApplicationName is the canonical name of this application.
const ApplicationName = "tvplay"

// Info contains structured version information.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// ShortCommit returns the first 8 characters of the commit, or "" when the
// commit is unknown.
func (i Info) ShortCommit() string {
	if i.Commit == "unknown" || len(i.Commit) < 8 {
		return ""
	}
	return i.Commit[:8]
}

var (
	vcsOnce sync.Once
	vcs     map[string]string

	readBuildInfo = debug.ReadBuildInfo
)

func vcsSettings() map[string]string {
	vcsOnce.Do(func() {
		vcs = make(map[string]string)
		bi, ok := readBuildInfo()
		if !ok {
			return
		}
		for _, s := range bi.Settings {
			if strings.HasPrefix(s.Key, "vcs.") {
				vcs[s.Key] = s.Value
			}
		}
	})
	return vcs
}

// GetInfo returns the build information, filling Commit and Date from the
// embedded VCS stamp when ldflags did not set them.
func GetInfo() Info {
	info := Info{
		Name:      ApplicationName,
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	settings := vcsSettings()
	if info.Commit == "unknown" && settings["vcs.revision"] != "" {
		info.Commit = settings["vcs.revision"]
	}
	if info.Date == "unknown" && settings["vcs.time"] != "" {
		info.Date = settings["vcs.time"]
	}
	info.Modified = settings["vcs.modified"] == "true"
	return info
}

// String returns a human-readable version string.
func String() string {
	info := GetInfo()
	s := fmt.Sprintf("%s version %s", info.Name, info.Version)
	if c := info.ShortCommit(); c != "" {
		if info.Modified {
			c += "-dirty"
		}
		s += fmt.Sprintf(" (commit: %s, built: %s)", c, info.Date)
	}
	return fmt.Sprintf("%s %s %s", s, info.GoVersion, info.Platform)
}

// Short returns the version shown by --version.
func Short() string {
	info := GetInfo()
	if c := info.ShortCommit(); c != "" {
		return fmt.Sprintf("%s (%s)", info.Version, c)
	}
	return info.Version
}

// UserAgent returns the User-Agent sent on playlist and stream requests.
func UserAgent() string {
	return ApplicationName + "/" + Version
}

// IsRelease reports whether this is a tagged release build.
func IsRelease() bool {
	return Version != "dev" && !strings.Contains(Version, "-")
}

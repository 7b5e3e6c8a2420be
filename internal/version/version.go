package version

import (
	"runtime/debug"
	"strings"
)

// Build-time variables injected via -ldflags:
//
//	-X github.com/tbckr/imapdetect/internal/version.Version=1.0.0
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const (
	defaultVersion = "dev"
	defaultCommit  = "none"
	defaultDate    = "unknown"
)

// Info is the JSON shape printed by the version command.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Get returns the resolved build information.
func Get() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}

// UserAgent returns the User-Agent sent to autodiscovery endpoints.
func UserAgent() string {
	return "imapdetect/" + Version + " (+https://github.com/tbckr/imapdetect)"
}

func init() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	applyBuildInfo(bi)
}

// applyBuildInfo fills package vars from bi only when they still hold their
// ldflags-unset defaults. ldflags always win.
func applyBuildInfo(bi *debug.BuildInfo) {
	if Version == defaultVersion {
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			Version = strings.TrimPrefix(v, "v")
		}
	}

	settings := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		settings[s.Key] = s.Value
	}

	if rev := settings["vcs.revision"]; Commit == defaultCommit && rev != "" {
		Commit = rev[:min(len(rev), 7)]
	}
	if t := settings["vcs.time"]; Date == defaultDate && t != "" {
		Date = t
	}
}

// Package version holds build-time version variables injected via ldflags.
// Without ldflags (go install) the module version and VCS metadata are read
// from runtime/debug.BuildInfo instead.
package version

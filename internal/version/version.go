// Package version reports build-time identity for the autoforge binary,
// grounded on the teacher's version package but without its go-cmp
// dependency — build metadata comparison here is a handful of string
// fields, not worth a third-party deep-equal.
package version

import "runtime/debug"

// These are set via -ldflags at build time.
var (
	GitRepo   string
	GitBranch string
	GitCommit string
	BuildTime string
)

// Info is the full version identity of a running binary.
type Info struct {
	GitRepo   string           `json:"gitRepo,omitempty"`
	GitBranch string           `json:"gitBranch,omitempty"`
	GitCommit string           `json:"gitCommit,omitempty"`
	BuildTime string           `json:"buildTime,omitempty"`
	BuildInfo *debug.BuildInfo `json:"buildInfo,omitempty"`
}

// Get returns the version information for the current process.
func Get() Info {
	info := Info{GitRepo: GitRepo, GitBranch: GitBranch, GitCommit: GitCommit, BuildTime: BuildTime}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.BuildInfo = bi
	}
	return info
}

// Equal reports whether v and other identify the same build, by git
// repository, branch, commit and build time — BuildInfo is diagnostic, not
// identity.
func (v Info) Equal(other Info) bool {
	return v.GitRepo == other.GitRepo &&
		v.GitBranch == other.GitBranch &&
		v.GitCommit == other.GitCommit &&
		v.BuildTime == other.BuildTime
}

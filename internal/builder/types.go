// Package builder implements the Builder Engine (C8): a per-configuration
// state machine driving toolchain resolution, configure/build/post-build
// steps, and artifact verification for a single build backend invocation.
package builder

import (
	"github.com/autoforge-project/autoforge/internal/solution"
	"github.com/autoforge-project/autoforge/internal/variables"
)

// State is one stage of the linear build state machine.
type State string

const (
	StatePreConfigure State = "PRE_CONFIGURE"
	StateConfigure     State = "CONFIGURE"
	StatePreBuild       State = "PRE_BUILD"
	StateBuild          State = "BUILD"
	StatePostBuild      State = "POST_BUILD"
	StateDoneBuild       State = "DONE_BUILD"
)

// BuildProfile is the immutable input to a single build invocation.
type BuildProfile struct {
	SolutionName        string
	ProjectName         string
	ConfigName          string
	ConfigData          solution.Configuration
	ToolChainData       solution.Toolchain
	ExtraArgs           []string
	TerminalLeadingText string
}

// Request is the concrete afplugin.BuildRequest payload a backend Builder
// type-asserts out of the opaque request it receives, carrying both the
// per-invocation profile and the process-wide Variable Store used to expand
// compiler options and step commands.
type Request struct {
	Profile BuildProfile
	Vars    *variables.Store
}

// Artifact reports one verified build output.
type Artifact struct {
	Path    string
	SizeBytes int64
}

// Result is what a completed (or early-exited) build run produces.
type Result struct {
	FinalState   State
	ReturnCode   int
	Artifacts    []Artifact
	Message      string
	DurationMs   int64
}

// cleanDirective classifies the extra-args side channel for a clean request.
type cleanDirective int

const (
	cleanNone cleanDirective = iota
	cleanOnly
	cleanThenBuild
)

func parseCleanDirective(extraArgs []string) cleanDirective {
	for _, a := range extraArgs {
		switch a {
		case "--clean":
			return cleanOnly
		case "--clean_build":
			return cleanThenBuild
		}
	}
	return cleanNone
}

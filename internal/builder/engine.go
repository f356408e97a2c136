package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/autoforge-project/autoforge/internal/aferrors"
	"github.com/autoforge-project/autoforge/internal/env"
	"github.com/autoforge-project/autoforge/internal/shell"
	"github.com/autoforge-project/autoforge/internal/toolchain"
	"github.com/autoforge-project/autoforge/internal/variables"
)

// Policy parameterizes the state machine for one backend family (cmake+ninja
// vs. a single-tool make invocation): which required-tool entry is the
// primary configure/build tool, which (if any) is a secondary build tool run
// against build_path after configuration, and which compiler-option flags
// mark an invocation as a configuration step.
type Policy struct {
	PrimaryTool        string
	SecondaryTool      string
	ConfigFlagPrefixes []string
}

// Engine drives a single configuration build through the PRE_CONFIGURE →
// CONFIGURE → PRE_BUILD → BUILD → POST_BUILD → DONE_BUILD state machine. An
// Engine is not shared across concurrent builds; each build owns its own
// toolchain resolution.
type Engine struct {
	env      *env.Env
	resolver *toolchain.Resolver
	shell    *shell.Executor
	vars     *variables.Store
	policy   Policy
}

// New constructs an Engine bound to e, using resolver for toolchain
// validation, sh to run subprocess steps, and vars to expand any <$ref_X>/
// environment tokens embedded in compiler options or step commands.
func New(e *env.Env, resolver *toolchain.Resolver, sh *shell.Executor, vars *variables.Store, policy Policy) *Engine {
	return &Engine{env: e, resolver: resolver, shell: sh, vars: vars, policy: policy}
}

// Run executes the full state machine for profile, returning as soon as a
// step fails, the context is cancelled, or the state machine reaches
// DONE_BUILD. An ExitEarly with exit code 0 (e.g. after a bare --clean) is
// reported as a successful Result, not an error.
func (eng *Engine) Run(ctx context.Context, profile BuildProfile) (Result, error) {
	start := eng.env.Clock.Now()

	directive := parseCleanDirective(profile.ExtraArgs)

	// PRE_CONFIGURE
	resolved, err := eng.preConfigure(ctx, profile)
	if err != nil {
		return Result{FinalState: StatePreConfigure}, err
	}

	// CONFIGURE
	isConfigStep, err := eng.configure(ctx, profile, resolved)
	if err != nil {
		return Result{FinalState: StateConfigure}, err
	}

	if ctx.Err() != nil {
		return Result{FinalState: StateConfigure}, aferrors.New(aferrors.KindCancelled, "build cancelled after configure")
	}

	// PRE_BUILD
	earlyExit, err := eng.preBuild(ctx, profile, directive)
	if err != nil {
		return Result{FinalState: StatePreBuild}, err
	}
	if earlyExit != nil {
		return Result{FinalState: StatePreBuild, ReturnCode: earlyExit.ExitCode, Message: earlyExit.Reason}, nil
	}

	if ctx.Err() != nil {
		return Result{FinalState: StatePreBuild}, aferrors.New(aferrors.KindCancelled, "build cancelled before build")
	}

	// BUILD
	if err := eng.build(ctx, profile, resolved, isConfigStep); err != nil {
		return Result{FinalState: StateBuild}, err
	}

	if ctx.Err() != nil {
		return Result{FinalState: StateBuild}, aferrors.New(aferrors.KindCancelled, "build cancelled before post-build")
	}

	// POST_BUILD
	if err := eng.postBuild(ctx, profile); err != nil {
		return Result{FinalState: StatePostBuild}, err
	}

	// DONE_BUILD
	artifacts, err := eng.verifyArtifacts(profile)
	if err != nil {
		return Result{FinalState: StateDoneBuild}, err
	}

	return Result{
		FinalState: StateDoneBuild,
		ReturnCode: 0,
		Artifacts:  artifacts,
		DurationMs: eng.env.Clock.Now().Sub(start).Milliseconds(),
	}, nil
}

func (eng *Engine) preConfigure(ctx context.Context, profile BuildProfile) (map[string]toolchain.Resolved, error) {
	tools := make([]toolchain.RequiredTool, 0, len(profile.ToolChainData.RequiredTools))
	for name, t := range profile.ToolChainData.RequiredTools {
		tools = append(tools, toolchain.RequiredTool{Name: name, Path: t.Path, Version: t.VersionConstraint, Options: t.Options})
	}
	resolved, err := eng.resolver.ResolveAll(ctx, tools)
	if err != nil {
		return nil, aferrors.Wrap(aferrors.KindToolchainInvalid, fmt.Sprintf("toolchain %q is invalid", profile.ToolChainData.Name), err)
	}
	return resolved, nil
}

func (eng *Engine) configure(ctx context.Context, profile BuildProfile, resolved map[string]toolchain.Resolved) (bool, error) {
	if err := os.MkdirAll(profile.ConfigData.BuildPath, 0o755); err != nil {
		return false, aferrors.Wrap(aferrors.KindStepFailed, fmt.Sprintf("creating build path %q", profile.ConfigData.BuildPath), err)
	}

	if err := eng.preBuildSteps(ctx, profile); err != nil {
		return false, err
	}

	primary, ok := resolved[eng.policy.PrimaryTool]
	if !ok {
		return false, aferrors.New(aferrors.KindToolchainInvalid, fmt.Sprintf("primary tool %q was not resolved", eng.policy.PrimaryTool))
	}

	toolOptions := profile.ToolChainData.RequiredTools[eng.policy.PrimaryTool].Options
	compilerOptions, err := eng.expandAll(profile.ConfigData.CompilerOptions)
	if err != nil {
		return false, err
	}

	args := append(append([]string{}, toolOptions...), compilerOptions...)
	isConfigStep := eng.isConfigurationStep(compilerOptions)

	cwd := profile.ConfigData.ExecuteFrom
	if cwd == "" {
		cwd = profile.ConfigData.BuildPath
	}

	res, err := eng.shell.Run(ctx, shell.Request{
		Args:       append([]string{primary.ResolvedPath}, args...),
		Cwd:        cwd,
		Echo:       shell.EchoLine,
		LeadingTag: profile.TerminalLeadingText,
	})
	if err != nil {
		return isConfigStep, err
	}
	if res.ReturnCode != 0 {
		return isConfigStep, aferrors.New(aferrors.KindStepFailed, fmt.Sprintf("configure step failed (exit %d): %s", res.ReturnCode, tail(res.StderrCaptured)))
	}
	return isConfigStep, nil
}

// preBuildSteps runs each declared pre_build_steps entry before the primary
// configure-tool invocation, symmetric to postBuild's handling of
// post_build_steps: only "!"-prefixed shell commands run, anything else is
// skipped with a warning.
func (eng *Engine) preBuildSteps(ctx context.Context, profile BuildProfile) error {
	if profile.ConfigData.PreBuildSteps == nil {
		return nil
	}
	for _, step := range profile.ConfigData.PreBuildSteps.Steps {
		cmd := step.Command
		if !strings.HasPrefix(cmd, "!") {
			eng.env.Logger.Warn("skipping non-shell pre-build step", "step", step.Name, "command", cmd)
			continue
		}
		res, err := eng.runStepCommand(ctx, profile, cmd)
		if err != nil {
			return err
		}
		if res.ReturnCode != 0 {
			return aferrors.New(aferrors.KindStepFailed, fmt.Sprintf("pre-build step %q failed (exit %d): %s", step.Name, res.ReturnCode, tail(res.StderrCaptured)))
		}
	}
	return nil
}

func (eng *Engine) isConfigurationStep(args []string) bool {
	for _, a := range args {
		for _, prefix := range eng.policy.ConfigFlagPrefixes {
			if strings.HasPrefix(a, prefix) {
				return true
			}
		}
	}
	return false
}

func (eng *Engine) preBuild(ctx context.Context, profile BuildProfile, directive cleanDirective) (*aferrors.ExitEarly, error) {
	if directive == cleanNone {
		return nil, nil
	}
	if profile.ConfigData.Clean == "" {
		return nil, nil
	}

	res, err := eng.runStepCommand(ctx, profile, profile.ConfigData.Clean)
	if err != nil {
		return nil, err
	}
	if res.ReturnCode != 0 {
		return nil, aferrors.New(aferrors.KindStepFailed, fmt.Sprintf("clean step failed (exit %d): %s", res.ReturnCode, tail(res.StderrCaptured)))
	}
	if directive == cleanOnly {
		return &aferrors.ExitEarly{ExitCode: 0, Reason: "Build stopped after clean."}, nil
	}
	return nil, nil
}

func (eng *Engine) build(ctx context.Context, profile BuildProfile, resolved map[string]toolchain.Resolved, isConfigStep bool) error {
	if !isConfigStep || eng.policy.SecondaryTool == "" {
		return nil
	}
	secondary, ok := resolved[eng.policy.SecondaryTool]
	if !ok {
		return aferrors.New(aferrors.KindToolchainInvalid, fmt.Sprintf("secondary tool %q was not resolved", eng.policy.SecondaryTool))
	}

	cwd := profile.ConfigData.ExecuteFrom
	if cwd == "" {
		cwd = profile.ConfigData.BuildPath
	}

	res, err := eng.shell.Run(ctx, shell.Request{
		Args:       []string{secondary.ResolvedPath, "-C", profile.ConfigData.BuildPath},
		Cwd:        cwd,
		Echo:       shell.EchoLine,
		LeadingTag: profile.TerminalLeadingText,
	})
	if err != nil {
		return err
	}
	if res.ReturnCode != 0 {
		return aferrors.New(aferrors.KindStepFailed, fmt.Sprintf("build step failed (exit %d): %s", res.ReturnCode, tail(res.StderrCaptured)))
	}
	return nil
}

func (eng *Engine) postBuild(ctx context.Context, profile BuildProfile) error {
	if profile.ConfigData.PostBuildSteps == nil {
		return nil
	}
	for _, step := range profile.ConfigData.PostBuildSteps.Steps {
		cmd := step.Command
		if !strings.HasPrefix(cmd, "!") {
			eng.env.Logger.Warn("skipping non-shell post-build step", "step", step.Name, "command", cmd)
			continue
		}
		res, err := eng.runStepCommand(ctx, profile, cmd)
		if err != nil {
			return err
		}
		if res.ReturnCode != 0 {
			return aferrors.New(aferrors.KindStepFailed, fmt.Sprintf("post-build step %q failed (exit %d): %s", step.Name, res.ReturnCode, tail(res.StderrCaptured)))
		}
	}
	return nil
}

func (eng *Engine) runStepCommand(ctx context.Context, profile BuildProfile, raw string) (shell.Result, error) {
	cmd := strings.TrimPrefix(raw, "!")
	cmd, err := eng.expand(cmd)
	if err != nil {
		return shell.Result{}, err
	}
	cwd := profile.ConfigData.ExecuteFrom
	if cwd == "" {
		cwd = profile.ConfigData.BuildPath
	}
	return eng.shell.Run(ctx, shell.Request{
		Command:    cmd,
		Cwd:        cwd,
		Echo:       shell.EchoLine,
		LeadingTag: profile.TerminalLeadingText,
	})
}

func (eng *Engine) verifyArtifacts(profile BuildProfile) ([]Artifact, error) {
	var missing []string
	artifacts := make([]Artifact, 0, len(profile.ConfigData.Artifacts))
	for _, a := range profile.ConfigData.Artifacts {
		path := a
		if !filepath.IsAbs(path) {
			path = filepath.Join(profile.ConfigData.BuildPath, path)
		}
		info, err := os.Stat(path)
		if err != nil {
			missing = append(missing, a)
			continue
		}
		artifacts = append(artifacts, Artifact{Path: path, SizeBytes: info.Size()})
	}
	if len(missing) > 0 {
		return nil, aferrors.New(aferrors.KindMissingArtifacts, fmt.Sprintf("missing artifacts: %s", strings.Join(missing, ", ")))
	}
	return artifacts, nil
}

func (eng *Engine) expand(s string) (string, error) {
	if eng.vars == nil {
		return s, nil
	}
	return eng.vars.ExpandText(s)
}

func (eng *Engine) expandAll(values []string) ([]string, error) {
	if eng.vars == nil {
		return values, nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		expanded, err := eng.vars.ExpandText(v)
		if err != nil {
			return nil, err
		}
		out[i] = expanded
	}
	return out, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}

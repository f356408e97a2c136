package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goombaio/namegenerator"
	"golang.org/x/sync/errgroup"

	"github.com/autoforge-project/autoforge/internal/aferrors"
	"github.com/autoforge-project/autoforge/internal/builder"
	"github.com/autoforge-project/autoforge/internal/solution"
)

// BuildCmd drives one (or, with --all, every) configuration of a project
// through the Builder Engine, mirroring spec.md §6's
// "build <solution> <project> <configuration> [--clean|--clean_build] [extra key=value…]".
type BuildCmd struct {
	SolutionFile  string   `arg:"" help:"path to the solution .json/.jsonc file"`
	Project       string   `arg:"" help:"project name within the solution"`
	Configuration string   `arg:"" optional:"" help:"configuration name (omit with --all to build every configuration)"`
	Solution      string   `default:"" placeholder:"<name>" help:"solution name, if the file declares more than one"`
	Clean         bool     `help:"run the configuration's clean step only"`
	CleanBuild    bool     `name:"clean_build" help:"run the clean step, then build as usual"`
	All           bool     `help:"build every configuration declared for the project, concurrently"`
	Extra         []string `arg:"" optional:"" help:"extra arguments added to the build profile's extra args (only --clean and --clean_build are acted on; they are not used in variable expansion)"`
}

func (c *BuildCmd) extraArgs() []string {
	extra := append([]string{}, c.Extra...)
	if c.Clean {
		extra = append(extra, "--clean")
	}
	if c.CleanBuild {
		extra = append(extra, "--clean_build")
	}
	return extra
}

func (c *BuildCmd) cleanOnly() bool { return c.Clean && !c.CleanBuild }

// Run resolves the solution, dispatches the build(s), prints one normalized
// status line per configuration, and terminates the process with the exit
// code spec.md §6 assigns to the outcome (build is always the last thing a
// process does, so os.Exit here is the dispatch boundary, not a library
// escape hatch).
func (c *BuildCmd) Run(cctx *Context) error {
	model, err := loadSolution(cctx.Vars, c.SolutionFile, c.Solution)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", aferrors.Normalize(err))
		os.Exit(1)
	}

	toolchainData, err := model.Toolchain(c.Project)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", aferrors.Normalize(err))
		os.Exit(1)
	}

	var names []string
	if c.All {
		if names, err = model.GetConfigurationsList(c.Project); err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", aferrors.Normalize(err))
			os.Exit(1)
		}
	} else if c.Configuration == "" {
		fmt.Fprintln(os.Stderr, "a configuration name is required unless --all is given.")
		os.Exit(1)
	} else {
		names = []string{c.Configuration}
	}

	generator := namegenerator.NewNameGenerator(time.Now().UnixNano())

	if len(names) == 1 {
		os.Exit(c.runOne(cctx, model, *toolchainData, names[0], generator.Generate()))
	}

	// --all: distinct build_path/execute_from pairs build concurrently, per
	// spec.md §5's "two configurations may build in parallel provided
	// build_path/execute_from differ." Configurations sharing a pair run one
	// after another.
	seen := map[string]string{}
	pairLocks := map[string]*sync.Mutex{}
	var mu sync.Mutex
	var g errgroup.Group
	codes := make([]int, len(names))
	for i, name := range names {
		i, name := i, name
		conf, qerr := model.QueryConfiguration(c.Project, name)
		if qerr != nil {
			fmt.Fprintf(os.Stderr, "%s\n", aferrors.Normalize(qerr))
			os.Exit(1)
		}
		key := conf.BuildPath + "|" + conf.ExecuteFrom
		mu.Lock()
		if owner, dup := seen[key]; dup {
			cctx.Env.Logger.Warn("configuration shares build_path/execute_from with an earlier one", "configuration", name, "conflicts_with", owner)
		}
		seen[key] = name
		if pairLocks[key] == nil {
			pairLocks[key] = &sync.Mutex{}
		}
		pairLock := pairLocks[key]
		mu.Unlock()

		g.Go(func() error {
			pairLock.Lock()
			defer pairLock.Unlock()
			codes[i] = c.runOne(cctx, model, *toolchainData, name, generator.Generate())
			return nil
		})
	}
	_ = g.Wait()

	worst := 0
	for _, code := range codes {
		if code != 0 && (worst == 0 || code < worst) {
			worst = code
		}
	}
	os.Exit(worst)
	return nil
}

// runOne runs a single configuration to completion, records it in the
// history ledger, prints one normalized status line, and returns the exit
// code for that configuration.
func (c *BuildCmd) runOne(cctx *Context, model *solution.Model, toolchainData solution.Toolchain, configName, runName string) int {
	conf, err := model.QueryConfiguration(c.Project, configName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", aferrors.Normalize(err))
		return 1
	}

	ctx, endSpan := cctx.Telemetry.StartSpan(context.Background(), "build", map[string]string{
		"solution": model.Name(), "project": c.Project, "configuration": configName,
	})
	defer endSpan()

	runID, err := cctx.History.StartRun(model.Name(), c.Project, configName, runName)
	if err != nil {
		cctx.Env.Logger.Warn("failed to record build run start", "error", err)
	}

	profile := builder.BuildProfile{
		SolutionName:        model.Name(),
		ProjectName:         c.Project,
		ConfigName:          configName,
		ConfigData:          *conf,
		ToolChainData:       toolchainData,
		ExtraArgs:           c.extraArgs(),
		TerminalLeadingText: fmt.Sprintf("[%s] ", runName),
	}

	start := time.Now()
	result, buildErr := cctx.Loader.ExecuteBuild(ctx, toolchainData.BuildSystem, &builder.Request{Profile: profile, Vars: cctx.Vars})
	durationMs := time.Since(start).Milliseconds()

	var code int
	switch {
	case buildErr != nil:
		code = exitCodeForError(buildErr)
	case c.cleanOnly():
		code = 5
	default:
		code = result.ExitCode
	}

	finalState := builder.StateDoneBuild
	if buildErr != nil {
		finalState = builder.StateBuild
	} else if c.cleanOnly() {
		finalState = builder.StatePreBuild
	}
	if runID != "" {
		if recErr := cctx.History.FinishRun(runID, builder.Result{FinalState: finalState, ReturnCode: code}, buildErr, durationMs); recErr != nil {
			cctx.Env.Logger.Warn("failed to record build run completion", "error", recErr)
		}
	}

	if buildErr != nil {
		fmt.Fprintf(os.Stderr, "%s (exit %d)\n", aferrors.Normalize(buildErr), code)
		return code
	}
	fmt.Printf("%s: build of %s/%s/%s succeeded.\n", runName, model.Name(), c.Project, configName)
	return code
}

func exitCodeForError(err error) int {
	var ae *aferrors.Error
	if !errors.As(err, &ae) {
		return 1
	}
	switch ae.Kind {
	case aferrors.KindToolchainInvalid:
		return 2
	case aferrors.KindMissingArtifacts:
		return 3
	case aferrors.KindCancelled, aferrors.KindTimedOut:
		return 4
	default:
		return 1
	}
}

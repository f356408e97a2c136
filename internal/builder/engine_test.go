package builder

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/autoforge-project/autoforge/internal/env"
	"github.com/autoforge-project/autoforge/internal/shell"
	"github.com/autoforge-project/autoforge/internal/solution"
	"github.com/autoforge-project/autoforge/internal/toolchain"
)

// writeFakeTool drops an executable shell script at dir/name that echoes
// version on "--version" and otherwise touches a marker file, simulating a
// build tool without depending on cmake/ninja being installed in CI.
func writeFakeTool(t *testing.T, dir, name, version, marker string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" +
		"if [ \"$1\" = \"--version\" ]; then echo \"" + name + " version " + version + "\"; exit 0; fi\n"
	if marker != "" {
		script += "touch \"" + marker + "\"\n"
	}
	script += "exit 0\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestEngine(t *testing.T, policy Policy, toolsDir string) *Engine {
	t.Helper()
	e := env.New(slog.New(slog.DiscardHandler), t.TempDir())
	resolver := toolchain.New(e)
	sh := shell.New(e)
	return New(e, resolver, sh, nil, policy)
}

func TestEngineRunSucceedsWithArtifacts(t *testing.T) {
	toolsDir := t.TempDir()
	buildDir := t.TempDir()
	artifactPath := filepath.Join(buildDir, "out.bin")

	writeFakeTool(t, toolsDir, "cmake", "3.27.0", "")
	writeFakeTool(t, toolsDir, "ninja", "1.11.0", artifactPath)
	t.Setenv("PATH", toolsDir+":"+os.Getenv("PATH"))

	policy := Policy{PrimaryTool: "cmake", SecondaryTool: "ninja", ConfigFlagPrefixes: []string{"-G", "-S", "-B", "-D"}}
	eng := newTestEngine(t, policy, toolsDir)

	profile := BuildProfile{
		SolutionName: "demo",
		ProjectName:  "fw",
		ConfigName:   "release",
		ConfigData: solution.Configuration{
			Name:            "release",
			BuildPath:       buildDir,
			CompilerOptions: []string{"-G", "Ninja", "-S", ".", "-B", buildDir},
			Artifacts:       []string{"out.bin"},
		},
		ToolChainData: solution.Toolchain{
			Name: "arm-toolchain",
			RequiredTools: map[string]solution.RequiredTool{
				"cmake": {VersionConstraint: ">=3.0"},
				"ninja": {VersionConstraint: ">=1.0"},
			},
			BuildSystem: "cmake",
		},
	}

	result, err := eng.Run(context.Background(), profile)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.FinalState != StateDoneBuild {
		t.Errorf("FinalState = %v, want DONE_BUILD", result.FinalState)
	}
	if len(result.Artifacts) != 1 {
		t.Fatalf("Artifacts = %v, want 1 entry", result.Artifacts)
	}
}

func TestEngineRunMissingArtifact(t *testing.T) {
	toolsDir := t.TempDir()
	buildDir := t.TempDir()

	writeFakeTool(t, toolsDir, "cmake", "3.27.0", "")
	writeFakeTool(t, toolsDir, "ninja", "1.11.0", "")
	t.Setenv("PATH", toolsDir+":"+os.Getenv("PATH"))

	policy := Policy{PrimaryTool: "cmake", SecondaryTool: "ninja", ConfigFlagPrefixes: []string{"-G", "-S", "-B", "-D"}}
	eng := newTestEngine(t, policy, toolsDir)

	profile := BuildProfile{
		ConfigData: solution.Configuration{
			BuildPath:       buildDir,
			CompilerOptions: []string{"-G", "Ninja", "-B", buildDir},
			Artifacts:       []string{"never-written.bin"},
		},
		ToolChainData: solution.Toolchain{
			RequiredTools: map[string]solution.RequiredTool{
				"cmake": {},
				"ninja": {},
			},
		},
	}

	_, err := eng.Run(context.Background(), profile)
	if err == nil {
		t.Fatal("expected MissingArtifacts error")
	}
}

func TestEngineRunCleanOnlyExitsEarly(t *testing.T) {
	toolsDir := t.TempDir()
	buildDir := t.TempDir()

	writeFakeTool(t, toolsDir, "make", "4.3", "")
	t.Setenv("PATH", toolsDir+":"+os.Getenv("PATH"))

	policy := Policy{PrimaryTool: "make"}
	eng := newTestEngine(t, policy, toolsDir)

	profile := BuildProfile{
		ExtraArgs: []string{"--clean"},
		ConfigData: solution.Configuration{
			BuildPath: buildDir,
			Clean:     "!true",
			Artifacts: []string{},
		},
		ToolChainData: solution.Toolchain{
			RequiredTools: map[string]solution.RequiredTool{
				"make": {},
			},
		},
	}

	result, err := eng.Run(context.Background(), profile)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.FinalState != StatePreBuild {
		t.Errorf("FinalState = %v, want PRE_BUILD (early exit)", result.FinalState)
	}
	if result.ReturnCode != 0 {
		t.Errorf("ReturnCode = %d, want 0", result.ReturnCode)
	}
}

func TestEngineRunExecutesPreBuildSteps(t *testing.T) {
	toolsDir := t.TempDir()
	buildDir := t.TempDir()
	marker := filepath.Join(buildDir, "pre-build-ran")

	writeFakeTool(t, toolsDir, "make", "4.3", "")
	t.Setenv("PATH", toolsDir+":"+os.Getenv("PATH"))

	policy := Policy{PrimaryTool: "make"}
	eng := newTestEngine(t, policy, toolsDir)

	profile := BuildProfile{
		ConfigData: solution.Configuration{
			BuildPath: buildDir,
			PreBuildSteps: &solution.OrderedSteps{
				Steps: []solution.Step{{Name: "generate", Command: "!touch " + marker}},
			},
			Artifacts: []string{},
		},
		ToolChainData: solution.Toolchain{
			RequiredTools: map[string]solution.RequiredTool{
				"make": {},
			},
		},
	}

	result, err := eng.Run(context.Background(), profile)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.FinalState != StateDoneBuild {
		t.Errorf("FinalState = %v, want DONE_BUILD", result.FinalState)
	}
	if _, statErr := os.Stat(marker); statErr != nil {
		t.Errorf("expected pre-build step to have run and created %q: %v", marker, statErr)
	}
}

func TestEngineRunPreBuildStepFailureStopsBeforeConfigure(t *testing.T) {
	toolsDir := t.TempDir()
	buildDir := t.TempDir()
	configureMarker := filepath.Join(buildDir, "configure-ran")

	writeFakeTool(t, toolsDir, "make", "4.3", configureMarker)
	t.Setenv("PATH", toolsDir+":"+os.Getenv("PATH"))

	policy := Policy{PrimaryTool: "make"}
	eng := newTestEngine(t, policy, toolsDir)

	profile := BuildProfile{
		ConfigData: solution.Configuration{
			BuildPath: buildDir,
			PreBuildSteps: &solution.OrderedSteps{
				Steps: []solution.Step{{Name: "fail", Command: "!false"}},
			},
			Artifacts: []string{},
		},
		ToolChainData: solution.Toolchain{
			RequiredTools: map[string]solution.RequiredTool{
				"make": {},
			},
		},
	}

	_, err := eng.Run(context.Background(), profile)
	if err == nil {
		t.Fatal("expected pre-build step failure to surface as an error")
	}
	if _, statErr := os.Stat(configureMarker); statErr == nil {
		t.Error("primary tool should not have run after a pre-build step failure")
	}
}

func TestEngineRunToolchainInvalid(t *testing.T) {
	toolsDir := t.TempDir()
	t.Setenv("PATH", toolsDir)

	policy := Policy{PrimaryTool: "cmake", SecondaryTool: "ninja"}
	eng := newTestEngine(t, policy, toolsDir)

	profile := BuildProfile{
		ConfigData: solution.Configuration{BuildPath: t.TempDir()},
		ToolChainData: solution.Toolchain{
			RequiredTools: map[string]solution.RequiredTool{
				"cmake": {},
			},
		},
	}

	_, err := eng.Run(context.Background(), profile)
	if err == nil {
		t.Fatal("expected ToolchainInvalid error")
	}
}

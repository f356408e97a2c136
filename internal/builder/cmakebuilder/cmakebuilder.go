// Package cmakebuilder registers the "cmake" build backend: a CMake
// configure step followed by a Ninja build step, matching the toolchain
// shape declared by a solution whose tool_chain.build_system is "cmake".
package cmakebuilder

import (
	"github.com/autoforge-project/autoforge/internal/builder"
	"github.com/autoforge-project/autoforge/internal/env"
	afplugin "github.com/autoforge-project/autoforge/internal/plugin"
)

const name = "cmake"

func init() {
	afplugin.RegisterBuilder(name, func(e *env.Env) afplugin.Builder {
		return builder.NewBackend(
			afplugin.Info{Name: "CMakeBuilder", Description: "Configures with CMake and builds with Ninja", Version: "1.0.0"},
			builder.Policy{
				PrimaryTool:        "cmake",
				SecondaryTool:      "ninja",
				ConfigFlagPrefixes: []string{"-G", "-S", "-B", "-D"},
			},
		)
	})
}

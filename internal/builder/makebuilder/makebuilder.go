// Package makebuilder registers the "make" build backend: a single Make
// invocation serves as both the configure and build step, matching a
// solution whose tool_chain.build_system is "make".
package makebuilder

import (
	"github.com/autoforge-project/autoforge/internal/builder"
	"github.com/autoforge-project/autoforge/internal/env"
	afplugin "github.com/autoforge-project/autoforge/internal/plugin"
)

const name = "make"

func init() {
	afplugin.RegisterBuilder(name, func(e *env.Env) afplugin.Builder {
		return builder.NewBackend(
			afplugin.Info{Name: "MakeBuilder", Description: "Builds a configuration with a single Make invocation", Version: "1.0.0"},
			builder.Policy{
				PrimaryTool:   "make",
				SecondaryTool: "",
			},
		)
	})
}

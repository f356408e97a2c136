// Package plugin defines the interface contracts and static registration
// manifest that replace the distilled tool's runtime class-scanning: a
// plugin unit declares itself at init() time instead of being discovered by
// importing arbitrary files and reflecting over their exported types.
package plugin

import (
	"context"

	"github.com/autoforge-project/autoforge/internal/env"
)

// Info is the metadata a plugin reports about itself once constructed,
// mirroring the distilled tool's ModuleInfoType accessor.
type Info struct {
	Name        string
	Description string
	Version     string
}

// Command is the interface every command plugin must implement. It
// replaces the distilled tool's CommandInterface.
type Command interface {
	Info() Info
	Execute(ctx context.Context, e *env.Env, args []string) error
}

// BuildResult carries a build's outcome back to the caller of Builder.Build,
// replacing exception-based control flow with a tagged return value.
type BuildResult struct {
	ExitCode int
	Message  string
}

// Builder is the interface every build-backend plugin must implement. It
// replaces the distilled tool's BuilderRunnerInterface.
type Builder interface {
	Info() Info
	Build(ctx context.Context, e *env.Env, req BuildRequest) (BuildResult, error)
}

// BuildRequest is the input a Builder.Build call receives; concrete fields
// live in internal/builder to avoid an import cycle (builder depends on
// plugin, not vice versa), so this is declared as an opaque `any` payload
// here and type-asserted by each builder implementation.
type BuildRequest = any

// CommandFactory constructs a fresh Command instance. Plugins register a
// factory under a stable name at init() time via RegisterCommand/RegisterBuilder.
type CommandFactory func(e *env.Env) Command

// BuilderFactory constructs a fresh Builder instance.
type BuilderFactory func(e *env.Env) Builder

var (
	commandManifest = map[string]CommandFactory{}
	builderManifest = map[string]BuilderFactory{}
)

// RegisterCommand adds name to the compile-time command manifest. Called
// from a plugin package's init() function — the static registration hook
// that stands in for the distilled tool's filesystem plugin scan in
// production builds.
func RegisterCommand(name string, factory CommandFactory) {
	commandManifest[name] = factory
}

// RegisterBuilder adds name to the compile-time builder manifest.
func RegisterBuilder(name string, factory BuilderFactory) {
	builderManifest[name] = factory
}

// CommandFactories returns a snapshot of the registered command manifest.
func CommandFactories() map[string]CommandFactory {
	out := make(map[string]CommandFactory, len(commandManifest))
	for k, v := range commandManifest {
		out[k] = v
	}
	return out
}

// BuilderFactories returns a snapshot of the registered builder manifest.
func BuilderFactories() map[string]BuilderFactory {
	out := make(map[string]BuilderFactory, len(builderManifest))
	for k, v := range builderManifest {
		out[k] = v
	}
	return out
}

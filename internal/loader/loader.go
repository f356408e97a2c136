// Package loader implements the Dynamic Loader (C5): it links plugin
// factories — either from the compile-time manifest in internal/plugin or,
// in development mode, from .so files built with `go build
// -buildmode=plugin` — and registers the resulting instances with the
// Module Registry.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"strings"

	afplugin "github.com/autoforge-project/autoforge/internal/plugin"

	"github.com/autoforge-project/autoforge/internal/aferrors"
	"github.com/autoforge-project/autoforge/internal/env"
	"github.com/autoforge-project/autoforge/internal/registry"
)

// Loader links plugin factories into the Registry.
type Loader struct {
	env      *env.Env
	reg      *registry.Registry
	loaded   int
	lastOut  *bytes.Buffer
}

// New constructs a Loader bound to reg.
func New(e *env.Env, reg *registry.Registry) *Loader {
	return &Loader{env: e, reg: reg, lastOut: &bytes.Buffer{}}
}

// LoadManifest registers every plugin declared in the compile-time
// manifest (internal/plugin's init()-time RegisterCommand/RegisterBuilder
// calls). This is the production-authoritative path; per-unit failures are
// logged as warnings and only a zero-success aggregate is fatal.
func (l *Loader) LoadManifest() error {
	for name, factory := range afplugin.CommandFactories() {
		if err := l.registerCommand(name, factory); err != nil {
			l.env.Logger.Warn("skipping command plugin", "name", name, "error", err)
			continue
		}
		l.loaded++
	}
	for name, factory := range afplugin.BuilderFactories() {
		if err := l.registerBuilder(name, factory); err != nil {
			l.env.Logger.Warn("skipping builder plugin", "name", name, "error", err)
			continue
		}
		l.loaded++
	}
	if l.loaded == 0 {
		return aferrors.New(aferrors.KindUnknown, "no modules were successfully loaded")
	}
	return nil
}

func (l *Loader) registerCommand(name string, factory afplugin.CommandFactory) error {
	instance := factory(l.env)
	info := instance.Info()
	_, err := l.reg.Register(registry.RegisterInput{
		Name:          name,
		Description:   info.Description,
		ClassName:     info.Name,
		Instance:      instance,
		InterfaceName: "Command",
		Kind:          registry.KindCommand,
		Version:       info.Version,
	})
	return err
}

func (l *Loader) registerBuilder(name string, factory afplugin.BuilderFactory) error {
	instance := factory(l.env)
	info := instance.Info()
	_, err := l.reg.Register(registry.RegisterInput{
		Name:          name,
		Description:   info.Description,
		ClassName:     info.Name,
		Instance:      instance,
		InterfaceName: "Builder",
		Kind:          registry.KindBuilder,
		Version:       info.Version,
	})
	return err
}

// pluginSymbol is the exported symbol every .so plugin file must provide:
// either a afplugin.Command or a afplugin.Builder value.
const pluginSymbol = "AutoForgePlugin"

// ProbeDir scans dir for .so files built with `go build -buildmode=plugin`
// and links any that export a symbol named AutoForgePlugin implementing
// Command or Builder. This mirrors the distilled tool's filesystem-scan
// loader but is a development-only path — Go's plugin package requires the
// .so and the host binary to share an exact toolchain/version, so it is not
// portable enough to be the production mechanism (§9 Design Notes).
func (l *Loader) ProbeDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading plugin directory %q: %w", dir, err)
	}

	found := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".so") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := l.probeFile(path); err != nil {
			l.env.Logger.Warn("skipping plugin file", "file", path, "error", err)
			continue
		}
		found++
	}
	if found == 0 {
		return 0, aferrors.New(aferrors.KindUnknown, "no modules were successfully loaded")
	}
	l.loaded += found
	return found, nil
}

func (l *Loader) probeFile(path string) error {
	p, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("opening plugin %q: %w", path, err)
	}
	sym, err := p.Lookup(pluginSymbol)
	if err != nil {
		return fmt.Errorf("plugin %q does not export %q: %w", path, pluginSymbol, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), ".so")

	switch v := sym.(type) {
	case afplugin.Command:
		info := v.Info()
		_, err := l.reg.Register(registry.RegisterInput{
			Name:          base,
			Description:   info.Description,
			ClassName:     info.Name,
			Instance:      v,
			InterfaceName: "Command",
			Kind:          registry.KindCommand,
			Version:       info.Version,
			FileName:      path,
		})
		return err
	case afplugin.Builder:
		info := v.Info()
		_, err := l.reg.Register(registry.RegisterInput{
			Name:          base,
			Description:   info.Description,
			ClassName:     info.Name,
			Instance:      v,
			InterfaceName: "Builder",
			Kind:          registry.KindBuilder,
			Version:       info.Version,
			FileName:      path,
		})
		return err
	default:
		return fmt.Errorf("plugin %q exports %q of unsupported type %T", path, pluginSymbol, sym)
	}
}

// LoadedCount returns the number of plugins successfully linked so far.
func (l *Loader) LoadedCount() int { return l.loaded }

// LastOutput returns buffered output from the most recent ExecuteCommand
// call made with suppressOutput, mirroring the distilled tool's
// last_output() accessor.
func (l *Loader) LastOutput() string { return l.lastOut.String() }

// ExecuteCommand resolves name as a registered Command and invokes it. When
// suppressOutput is set, the command runs with an Env whose logger writes
// to the in-memory buffer LastOutput returns, instead of the process-wide
// logger. Otherwise it runs with the Loader's own Env and nothing is
// captured. stdout is not written to in either case.
func (l *Loader) ExecuteCommand(name string, args []string, suppressOutput bool, stdout io.Writer) error {
	rec, ok := l.reg.GetByName(name)
	if !ok || rec.Kind != registry.KindCommand {
		return aferrors.New(aferrors.KindUnknown, fmt.Sprintf("%q was not recognized as a registered command", name))
	}
	cmd, ok := rec.Instance.(afplugin.Command)
	if !ok {
		return aferrors.New(aferrors.KindUnknown, fmt.Sprintf("module %q does not implement Command", name))
	}

	runEnv := l.env
	if suppressOutput {
		l.lastOut.Reset()
		runEnv = l.env.With(slog.New(slog.NewTextHandler(l.lastOut, nil)))
	} else if stdout != nil {
		_ = stdout // accepted but unused
	}

	return cmd.Execute(context.Background(), runEnv, args)
}

// ExecuteBuild resolves buildSystem as a registered Builder and invokes it
// with req, mirroring execute_command's resolve-then-invoke shape for the
// builder kind.
func (l *Loader) ExecuteBuild(ctx context.Context, buildSystem string, req afplugin.BuildRequest) (afplugin.BuildResult, error) {
	rec, ok := l.reg.GetByName(buildSystem)
	if !ok || rec.Kind != registry.KindBuilder {
		return afplugin.BuildResult{}, aferrors.New(aferrors.KindUnknown, fmt.Sprintf("%q was not recognized as a registered builder", buildSystem))
	}
	b, ok := rec.Instance.(afplugin.Builder)
	if !ok {
		return afplugin.BuildResult{}, aferrors.New(aferrors.KindUnknown, fmt.Sprintf("module %q does not implement Builder", buildSystem))
	}
	return b.Build(ctx, l.env, req)
}

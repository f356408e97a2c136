package loader

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/autoforge-project/autoforge/internal/env"
	afplugin "github.com/autoforge-project/autoforge/internal/plugin"
	"github.com/autoforge-project/autoforge/internal/registry"
)

type echoCommand struct{ e *env.Env }

func (c *echoCommand) Info() afplugin.Info {
	return afplugin.Info{Name: "EchoCommand", Description: "echoes its arguments", Version: "0.0.0-test"}
}

func (c *echoCommand) Execute(ctx context.Context, e *env.Env, args []string) error {
	e.Logger.Info("echo", "args", args)
	return nil
}

func TestLoadManifestAndExecute(t *testing.T) {
	afplugin.RegisterCommand("echo_test_only", func(e *env.Env) afplugin.Command {
		return &echoCommand{e: e}
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := env.New(logger, t.TempDir())
	reg := registry.New()
	l := New(e, reg)

	if err := l.LoadManifest(); err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if l.LoadedCount() == 0 {
		t.Fatal("expected at least one loaded plugin")
	}

	if err := l.ExecuteCommand("echo_test_only", []string{"--flag"}, false, nil); err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}
}

func TestExecuteCommandUnknown(t *testing.T) {
	e := env.New(slog.New(slog.DiscardHandler), t.TempDir())
	reg := registry.New()
	l := New(e, reg)
	if err := l.ExecuteCommand("does-not-exist", nil, false, nil); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestProbeDirNoPlugins(t *testing.T) {
	e := env.New(slog.New(slog.DiscardHandler), t.TempDir())
	reg := registry.New()
	l := New(e, reg)
	if _, err := l.ProbeDir(t.TempDir()); err == nil {
		t.Fatal("expected error when directory has no .so plugins")
	}
}

// Package env carries the process-wide collaborators every AutoForge
// component needs — logger, clock, filesystem root, and process launcher —
// through an explicit handle instead of package-level globals.
package env

import (
	"context"
	"log/slog"
	"os/exec"
	"time"
)

// Clock abstracts time so tests can inject deterministic values.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the default Clock backed by the real wall clock.
var SystemClock Clock = systemClock{}

// ProcLauncher starts external commands. Production code uses
// exec.CommandContext; tests can substitute a fake.
type ProcLauncher interface {
	Command(ctx context.Context, name string, args ...string) *exec.Cmd
}

type systemLauncher struct{}

func (systemLauncher) Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// SystemLauncher is the default ProcLauncher backed by os/exec.
var SystemLauncher ProcLauncher = systemLauncher{}

// Env is the explicit context handle threaded through every component
// constructor. No library package may reach for a package-level singleton;
// only cmd/autoforge assembles the process-wide Env and passes it down.
type Env struct {
	Logger  *slog.Logger
	Clock   Clock
	Proc    ProcLauncher
	WorkDir string
}

// New builds an Env with the supplied logger and sensible defaults for the
// remaining collaborators.
func New(logger *slog.Logger, workDir string) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{
		Logger:  logger,
		Clock:   SystemClock,
		Proc:    SystemLauncher,
		WorkDir: workDir,
	}
}

// With returns a shallow copy of e with logger replaced, useful for
// attaching component-scoped fields (e.g. e.With(e.Logger.With("component", "builder"))).
func (e *Env) With(logger *slog.Logger) *Env {
	cp := *e
	cp.Logger = logger
	return &cp
}

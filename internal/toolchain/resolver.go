package toolchain

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/autoforge-project/autoforge/internal/aferrors"
	"github.com/autoforge-project/autoforge/internal/env"
)

// RequiredTool is the input descriptor for a single tool entry in a
// toolchain's required_tools map.
type RequiredTool struct {
	Name    string
	Path    string // explicit path or image reference; empty means "search $PATH"
	Version string // constraint expression, e.g. ">=3.20"; empty means no check
	Options []string
}

// Resolved is what Resolve produces for one RequiredTool: the concrete
// executable path (or "image://<ref>@<digest>" for container-image tools,
// "ssh://<host-alias>/<path>" for SSH-hosted tools) plus the detected
// version string.
type Resolved struct {
	Name            string
	ResolvedPath    string
	DetectedVersion string
}

// Resolver validates and resolves an entire toolchain's required_tools
// before a build begins.
type Resolver struct {
	env     *env.Env
	timeout time.Duration
}

// New constructs a Resolver with a default per-tool version-check timeout.
func New(e *env.Env) *Resolver {
	return &Resolver{env: e, timeout: 5 * time.Second}
}

// WithTimeout overrides the per-tool version-check timeout.
func (r *Resolver) WithTimeout(d time.Duration) *Resolver {
	cp := *r
	cp.timeout = d
	return &cp
}

// ResolveAll resolves every tool in tools, stopping at the first failure —
// matching the builder's PRE_CONFIGURE contract that an invalid toolchain
// fails the whole build before any subprocess runs.
func (r *Resolver) ResolveAll(ctx context.Context, tools []RequiredTool) (map[string]Resolved, error) {
	out := make(map[string]Resolved, len(tools))
	for _, t := range tools {
		resolved, err := r.Resolve(ctx, t)
		if err != nil {
			return nil, aferrors.Wrap(aferrors.KindToolchainInvalid, fmt.Sprintf("resolving tool %q", t.Name), err)
		}
		out[t.Name] = resolved
	}
	return out, nil
}

// Resolve validates a single required tool: path resolution, then (if a
// version constraint is declared) a "<tool> --version" invocation checked
// against the constraint.
func (r *Resolver) Resolve(ctx context.Context, t RequiredTool) (Resolved, error) {
	switch {
	case strings.HasPrefix(t.Path, "image://"):
		return r.resolveImage(ctx, t)
	case strings.HasPrefix(t.Path, "ssh://"):
		return r.resolveRemote(ctx, t)
	default:
		return r.resolveLocal(ctx, t)
	}
}

func (r *Resolver) resolveLocal(ctx context.Context, t RequiredTool) (Resolved, error) {
	path := t.Path
	if path == "" {
		path = t.Name
	}
	resolvedPath, err := exec.LookPath(path)
	if err != nil {
		return Resolved{}, aferrors.Wrap(aferrors.KindToolMissing, fmt.Sprintf("tool %q not found", t.Name), err)
	}

	res := Resolved{Name: t.Name, ResolvedPath: resolvedPath}
	if t.Version == "" {
		return res, nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := r.env.Proc.Command(checkCtx, resolvedPath, "--version")
	output, err := cmd.CombinedOutput()
	if err != nil && len(output) == 0 {
		return Resolved{}, aferrors.Wrap(aferrors.KindVersionUnparseable, fmt.Sprintf("running %q --version", resolvedPath), err)
	}

	satisfied, detected, err := Compare(string(output), t.Version)
	if err != nil {
		return Resolved{}, err
	}
	res.DetectedVersion = detected
	if !satisfied {
		return Resolved{}, aferrors.New(aferrors.KindVersionUnsatisfied, fmt.Sprintf("tool %q version %q does not satisfy %q", t.Name, detected, t.Version))
	}
	return res, nil
}

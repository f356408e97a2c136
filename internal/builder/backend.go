package builder

import (
	"context"
	"fmt"

	"github.com/autoforge-project/autoforge/internal/aferrors"
	"github.com/autoforge-project/autoforge/internal/env"
	afplugin "github.com/autoforge-project/autoforge/internal/plugin"
	"github.com/autoforge-project/autoforge/internal/shell"
	"github.com/autoforge-project/autoforge/internal/toolchain"
)

// Backend adapts an Engine Policy into an afplugin.Builder, the shape every
// concrete build-backend package (cmakebuilder, makebuilder) registers
// under its own name via afplugin.RegisterBuilder.
type Backend struct {
	info   afplugin.Info
	policy Policy
}

// NewBackend constructs a Backend reporting info and driving the state
// machine under policy.
func NewBackend(info afplugin.Info, policy Policy) *Backend {
	return &Backend{info: info, policy: policy}
}

func (b *Backend) Info() afplugin.Info { return b.info }

// Build type-asserts req into a *Request, builds a fresh toolchain resolver
// and shell executor scoped to this one invocation, and runs the state
// machine to completion.
func (b *Backend) Build(ctx context.Context, e *env.Env, req afplugin.BuildRequest) (afplugin.BuildResult, error) {
	r, ok := req.(*Request)
	if !ok {
		return afplugin.BuildResult{}, aferrors.New(aferrors.KindUnknown, fmt.Sprintf("%s builder received an unsupported request type %T", b.info.Name, req))
	}

	resolver := toolchain.New(e)
	sh := shell.New(e)
	eng := New(e, resolver, sh, r.Vars, b.policy)

	result, err := eng.Run(ctx, r.Profile)
	if err != nil {
		if ee, isExit := aferrors.AsExitEarly(err); isExit {
			return afplugin.BuildResult{ExitCode: ee.ExitCode, Message: ee.Reason}, nil
		}
		return afplugin.BuildResult{}, err
	}
	return afplugin.BuildResult{ExitCode: result.ReturnCode, Message: result.Message}, nil
}

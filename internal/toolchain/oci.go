package toolchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/autoforge-project/autoforge/internal/aferrors"
)

// resolveImage resolves a tool declared as "image://<registry>/<repo>:<tag>"
// — common for reproducible embedded cross-toolchains distributed as
// container images rather than bare executables. It verifies the image
// reference exists and is pullable, treating the tag as the tool's version
// for constraint comparison; a digest reference has no tag, so its version
// is not checked.
func (r *Resolver) resolveImage(ctx context.Context, t RequiredTool) (Resolved, error) {
	ref := strings.TrimPrefix(t.Path, "image://")
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return Resolved{}, aferrors.Wrap(aferrors.KindToolchainInvalid, fmt.Sprintf("parsing image reference %q for tool %q", ref, t.Name), err)
	}

	desc, err := remote.Get(parsed, remote.WithContext(ctx))
	if err != nil {
		return Resolved{}, aferrors.Wrap(aferrors.KindToolMissing, fmt.Sprintf("resolving image %q for tool %q", ref, t.Name), err)
	}

	version := imageVersionTag(parsed)
	res := Resolved{
		Name:            t.Name,
		ResolvedPath:    fmt.Sprintf("image://%s@%s", ref, desc.Digest.String()),
		DetectedVersion: version,
	}
	if t.Version == "" || version == "" {
		return res, nil
	}
	satisfied, detected, err := Compare(version, t.Version)
	if err != nil {
		return Resolved{}, err
	}
	res.DetectedVersion = detected
	if !satisfied {
		return Resolved{}, aferrors.New(aferrors.KindVersionUnsatisfied, fmt.Sprintf("image tool %q tag %q does not satisfy %q", t.Name, version, t.Version))
	}
	return res, nil
}

func imageVersionTag(ref name.Reference) string {
	if tagged, ok := ref.(name.Tag); ok {
		return tagged.TagStr()
	}
	return ""
}

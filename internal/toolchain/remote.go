package toolchain

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/autoforge-project/autoforge/internal/aferrors"
)

// resolveRemote resolves a tool declared as "ssh://<host-alias>/<path>",
// where host-alias is looked up in the user's ~/.ssh/config via
// kevinburke/ssh_config, then version-checked over an SSH session running
// "<path> --version" on that host. This covers embedded toolchains that
// live on a shared build server rather than the local machine.
func (r *Resolver) resolveRemote(ctx context.Context, t RequiredTool) (Resolved, error) {
	ref := strings.TrimPrefix(t.Path, "ssh://")
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Resolved{}, aferrors.New(aferrors.KindToolchainInvalid, fmt.Sprintf("malformed ssh tool reference %q, want ssh://<host-alias>/<path>", t.Path))
	}
	alias, remotePath := parts[0], parts[1]

	client, err := dialFromSSHConfig(ctx, alias)
	if err != nil {
		return Resolved{}, aferrors.Wrap(aferrors.KindToolMissing, fmt.Sprintf("connecting to remote host %q for tool %q", alias, t.Name), err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Resolved{}, aferrors.Wrap(aferrors.KindToolMissing, "opening ssh session", err)
	}
	defer session.Close()

	output, err := session.CombinedOutput(fmt.Sprintf("%s --version", remotePath))
	if err != nil && len(output) == 0 {
		return Resolved{}, aferrors.Wrap(aferrors.KindToolMissing, fmt.Sprintf("remote tool %q not found on %q", remotePath, alias), err)
	}

	res := Resolved{Name: t.Name, ResolvedPath: fmt.Sprintf("ssh://%s/%s", alias, remotePath)}
	if t.Version == "" {
		return res, nil
	}
	satisfied, detected, err := Compare(string(output), t.Version)
	if err != nil {
		return Resolved{}, err
	}
	res.DetectedVersion = detected
	if !satisfied {
		return Resolved{}, aferrors.New(aferrors.KindVersionUnsatisfied, fmt.Sprintf("remote tool %q version %q does not satisfy %q", t.Name, detected, t.Version))
	}
	return res, nil
}

// dialFromSSHConfig resolves alias's HostName/Port/User/IdentityFile from
// the user's ssh config (falling back to sane defaults) and dials it,
// trusting known_hosts via the standard callback.
func dialFromSSHConfig(ctx context.Context, alias string) (*ssh.Client, error) {
	hostName := ssh_config.Get(alias, "HostName")
	if hostName == "" {
		hostName = alias
	}
	port := ssh_config.Get(alias, "Port")
	if port == "" {
		port = "22"
	}
	user := ssh_config.Get(alias, "User")
	if user == "" {
		user = os.Getenv("USER")
	}

	authMethods, err := identityAuthMethods(alias)
	if err != nil {
		return nil, err
	}

	knownHosts, err := knownHostsCallback()
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: knownHosts,
		Timeout:         10 * time.Second,
	}

	dialer := net.Dialer{Timeout: 10 * time.Second}
	addr := net.JoinHostPort(hostName, port)

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func identityAuthMethods(alias string) ([]ssh.AuthMethod, error) {
	identityFile := ssh_config.Get(alias, "IdentityFile")
	if identityFile == "" {
		identityFile = filepath.Join(os.Getenv("HOME"), ".ssh", "id_ed25519")
	}
	identityFile = expandTilde(identityFile)

	key, err := os.ReadFile(identityFile)
	if err != nil {
		return nil, fmt.Errorf("reading identity file %q: %w", identityFile, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parsing identity file %q: %w", identityFile, err)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

func knownHostsCallback() (ssh.HostKeyCallback, error) {
	// Host keys are checked against ~/.ssh/known_hosts; an unknown or
	// mismatched key fails the handshake.
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("locating known_hosts: %w", err)
	}
	cb, err := knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts: %w", err)
	}
	return cb, nil
}

func expandTilde(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

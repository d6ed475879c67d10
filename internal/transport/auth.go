package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	rcerr "genircon/internal/errors"
)

// defaultKeyNames are tried under ~/.ssh when no login method is set.
var defaultKeyNames = []string{"id_ed25519", "id_rsa", "id_ecdsa"} //nolint:gochecknoglobals

// BuildAuthMethods returns the jump host login methods in the order the
// server is offered them: key file, agent, password prompt. With none of
// them requested it falls back to the agent and the usual key files.
func BuildAuthMethods(cfg *SSHConfig) ([]ssh.AuthMethod, error) {
	requested := []struct {
		on    bool
		name  string
		build func() (ssh.AuthMethod, error)
	}{
		{cfg.KeyPath != "", "key " + cfg.KeyPath, func() (ssh.AuthMethod, error) { return keyFileAuth(cfg.KeyPath) }},
		{cfg.UseAgent, "ssh-agent", agentAuth},
		{cfg.PromptPass, "password", passwordAuth},
	}

	var methods []ssh.AuthMethod
	for _, r := range requested {
		if !r.on {
			continue
		}
		m, err := r.build()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.name, err)
		}
		methods = append(methods, m)
	}
	if len(methods) > 0 {
		return methods, nil
	}

	if m, err := agentAuth(); err == nil {
		methods = append(methods, m)
	}
	if m := defaultKeysAuth(); m != nil {
		methods = append(methods, m)
	}
	if len(methods) == 0 {
		return nil, errors.New("no way to log in to the jump host, use --ssh-key, --ssh-password or --ssh-agent")
	}
	return methods, nil
}

func keyFileAuth(path string) (ssh.AuthMethod, error) {
	signer, err := loadSigner(path)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

// loadSigner parses a private key, asking for its passphrase when the
// key is encrypted.
func loadSigner(path string) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(pem)
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return signer, err
	}
	pass, err := readSecret("Passphrase for " + path + ": ")
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKeyWithPassphrase(pem, pass)
}

// defaultKeysAuth offers every readable unencrypted key under ~/.ssh as
// one method, or nil when there is none.
func defaultKeysAuth() ssh.AuthMethod {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var signers []ssh.Signer
	for _, name := range defaultKeyNames {
		pem, err := os.ReadFile(filepath.Join(home, ".ssh", name))
		if err != nil {
			continue
		}
		if s, err := ssh.ParsePrivateKey(pem); err == nil {
			signers = append(signers, s)
		}
	}
	if len(signers) == 0 {
		return nil
	}
	return ssh.PublicKeys(signers...)
}

func agentAuth() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, errors.New("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

func passwordAuth() (ssh.AuthMethod, error) {
	pass, err := readSecret("SSH password: ")
	if err != nil {
		return nil, err
	}
	return ssh.Password(string(pass)), nil
}

// readSecret prompts on stderr and reads without echo. It refuses to
// read from a pipe, where the console lines would be consumed instead.
func readSecret(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("cannot prompt, stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	return term.ReadPassword(fd)
}

// hostKeyCallback checks the jump host against known_hosts when
// --strict-hostkey is set. A changed key is reported as
// ErrHostKeyMismatch; an unknown host keeps the knownhosts error.
func hostKeyCallback(cfg *SSHConfig) (ssh.HostKeyCallback, error) {
	if !cfg.StrictHostKey {
		//nolint:gosec // host key checking is opt-in
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := cfg.KnownHosts
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	check, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("known_hosts %s: %w", path, err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		if ke := (*knownhosts.KeyError)(nil); errors.As(err, &ke) && len(ke.Want) > 0 {
			return fmt.Errorf("%w for %s: %w", rcerr.ErrHostKeyMismatch, hostname, err)
		}
		return err
	}, nil
}

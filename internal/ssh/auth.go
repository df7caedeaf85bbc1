package ssh

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/acolita/termdriver/internal/adapters/realfs"
	"github.com/acolita/termdriver/internal/adapters/realnet"
	"github.com/acolita/termdriver/internal/ports"
)

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	KeyPath       string // Path to private key file
	KeyContent    string // PEM private key, used instead of KeyPath when set
	KeyPassphrase string
	UseAgent      bool
	Password      string
	Host          string // Target host for ~/.ssh/config lookup
}

var defaultKeys = []string{
	"~/.ssh/id_ed25519",
	"~/.ssh/id_rsa",
	"~/.ssh/id_ecdsa",
}

// Authenticator builds auth methods and host key checks. Key files and the
// agent socket are reached through ports so tests can stay in memory.
type Authenticator struct {
	fs     ports.FileSystem
	dialer ports.NetworkDialer
}

// NewAuthenticator creates an Authenticator. Nil arguments select the real
// filesystem and network.
func NewAuthenticator(fs ports.FileSystem, dialer ports.NetworkDialer) *Authenticator {
	if fs == nil {
		fs = realfs.New()
	}
	if dialer == nil {
		dialer = realnet.NewDialer()
	}
	return &Authenticator{fs: fs, dialer: dialer}
}

// BuildAuthMethods constructs SSH auth methods from config using the real
// filesystem and network.
func BuildAuthMethods(cfg AuthConfig) ([]ssh.AuthMethod, error) {
	return NewAuthenticator(nil, nil).Methods(cfg)
}

// Methods returns the auth methods for cfg, in the order the server should
// try them: agent, explicit key, ssh config key, default key, password.
func (a *Authenticator) Methods(cfg AuthConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.UseAgent {
		agentAuth, err := a.agentAuth()
		if err != nil {
			slog.Debug("ssh agent unavailable", slog.String("error", err.Error()))
		} else {
			methods = append(methods, agentAuth)
		}
	}

	explicitKey := cfg.KeyContent != "" || cfg.KeyPath != ""
	switch {
	case cfg.KeyContent != "":
		signer, err := parseKey([]byte(cfg.KeyContent), cfg.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("private key auth: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	case cfg.KeyPath != "":
		keyAuth, err := a.keyFileAuth(cfg.KeyPath, cfg.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("private key auth: %w", err)
		}
		methods = append(methods, keyAuth)
	}

	if !explicitKey && cfg.Host != "" {
		if configKey := a.configIdentityFile(cfg.Host); configKey != "" {
			if keyAuth, err := a.keyFileAuth(configKey, cfg.KeyPassphrase); err == nil {
				methods = append(methods, keyAuth)
			}
		}
	}

	if !explicitKey && cfg.Password == "" && len(methods) == 0 {
		for _, keyPath := range defaultKeys {
			expanded := a.expandPath(keyPath)
			if _, err := a.fs.Stat(expanded); err != nil {
				continue
			}
			if keyAuth, err := a.keyFileAuth(expanded, cfg.KeyPassphrase); err == nil {
				methods = append(methods, keyAuth)
				break
			}
		}
	}

	if cfg.Password != "" {
		methods = append(methods, PasswordAuth(cfg.Password), KeyboardInteractiveAuth(cfg.Password))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no authentication methods available")
	}
	return methods, nil
}

func (a *Authenticator) agentAuth() (ssh.AuthMethod, error) {
	socket := a.fs.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK not set")
	}
	conn, err := a.dialer.Dial("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("dial agent: %w", err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

func (a *Authenticator) keyFileAuth(keyPath, passphrase string) (ssh.AuthMethod, error) {
	keyData, err := a.fs.ReadFile(a.expandPath(keyPath))
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	signer, err := parseKey(keyData, passphrase)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

func parseKey(keyData []byte, passphrase string) (ssh.Signer, error) {
	var (
		signer ssh.Signer
		err    error
	)
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyData)
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return signer, nil
}

// HostKeyCallback verifies host keys against knownHostsPath (default
// ~/.ssh/known_hosts). insecure skips verification. A missing known_hosts
// file accepts any key and logs a warning for it.
func (a *Authenticator) HostKeyCallback(knownHostsPath string, insecure bool) (ssh.HostKeyCallback, error) {
	if insecure {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if knownHostsPath == "" {
		knownHostsPath = "~/.ssh/known_hosts"
	}
	expanded := a.expandPath(knownHostsPath)

	if _, err := a.fs.Stat(expanded); err != nil {
		return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			slog.Warn("host key not verified, known_hosts missing",
				slog.String("host", hostname),
				slog.String("known_hosts", expanded),
				slog.String("fingerprint", ssh.FingerprintSHA256(key)),
			)
			return nil
		}, nil
	}

	callback, err := knownhosts.New(expanded)
	if err != nil {
		return nil, fmt.Errorf("parse known_hosts: %w", err)
	}
	return callback, nil
}

func (a *Authenticator) expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := a.fs.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// configIdentityFile returns the first IdentityFile of the ~/.ssh/config
// Host block matching host.
func (a *Authenticator) configIdentityFile(host string) string {
	data, err := a.fs.ReadFile(a.expandPath("~/.ssh/config"))
	if err != nil {
		return ""
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	matches := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		value := strings.Join(parts[1:], " ")
		switch strings.ToLower(parts[0]) {
		case "host":
			matches = matchHostPattern(host, value)
		case "identityfile":
			if matches {
				return a.expandPath(value)
			}
		}
	}
	return ""
}

// matchHostPattern reports whether host matches any of the space separated
// patterns of an ssh config Host line. "*" and "?" are the only wildcards.
func matchHostPattern(host, patterns string) bool {
	for _, p := range strings.Fields(patterns) {
		if ok, err := doublestar.Match(p, host); err == nil && ok {
			return true
		}
	}
	return false
}

// PasswordAuth returns a password auth method.
func PasswordAuth(password string) ssh.AuthMethod {
	return ssh.Password(password)
}

// KeyboardInteractiveAuth answers every keyboard-interactive question with password.
func KeyboardInteractiveAuth(password string) ssh.AuthMethod {
	return ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = password
		}
		return answers, nil
	})
}

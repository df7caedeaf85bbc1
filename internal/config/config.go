// Package config handles configuration parsing for termdriver.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/acolita/termdriver/internal/adapters/realfs"
	"github.com/acolita/termdriver/internal/ports"
)

// EnvPrefix prefixes every environment override, e.g. TERMDRIVER_LOG_LEVEL.
const EnvPrefix = "TERMDRIVER_"

// DefaultConfigPath returns $XDG_CONFIG_HOME/termdriver/config.yaml or
// ~/.config/termdriver/config.yaml.
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "termdriver", "config.yaml")
}

// Config represents the top-level configuration.
type Config struct {
	Connection ConnectionConfig `yaml:"connection" envPrefix:"CONNECTION_"`
	Hosts      []HostConfig     `yaml:"hosts"`
	Logging    LoggingConfig    `yaml:"logging" envPrefix:"LOG_"`
	Recording  RecordingConfig  `yaml:"recording" envPrefix:"RECORDING_"`
	Security   SecurityConfig   `yaml:"security" envPrefix:"SECURITY_"`
	Secrets    SecretsConfig    `yaml:"secrets" envPrefix:"SECRETS_"`
	REST       RESTConfig       `yaml:"rest" envPrefix:"REST_"`
}

// ConnectionConfig holds the defaults every session starts with.
type ConnectionConfig struct {
	PromptMarkers   []string      `yaml:"prompt_markers" env:"PROMPT_MARKERS" envSeparator:","`
	MaxStalls       int           `yaml:"max_stalls" env:"MAX_STALLS"` // 0 waits forever
	RecvTimeout     time.Duration `yaml:"recv_timeout" env:"RECV_TIMEOUT"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	KnownHostsPath  string        `yaml:"known_hosts_path" env:"KNOWN_HOSTS"`
	InsecureHostKey bool          `yaml:"insecure_host_key" env:"INSECURE_HOST_KEY"`
	TranscriptDir   string        `yaml:"transcript_dir" env:"TRANSCRIPT_DIR"`
	Term            string        `yaml:"term" env:"TERM"`
	Rows            int           `yaml:"rows" env:"ROWS"`
	Cols            int           `yaml:"cols" env:"COLS"`
}

// HostConfig is a named SSH target.
type HostConfig struct {
	Name          string   `yaml:"name"`
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port"`
	User          string   `yaml:"user"`
	KeyPath       string   `yaml:"key_path"`
	UseAgent      bool     `yaml:"use_agent"`
	PasswordEnv   string   `yaml:"password_env"`   // env var containing the SSH password
	PassphraseEnv string   `yaml:"passphrase_env"` // env var containing the key passphrase
	PromptMarkers []string `yaml:"prompt_markers"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level" env:"LEVEL"`
	Format   string `yaml:"format" env:"FORMAT"` // json or text
	Sanitize bool   `yaml:"sanitize" env:"SANITIZE"`
}

// RecordingConfig defines asciicast recording settings.
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" env:"PATH"`
}

// SecurityConfig defines security settings.
type SecurityConfig struct {
	MaxSessions         int           `yaml:"max_sessions" env:"MAX_SESSIONS"`
	IdleTimeout         time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	CommandBlocklist    []string      `yaml:"command_blocklist" env:"COMMAND_BLOCKLIST" envSeparator:";"`
	CommandAllowlist    []string      `yaml:"command_allowlist" env:"COMMAND_ALLOWLIST" envSeparator:";"`
	MaxAuthFailures     int           `yaml:"max_auth_failures" env:"MAX_AUTH_FAILURES"`
	AuthLockoutDuration time.Duration `yaml:"auth_lockout_duration" env:"AUTH_LOCKOUT_DURATION"`
}

// SecretsConfig configures the secret store.
type SecretsConfig struct {
	Backend   string `yaml:"backend" env:"BACKEND"` // keyring or memory
	Service   string `yaml:"service" env:"SERVICE"`
	Separator string `yaml:"separator" env:"SEPARATOR"`
}

// RESTConfig configures the REST template executor.
type RESTConfig struct {
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	TemplateDir string        `yaml:"template_dir" env:"TEMPLATE_DIR"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			PromptMarkers:  []string{"#", "$"},
			RecvTimeout:    time.Second,
			ConnectTimeout: 30 * time.Second,
			Term:           "dumb",
			Rows:           24,
			Cols:           120,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Sanitize: true,
		},
		Security: SecurityConfig{
			MaxSessions:         10,
			IdleTimeout:         30 * time.Minute,
			MaxAuthFailures:     5,
			AuthLockoutDuration: 15 * time.Minute,
		},
		Secrets: SecretsConfig{
			Backend:   "keyring",
			Service:   "termdriver",
			Separator: "__",
		},
		REST: RESTConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// LoadOption customizes Load.
type LoadOption func(*loader)

type loader struct {
	fs  ports.FileSystem
	env map[string]string
}

// WithFileSystem reads the config file through fs.
func WithFileSystem(fs ports.FileSystem) LoadOption {
	return func(l *loader) { l.fs = fs }
}

// WithEnvironment replaces the process environment for overrides.
func WithEnvironment(environ map[string]string) LoadOption {
	return func(l *loader) { l.env = environ }
}

// Load reads a YAML file over the defaults, then applies TERMDRIVER_*
// environment overrides. An empty path or a missing file yields the
// defaults plus overrides.
func Load(path string, opts ...LoadOption) (*Config, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.fs == nil {
		l.fs = realfs.New()
	}
	if l.env == nil {
		l.env = env.ToMap(os.Environ())
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := l.fs.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: l.env}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration and fills in values that must not be
// zero.
func (c *Config) Validate() error {
	if c.Security.MaxSessions <= 0 {
		c.Security.MaxSessions = 10
	}
	if c.Connection.MaxStalls < 0 {
		return fmt.Errorf("connection.max_stalls must not be negative")
	}
	if len(c.Connection.PromptMarkers) == 0 {
		c.Connection.PromptMarkers = []string{"#", "$"}
	}
	switch strings.ToLower(c.Secrets.Backend) {
	case "", "keyring", "memory":
	default:
		return fmt.Errorf("secrets.backend %q is not one of keyring, memory", c.Secrets.Backend)
	}

	seen := make(map[string]bool, len(c.Hosts))
	for i, h := range c.Hosts {
		if h.Name == "" || h.Host == "" {
			return fmt.Errorf("hosts[%d]: name and host are required", i)
		}
		if seen[h.Name] {
			return fmt.Errorf("hosts[%d]: duplicate name %q", i, h.Name)
		}
		seen[h.Name] = true
	}
	return nil
}

// FindHost returns the host entry called name.
func (c *Config) FindHost(name string) (HostConfig, bool) {
	for _, h := range c.Hosts {
		if h.Name == name {
			return h, true
		}
	}
	return HostConfig{}, false
}

// AddHost adds a host, refusing duplicate names.
func (c *Config) AddHost(h HostConfig) error {
	if _, ok := c.FindHost(h.Name); ok {
		return fmt.Errorf("host %q already exists", h.Name)
	}
	c.Hosts = append(c.Hosts, h)
	return nil
}

// Save writes the configuration as YAML. A nil fs selects the real
// filesystem.
func Save(cfg *Config, path string, fs ports.FileSystem) error {
	if fs == nil {
		fs = realfs.New()
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return fs.WriteFile(path, data, 0o644)
}

// Package mcp exposes terminal sessions, the secret store and the REST
// executor as MCP tools.
package mcp

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/acolita/termdriver/internal/adapters/realclock"
	"github.com/acolita/termdriver/internal/adapters/realfs"
	"github.com/acolita/termdriver/internal/config"
	"github.com/acolita/termdriver/internal/connect"
	"github.com/acolita/termdriver/internal/logging"
	"github.com/acolita/termdriver/internal/ports"
	"github.com/acolita/termdriver/internal/recording"
	"github.com/acolita/termdriver/internal/rest"
	"github.com/acolita/termdriver/internal/secrets"
	"github.com/acolita/termdriver/internal/security"
	"github.com/acolita/termdriver/internal/session"
)

// Version is reported to MCP clients.
var Version = "dev"

const defaultRecordingDir = "/tmp/termdriver/recordings"

// Server wraps the MCP server implementation.
type Server struct {
	mcpServer  *server.MCPServer
	sessions   *session.Manager
	filter     *security.CommandFilter
	recordings *recording.Manager
	secrets    *secrets.SDK
	dialog     ports.DialogProvider
	logSecrets *logging.Secrets
	opener     connect.Opener
	templates  fs.FS
	restOpts   []rest.ExecutorOption
	fs         ports.FileSystem
	clock      ports.Clock
	configPath string

	mu      sync.RWMutex // guards config and limiter
	config  *config.Config
	limiter *security.AuthRateLimiter
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithFileSystem sets the filesystem used for transcripts, recordings and
// config saves.
func WithFileSystem(fs ports.FileSystem) ServerOption {
	return func(s *Server) { s.fs = fs }
}

// WithClock sets the clock shared by sessions, lockouts and recordings.
func WithClock(c ports.Clock) ServerOption {
	return func(s *Server) { s.clock = c }
}

// WithDialogProvider sets how the user is asked to confirm host changes.
func WithDialogProvider(d ports.DialogProvider) ServerOption {
	return func(s *Server) { s.dialog = d }
}

// WithConfigPath enables terminal_host_add, which saves to path.
func WithConfigPath(path string) ServerOption {
	return func(s *Server) { s.configPath = path }
}

// WithSecretsBackend replaces the backend selected by the config.
func WithSecretsBackend(b secrets.Backend) ServerOption {
	return func(s *Server) { s.secrets = secrets.NewSDK(b) }
}

// WithChannelOpener replaces how terminal_connect opens channels.
func WithChannelOpener(o connect.Opener) ServerOption {
	return func(s *Server) { s.opener = o }
}

// WithTemplates sets where rest_execute reads templates from.
func WithTemplates(fsys fs.FS) ServerOption {
	return func(s *Server) { s.templates = fsys }
}

// WithRESTOptions passes options to every REST executor.
func WithRESTOptions(opts ...rest.ExecutorOption) ServerOption {
	return func(s *Server) { s.restOpts = append(s.restOpts, opts...) }
}

// WithLogSecrets registers connection passwords with the log scrubber.
func WithLogSecrets(sec *logging.Secrets) ServerOption {
	return func(s *Server) { s.logSecrets = sec }
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"termdriver",
			Version,
			server.WithToolCapabilities(false),
			server.WithLogging(),
		),
		config: cfg,
		fs:     realfs.New(),
		clock:  realclock.New(),
		opener: connect.Factory,
	}
	for _, opt := range opts {
		opt(s)
	}

	filter, err := security.NewCommandFilter(cfg.Security.CommandBlocklist, cfg.Security.CommandAllowlist)
	if err != nil {
		slog.Warn("failed to initialize command filter, using permissive mode",
			slog.String("error", err.Error()),
		)
		filter, _ = security.NewCommandFilter(nil, nil)
	}
	s.filter = filter
	s.limiter = security.NewAuthRateLimiter(cfg.Security.MaxAuthFailures, cfg.Security.AuthLockoutDuration, s.clock)
	s.sessions = session.NewManager(cfg.Security.MaxSessions, s.clock)
	s.recordings = recording.NewManager(recordingDir(cfg), cfg.Recording.Enabled, s.fs, s.clock)

	if s.secrets == nil {
		s.secrets = secrets.NewSDK(newSecretsBackend(cfg.Secrets))
	}
	if s.templates == nil && cfg.REST.TemplateDir != "" {
		s.templates = os.DirFS(cfg.REST.TemplateDir)
	}

	s.registerTools()
	return s
}

func newSecretsBackend(cfg config.SecretsConfig) secrets.Backend {
	if cfg.Backend == "memory" {
		return secrets.NewMemoryBackend()
	}
	return secrets.NewKeyringBackend(cfg.Service)
}

func recordingDir(cfg *config.Config) string {
	if cfg.Recording.Path != "" {
		return cfg.Recording.Path
	}
	return defaultRecordingDir
}

// Run serves MCP on stdio until ctx is done, pruning idle sessions in the
// background.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("starting MCP server on stdio transport")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.pruneLoop(ctx)
	defer s.Shutdown()

	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) pruneLoop(ctx context.Context) {
	ticker := s.clock.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.prune()
		}
	}
}

// prune drops sessions that closed on their own or sat idle too long.
func (s *Server) prune() {
	s.sessions.Prune()
	s.mu.RLock()
	idle := s.config.Security.IdleTimeout
	s.mu.RUnlock()
	if idle > 0 {
		for _, id := range s.sessions.PruneIdle(idle) {
			slog.Info("closed idle session", slog.String("session_id", id))
			s.recordings.Stop(id)
		}
	}
	s.limiter.Cleanup()
}

// Shutdown closes every session and recording.
func (s *Server) Shutdown() {
	s.sessions.CloseAll()
	s.recordings.CloseAll()
}

// UpdateConfig applies a new configuration at runtime. The command filter,
// lockout policy and idle timeout change in place; everything else needs a
// restart.
func (s *Server) UpdateConfig(cfg *config.Config) {
	slog.Debug("applying config update")

	if err := s.filter.Update(cfg.Security.CommandBlocklist, cfg.Security.CommandAllowlist); err != nil {
		slog.Warn("failed to update command filter, keeping previous",
			slog.String("error", err.Error()),
		)
	}

	s.mu.Lock()
	s.limiter = security.NewAuthRateLimiter(cfg.Security.MaxAuthFailures, cfg.Security.AuthLockoutDuration, s.clock)
	s.config = cfg
	s.mu.Unlock()

	slog.Info("configuration hot-reloaded")
}

func (s *Server) currentConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *Server) rateLimiter() *security.AuthRateLimiter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limiter
}

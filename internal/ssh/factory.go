package ssh

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/acolita/termdriver/internal/channel"
	"github.com/acolita/termdriver/internal/outcome"
	"github.com/acolita/termdriver/internal/ports"
)

// Target names a remote login.
type Target struct {
	Host              string
	Port              int
	User              string
	Auth              AuthConfig
	KnownHostsPath    string
	InsecureHostKey   bool
	Timeout           time.Duration
	KeepaliveInterval time.Duration
}

// Endpoint formats the target as user@host:port.
func (t Target) Endpoint() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return t.User + "@" + net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// ChannelFactory opens an interactive shell on Target for a session driver.
type ChannelFactory struct {
	target     Target
	shell      ShellOptions
	auth       *Authenticator
	dialer     ports.SSHDialer
	clock      ports.Clock
	streamOpts []channel.Option
}

// FactoryOption configures a ChannelFactory.
type FactoryOption func(*ChannelFactory)

// WithShellOptions sets the PTY parameters.
func WithShellOptions(o ShellOptions) FactoryOption {
	return func(f *ChannelFactory) { f.shell = o }
}

// WithAuthenticator replaces the default filesystem and agent lookups.
func WithAuthenticator(a *Authenticator) FactoryOption {
	return func(f *ChannelFactory) { f.auth = a }
}

// WithSSHDialer replaces ssh.Dial.
func WithSSHDialer(d ports.SSHDialer) FactoryOption {
	return func(f *ChannelFactory) { f.dialer = d }
}

// WithClock sets the clock driving connection keepalives.
func WithClock(c ports.Clock) FactoryOption {
	return func(f *ChannelFactory) { f.clock = c }
}

// WithStreamOptions configures the channel wrapping the shell.
func WithStreamOptions(opts ...channel.Option) FactoryOption {
	return func(f *ChannelFactory) { f.streamOpts = append(f.streamOpts, opts...) }
}

// NewChannelFactory creates a factory for target.
func NewChannelFactory(target Target, opts ...FactoryOption) *ChannelFactory {
	f := &ChannelFactory{target: target, shell: DefaultShellOptions()}
	for _, opt := range opts {
		opt(f)
	}
	if f.auth == nil {
		f.auth = NewAuthenticator(nil, nil)
	}
	return f
}

// Endpoint returns user@host:port.
func (f *ChannelFactory) Endpoint() string {
	return f.target.Endpoint()
}

// Open logs in and starts a shell. Every failure up to a running shell is
// reported as an *outcome.AuthError.
func (f *ChannelFactory) Open(ctx context.Context) (ports.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, f.authError(err)
	}

	methods, err := f.auth.Methods(f.target.Auth)
	if err != nil {
		return nil, f.authError(err)
	}
	hostKeys, err := f.auth.HostKeyCallback(f.target.KnownHostsPath, f.target.InsecureHostKey)
	if err != nil {
		return nil, f.authError(err)
	}

	client, err := dial(ctx, f.target, methods, hostKeys, f.dialer, f.clock)
	if err != nil {
		return nil, f.authError(err)
	}

	shell, err := OpenShell(client, f.shell)
	if err != nil {
		client.Close()
		return nil, f.authError(err)
	}

	slog.Debug("ssh shell opened", slog.String("endpoint", f.Endpoint()))
	return channel.NewStream(shell, f.streamOpts...), nil
}

func (f *ChannelFactory) authError(err error) error {
	return &outcome.AuthError{Endpoint: f.Endpoint(), Err: fmt.Errorf("ssh: %w", err)}
}

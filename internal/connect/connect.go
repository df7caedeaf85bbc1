// Package connect turns connection settings into channel factories for the
// session driver.
package connect

import (
	"fmt"

	"github.com/acolita/termdriver/internal/channel"
	"github.com/acolita/termdriver/internal/config"
	"github.com/acolita/termdriver/internal/pty"
	"github.com/acolita/termdriver/internal/session"
	"github.com/acolita/termdriver/internal/ssh"
)

// Modes.
const (
	ModeSSH   = "ssh"
	ModeLocal = "local"
)

// Request describes one connection.
type Request struct {
	Mode          string
	Host          string
	Port          int
	User          string
	Password      string
	KeyPath       string
	KeyPassphrase string
	UseAgent      bool
	// Shell is the local shell binary; empty selects $SHELL.
	Shell         string
	PromptMarkers []string
}

// FromHost builds an SSH request from a configured host. Password and
// passphrase are read from the environment variables the host names.
func FromHost(h config.HostConfig, getenv func(string) string) Request {
	req := Request{
		Mode:          ModeSSH,
		Host:          h.Host,
		Port:          h.Port,
		User:          h.User,
		KeyPath:       h.KeyPath,
		UseAgent:      h.UseAgent,
		PromptMarkers: h.PromptMarkers,
	}
	if h.PasswordEnv != "" {
		req.Password = getenv(h.PasswordEnv)
	}
	if h.PassphraseEnv != "" {
		req.KeyPassphrase = getenv(h.PassphraseEnv)
	}
	return req
}

// Endpoint names the request the way the factory will.
func (r Request) Endpoint() string {
	if r.Mode == ModeLocal {
		return "local:" + r.Shell
	}
	return ssh.Target{Host: r.Host, Port: r.Port, User: r.User}.Endpoint()
}

// Opener builds a channel factory for a request under the given connection
// defaults.
type Opener func(conn config.ConnectionConfig, req Request) (session.ChannelFactory, error)

// Factory is the Opener for real SSH and local PTY channels.
func Factory(conn config.ConnectionConfig, req Request) (session.ChannelFactory, error) {
	var streamOpts []channel.Option
	if conn.RecvTimeout > 0 {
		streamOpts = append(streamOpts, channel.WithRecvTimeout(conn.RecvTimeout))
	}

	switch req.Mode {
	case ModeLocal:
		opts := pty.DefaultOptions()
		if req.Shell != "" {
			opts.Shell = req.Shell
			opts.Env = pty.ShellEnv(req.Shell)
		}
		if conn.Term != "" {
			opts.Term = conn.Term
		}
		if conn.Rows > 0 {
			opts.Rows = uint16(conn.Rows)
		}
		if conn.Cols > 0 {
			opts.Cols = uint16(conn.Cols)
		}
		return pty.NewChannelFactory(opts, streamOpts...), nil

	case ModeSSH, "":
		if req.Host == "" || req.User == "" {
			return nil, fmt.Errorf("host and user are required for ssh")
		}
		shell := ssh.DefaultShellOptions()
		if conn.Term != "" {
			shell.Term = conn.Term
		}
		if conn.Rows > 0 {
			shell.Rows = uint32(conn.Rows)
		}
		if conn.Cols > 0 {
			shell.Cols = uint32(conn.Cols)
		}
		target := ssh.Target{
			Host: req.Host,
			Port: req.Port,
			User: req.User,
			Auth: ssh.AuthConfig{
				KeyPath:       req.KeyPath,
				KeyPassphrase: req.KeyPassphrase,
				UseAgent:      req.UseAgent,
				Password:      req.Password,
				Host:          req.Host,
			},
			KnownHostsPath:  conn.KnownHostsPath,
			InsecureHostKey: conn.InsecureHostKey,
			Timeout:         conn.ConnectTimeout,
		}
		return ssh.NewChannelFactory(target,
			ssh.WithShellOptions(shell),
			ssh.WithStreamOptions(streamOpts...),
		), nil

	default:
		return nil, fmt.Errorf("unknown mode %q (want ssh or local)", req.Mode)
	}
}

// Markers picks the request's prompt markers, falling back to the
// connection defaults.
func Markers(conn config.ConnectionConfig, req Request) []string {
	if len(req.PromptMarkers) > 0 {
		return req.PromptMarkers
	}
	return conn.PromptMarkers
}

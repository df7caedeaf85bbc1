// Package ssh opens interactive shells on remote hosts over SSH.
package ssh

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/acolita/termdriver/internal/adapters/realclock"
	"github.com/acolita/termdriver/internal/adapters/realsshdialer"
	"github.com/acolita/termdriver/internal/ports"
)

const (
	defaultDialTimeout = 30 * time.Second
	defaultKeepalive   = 30 * time.Second
)

// Client is one logged-in SSH connection carrying a single shell. A
// keepalive goroutine runs until Close.
type Client struct {
	mu       sync.Mutex
	conn     *ssh.Client
	endpoint string
	stop     chan struct{}
	done     chan struct{}
}

// dial logs in to target. The handshake is bounded by target.Timeout and by
// the deadline of ctx, whichever is sooner.
func dial(ctx context.Context, target Target, methods []ssh.AuthMethod, hostKeys ssh.HostKeyCallback, dialer ports.SSHDialer, clock ports.Clock) (*Client, error) {
	if target.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if target.User == "" {
		return nil, fmt.Errorf("user is required")
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("at least one auth method is required")
	}
	if dialer == nil {
		dialer = realsshdialer.New()
	}
	if clock == nil {
		clock = realclock.New()
	}

	timeout := target.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	port := target.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(target.Host, strconv.Itoa(port))
	conn, err := dialer.Dial("tcp", addr, &ssh.ClientConfig{
		User:            target.User,
		Auth:            methods,
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	interval := target.KeepaliveInterval
	if interval <= 0 {
		interval = defaultKeepalive
	}
	c := &Client{
		conn:     conn,
		endpoint: target.Endpoint(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.keepalive(clock.NewTicker(interval))
	return c, nil
}

// keepalive pings the server. A dead connection surfaces on the shell's next
// read, so failures are only logged.
func (c *Client) keepalive(ticker ports.Ticker) {
	defer close(c.done)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C():
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				return
			}
			if _, _, err := conn.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				slog.Debug("keepalive failed", slog.String("endpoint", c.endpoint), slog.String("error", err.Error()))
			}
		}
	}
}

// newSession opens a session channel on the connection.
func (c *Client) newSession() (*ssh.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, fmt.Errorf("not connected")
	}
	session, err := c.conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	return session, nil
}

// Close stops the keepalive and closes the connection. Repeated calls
// return nil.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	close(c.stop)
	err := conn.Close()
	<-c.done
	return err
}

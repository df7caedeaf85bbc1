// Package fakesshdialer provides a fake SSH dialer for testing.
package fakesshdialer

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/acolita/termdriver/internal/ports"
)

// Dialer records dial attempts and answers them with DialFunc. It fails
// until configured.
type Dialer struct {
	mu       sync.Mutex
	DialFunc func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)
	calls    []DialCall
}

// DialCall records a call to Dial.
type DialCall struct {
	Network string
	Addr    string
	User    string
	Config  *ssh.ClientConfig
}

// New creates a new fake Dialer that returns an error by default.
func New() *Dialer {
	return &Dialer{
		DialFunc: func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
			return nil, fmt.Errorf("fakesshdialer: not configured")
		},
	}
}

func (d *Dialer) Dial(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	d.mu.Lock()
	call := DialCall{Network: network, Addr: addr, Config: config}
	if config != nil {
		call.User = config.User
	}
	d.calls = append(d.calls, call)
	fn := d.DialFunc
	d.mu.Unlock()
	return fn(network, addr, config)
}

// Calls returns all recorded Dial calls.
func (d *Dialer) Calls() []DialCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DialCall(nil), d.calls...)
}

// SetDialFunc sets the function called by Dial.
func (d *Dialer) SetDialFunc(fn func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DialFunc = fn
}

// SetError configures the dialer to always return err.
func (d *Dialer) SetError(err error) {
	d.SetDialFunc(func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
		return nil, err
	})
}

var _ ports.SSHDialer = (*Dialer)(nil)

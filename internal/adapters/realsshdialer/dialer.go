// Package realsshdialer provides the real implementation of the SSHDialer port.
package realsshdialer

import (
	"golang.org/x/crypto/ssh"

	"github.com/acolita/termdriver/internal/ports"
)

// Dialer implements ports.SSHDialer with ssh.Dial.
type Dialer struct{}

// New creates a new Dialer.
func New() *Dialer {
	return &Dialer{}
}

func (d *Dialer) Dial(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	return ssh.Dial(network, addr, config)
}

var _ ports.SSHDialer = (*Dialer)(nil)

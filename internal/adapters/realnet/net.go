// Package realnet provides the real implementation of the NetworkDialer port.
package realnet

import (
	"net"

	"github.com/acolita/termdriver/internal/ports"
)

// Dialer implements ports.NetworkDialer using net.Dial.
type Dialer struct{}

// NewDialer creates a new Dialer.
func NewDialer() *Dialer {
	return &Dialer{}
}

func (d *Dialer) Dial(network, address string) (net.Conn, error) {
	return net.Dial(network, address)
}

var _ ports.NetworkDialer = (*Dialer)(nil)

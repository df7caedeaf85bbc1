// Package fakenet provides a fake network dialer for testing.
package fakenet

import (
	"fmt"
	"net"
	"sync"

	"github.com/acolita/termdriver/internal/ports"
)

// Dialer is a fake network dialer. It fails until DialFunc is set.
type Dialer struct {
	mu       sync.Mutex
	DialFunc func(network, address string) (net.Conn, error)
	calls    []DialCall
}

// DialCall records a call to Dial.
type DialCall struct {
	Network string
	Address string
}

// NewDialer creates a new fake Dialer that returns an error by default.
func NewDialer() *Dialer {
	return &Dialer{
		DialFunc: func(network, address string) (net.Conn, error) {
			return nil, fmt.Errorf("fakenet: not configured")
		},
	}
}

// Dial records the call and delegates to DialFunc.
func (d *Dialer) Dial(network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.calls = append(d.calls, DialCall{Network: network, Address: address})
	fn := d.DialFunc
	d.mu.Unlock()
	return fn(network, address)
}

// Calls returns all recorded Dial calls.
func (d *Dialer) Calls() []DialCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DialCall(nil), d.calls...)
}

// SetError configures the dialer to always return err.
func (d *Dialer) SetError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DialFunc = func(network, address string) (net.Conn, error) {
		return nil, err
	}
}

var _ ports.NetworkDialer = (*Dialer)(nil)

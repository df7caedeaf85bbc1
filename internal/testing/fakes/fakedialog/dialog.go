// Package fakedialog provides a test fake for ports.DialogProvider.
package fakedialog

import (
	"sync"

	"github.com/acolita/termdriver/internal/ports"
)

// Provider is a controllable fake DialogProvider for testing.
type Provider struct {
	mu sync.Mutex

	// Secret is returned by AskSecret.
	Secret string
	// Confirmed is returned by Confirm.
	Confirmed bool
	// Err is returned by every call when set.
	Err error

	requests []ports.CredentialRequest
	confirms []string
}

var _ ports.DialogProvider = (*Provider)(nil)

// New returns a new fake dialog provider.
func New() *Provider {
	return &Provider{}
}

// AskSecret records req and returns Secret.
func (p *Provider) AskSecret(req ports.CredentialRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.Err != nil {
		return "", p.Err
	}
	return p.Secret, nil
}

// Confirm records title and returns Confirmed.
func (p *Provider) Confirm(title, description string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirms = append(p.confirms, title)
	if p.Err != nil {
		return false, p.Err
	}
	return p.Confirmed, nil
}

// Requests returns the AskSecret calls seen so far.
func (p *Provider) Requests() []ports.CredentialRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ports.CredentialRequest(nil), p.requests...)
}

// Confirms returns the titles passed to Confirm.
func (p *Provider) Confirms() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.confirms...)
}

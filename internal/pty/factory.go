package pty

import (
	"context"
	"log/slog"

	"github.com/acolita/termdriver/internal/channel"
	"github.com/acolita/termdriver/internal/outcome"
	"github.com/acolita/termdriver/internal/ports"
)

// ChannelFactory starts a local shell for a session driver.
type ChannelFactory struct {
	opts       Options
	streamOpts []channel.Option
}

// NewChannelFactory creates a factory starting shells with opts.
func NewChannelFactory(opts Options, streamOpts ...channel.Option) *ChannelFactory {
	if opts.Shell == "" {
		opts.Shell = detectShell()
	}
	return &ChannelFactory{opts: opts, streamOpts: streamOpts}
}

// Endpoint returns "local:" followed by the shell path.
func (f *ChannelFactory) Endpoint() string {
	return "local:" + f.opts.Shell
}

func (f *ChannelFactory) Open(ctx context.Context) (ports.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, &outcome.AuthError{Endpoint: f.Endpoint(), Err: err}
	}
	sh, err := Start(f.opts)
	if err != nil {
		return nil, &outcome.AuthError{Endpoint: f.Endpoint(), Err: err}
	}
	slog.Debug("local shell started", slog.String("shell", sh.Path()))
	return channel.NewStream(sh, f.streamOpts...), nil
}

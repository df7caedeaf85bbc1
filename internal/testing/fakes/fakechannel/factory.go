package fakechannel

import (
	"context"

	"github.com/acolita/termdriver/internal/ports"
)

// Factory hands out a prepared Channel, or fails with Err.
type Factory struct {
	Channel *Channel
	Err     error
	Name    string
	Opens   int
}

// NewFactory returns a Factory serving ch.
func NewFactory(ch *Channel) *Factory {
	return &Factory{Channel: ch, Name: "fake:0"}
}

func (f *Factory) Open(ctx context.Context) (ports.Channel, error) {
	f.Opens++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Channel, nil
}

func (f *Factory) Endpoint() string {
	return f.Name
}

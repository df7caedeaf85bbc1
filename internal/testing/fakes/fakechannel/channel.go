// Package fakechannel provides a scripted ports.Channel for driving sessions in tests.
package fakechannel

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/acolita/termdriver/internal/ports"
)

type step struct {
	after string // delivered only once the written data contains this
	data  []byte
	stall int  // number of empty reads to return
	close bool // close the channel when reached
}

// Channel is a fake channel. Responses are returned in order, one step per
// Recv call, truncated to the caller's max with the remainder kept for the
// next call. When nothing is ready Recv returns an empty slice, like a real
// channel that timed out.
type Channel struct {
	mu               sync.Mutex
	steps            []step
	written          bytes.Buffer
	closed           bool
	closeCount       int
	closeWhenDrained bool
	closeOnWrite     string
	sendLimit        int
	zeroSends        int
	recvSizes        []int
	sends            int
}

// New creates a new fake channel.
func New() *Channel {
	return &Channel{}
}

// AddResponse queues data returned by the next Recv calls.
func (c *Channel) AddResponse(data string) *Channel {
	return c.AddResponseAfter("", data)
}

// AddResponses queues multiple responses.
func (c *Channel) AddResponses(responses ...string) *Channel {
	for _, r := range responses {
		c.AddResponse(r)
	}
	return c
}

// AddResponseAfter queues data that is held back until the written data
// contains trigger. Until then Recv stalls.
func (c *Channel) AddResponseAfter(trigger, data string) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, step{after: trigger, data: []byte(data)})
	return c
}

// AddStall queues n empty reads.
func (c *Channel) AddStall(n int) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, step{stall: n})
	return c
}

// AddClose queues a peer close.
func (c *Channel) AddClose() *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, step{close: true})
	return c
}

// CloseWhenDrained makes the channel report closed once every queued step
// has been consumed, instead of stalling forever.
func (c *Channel) CloseWhenDrained() *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeWhenDrained = true
	return c
}

// CloseOnWrite closes the channel as soon as the written data contains trigger.
func (c *Channel) CloseOnWrite(trigger string) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeOnWrite = trigger
	return c
}

// SetSendLimit caps the number of bytes a single Send accepts.
func (c *Channel) SetSendLimit(n int) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendLimit = n
	return c
}

// SetZeroSends makes the next n Send calls accept nothing.
func (c *Channel) SetZeroSends(n int) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zeroSends = n
	return c
}

func (c *Channel) Send(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, io.ErrClosedPipe
	}
	c.sends++
	if c.zeroSends > 0 {
		c.zeroSends--
		return 0, nil
	}
	n := len(b)
	if c.sendLimit > 0 && n > c.sendLimit {
		n = c.sendLimit
	}
	c.written.Write(b[:n])
	if c.closeOnWrite != "" && strings.Contains(c.written.String(), c.closeOnWrite) {
		c.closeLocked()
	}
	return n, nil
}

func (c *Channel) Recv(max int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recvSizes = append(c.recvSizes, max)
	if c.closed {
		return nil, nil
	}
	if len(c.steps) == 0 {
		if c.closeWhenDrained {
			c.closeLocked()
		}
		return nil, nil
	}

	head := &c.steps[0]
	switch {
	case head.close:
		c.steps = c.steps[1:]
		c.closeLocked()
		return nil, nil
	case head.stall > 0:
		head.stall--
		if head.stall == 0 {
			c.steps = c.steps[1:]
		}
		return nil, nil
	case head.after != "" && !strings.Contains(c.written.String(), head.after):
		return nil, nil
	}

	n := len(head.data)
	if max > 0 && n > max {
		n = max
	}
	out := append([]byte(nil), head.data[:n]...)
	head.data = head.data[n:]
	head.after = ""
	if len(head.data) == 0 {
		c.steps = c.steps[1:]
	}
	return out, nil
}

func (c *Channel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Channel) closeLocked() {
	if !c.closed {
		c.closeCount++
	}
	c.closed = true
}

// --- Test inspection methods ---

// Written returns all data accepted by Send.
func (c *Channel) Written() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.String()
}

// CloseCount reports how many times the channel transitioned to closed.
func (c *Channel) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCount
}

// RecvSizes returns the max argument of every Recv call.
func (c *Channel) RecvSizes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.recvSizes...)
}

// SendCalls returns the number of Send calls made while open.
func (c *Channel) SendCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends
}

var _ ports.Channel = (*Channel)(nil)

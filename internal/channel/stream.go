// Package channel adapts blocking byte streams (SSH sessions, local PTYs) to
// the ports.Channel contract: Recv returns after a timeout with no data
// instead of blocking forever.
package channel

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/acolita/termdriver/internal/adapters/realclock"
	"github.com/acolita/termdriver/internal/ports"
)

// DefaultRecvTimeout is how long Recv waits for data before reporting a stall.
const DefaultRecvTimeout = time.Second

const readSize = 4096

// ErrClosed is returned by Send after the stream has been closed.
var ErrClosed = errors.New("channel closed")

// Option configures a Stream.
type Option func(*Stream)

// WithRecvTimeout sets how long Recv waits for data.
func WithRecvTimeout(d time.Duration) Option {
	return func(s *Stream) { s.recvTimeout = d }
}

// WithClock sets the clock used for the receive timeout.
func WithClock(c ports.Clock) Option {
	return func(s *Stream) { s.clock = c }
}

// Stream is a ports.Channel over an io.ReadWriteCloser. A single goroutine
// copies the reader into a queue; it exits when the reader fails, which
// happens at the latest when Close closes the underlying stream.
type Stream struct {
	rwc         io.ReadWriteCloser
	chunks      chan []byte
	done        chan struct{}
	recvTimeout time.Duration
	clock       ports.Clock

	mu      sync.Mutex
	pending []byte
	closed  bool
	once    sync.Once
}

// NewStream starts reading from rwc.
func NewStream(rwc io.ReadWriteCloser, opts ...Option) *Stream {
	s := &Stream{
		rwc:         rwc,
		chunks:      make(chan []byte, 16),
		done:        make(chan struct{}),
		recvTimeout: DefaultRecvTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = realclock.New()
	}
	go s.pump()
	return s
}

func (s *Stream) pump() {
	defer close(s.chunks)
	buf := make([]byte, readSize)
	for {
		n, err := s.rwc.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// Send writes b to the stream.
func (s *Stream) Send(b []byte) (int, error) {
	if s.IsClosed() {
		return 0, ErrClosed
	}
	n, err := s.rwc.Write(b)
	if err != nil {
		s.markClosed()
	}
	return n, err
}

// Recv returns up to max bytes, or nothing once the receive timeout passes.
func (s *Stream) Recv(max int) ([]byte, error) {
	s.mu.Lock()
	if len(s.pending) > 0 {
		out := s.take(max)
		s.mu.Unlock()
		return out, nil
	}
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, nil
	}

	select {
	case chunk, ok := <-s.chunks:
		if !ok {
			s.markClosed()
			return nil, nil
		}
		s.mu.Lock()
		s.pending = chunk
		out := s.take(max)
		s.mu.Unlock()
		return out, nil
	case <-s.done:
		return nil, nil
	case <-s.clock.After(s.recvTimeout):
		return nil, nil
	}
}

// take must be called with mu held.
func (s *Stream) take(max int) []byte {
	n := len(s.pending)
	if max > 0 && n > max {
		n = max
	}
	out := s.pending[:n:n]
	s.pending = s.pending[n:]
	return out
}

func (s *Stream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Stream) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Close closes the underlying stream and stops the reader goroutine.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		s.markClosed()
		close(s.done)
		err = s.rwc.Close()
	})
	return err
}

var _ ports.Channel = (*Stream)(nil)

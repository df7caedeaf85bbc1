package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/acolita/termdriver/internal/adapters/realclock"
	"github.com/acolita/termdriver/internal/linebuf"
	"github.com/acolita/termdriver/internal/outcome"
	"github.com/acolita/termdriver/internal/ports"
	"github.com/acolita/termdriver/internal/prompt"
)

const (
	connectChunk = 256
	runChunk     = 1024
	stallPause   = time.Second
)

// ChannelFactory opens the channel a Driver talks through.
type ChannelFactory interface {
	Open(ctx context.Context) (ports.Channel, error)
	// Endpoint names the remote side for logs and errors.
	Endpoint() string
}

// Tap observes every byte crossing the channel.
type Tap interface {
	Inbound(p []byte)
	Outbound(p []byte)
}

// RunOptions configures a single command. Zero values fall back to the
// connection defaults: the connection's prompt markers, no interactive rules
// and no classification markers.
type RunOptions struct {
	PromptMarkers []string
	Rules         []prompt.Rule
	Markers       outcome.Markers
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock sets the clock used for stall pauses.
func WithClock(c ports.Clock) Option {
	return func(d *Driver) { d.clock = c }
}

// WithTap adds an observer for the raw byte flow.
func WithTap(t Tap) Option {
	return func(d *Driver) { d.taps = append(d.taps, t) }
}

// WithMaxStalls bounds the number of consecutive empty reads a command may
// see before it is abandoned. Zero means no bound.
func WithMaxStalls(n int) Option {
	return func(d *Driver) { d.maxStalls = n }
}

// WithID tags log records with a session id.
func WithID(id string) Option {
	return func(d *Driver) { d.id = id }
}

// Driver runs commands on one interactive shell. Connect and Run must not be
// called concurrently; Close may be called from anywhere at any time and is
// the way to interrupt a blocked Run.
type Driver struct {
	mu sync.Mutex // serializes Connect and Run

	stateMu  sync.Mutex
	state    State
	ch       ports.Channel
	hostname string

	buf       linebuf.Buffer
	markers   []string
	endpoint  string
	id        string
	clock     ports.Clock
	taps      []Tap
	maxStalls int
	log       *slog.Logger
}

// NewDriver creates a disconnected Driver.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{state: StateDisconnected}
	for _, opt := range opts {
		opt(d)
	}
	if d.clock == nil {
		d.clock = realclock.New()
	}
	d.log = slog.Default()
	if d.id != "" {
		d.log = d.log.With(slog.String("session_id", d.id))
	}
	return d
}

// Connect opens the channel and waits for the first prompt. The text in front
// of the prompt is the login banner; its last line becomes the hostname.
// markers defaults to prompt.DefaultMarkers.
func (d *Driver) Connect(ctx context.Context, factory ChannelFactory, markers []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.State() {
	case StateDisconnected:
	case StateClosed:
		return ErrClosed
	default:
		return ErrAlreadyConnected
	}

	if len(markers) == 0 {
		markers = prompt.DefaultMarkers
	}
	d.markers = markers
	d.endpoint = factory.Endpoint()
	d.setState(StateConnecting)

	ch, err := factory.Open(ctx)
	if err != nil {
		d.setState(StateClosed)
		var ae *outcome.AuthError
		if errors.As(err, &ae) {
			return err
		}
		return &outcome.AuthError{Endpoint: d.endpoint, Err: err}
	}

	d.stateMu.Lock()
	if d.state == StateClosed {
		d.stateMu.Unlock()
		ch.Close()
		return ErrClosed
	}
	d.ch = ch
	d.stateMu.Unlock()

	stalls := 0
	for {
		if err := ctx.Err(); err != nil {
			d.Close()
			return fmt.Errorf("connect to %s: %w", d.endpoint, err)
		}

		data := d.recv(connectChunk)
		if len(data) == 0 {
			if ch.IsClosed() {
				d.Close()
				return fmt.Errorf("connect to %s: channel closed before the first prompt", d.endpoint)
			}
			stalls++
			if d.maxStalls > 0 && stalls > d.maxStalls {
				d.Close()
				return fmt.Errorf("connect to %s: %w", d.endpoint, outcome.Recoverable(outcome.SeverityStalled, d.buf.String()))
			}
			d.stall()
			continue
		}
		stalls = 0

		d.buf.Append(data)
		m, ok := d.buf.FindAny(markers)
		if !ok {
			continue
		}

		head := d.buf.ConsumeUpTo(m.End())
		banner, host := splitLastLine(head[:m.Index])
		if banner != "" {
			d.log.Info("welcome message", slog.String("endpoint", d.endpoint), slog.String("banner", banner))
		}
		d.setHostname(host)
		d.setState(StateReady)
		d.log.Debug("session ready", slog.String("endpoint", d.endpoint), slog.String("hostname", host))
		return nil
	}
}

// Run sends command and collects its output up to the next prompt. The
// returned error is nil on success, a *outcome.Failure when the output was
// classified as a failure, or a state error such as ErrNotReady.
//
// Error and critical markers close the channel, as does a channel that went
// away before the prompt came back. A warning leaves the session usable.
func (d *Driver) Run(command string, opts RunOptions) (outcome.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.State() {
	case StateReady:
	case StateClosed:
		return outcome.Outcome{}, ErrClosed
	default:
		return outcome.Outcome{}, ErrNotReady
	}

	markers := opts.PromptMarkers
	if len(markers) == 0 {
		markers = d.markers
	}
	cmd := strings.TrimSpace(command)
	ch := d.channel()

	d.setState(StateSending)
	if err := d.send([]byte(cmd + "\n")); err != nil {
		d.log.Warn("send failed", slog.String("command", cmd), slog.String("error", err.Error()))
	}
	d.setState(StateAwaitingPrompt)

	// A peer that hangs up on the command itself, such as exit, yields the
	// plain classification of an empty transcript.
	closedOnSend := ch.IsClosed()

	var transcript strings.Builder
	responder := prompt.NewResponder(channelWriter{d}, opts.Rules)
	havePrompt, stalled := false, false
	stalls := 0

	for !ch.IsClosed() {
		data := d.recv(runChunk)
		if len(data) == 0 {
			if ch.IsClosed() {
				break
			}
			stalls++
			if d.maxStalls > 0 && stalls > d.maxStalls {
				stalled = true
				break
			}
			d.stall()
			continue
		}
		stalls = 0
		d.buf.Append(data)

		if havePrompt = d.scan(&transcript, responder, markers); havePrompt {
			break
		}
	}

	if !havePrompt {
		transcript.WriteString(d.buf.ConsumeUpTo(d.buf.Len()))
	}

	o := outcome.Classify(transcript.String(), cmd, opts.Markers)
	if o.OK() {
		switch {
		case stalled:
			o = outcome.Outcome{Kind: outcome.KindRecoverable, Severity: outcome.SeverityStalled, Text: o.Text}
		case !havePrompt && !closedOnSend:
			o = outcome.Outcome{Kind: outcome.KindRecoverable, Severity: outcome.SeverityClosed, Text: o.Text}
		}
	}

	if o.Severity.ClosesChannel() || ch.IsClosed() {
		d.Close()
	} else {
		d.setState(StateReady)
	}

	d.log.Info("command finished",
		slog.String("command", cmd),
		slog.String("result", o.Kind.String()),
		slog.String("severity", string(o.Severity)),
	)
	return o, o.Err()
}

// scan works through the buffer until it needs more data: completed lines go
// to the transcript after the responder has seen them, an answered question in
// the tail is consumed and scanning starts over, and a prompt ends the command.
// It reports whether the prompt was found.
func (d *Driver) scan(transcript *strings.Builder, responder *prompt.Responder, markers []string) bool {
	for {
		for {
			line, ok := d.buf.ConsumeLine()
			if !ok {
				break
			}
			if _, _, err := responder.Respond(line); err != nil {
				d.log.Warn("answer failed", slog.String("error", err.Error()))
			}
			transcript.WriteString(line)
		}

		end, answered, err := responder.Respond(d.buf.String())
		if err != nil {
			d.log.Warn("answer failed", slog.String("error", err.Error()))
		}
		if answered {
			transcript.WriteString(d.buf.ConsumeUpTo(end))
			continue
		}

		if m, ok := d.buf.FindAny(markers); ok {
			head := d.buf.ConsumeUpTo(m.End())
			_, host := splitLastLine(head[:m.Index])
			d.setHostname(host)
			return true
		}
		return false
	}
}

// Close closes the channel. It is safe to call more than once and from a
// goroutine other than the one running a command.
func (d *Driver) Close() error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	d.state = StateClosed
	if d.ch == nil {
		return nil
	}
	ch := d.ch
	d.ch = nil
	if err := ch.Close(); err != nil {
		return fmt.Errorf("close channel: %w", err)
	}
	return nil
}

// State returns the current driver state.
func (d *Driver) State() State {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.state
}

// Hostname returns the text in front of the most recent prompt.
func (d *Driver) Hostname() string {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.hostname
}

// Endpoint returns the endpoint of the channel factory used by Connect.
func (d *Driver) Endpoint() string {
	return d.endpoint
}

func (d *Driver) setState(s State) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.state != StateClosed {
		d.state = s
	}
}

func (d *Driver) setHostname(h string) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	d.hostname = h
}

// channel returns the open channel, or a closed placeholder once Close ran.
func (d *Driver) channel() ports.Channel {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.ch == nil {
		return closedChannel{}
	}
	return d.ch
}

func (d *Driver) stall() {
	d.log.Warn("empty response, waiting", slog.String("endpoint", d.endpoint))
	d.clock.Sleep(stallPause)
}

// recv reads one chunk. Transport errors are logged and end the session the
// same way a peer close does.
func (d *Driver) recv(max int) []byte {
	ch := d.channel()
	data, err := ch.Recv(max)
	if err != nil {
		d.log.Warn("receive failed", slog.String("endpoint", d.endpoint), slog.String("error", err.Error()))
		ch.Close()
		return nil
	}
	if len(data) > 0 {
		for _, t := range d.taps {
			t.Inbound(data)
		}
	}
	return data
}

// send writes all of p, retrying short writes. A write that takes nothing is
// retried after the stall pause.
func (d *Driver) send(p []byte) error {
	ch := d.channel()
	empty := 0
	for len(p) > 0 {
		if ch.IsClosed() {
			return ErrClosed
		}
		n, err := ch.Send(p)
		if err != nil {
			ch.Close()
			return fmt.Errorf("send: %w", err)
		}
		if n == 0 {
			empty++
			if d.maxStalls > 0 && empty > d.maxStalls {
				return fmt.Errorf("send: channel accepted no data after %d attempts", empty)
			}
			d.log.Warn("nothing sent, waiting", slog.String("endpoint", d.endpoint))
			d.clock.Sleep(stallPause)
			continue
		}
		empty = 0
		for _, t := range d.taps {
			t.Outbound(p[:n])
		}
		p = p[n:]
	}
	return nil
}

// channelWriter lets the prompt responder answer through the driver's send loop.
type channelWriter struct {
	d *Driver
}

func (w channelWriter) Write(p []byte) (int, error) {
	if err := w.d.send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// splitLastLine trims s and splits it into everything before the last line
// and the last line itself.
func splitLastLine(s string) (string, string) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	i := strings.LastIndexByte(s, '\n')
	if i < 0 {
		return "", s
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
}

type closedChannel struct{}

func (closedChannel) Send([]byte) (int, error) { return 0, ErrClosed }
func (closedChannel) Recv(int) ([]byte, error) { return nil, nil }
func (closedChannel) IsClosed() bool           { return true }
func (closedChannel) Close() error             { return nil }

package recording

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/acolita/termdriver/internal/ports"
)

// Recorder writes terminal I/O in asciicast v2 format.
// See: https://docs.asciinema.org/manual/asciicast/v2/
type Recorder struct {
	mu        sync.Mutex
	fs        ports.FileSystem
	clock     ports.Clock
	path      string
	startTime time.Time
	masks     []string
	closed    bool
}

// Header is the asciicast v2 header.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is an asciicast v2 event [time, type, data].
type Event struct {
	Time float64
	Type string
	Data string
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Time, e.Type, e.Data})
}

// NewRecorder creates dir if needed and starts a recording file named after
// sessionID and the current time.
func NewRecorder(dir, sessionID, title string, width, height int, fs ports.FileSystem, clock ports.Clock) (*Recorder, error) {
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create recording directory: %w", err)
	}

	now := clock.Now()
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.cast", sessionID, now.Format("20060102_150405")))
	if _, err := fs.Stat(path); err == nil {
		return nil, fmt.Errorf("create recording file: %s already exists", path)
	}

	header, err := json.Marshal(Header{
		Version:   2,
		Width:     width,
		Height:    height,
		Timestamp: now.Unix(),
		Title:     title,
		Env:       map[string]string{"TERM": "dumb"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	if err := fs.WriteFile(path, append(header, '\n'), 0o600); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	return &Recorder{fs: fs, clock: clock, path: path, startTime: now}, nil
}

// Mask hides secret in every later input event. Empty strings are ignored.
func (r *Recorder) Mask(secrets ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range secrets {
		if s != "" {
			r.masks = append(r.masks, s)
		}
	}
}

// Inbound records output (terminal to user).
func (r *Recorder) Inbound(p []byte) {
	r.record("o", string(p))
}

// Outbound records input (user to terminal) with masked secrets replaced by
// asterisks.
func (r *Recorder) Outbound(p []byte) {
	r.mu.Lock()
	data := string(p)
	for _, s := range r.masks {
		data = strings.ReplaceAll(data, s, strings.Repeat("*", len(s)))
	}
	r.mu.Unlock()
	r.record("i", data)
}

func (r *Recorder) record(eventType, data string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	elapsed := r.clock.Now().Sub(r.startTime).Seconds()
	line, err := json.Marshal(Event{Time: elapsed, Type: eventType, Data: data})
	if err != nil {
		slog.Warn("recording event", slog.String("error", err.Error()))
		return
	}
	if err := r.fs.AppendFile(r.path, append(line, '\n'), 0o600); err != nil {
		slog.Warn("recording write", slog.String("file", r.path), slog.String("error", err.Error()))
	}
}

// Close stops recording. Later events are dropped.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Path returns the recording file.
func (r *Recorder) Path() string {
	return r.path
}

func quote(p []byte) string {
	return strconv.Quote(string(p))
}

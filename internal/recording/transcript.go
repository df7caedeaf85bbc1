// Package recording persists the raw byte flow of a session: a plain
// transcript pair of files and, optionally, an asciicast v2 recording.
package recording

import (
	"log/slog"
	"path/filepath"

	"github.com/acolita/termdriver/internal/adapters/realfs"
	"github.com/acolita/termdriver/internal/ports"
)

// InputSuffix is appended to the transcript path for the file holding
// everything sent to the remote side.
const InputSuffix = ".in"

// Transcript appends inbound bytes to Path and outbound bytes to
// Path+InputSuffix. Write failures are logged and otherwise ignored so a full
// disk never breaks a session.
type Transcript struct {
	path string
	fs   ports.FileSystem
	log  *slog.Logger
}

// NewTranscript creates a transcript writer. A nil fs selects the real
// filesystem.
func NewTranscript(path string, fs ports.FileSystem) *Transcript {
	if fs == nil {
		fs = realfs.New()
	}
	return &Transcript{path: path, fs: fs, log: slog.Default().With(slog.String("transcript", path))}
}

// Path returns the inbound transcript path.
func (t *Transcript) Path() string {
	return t.path
}

// Inbound records data received from the remote side.
func (t *Transcript) Inbound(p []byte) {
	t.log.Debug("recv", slog.String("data", quote(p)))
	t.append(t.path, p)
}

// Outbound records data sent to the remote side.
func (t *Transcript) Outbound(p []byte) {
	t.append(t.path+InputSuffix, p)
}

func (t *Transcript) append(path string, p []byte) {
	if err := t.fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.log.Warn("transcript directory", slog.String("error", err.Error()))
		return
	}
	if err := t.fs.AppendFile(path, p, 0o600); err != nil {
		t.log.Warn("transcript write", slog.String("file", path), slog.String("error", err.Error()))
	}
}

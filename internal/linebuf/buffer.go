// Package linebuf accumulates raw terminal output and hands it back line by line.
package linebuf

import (
	"strings"
	"unicode/utf8"

	"github.com/acolita/termdriver/internal/prompt"
)

const backspace = '\b'

// Buffer holds received bytes that have not been consumed yet. After every
// Append it contains no backspace characters. A Buffer is owned by a single
// session and is not safe for concurrent use.
type Buffer struct {
	data []byte
}

// Append adds b and collapses backspace erasures across the whole buffer, so
// a backspace arriving in a later chunk still erases an earlier character.
func (b *Buffer) Append(p []byte) {
	b.data = collapse(append(b.data, p...))
}

// FindAny returns the earliest marker occurrence in the buffer.
func (b *Buffer) FindAny(candidates []string) (prompt.Match, bool) {
	return prompt.FindAny(string(b.data), candidates)
}

// ConsumeLine removes and returns the first complete line including its
// trailing "\n". It reports false when no newline is buffered.
func (b *Buffer) ConsumeLine() (string, bool) {
	i := strings.IndexByte(string(b.data), '\n')
	if i < 0 {
		return "", false
	}
	return b.ConsumeUpTo(i + 1), true
}

// ConsumeUpTo removes and returns the first pos bytes. pos is clamped to the
// buffer length.
func (b *Buffer) ConsumeUpTo(pos int) string {
	if pos <= 0 {
		return ""
	}
	if pos > len(b.data) {
		pos = len(b.data)
	}
	out := string(b.data[:pos])
	b.data = append(b.data[:0:0], b.data[pos:]...)
	return out
}

func (b *Buffer) String() string {
	return string(b.data)
}

func (b *Buffer) Len() int {
	return len(b.data)
}

// Reset drops everything buffered.
func (b *Buffer) Reset() {
	b.data = nil
}

// CollapseBackspace applies terminal backspace erasure to s: every "\b"
// removes itself and the character before it, and a "\b" with nothing before
// it removes only itself. The result contains no backspaces.
func CollapseBackspace(s string) string {
	return string(collapse([]byte(s)))
}

func collapse(p []byte) []byte {
	if !strings.ContainsRune(string(p), backspace) {
		return p
	}
	out := make([]byte, 0, len(p))
	for _, c := range p {
		if c != backspace {
			out = append(out, c)
			continue
		}
		if len(out) == 0 {
			continue
		}
		// Erase a whole character, not just its last byte.
		_, size := utf8.DecodeLastRune(out)
		out = out[:len(out)-size]
	}
	return out
}

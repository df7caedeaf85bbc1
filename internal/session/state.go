// Package session drives an interactive shell over a raw byte channel: it
// sends commands, answers interactive questions, waits for the prompt and
// classifies what came back.
package session

import "errors"

// State represents the driver state.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateReady          State = "ready"
	StateSending        State = "sending"
	StateAwaitingPrompt State = "awaiting_prompt"
	StateClosed         State = "closed"
)

var (
	// ErrNotReady is returned by Run when no prompt has been seen yet.
	ErrNotReady = errors.New("session is not ready")
	// ErrClosed is returned once the channel has been closed.
	ErrClosed = errors.New("session is closed")
	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New("session already connected")
)

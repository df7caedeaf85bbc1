// Package ports declares the seams between termdriver and the outside world:
// byte channels, time, files, network and user dialogs.
package ports

import "time"

// Clock is the time source for stall pauses, receive timeouts, keepalives and
// session bookkeeping.
type Clock interface {
	Now() time.Time
	// Sleep pauses the caller; the driver sleeps once per stalled read.
	Sleep(d time.Duration)
	After(d time.Duration) <-chan time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the part of time.Ticker the keepalive and prune loops use.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

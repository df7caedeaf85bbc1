package ports

// Channel is a raw, ordered, full-duplex byte stream to an interactive shell.
//
// Recv blocks for at most the implementation's receive timeout. An empty
// result with IsClosed() == false is a stall; an empty result with
// IsClosed() == true means the peer is gone.
type Channel interface {
	// Send writes as much of b as the channel accepts and reports how many
	// bytes were taken. A short count is not an error.
	Send(b []byte) (int, error)

	// Recv returns up to max bytes.
	Recv(max int) ([]byte, error)

	// IsClosed reports whether the channel has been closed by either side.
	IsClosed() bool

	// Close releases the channel. Calling it more than once is allowed.
	Close() error
}

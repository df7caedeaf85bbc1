package ports

import "net"

// NetworkDialer abstracts raw network dialing, such as reaching the SSH
// agent socket.
type NetworkDialer interface {
	Dial(network, address string) (net.Conn, error)
}

// Package netutil provides small networking helpers shared by the
// discovery and eventing layers.
package netutil

import (
	"errors"
	"fmt"
	"net"
)

// ErrNoFreePort is returned by ListenRange when every port in the range is
// taken.
var ErrNoFreePort = errors.New("no free port in range")

// LocalIPv4For returns the local IPv4 address the kernel routes through to
// reach the given host. The address is needed to build event callback URLs
// that are reachable from the device's side of the network. No packet is
// sent; the UDP socket is only used for route selection.
func LocalIPv4For(host string) (net.IP, error) {
	conn, err := net.Dial("udp4", net.JoinHostPort(host, "9"))
	if err != nil {
		return nil, fmt.Errorf("resolving local address for %s: %w", host, err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return nil, fmt.Errorf("no local IPv4 address for %s", host)
	}
	return addr.IP, nil
}

// ListenRange binds a TCP listener on the first free port in [from, to],
// listening on all interfaces. Binding directly instead of probing avoids
// losing the port between check and use.
func ListenRange(from, to int) (net.Listener, error) {
	if from > to {
		return nil, fmt.Errorf("invalid port range %d-%d", from, to)
	}
	for port := from; port <= to; port++ {
		ln, err := net.Listen("tcp4", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, nil
		}
	}
	return nil, fmt.Errorf("%w %d-%d", ErrNoFreePort, from, to)
}

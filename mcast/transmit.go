package mcast

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// TransmitSocket is a UDP socket configured to send to a multicast
// group with an explicit TTL and loopback enabled, so a transmitted
// test page is visible to a listener on the same host.
type TransmitSocket struct {
	Endpoint Endpoint
	conn     *net.UDPConn
}

// TransmitOptions configures a TransmitSocket.
type TransmitOptions struct {
	// TTL bounds how far a transmitted datagram propagates. Zero
	// defaults to 1 (local network only).
	TTL int
	// Interface pins the outbound interface used for the multicast
	// send; nil lets the OS choose based on routing.
	Interface *net.Interface
}

// NewTransmitSocket dials a UDP socket bound for sending to ep with
// multicast loopback enabled so a co-located listener receives its own
// traffic.
func NewTransmitSocket(ep Endpoint, opts TransmitOptions) (*TransmitSocket, error) {
	conn, err := net.DialUDP("udp4", nil, ep.udpAddr())
	if err != nil {
		return nil, fmt.Errorf("mcast: dial %s: %w", ep, err)
	}

	pconn := ipv4.NewPacketConn(conn)

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 1
	}
	if err := pconn.SetMulticastTTL(ttl); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mcast: set multicast TTL: %w", err)
	}
	if err := pconn.SetMulticastLoopback(true); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mcast: set multicast loopback: %w", err)
	}
	if opts.Interface != nil {
		if err := pconn.SetMulticastInterface(opts.Interface); err != nil {
			conn.Close()
			return nil, fmt.Errorf("mcast: set multicast interface: %w", err)
		}
	}

	return &TransmitSocket{Endpoint: ep, conn: conn}, nil
}

// Write sends one datagram to the configured multicast endpoint.
func (t *TransmitSocket) Write(b []byte) (int, error) {
	return t.conn.Write(b)
}

// Close closes the underlying socket.
func (t *TransmitSocket) Close() error {
	return t.conn.Close()
}

// Package mcast manages IPv4 multicast UDP sockets: non-blocking
// listeners bound with SO_REUSEADDR/SO_REUSEPORT so multiple monitor
// instances can share a group, and transmit sockets with configurable
// TTL and loopback.
package mcast

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// Endpoint identifies a multicast group/port pair being monitored.
type Endpoint struct {
	Group net.IP
	Port  int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Group.String(), e.Port)
}

func (e Endpoint) udpAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: e.Group, Port: e.Port}
}

// Listener is a joined multicast receive socket for one endpoint.
type Listener struct {
	Endpoint Endpoint

	conn   *net.UDPConn
	pconn  *ipv4.PacketConn
	iface  *net.Interface
	mu     sync.Mutex
	joined bool
}

// ListenOptions configures a Listener's socket setup.
type ListenOptions struct {
	// Interface restricts group membership to one interface; nil joins
	// on every multicast-capable interface plus loopback.
	Interface *net.Interface
	// ReadBufferBytes sets SO_RCVBUF; zero leaves the OS default.
	ReadBufferBytes int
}

// Listen creates a non-blocking UDP socket bound to the endpoint's
// port with SO_REUSEADDR/SO_REUSEPORT, then joins the multicast group.
func Listen(ctx context.Context, ep Endpoint, opts ListenOptions) (*Listener, error) {
	if ep.Group == nil || !ep.Group.IsMulticast() {
		return nil, fmt.Errorf("mcast: %s is not a multicast group address", ep.Group)
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
					sockErr = fmt.Errorf("mcast: set SO_REUSEPORT: %w", err)
					return
				}
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					sockErr = fmt.Errorf("mcast: set SO_REUSEADDR: %w", err)
					return
				}
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	pc, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf(":%d", ep.Port))
	if err != nil {
		return nil, fmt.Errorf("mcast: listen %s: %w", ep, err)
	}
	conn := pc.(*net.UDPConn)

	if opts.ReadBufferBytes > 0 {
		if err := conn.SetReadBuffer(opts.ReadBufferBytes); err != nil {
			conn.Close()
			return nil, fmt.Errorf("mcast: set read buffer: %w", err)
		}
	}

	rawConn, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mcast: raw conn: %w", err)
	}
	var nbErr error
	err = rawConn.Control(func(fd uintptr) {
		nbErr = syscall.SetNonblock(int(fd), true)
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mcast: control: %w", err)
	}
	if nbErr != nil {
		conn.Close()
		return nil, fmt.Errorf("mcast: set nonblocking: %w", nbErr)
	}

	l := &Listener{
		Endpoint: ep,
		conn:     conn,
		pconn:    ipv4.NewPacketConn(conn),
		iface:    opts.Interface,
	}

	if err := l.join(); err != nil {
		conn.Close()
		return nil, err
	}

	return l, nil
}

func (l *Listener) join() error {
	addr := l.Endpoint.udpAddr()

	if l.iface != nil {
		if err := l.pconn.JoinGroup(l.iface, addr); err != nil {
			return fmt.Errorf("mcast: join group on %s: %w", l.iface.Name, err)
		}
		l.joined = true
		return nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return fmt.Errorf("mcast: list interfaces: %w", err)
	}

	var joinedAny bool
	var lastErr error
	for i := range ifaces {
		iface := ifaces[i]
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if iface.Flags&net.FlagMulticast == 0 && iface.Flags&net.FlagLoopback == 0 {
			continue
		}
		if err := l.pconn.JoinGroup(&iface, addr); err != nil {
			lastErr = err
			continue
		}
		joinedAny = true
	}
	if !joinedAny {
		if lastErr != nil {
			return fmt.Errorf("mcast: failed to join group on any interface: %w", lastErr)
		}
		return fmt.Errorf("mcast: no usable multicast interface found")
	}
	l.joined = true
	return nil
}

// ReadFrom reads one datagram, returning the number of bytes copied
// into buf and the sender's address. Safe to call from exactly one
// goroutine at a time.
func (l *Listener) ReadFrom(buf []byte) (int, *net.UDPAddr, error) {
	n, addr, err := l.conn.ReadFromUDP(buf)
	return n, addr, err
}

// SetReadDeadline lets callers poll with a bounded blocking read so a
// supervisor goroutine can interleave idle-timeout checks.
func (l *Listener) SetReadDeadline(t time.Time) error {
	return l.conn.SetReadDeadline(t)
}

// Leave departs the multicast group without closing the socket. Safe
// to call more than once (idempotent).
func (l *Listener) Leave() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.joined {
		return nil
	}
	addr := l.Endpoint.udpAddr()
	err := l.pconn.LeaveGroup(l.iface, addr)
	l.joined = false
	if err != nil {
		return fmt.Errorf("mcast: leave group: %w", err)
	}
	return nil
}

// Close leaves the group (best-effort) and closes the underlying
// socket.
func (l *Listener) Close() error {
	_ = l.Leave()
	return l.conn.Close()
}

package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/halcyon-engine/netcore/internal/flog"
)

// The control and datagram channels ride plain kernel sockets. This package
// owns the listening TCP socket, the single UDP socket with its accepted
// address set, and the helpers the poller needs to check peers without
// blocking the main loop.

// OpenListener opens the server's listening TCP socket on the given port.
func OpenListener(port int) (*net.TCPListener, error) {
	l, err := net.ListenTCP("tcp", &net.TCPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to open listening socket on port %d: %w", port, err)
	}
	return l, nil
}

// pollWait is the deadline for a single "don't wait" check. A deadline that
// has already expired fails the operation without looking at the socket, so
// the checks use the shortest one that still delivers pending data.
const pollWait = time.Millisecond

// TryAccept performs a bounded-wait accept. Returns nil when no connection
// is pending; accept failures are logged and reported as "none pending" so
// a transient error never tears the service down.
func TryAccept(l *net.TCPListener) net.Conn {
	l.SetDeadline(time.Now().Add(pollWait))
	conn, err := l.AcceptTCP()
	l.SetDeadline(time.Time{})
	if err != nil {
		if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			flog.Warnf("accept failed: %v", err)
		}
		return nil
	}
	return conn
}

// Dial opens a control connection to a server.
func Dial(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("no reply from %s: %w", addr, err)
	}
	return conn, nil
}

// TryRead performs a bounded-wait read on a control connection, feeding the
// poller. n > 0 means data arrived, closed means the peer is gone, neither
// means the socket simply had nothing for us this tick.
func TryRead(conn net.Conn, buf []byte) (n int, closed bool) {
	conn.SetReadDeadline(time.Now().Add(pollWait))
	n, err := conn.Read(buf)
	conn.SetReadDeadline(time.Time{})
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, false
		}
		return n, true
	}
	return n, false
}

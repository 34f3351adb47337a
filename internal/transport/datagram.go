package transport

import (
	"net"
	"sync"
	"time"

	"github.com/halcyon-engine/netcore/internal/flog"
)

// recvWait bounds the receiver's blocking read so shutdown is observed
// promptly.
const recvWait = 250 * time.Millisecond

// addrKey identifies a peer UDP endpoint. IPs are normalized to their
// 16-byte form so a v4 address and its v6-mapped twin collapse to one key.
type addrKey struct {
	ip   [16]byte
	port int
}

func keyOf(ip net.IP, port int) addrKey {
	var k addrKey
	copy(k.ip[:], ip.To16())
	k.port = port
	return k
}

// Datagram is the single UDP socket shared by all peers, together with the
// set of bound peer addresses. Traffic from an address that is not bound is
// dropped by the receiver. The mutex guards the set; binds and unbinds from
// the main thread race with lookups on the receiver thread.
type Datagram struct {
	conn *net.UDPConn
	port int

	mu    sync.Mutex
	bound map[addrKey]int
}

// OpenDatagram opens the UDP socket on the preferred port, or the default
// when preferred is zero. If the chosen port is taken, an OS-assigned port is
// used instead; the actual port is what peers learn through the control
// channel.
func OpenDatagram(preferPort, defaultPort int) (*Datagram, error) {
	port := preferPort
	if port == 0 {
		port = defaultPort
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		flog.Warnf("UDP port %d unavailable, falling back to an OS-assigned port: %v", port, err)
		conn, err = net.ListenUDP("udp", &net.UDPAddr{})
		if err != nil {
			return nil, err
		}
	}

	d := &Datagram{
		conn:  conn,
		port:  conn.LocalAddr().(*net.UDPAddr).Port,
		bound: make(map[addrKey]int),
	}
	return d, nil
}

// Port returns the actually bound UDP port.
func (d *Datagram) Port() int { return d.port }

// Bind accepts traffic from addr and tags it with the node id.
func (d *Datagram) Bind(addr *net.UDPAddr, id int) {
	d.mu.Lock()
	d.bound[keyOf(addr.IP, addr.Port)] = id
	d.mu.Unlock()
}

// Unbind removes the node's address binding. Packets from it are rejected
// from now on.
func (d *Datagram) Unbind(addr *net.UDPAddr) {
	if addr == nil {
		return
	}
	d.mu.Lock()
	delete(d.bound, keyOf(addr.IP, addr.Port))
	d.mu.Unlock()
}

// channelFor resolves a source address to its node id, or -1 when unbound.
func (d *Datagram) channelFor(addr *net.UDPAddr) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.bound[keyOf(addr.IP, addr.Port)]; ok {
		return id
	}
	return -1
}

// Recv blocks for at most recvWait for one datagram. Returns the payload
// size, the source's channel (-1 when the sender is unknown) and the source
// address. ok is false on timeout; fatal is true when the socket is gone and
// the receiver should exit.
func (d *Datagram) Recv(buf []byte) (n, channel int, addr *net.UDPAddr, ok, fatal bool) {
	d.conn.SetReadDeadline(time.Now().Add(recvWait))
	n, src, err := d.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, isNet := err.(net.Error); isNet && ne.Timeout() {
			return 0, -1, nil, false, false
		}
		return 0, -1, nil, false, true
	}
	return n, d.channelFor(src), src, true, false
}

// Send emits one datagram to addr.
func (d *Datagram) Send(payload []byte, addr *net.UDPAddr) error {
	_, err := d.conn.WriteToUDP(payload, addr)
	return err
}

// Close closes the UDP socket. Called after the receiver thread has joined.
func (d *Datagram) Close() error {
	d.mu.Lock()
	d.bound = make(map[addrKey]int)
	d.mu.Unlock()
	return d.conn.Close()
}

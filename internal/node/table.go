package node

import (
	"net"
	"strings"
)

// maxNameLen bounds the display name kept from a JOIN command.
const maxNameLen = 127

// Table is the fixed-capacity set of peer records owned by the service.
// Lifecycle mutations (register, join, terminate) happen only on the main
// thread; the transmitter reads the joined flag and counters through their
// own synchronization.
type Table struct {
	nodes [MaxNodes]Node
}

// Get returns the node for id. The pointer stays valid for the table's
// lifetime; a freed slot is recognized by a nil Conn.
func (t *Table) Get(id ID) *Node {
	if id < 0 || id >= MaxNodes {
		return nil
	}
	return &t.nodes[id]
}

// Register claims the first free slot for a freshly accepted control
// connection. Slot 0 is skipped: its id is a player console number. Returns
// false when the table is full; the caller must close the connection.
func (t *Table) Register(conn net.Conn) (ID, bool) {
	for i := 1; i < MaxNodes; i++ {
		n := &t.nodes[i]
		if n.Conn == nil {
			n.Conn = conn
			n.Name = ""
			n.line = nil
			return i, true
		}
	}
	return 0, false
}

// Claim assigns a connection to a specific slot. The client uses this to
// place the server at node 0.
func (t *Table) Claim(id ID, conn net.Conn) bool {
	n := t.Get(id)
	if n == nil || n.Conn != nil {
		return false
	}
	n.Conn = conn
	n.Name = ""
	n.line = nil
	return true
}

// Join converts a registered node into a datagram-capable peer: records its
// UDP address and name and initializes the send statistics. The caller is
// responsible for the admission check and for binding the address into the
// datagram socket.
func (t *Table) Join(id ID, addr *net.UDPAddr, name string) {
	n := t.Get(id)
	name = strings.ToValidUTF8(name, "")
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	n.Addr = addr
	n.Name = name
	n.resetStats()
	n.SetJoined(true)
}

// Clear zeroes a slot. The connection must already be closed and the
// datagram address unbound.
func (t *Table) Clear(id ID) {
	n := t.Get(id)
	n.Conn = nil
	n.Addr = nil
	n.Name = ""
	n.line = nil
	n.SetJoined(false)
	n.resetStats()
}

// ConnectedCount returns the number of joined nodes.
func (t *Table) ConnectedCount() int {
	count := 0
	for i := range t.nodes {
		if t.nodes[i].Joined() {
			count++
		}
	}
	return count
}

// Each calls fn for every slot holding a connection.
func (t *Table) Each(fn func(id ID, n *Node)) {
	for i := range t.nodes {
		if t.nodes[i].Conn != nil {
			fn(i, &t.nodes[i])
		}
	}
}

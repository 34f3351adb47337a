package service

import (
	"bytes"
	"net"

	"github.com/halcyon-engine/netcore/internal/flog"
	"github.com/halcyon-engine/netcore/internal/node"
	"github.com/halcyon-engine/netcore/internal/transport"
)

// pollChunk is how much control-channel input one tick will take from an
// unjoined peer.
const pollChunk = 256

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// Listen polls all control sockets for activity. Called every tick by the
// main loop; never blocks beyond the bounded ready checks (except while
// finishing a reliable frame whose header already arrived).
func (s *Service) Listen() {
	if !s.IsAvailable() {
		return
	}

	if s.serverMode {
		s.listenServer()
	} else {
		s.listenClient()
	}
}

func (s *Service) listenServer() {
	// Any incoming connections on the listening socket?
	for {
		conn := transport.TryAccept(s.listener)
		if conn == nil {
			break
		}
		// A new client is attempting to connect. Try to register the
		// socket as a network node.
		if id, ok := s.nodes.Register(conn); ok {
			flog.Debugf("node %d registered from %s", id, conn.RemoteAddr())
		} else {
			// The table is full.
			flog.Warnf("rejecting connection from %s: no free nodes", conn.RemoteAddr())
			conn.Close()
		}
	}

	// Any activity on the client sockets? (Don't wait.)
	s.nodes.Each(func(id node.ID, n *node.Node) {
		if n.Joined() {
			if !s.recvReliable(id) {
				flog.Infof("connection closed on node %d", id)
				s.TerminateNode(id)
			}
			return
		}

		var buf [pollChunk]byte
		got, closed := transport.TryRead(n.Conn, buf[:])
		if got > 0 && !s.feedCommands(id, n, buf[:got]) {
			return
		}
		if closed {
			flog.Debugf("connection closed on node %d", id)
			s.TerminateNode(id)
		}
	})
}

// feedCommands buffers raw control-channel input and dispatches every
// complete line. Reports false when the node was terminated.
func (s *Service) feedCommands(id node.ID, n *node.Node, in []byte) bool {
	// Embedded NULs are never part of a valid command.
	if bytes.IndexByte(in, 0) >= 0 {
		flog.Warnf("node %d sent a NUL byte, closing", id)
		s.TerminateNode(id)
		return false
	}

	// An overlong command is considered invalid.
	if !n.AppendLine(in, commandMax) {
		flog.Warnf("node %d sent an oversized command, closing", id)
		s.TerminateNode(id)
		return false
	}

	for {
		line, ok := n.NextLine()
		if !ok {
			return true
		}
		if len(line) >= commandMax {
			flog.Warnf("node %d sent an oversized command, closing", id)
			s.TerminateNode(id)
			return false
		}
		if !s.doNodeCommand(id, line) {
			return false
		}
		if n.Conn == nil {
			// The command closed the node (BYE).
			return false
		}
		if n.Joined() {
			// The dialog is over; from here on the socket carries framed
			// reliable messages. A well-behaved client sends nothing until
			// it has seen ENTER, so there is nothing buffered to lose.
			return true
		}
	}
}

func (s *Service) listenClient() {
	// Clientside listening: the only socket is the server's.
	n := s.nodes.Get(0)
	if n.Conn == nil {
		return
	}
	if !s.recvReliable(0) {
		flog.Infof("server connection lost")

		// The game module reacts to the event; the dead socket is cleaned
		// up here so the loss is reported only once.
		n.SetJoined(false)
		s.dgram.Unbind(n.Addr)
		n.Conn.Close()
		s.nodes.Clear(0)

		s.postEvent(Event{Type: EndConnection, ID: 0})
	}
}

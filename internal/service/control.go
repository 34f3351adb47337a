package service

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/halcyon-engine/netcore/internal/flog"
	"github.com/halcyon-engine/netcore/internal/node"
)

// commandMax bounds a single control command. A command of this many bytes or
// more is treated as hostile and the node is closed.
const commandMax = 80

// doNodeCommand validates and processes one control-channel command. Anyone
// is free to connect with telnet and issue queries; an invalid command closes
// the node immediately. Returns false when the node was terminated.
func (s *Service) doNodeCommand(id node.ID, line []byte) bool {
	n := s.nodes.Get(id)
	command := string(line)

	flog.Debugf("node %d command: %s", id, command)

	switch {
	case command == "INFO":
		var sb strings.Builder
		sb.WriteString("BEGIN\n")
		s.InfoFn().Append(&sb)
		sb.WriteString("END\n")
		s.reply(n, sb.String())

	case strings.HasPrefix(command, "JOIN ") && len(command) > 10:
		// JOIN <hhhh> <name>: four hex digits of the client's UDP port, one
		// space, the display name.
		port, ok := parseJoinPort(command[5:9])
		if !ok || command[9] != ' ' {
			s.TerminateNode(id)
			return false
		}

		if s.joinNode(id, port, command[10:]) {
			// Successful! Tell the client where to send datagrams.
			s.reply(n, fmt.Sprintf("ENTER %04x\n", s.recvUDPPort))
		} else {
			// Couldn't join the game, so close the connection.
			s.reply(n, "BYE\n")
			s.TerminateNode(id)
			return false
		}

	case command == "TIME":
		s.reply(n, fmt.Sprintf("%.3f\n", time.Since(s.startTime).Seconds()))

	case command == "BYE":
		// Request for the server to terminate the connection.
		s.TerminateNode(id)
		return false

	default:
		// Too bad, scoundrel! Goodbye.
		s.reply(n, "Huh?\n")
		s.TerminateNode(id)
		return false
	}

	return true
}

func (s *Service) reply(n *node.Node, msg string) {
	if _, err := n.Conn.Write([]byte(msg)); err != nil {
		flog.Debugf("control reply failed: %v", err)
	}
}

// parseJoinPort decodes the four lowercase hex digits of a JOIN command.
// Zero is not a valid data port.
func parseJoinPort(s string) (int, bool) {
	port := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		var d int
		switch {
		case c >= '0' && c <= '9':
			d = int(c - '0')
		case c >= 'a' && c <= 'f':
			d = int(c-'a') + 10
		default:
			return 0, false
		}
		port = port<<4 | d
	}
	if port == 0 {
		return 0, false
	}
	return port, true
}

// joinNode converts a registered network node into a real client node: the
// admission policy is consulted, the peer's datagram address is resolved
// from its control connection with the client-supplied port, and the address
// is bound so the receiver recognizes the sender.
func (s *Service) joinNode(id node.ID, port int, name string) bool {
	// If the server is full, attempts to connect are canceled.
	if s.nodes.ConnectedCount() >= s.MaxPlayersFn() {
		return false
	}

	n := s.nodes.Get(id)

	tcpAddr, ok := n.Conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		// This is a strange situation...
		return false
	}
	addr := &net.UDPAddr{IP: tcpAddr.IP, Port: port}

	flog.Infof("node %d listens at %s (UDP)", id, addr)

	s.nodes.Join(id, addr, name)
	s.dgram.Bind(addr, id)

	// Inform the higher levels of this occurrence.
	s.postEvent(Event{Type: ClientEntry, ID: id})

	return true
}

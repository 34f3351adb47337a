package service

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/halcyon-engine/netcore/internal/conf"
	"github.com/halcyon-engine/netcore/internal/flog"
	"github.com/halcyon-engine/netcore/internal/serverinfo"
	"github.com/halcyon-engine/netcore/internal/transport"
)

// lookTimeout caps discovery and handshake reads so a silent or hostile
// server cannot hang the caller.
const lookTimeout = 5 * time.Second

// LookForHosts queries the server at address:port with INFO and records it
// as the located host. Only one host is remembered at a time.
func (s *Service) LookForHosts(address string, port int) error {
	// We must be a client.
	if !s.IsAvailable() || s.serverMode {
		return fmt.Errorf("not in client mode")
	}

	if port == 0 {
		port = conf.DefaultControlPort
	}
	target := net.JoinHostPort(address, strconv.Itoa(port))

	// Get rid of previous findings.
	s.located = nil
	s.locatedAddr = ""

	conn, err := transport.Dial(target, lookTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Send an INFO query.
	if _, err := conn.Write([]byte("INFO\n")); err != nil {
		return fmt.Errorf("INFO query to %s failed: %w", target, err)
	}

	// Listen to the reply until the END marker or connection close. The
	// deadline stands in for the watchdog that would otherwise have to
	// force-close the socket.
	conn.SetReadDeadline(time.Now().Add(lookTimeout))
	var response strings.Builder
	buf := make([]byte, 256)
	for !strings.Contains(response.String(), "END\n") {
		n, err := conn.Read(buf)
		if n > 0 {
			response.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}

	// Did we receive what we expected to receive?
	text := response.String()
	begin := strings.Index(text, "BEGIN\n")
	end := strings.Index(text, "END\n")
	if begin < 0 || end < begin {
		return fmt.Errorf("reply from %s was invalid", target)
	}

	info := &serverinfo.Info{Address: address, Port: port}
	for _, line := range strings.Split(text[begin+len("BEGIN\n"):end], "\n") {
		if line != "" {
			info.ParseLine(line)
		}
	}
	s.located = info
	s.locatedAddr = target

	flog.Infof("located host: %s", info)
	return nil
}

// GetHostCount reports discovery results: 0 or 1.
func (s *Service) GetHostCount() int {
	if s.located != nil {
		return 1
	}
	return 0
}

// GetHostInfo returns the located host's info.
func (s *Service) GetHostInfo(index int) (*serverinfo.Info, bool) {
	if s.located == nil || index != 0 {
		return nil, false
	}
	info := *s.located
	return &info, true
}

// Connect joins the server identified by index (always 0: the located
// host). We enter clientside mode during this routine.
func (s *Service) Connect(index int) error {
	if !s.IsAvailable() || s.serverMode {
		return fmt.Errorf("not in client mode")
	}
	if index != 0 || s.located == nil {
		return fmt.Errorf("no such host")
	}

	conn, err := transport.Dial(s.locatedAddr, lookTimeout)
	if err != nil {
		return err
	}

	// We'll use node number zero for all communications.
	if !s.nodes.Claim(0, conn) {
		conn.Close()
		return fmt.Errorf("already connected")
	}

	pName := s.cfg.Server.PlayerName
	if pName == "" {
		pName = "Anonymous"
	}

	// Connect by issuing: "JOIN (my-udp) (myname)"
	join := fmt.Sprintf("JOIN %04x %s\n", s.recvUDPPort, pName)
	if _, err := conn.Write([]byte(join)); err != nil {
		s.abortConnect(conn)
		return fmt.Errorf("JOIN failed: %w", err)
	}
	flog.Debugf("sent: %s", strings.TrimSuffix(join, "\n"))

	// What is the reply?
	conn.SetReadDeadline(time.Now().Add(lookTimeout))
	var replyBuf []byte
	buf := make([]byte, 64)
	for !strings.Contains(string(replyBuf), "\n") && len(replyBuf) < 64 {
		n, rerr := conn.Read(buf)
		replyBuf = append(replyBuf, buf[:n]...)
		if rerr != nil {
			break
		}
	}
	conn.SetReadDeadline(time.Time{})
	reply := string(replyBuf)
	if !strings.HasPrefix(reply, "ENTER ") {
		s.abortConnect(conn)
		if reply != "" {
			return fmt.Errorf("server refused connection: %s", strings.TrimSpace(reply))
		}
		return fmt.Errorf("server refused connection")
	}

	// The server tells us which UDP port we should send packets to.
	port, ok := parseJoinPort(strings.TrimSpace(reply[6:]))
	if !ok {
		s.abortConnect(conn)
		return fmt.Errorf("invalid ENTER reply: %s", strings.TrimSpace(reply))
	}

	tcpAddr := conn.RemoteAddr().(*net.TCPAddr)
	addr := &net.UDPAddr{IP: tcpAddr.IP, Port: port}

	// Bind the server's address so we'll recognize its packets, and allow
	// datagram traffic both ways.
	s.nodes.Join(0, addr, "")
	s.dgram.Bind(addr, 0)

	s.netGame.Store(true)
	s.isClient.Store(true)
	s.isServer.Store(false)

	flog.Infof("connected to %s (server UDP port %d)", s.locatedAddr, port)
	return nil
}

func (s *Service) abortConnect(conn net.Conn) {
	conn.Close()
	s.nodes.Clear(0)
}

// Disconnect leaves the server. The control connection is closed, which lets
// the server know that we are no more.
func (s *Service) Disconnect() error {
	if !s.IsAvailable() {
		return fmt.Errorf("service is down")
	}

	s.netGame.Store(false)
	s.isClient.Store(false)
	s.clearMessages()

	// This'll prevent the sending of further packets.
	svNode := s.nodes.Get(0)
	svNode.SetJoined(false)
	s.dgram.Unbind(svNode.Addr)

	if svNode.Conn != nil {
		svNode.Conn.Close()
	}
	s.nodes.Clear(0)

	flog.Infof("disconnected")
	return nil
}

package service

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/halcyon-engine/netcore/internal/conf"
	"github.com/halcyon-engine/netcore/internal/flog"
	"github.com/halcyon-engine/netcore/internal/metrics"
	"github.com/halcyon-engine/netcore/internal/node"
	"github.com/halcyon-engine/netcore/internal/packet"
	"github.com/halcyon-engine/netcore/internal/serverinfo"
	"github.com/halcyon-engine/netcore/internal/transport"
)

const (
	// inboundQueueSize bounds the inbound message queue. The main loop drains
	// it every tick; hitting the cap means the consumer has stalled.
	inboundQueueSize = 4096

	// eventQueueSize bounds the lifecycle event queue.
	eventQueueSize = 64
)

// Service is the multiplayer networking core: one authoritative server and up
// to MaxNodes-1 clients, a reliable control channel per peer and a shared
// unreliable datagram channel. The game module drives it from the main loop
// (Listen, GetPacket, SendData); a transmitter and a receiver goroutine do
// the blocking socket work.
type Service struct {
	cfg  *conf.Conf
	mtu  int
	pool *packet.Pool

	active     atomic.Bool
	serverMode bool

	listener    *net.TCPListener
	dgram       *transport.Datagram
	recvUDPPort int

	nodes node.Table
	queue *sendQueue

	msgs   chan *Message
	events chan Event

	stopRecv atomic.Bool
	workers  *errgroup.Group

	located     *serverinfo.Info
	locatedAddr string

	netGame  atomic.Bool
	isClient atomic.Bool
	isServer atomic.Bool

	metricsSrv *metrics.Server
	startTime  time.Time

	// InfoFn supplies the INFO reply content. Defaults to a summary built
	// from the configuration and the node table.
	InfoFn func() *serverinfo.Info

	// MaxPlayersFn is the admission policy consulted at JOIN time. The node
	// table's capacity is a core constant; this limit belongs to the game.
	MaxPlayersFn func() int
}

// New creates a service around the given configuration. No sockets are
// opened until InitService.
func New(cfg *conf.Conf) *Service {
	s := &Service{
		cfg:       cfg,
		mtu:       cfg.Net.MTU,
		pool:      packet.NewPool(cfg.Net.MTU),
		startTime: time.Now(),
	}
	s.MaxPlayersFn = func() int { return cfg.Server.MaxPlayers }
	s.InfoFn = s.defaultInfo
	return s
}

func (s *Service) defaultInfo() *serverinfo.Info {
	info := &serverinfo.Info{
		Version:    "1.0",
		Name:       s.cfg.Server.Name,
		Desc:       s.cfg.Server.Info,
		MaxPlayers: s.MaxPlayersFn(),
	}
	s.nodes.Each(func(id node.ID, n *node.Node) {
		if n.Joined() {
			info.NumPlayers++
			info.Names = append(info.Names, n.Name)
		}
	})
	return info
}

// IsAvailable reports whether the service is up.
func (s *Service) IsAvailable() bool { return s.active.Load() }

// UsingInternet reports whether the IP transport is active.
func (s *Service) UsingInternet() bool { return s.active.Load() }

// ServerMode reports the current role.
func (s *Service) ServerMode() bool { return s.serverMode }

// NetGame reports whether a network game is in progress.
func (s *Service) NetGame() bool { return s.netGame.Load() }

// IsClient reports whether this end is a connected client.
func (s *Service) IsClient() bool { return s.isClient.Load() }

// GetProtocolName identifies the active transport.
func (s *Service) GetProtocolName() string { return "TCP/IP" }

// ControlPort returns the TCP port the server listens on, 0 when not serving.
func (s *Service) ControlPort() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// DataPort returns the actually bound UDP port.
func (s *Service) DataPort() int { return s.recvUDPPort }

// InitService opens the sockets and starts the worker goroutines for the
// requested role. Re-initializing in the current role is a no-op; switching
// roles shuts the previous service down first.
func (s *Service) InitService(serverMode bool) error {
	if s.IsAvailable() && s.serverMode == serverMode {
		// Nothing to change.
		return nil
	}

	s.ShutdownService()

	if serverMode {
		port := s.cfg.Net.ControlPort
		if port == 0 {
			port = conf.DefaultControlPort
		}
		l, err := transport.OpenListener(port)
		if err != nil {
			return err
		}
		s.listener = l
		flog.Infof("listening TCP socket on port %d", s.ControlPort())
	} else {
		// Let's forget about servers found earlier.
		s.located = nil
	}

	dgram, err := transport.OpenDatagram(s.cfg.Net.DataPort, conf.DefaultDataPort)
	if err != nil {
		if s.listener != nil {
			s.listener.Close()
			s.listener = nil
		}
		return fmt.Errorf("failed to open in/out UDP port: %w", err)
	}
	s.dgram = dgram
	s.recvUDPPort = dgram.Port()
	flog.Infof("in/out UDP port %d", s.recvUDPPort)

	s.msgs = make(chan *Message, inboundQueueSize)
	s.events = make(chan Event, eventQueueSize)
	s.queue = newSendQueue(s)

	s.active.Store(true)
	s.serverMode = serverMode

	s.metricsSrv = metrics.Serve(s.cfg.Metrics.Addr)

	// Start the receiver and the transmitter.
	s.stopRecv.Store(false)
	s.workers = &errgroup.Group{}
	s.workers.Go(s.receiverLoop)
	if s.queue.emu != nil {
		s.workers.Go(s.queue.emuTransmitterLoop)
	} else {
		s.workers.Go(s.queue.transmitterLoop)
	}

	return nil
}

// ShutdownService flips the worker flags, joins both goroutines, closes all
// sockets and zeroes the global state. Safe to call when nothing is running.
func (s *Service) ShutdownService() {
	if !s.IsAvailable() {
		return // Nothing to do.
	}

	// Any queued messages will be destroyed.
	s.clearMessages()

	// Kill the transmission threads.
	s.queue.stop()
	s.stopRecv.Store(true)
	s.workers.Wait()

	// The receiver may have posted more messages while it was winding down.
	s.clearMessages()

	// The receiver has joined; now the socket can go. The handle stays
	// around until the nodes are cleared so their unbinds have a target.
	s.dgram.Close()

	if s.serverMode {
		s.listener.Close()
		s.listener = nil

		// Clear the client nodes.
		for i := 0; i < node.MaxNodes; i++ {
			s.TerminateNode(i)
		}
	} else {
		if n := s.nodes.Get(0); n.Conn != nil {
			n.Conn.Close()
			s.nodes.Clear(0)
		}
		// Let's forget about servers found earlier.
		s.located = nil
	}

	s.dgram = nil

	s.metricsSrv.Close()
	s.metricsSrv = nil

	s.active.Store(false)
	s.serverMode = false
	s.netGame.Store(false)
	s.isClient.Store(false)
	s.isServer.Store(false)
}

// ServerOpen switches to server mode and opens the game for clients.
func (s *Service) ServerOpen() error {
	if err := s.InitService(true); err != nil {
		return fmt.Errorf("failed to initialize server mode: %w", err)
	}
	s.netGame.Store(true)
	s.isServer.Store(true)
	s.isClient.Store(false)
	flog.Infof("server open: %s (max %d players)", s.cfg.Server.Name, s.MaxPlayersFn())
	return nil
}

// ServerClose stops serving and returns to client mode.
func (s *Service) ServerClose() error {
	if !s.IsAvailable() || !s.serverMode {
		return fmt.Errorf("not serving")
	}
	s.netGame.Store(false)
	s.isServer.Store(false)
	return s.InitService(false)
}

// GetNodeName returns the display name of a connected node.
func (s *Service) GetNodeName(id node.ID) (string, bool) {
	n := s.nodes.Get(id)
	if n == nil || n.Conn == nil {
		return "-unknown-", false
	}
	return n.Name, true
}

// TerminateNode removes a client from the game immediately: closes its
// control connection, unbinds its datagram address and cancels its queued
// packets. Posts ClientExit for previously joined nodes on the server.
func (s *Service) TerminateNode(id node.ID) {
	n := s.nodes.Get(id)
	if n == nil || n.Conn == nil {
		return // There is nothing here...
	}

	if s.serverMode && n.Joined() {
		s.postEvent(Event{Type: ClientExit, ID: id})
	}

	// Reject all further datagrams from the address.
	s.dgram.Unbind(n.Addr)

	// Close the socket and forget everything about the node.
	n.Conn.Close()

	// Cancel this node's packets in the send queue so the transmitter
	// skips them.
	s.queue.cancelNode(n)

	s.nodes.Clear(id)
}

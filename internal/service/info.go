package service

import (
	"github.com/halcyon-engine/netcore/internal/flog"
	"github.com/halcyon-engine/netcore/internal/node"
)

// PrintInfo dumps the state of the core: ports, per-node send queues and,
// when active, the emulation parameters. Wired to the "net info" console
// command.
func (s *Service) PrintInfo() {
	if !s.IsAvailable() {
		flog.Printf("Network service is not available.\n")
		return
	}

	role := "client"
	if s.serverMode {
		role = "server"
	}
	flog.Printf("Network service: %s, %s mode\n", s.GetProtocolName(), role)
	if s.serverMode {
		flog.Printf("Control (TCP) port: %d\n", s.ControlPort())
	}
	flog.Printf("Data (UDP) port: %d\n", s.recvUDPPort)
	flog.Printf("MTU: %d bytes\n", s.mtu)

	if s.queue != nil && s.queue.emu != nil {
		flog.Printf("Emulation enabled: max delay = %d ms, dropping %d%%.\n",
			s.queue.emu.MaxDelayMS, s.queue.emu.DropPercent)
	}

	s.nodes.Each(func(id node.ID, n *node.Node) {
		count, bytes := n.Waiting()
		state := "unjoined"
		if n.Joined() {
			state = "joined"
		}
		flog.Printf("Node %d (%s, %q): %d msgs / %d bytes waiting\n",
			id, state, n.Name, count, bytes)
	})

	if d := flog.Dropped(); d > 0 {
		flog.Printf("Log messages dropped: %d\n", d)
	}
}

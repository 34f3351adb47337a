package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/halcyon-engine/netcore/internal/flog"
	"github.com/halcyon-engine/netcore/internal/service"
)

// tickInterval approximates the engine's 35 Hz main loop.
const tickInterval = 28 * time.Millisecond

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a server endpoint",
	Long:  "Runs the networking core in server mode. Without a game module attached, received datagrams are echoed back to their sender, which makes the endpoint usable as a loopback test peer.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConf("server")
		if err != nil {
			return err
		}

		svc := service.New(cfg)
		if err := svc.ServerOpen(); err != nil {
			return err
		}
		defer svc.ShutdownService()

		svc.PrintInfo()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-sig:
				flog.Infof("shutting down")
				return nil
			case <-ticker.C:
				tick(svc)
			}
		}
	},
}

// tick is one main-loop iteration: poll the control sockets, react to
// lifecycle events, consume inbound packets.
func tick(svc *service.Service) {
	svc.Listen()

	for {
		ev, ok := svc.PollEvent()
		if !ok {
			break
		}
		switch ev.Type {
		case service.ClientEntry:
			name, _ := svc.GetNodeName(ev.ID)
			flog.Infof("player %d joined: %s", ev.ID, name)
		case service.ClientExit:
			flog.Infof("player %d left", ev.ID)
		case service.EndConnection:
			flog.Infof("connection to server ended")
		}
	}

	for {
		msg := svc.GetPacket()
		if msg == nil {
			break
		}
		// Echo the payload back over the datagram channel.
		svc.SendData(msg.Data, msg.Sender)
		svc.ReturnBuffer(msg.Handle)
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/halcyon-engine/netcore/internal/flog"
	"github.com/halcyon-engine/netcore/internal/service"
)

var joinCount int

func init() {
	joinCmd.Flags().IntVarP(&probePort, "port", "p", 0, "control port (default 13209)")
	joinCmd.Flags().IntVarP(&joinCount, "count", "n", 4, "datagrams to exchange")
}

var joinCmd = &cobra.Command{
	Use:   "join <address>",
	Short: "Join a server and exchange a few datagrams",
	Long:  "Connects to a server, sends a handful of datagrams over the data channel and waits for them to come back. Useful against a 'serve' echo endpoint to verify both channels end to end.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConf("client")
		if err != nil {
			return err
		}

		svc := service.New(cfg)
		if err := svc.InitService(false); err != nil {
			return err
		}
		defer svc.ShutdownService()

		if err := svc.LookForHosts(args[0], probePort); err != nil {
			return err
		}
		if err := svc.Connect(0); err != nil {
			return err
		}
		defer svc.Disconnect()

		for i := 0; i < joinCount; i++ {
			svc.SendData([]byte(fmt.Sprintf("ping %d", i)), 0)
		}
		svc.FlushOutgoing()

		echoed := 0
		deadline := time.Now().Add(3 * time.Second)
		for echoed < joinCount && time.Now().Before(deadline) {
			svc.Listen()
			for {
				msg := svc.GetPacket()
				if msg == nil {
					break
				}
				flog.Infof("echo: %q", msg.Data)
				svc.ReturnBuffer(msg.Handle)
				echoed++
			}
			time.Sleep(tickInterval)
		}

		flog.Printf("%d/%d datagrams echoed\n", echoed, joinCount)
		return nil
	},
}

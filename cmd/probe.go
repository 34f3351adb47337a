package main

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/halcyon-engine/netcore/internal/conf"
	"github.com/halcyon-engine/netcore/internal/flog"
	"github.com/halcyon-engine/netcore/internal/service"
	"github.com/halcyon-engine/netcore/internal/transport"
)

const lookupTimeout = 5 * time.Second

var probePort int

func init() {
	probeCmd.Flags().IntVarP(&probePort, "port", "p", 0, "control port (default 13209)")
	timeCmd.Flags().IntVarP(&probePort, "port", "p", 0, "control port (default 13209)")
}

var probeCmd = &cobra.Command{
	Use:   "probe <address>",
	Short: "Query a server for its info",
	Args:  cobra.ExactArgs(1),
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

		info, ok := svc.GetHostInfo(0)
		if !ok {
			return fmt.Errorf("no host located")
		}
		flog.Printf("%d server found.\n", svc.GetHostCount())
		flog.Printf("  %s\n", info)
		if len(info.Names) > 0 {
			flog.Printf("  players: %s\n", strings.Join(info.Names, ", "))
		}
		return nil
	},
}

var timeCmd = &cobra.Command{
	Use:   "time <address>",
	Short: "Query a server for its uptime clock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConf("client"); err != nil {
			return err
		}

		port := probePort
		if port == 0 {
			port = conf.DefaultControlPort
		}
		conn, err := transport.Dial(net.JoinHostPort(args[0], strconv.Itoa(port)), lookupTimeout)
		if err != nil {
			return err
		}
		defer conn.Close()

		if _, err := conn.Write([]byte("TIME\n")); err != nil {
			return err
		}
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			return err
		}
		flog.Printf("server time: %s", line)
		return nil
	},
}

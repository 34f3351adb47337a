package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/halcyon-engine/netcore/internal/conf"
	"github.com/halcyon-engine/netcore/internal/flog"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "netcore",
	Short:         "Multiplayer networking core",
	Long:          "netcore runs the engine's multiplayer networking core standalone: a server endpoint, or client-side discovery and queries against one.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	registerCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		flog.SetLevel(int(flog.Error))
		flog.Errorf("%v", err)
		os.Exit(1)
	}
}

// loadConf reads the config file, or falls back to defaults for the role.
func loadConf(role string) (*conf.Conf, error) {
	if cfgPath == "" {
		c := conf.Default(role)
		flog.SetLevel(int(c.Log.Level))
		return c, nil
	}
	c, err := conf.LoadFromFile(cfgPath)
	if err != nil {
		return nil, err
	}
	flog.SetLevel(int(c.Log.Level))
	return c, nil
}

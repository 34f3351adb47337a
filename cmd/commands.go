package main

import (
	"github.com/spf13/cobra"
)

func registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(timeCmd)
}

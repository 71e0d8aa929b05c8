// Package main provides the battle server binary: the HTTP API, the websocket
// push gateway, and the operator subcommands that support them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "battleserver",
	Short: "Turn-based battle room server",
	Long: `battleserver runs server-authoritative battle rooms for the idle RPG:
room creation, turn input with deadlines, resolution, rewards, and realtime push.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/dev.yaml", "path to configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(characterCmd)
}

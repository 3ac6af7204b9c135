// Package cmd provides the CLI commands for contextify.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/contextify/contextify/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "contextify",
	Short: "Contextify - policy-driven MCP tool exposure",
	Long: `Contextify exposes a governed set of tools over the Model Context
Protocol: either a local HTTP backend's operations (the in-process host)
or the aggregated catalog of several upstream MCP servers (the gateway
host).

Commands:
  serve       Run the in-process tool host
  gateway     Run the multi-upstream gateway host
  version     Print version information

Configuration is loaded from contextify.yaml in the current directory,
$HOME/.contextify/, or /etc/contextify/. Environment variables can
override any value with the CONTEXTIFY_ prefix, e.g.
CONTEXTIFY_CORE_HTTP_ADDR=:9090.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./contextify.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

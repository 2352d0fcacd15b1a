// Package main is the entry point for the statuswatch CLI.
//
// Usage:
//
//	statuswatch serve -c config.yaml    # Start the tracker
//	statuswatch validate -c config.yaml # Validate configuration
//	statuswatch version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "statuswatch",
	Short: "Track third-party status pages and stream changes live",
	Long: `statuswatch continuously polls the status pages of external service
providers using conditional HTTP requests, detects status and incident
changes, and streams them to any number of connected observers over
Server-Sent Events.

Quick start:
  1. Create a config file (statuswatch.yaml)
  2. Run: statuswatch serve -c statuswatch.yaml
  3. Stream events: curl -N http://localhost:8000/api/events

Example config:
  port: 8000
  poll_interval: 30s
  providers:
    - name: GitHub
      url: https://www.githubstatus.com/api/v2`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this statuswatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("statuswatch %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

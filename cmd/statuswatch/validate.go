package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/statuswatch/statuswatch/config"
)

// validateCmd validates a config file without starting the tracker.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a statuswatch configuration file without starting the tracker.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  statuswatch validate -c config.yaml
  statuswatch validate --config /etc/statuswatch/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:              %d\n", cfg.Port)
	fmt.Printf("  Poll interval:     %s\n", cfg.PollInterval.Duration())
	fmt.Printf("  Request timeout:   %s\n", cfg.RequestTimeout.Duration())
	fmt.Printf("  Queue capacity:    %d\n", cfg.QueueCapacity)
	fmt.Printf("  Failure threshold: %d\n", cfg.FailureThreshold)
	fmt.Printf("  Providers:         %d\n", len(cfg.Providers))
	for _, p := range cfg.Providers {
		fmt.Printf("    - %s (%s, every %s)\n", p.Name, p.URL, p.EffectiveInterval(cfg))
	}

	return nil
}

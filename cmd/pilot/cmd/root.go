package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pilot",
	Short: "Execution controller for an external trading decision engine",
	Long: `Pilot is the execution layer of an automated trading strategy.

It consumes decision commands from an upstream engine, applies layered
safety interlocks (admission gate, daily loss guard, emergency breaker),
sizes and submits orders, and manages open positions until closed.

Subcommands:
  run      - start the controller loop
  journal  - query the trade journal
  version  - print the version`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Secrets (telegram token, bridge endpoints) may come from .env.
	cobra.OnInitialize(func() { _ = godotenv.Load() })
}

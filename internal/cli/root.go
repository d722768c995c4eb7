// Package cli wires configuration, storage, the pipeline and the HTTP
// server into the hookrelay command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hookrelay",
	Short: "Commerce webhook relay",
	Long: `hookrelay ingests commerce-platform webhooks, enforces at-most-once
processing per event identifier, enriches events with authoritative platform
state, and fans them out to downstream consumers with a durable retry path.`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}

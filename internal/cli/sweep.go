package cli

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hookrelay-systems/hookrelay/internal/config"
	"github.com/hookrelay-systems/hookrelay/internal/logging"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Drain the failure ledger once and exit",
	Long: `Run a single retry sweep against the failure ledger, re-driving each
queued event through the full pipeline, and print the sweep summary.

Intended for cron or manual operation; a running server also sweeps on its
own schedule.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(slog.String("service", "hookrelay-sweep"))
	logging.SetDefault(logger)

	ctx := context.Background()

	p, err := buildPipeline(ctx, cfg, logger.Logger)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	defer p.Close()

	summary := p.sweep.Run(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

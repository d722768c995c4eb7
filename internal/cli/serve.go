package cli

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hookrelay-systems/hookrelay/internal/config"
	"github.com/hookrelay-systems/hookrelay/internal/handlers"
	"github.com/hookrelay-systems/hookrelay/internal/logging"
	"github.com/hookrelay-systems/hookrelay/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook relay server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(slog.String("service", "hookrelay"))
	logging.SetDefault(logger)

	slog.Info("Starting webhook relay",
		slog.Int("port", cfg.Server.Port),
		slog.String("store_backend", cfg.Store.Backend),
		slog.Bool("enrichment", cfg.Enrichment.Enabled),
		slog.Bool("sweeper", cfg.Sweeper.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg, logger.Logger)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	defer p.Close()

	if cfg.Sweeper.Enabled {
		go p.sweep.Start(ctx)
		defer p.sweep.Stop()
		slog.Info("Retry sweeper scheduled", slog.Duration("interval", cfg.Sweeper.Interval))
	}

	handler := handlers.NewWebhookHandler(
		p.proc,
		p.sweep,
		p.store,
		p.counters,
		cfg.Webhook.SignatureKey,
		cfg.Webhook.RetrySecret,
		cfg.Webhook.MaxConcurrent,
		logger.Logger,
	)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Webhook relay listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	slog.Info("Server stopped")
	return nil
}

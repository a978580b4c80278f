package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openimg/image-scraper/internal/api"
	"github.com/openimg/image-scraper/internal/config"
	"github.com/openimg/image-scraper/internal/images"
	"github.com/openimg/image-scraper/internal/logging"
	"github.com/openimg/image-scraper/internal/metrics"
	"github.com/openimg/image-scraper/internal/scraper"
	"github.com/openimg/image-scraper/internal/storage/memory"
	"github.com/openimg/image-scraper/internal/storage/postgres"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the scraper HTTP server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store scraper.Store
	if cfg.DB.DSN != "" {
		pgStore, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		defer pgStore.Close()
		logger.Info("using postgres store", zap.String("table", cfg.DB.Table))
		store = pgStore
	} else {
		logger.Warn("db.dsn not set, using in-memory store; scrape history will not survive restarts")
		store = memory.NewStore()
	}

	fetcher := scraper.NewCollyFetcher(scraper.FetcherConfig{
		UserAgent:      cfg.Scraper.UserAgent,
		AcceptLanguage: cfg.Scraper.AcceptLanguage,
		Timeout:        cfg.FetchTimeout(),
	})
	scrapes := scraper.New(fetcher, store, scraper.Config{
		Concurrency: cfg.Scraper.Concurrency,
	}, logger.Named("scraper"))

	client := images.NewClient(cfg.FetchTimeout())
	archiver := images.NewArchiver(client, logger.Named("archiver"))

	apiServer := api.NewServer(scrapes, store, client, archiver, cfg, logger.Named("api"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/server"
	"github.com/hyperjump/kioku/internal/watcher"
	"github.com/hyperjump/kioku/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServerCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := utils.NewLogger(cfg.Debug)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, logger)
		},
	}
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("config loaded",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("index_type", cfg.Index.Type),
		zap.Int("capacity", cfg.Index.Capacity),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Bool("debug", cfg.Debug))

	components, err := NewComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	var watch server.WatchService
	if len(cfg.Watch.Directories) > 0 {
		w := watcher.NewWatcher(cfg.Watch.Directories, cfg.Watch.RecursiveOrDefault(), components.Ingester,
			watcher.WithLogger(logger),
			watcher.WithDebounce(cfg.Watch.Debounce))
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
		if cfg.Watch.SyncOnStart {
			w.SyncInBackground()
		}
		watch = w
	}

	srv := server.NewServer(components.Service, components.Ingester, cfg, logger, watch)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	magickit "github.com/magickit/go-magickit-cache"
	"github.com/magickit/go-magickit-cache/config"
	"github.com/magickit/go-magickit-cache/internal/logging"
	"github.com/spf13/cobra"
)

var (
	listenAddr      string
	shutdownTimeout time.Duration
)

// serveCmd runs the cache core with its operator HTTP surface.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cache core and expose /metrics, /stats and /healthz",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", ":9090", "operator HTTP listen address")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (*config.Cache, error) {
	if cfgFile != "" {
		return config.LoadConfig(cfgFile)
	}
	return config.LoadEnv()
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logs, nil)

	c, err := magickit.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("start cache: %w", err)
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("cache close")
		}
	}()

	if days := cfg.Monitor.RetentionDays; days > 0 {
		if _, err = c.Monitor.CleanupOldMetrics(ctx, days); err != nil {
			logger.Warn().Err(err).Msg("performance sample cleanup failed")
		}
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           newRouter(c, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", listenAddr).Msg("operator http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err = <-errCh:
		return fmt.Errorf("operator http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/tabpulse/internal/engine"
	"github.com/lazypower/tabpulse/internal/host"
	"github.com/lazypower/tabpulse/internal/logging"
	"github.com/lazypower/tabpulse/internal/notify"
	"github.com/lazypower/tabpulse/internal/server"
	"github.com/lazypower/tabpulse/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the monitoring daemon and HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Log)

	st, err := store.Connect(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	notifier, err := notify.New(cfg.Notify, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("notifications disabled")
		notifier = notify.Discard{}
	}

	h := host.New(logger)
	eng := engine.New(cfg, st, h, notifier, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng.Start(ctx)
	defer eng.Stop()

	srv := server.New(eng, h.Registry, VersionString(), logger)
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", addr).
			Str("store", st.Backend().Name()).
			Str("notifier", notifier.Name()).
			Dur("interval", cfg.Monitor.SampleInterval()).
			Msg("tabpulse serving")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

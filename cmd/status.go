package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/okian/holdsnap/internal/adapters/http/api"
	"github.com/okian/holdsnap/pkg/logger"
	"github.com/okian/holdsnap/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// serveStatus serves the status routes until ctx is done. A server that
// cannot start is logged and does not fail the run.
func serveStatus(ctx context.Context, addr string, stats api.StatsProvider, m *metrics.Manager, log logger.Logger) error {
	mux := http.NewServeMux()
	api.NewServer(stats, m).Register(ctx, mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting status server", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(ctx, "status server stopped", logger.Error(err))
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "status server shutdown failed", logger.Error(err))
	}
	return nil
}

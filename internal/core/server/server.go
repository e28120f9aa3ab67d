// Package server wires the chi router, middleware chain, and graceful
// shutdown for the gateway's HTTP surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robit-man/overlay-elevation-gateway/internal/core/config"
	"github.com/robit-man/overlay-elevation-gateway/internal/core/health"
	middleware "github.com/robit-man/overlay-elevation-gateway/internal/core/middleware"
	"github.com/robit-man/overlay-elevation-gateway/internal/core/router"
	"github.com/robit-man/overlay-elevation-gateway/internal/ratelimit"
)

// Deps are the handler-level dependencies server.Run mounts into routes.
type Deps struct {
	AddrReporter health.AddrReporter
	Forwarder    *router.Forwarder
	Limiter      *ratelimit.Limiter
}

// Run serves HTTP (or HTTPS, if cfg.ForwardSSL) until ctx is cancelled,
// then shuts the server down gracefully and, if closeSidecar is set,
// tells the overlay sidecar to shut down too.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, deps Deps, closeSidecar func() error) error {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit(deps.Limiter))

	r.Get("/healthz", health.Healthz(deps.AddrReporter, cfg.ElevBase, cfg.ElevDataset))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/debug/geohash", router.DebugGeohash)
	r.Post("/forward", deps.Forwarder.Forward)

	addr := fmt.Sprintf("%s:%d", cfg.ForwardBind, cfg.ForwardPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", addr, "tls", cfg.ForwardSSL)
		var err error
		if cfg.ForwardSSL {
			err = srv.ListenAndServeTLS(cfg.ForwardSSLCert, cfg.ForwardSSLKey)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if closeSidecar != nil {
			if err := closeSidecar(); err != nil {
				logger.Warn("sidecar close error", "err", err)
			}
		}
		return nil
	case err := <-errCh:
		return err
	}
}

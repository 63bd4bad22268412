// cmd/agentauthd/main.go
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AgentCommons/agentcommons-identity-go/internal/config"
	"github.com/AgentCommons/agentcommons-identity-go/internal/didweb"
	"github.com/AgentCommons/agentcommons-identity-go/internal/server"
	"github.com/AgentCommons/agentcommons-identity-go/internal/session"
	"github.com/AgentCommons/agentcommons-identity-go/internal/storage"
	"github.com/AgentCommons/agentcommons-identity-go/internal/verifier"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Env)
	slog.SetDefault(logger)

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("storage error", "error", err)
		os.Exit(1)
	}

	var wellKnownDoc []byte
	if cfg.WellKnownDocPath != "" {
		wellKnownDoc, err = os.ReadFile(cfg.WellKnownDocPath)
		if err != nil {
			logger.Error("read well-known document", "path", cfg.WellKnownDocPath, "error", err)
			os.Exit(1)
		}
	}

	resolver := didweb.NewResolver(&http.Client{Timeout: cfg.ResolverTimeout}, logger)
	verifySvc := verifier.New(resolver, store, verifier.Options{
		ToleranceMS: cfg.SignatureTolerance.Milliseconds(),
		Logger:      logger,
	})

	var sessions *session.Issuer
	if len(cfg.JWTSigningKey) > 0 {
		sessions, err = session.NewIssuer(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTL)
		if err != nil {
			logger.Error("session issuer error", "error", err)
			os.Exit(1)
		}
	}

	h := server.New(store, server.Options{
		Logger:       logger,
		WellKnownDoc: wellKnownDoc,
		Verifier:     verifySvc,
		Sessions:     sessions,
	})

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           metricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("agentauthd starting", "addr", srv.Addr, "env", cfg.Env, "backend", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()
	go func() {
		logger.Info("metrics listener starting", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runReplaySweep(sweepCtx, store, cfg.ReplayTTL, cfg.ReplaySweepEvery, logger)

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logger.Error("metrics shutdown failed", "error", err)
	}
	logger.Info("shutdown complete")
}

// newLogger builds the process logger for the deployment environment:
// JSON at info level in prod, text at debug level everywhere else.
func newLogger(env string) *slog.Logger {
	if env == "prod" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// metricsHandler serves Prometheus metrics on the dedicated listener.
func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// openStore wires the configured storage backend, running migrations for
// PostgreSQL.
func openStore(cfg config.Config) (storage.Store, error) {
	if cfg.StoreBackend != "postgres" {
		return storage.NewMemory(), nil
	}
	store, err := storage.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if pg, ok := store.(interface{ DB() *sql.DB }); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := storage.MigratePostgres(ctx, pg.DB()); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// runReplaySweep periodically deletes replay entries older than the TTL.
// Sweeping is storage reclamation only; replay defense is the uniqueness
// constraint at insert time.
func runReplaySweep(ctx context.Context, store storage.ReplayStore, ttl, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-ttl)
			removed, err := store.SweepExpired(ctx, cutoff)
			if err != nil {
				logger.Warn("replay sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("replay sweep completed", "removed", removed)
			}
		}
	}
}

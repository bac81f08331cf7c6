package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"vigil/internal/hygiene"
	gate "vigil/internal/hygiene/middleware"
	"vigil/internal/ledger"
	"vigil/internal/notify"
	"vigil/internal/platform/config"
	"vigil/internal/platform/httpserver"
	"vigil/internal/platform/logger"
	"vigil/internal/platform/metrics"
	"vigil/internal/policy"
	"vigil/internal/principal"
	httptransport "vigil/internal/transport/http"
	"vigil/pkg/platform/middleware/auth"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(parseLevel(cfg.Log.Level))
	slog.SetDefault(log)

	ledgerStore, principalStore, closeDB, err := buildStores(cfg)
	if err != nil {
		log.Error("initialize stores", "error", err)
		os.Exit(1)
	}
	defer closeDB()

	registry, err := principal.NewRegistry(cfg.DefaultKind(), principalStore)
	if err != nil {
		log.Error("initialize principal registry", "error", err)
		os.Exit(1)
	}

	pol, err := policy.New(ledgerStore,
		policy.WithVerificationExpiryDays(cfg.Hygiene.VerificationExpiryDays),
		policy.WithPasswordExpiryDays(cfg.Hygiene.PasswordExpiryDays),
	)
	if err != nil {
		log.Error("initialize expiry policy", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	service, err := hygiene.New(registry, ledgerStore, pol, notify.NewLogSender(log),
		hygiene.WithLogger(log),
		hygiene.WithMetrics(m),
	)
	if err != nil {
		log.Error("initialize hygiene service", "error", err)
		os.Exit(1)
	}

	g, err := gate.New(service, cfg.Hygiene.RedirectRoute, cfg.ExemptRouteSet(),
		gate.WithLogger(log),
		gate.WithMetrics(m),
	)
	if err != nil {
		log.Error("initialize enforcement gate", "error", err)
		os.Exit(1)
	}

	validator := auth.NewValidator(cfg.Auth.JWTSigningKey, cfg.DefaultKind())
	handler := httptransport.NewHandler(service, log)
	adminHandler := httptransport.NewAdminHandler(service, log)

	router, err := httptransport.NewRouter(handler, adminHandler, g, validator, cfg.Auth.AdminToken, log)
	if err != nil {
		log.Error("initialize router", "error", err)
		os.Exit(1)
	}

	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("starting vigil", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// buildStores selects PostgreSQL when a DSN is configured and the in-memory
// stores otherwise.
func buildStores(cfg *config.Config) (ledger.Store, principal.Store, func(), error) {
	if cfg.Database.DSN == "" {
		return ledger.NewInMemoryStore(), principal.NewInMemoryStore(cfg.DefaultKind()), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	closeDB := func() { _ = db.Close() }
	return ledger.NewPostgres(db), principal.NewPostgres(db, cfg.DefaultKind()), closeDB, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

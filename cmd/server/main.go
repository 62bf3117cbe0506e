/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the vehicle taxation server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load ./.env (if present) and TAX_* variables, then flags
  2. Validate configuration and build the tax policy
  3. Initialize SQLite store and record the policy document
  4. Create service, handler and router
  5. Start the compliance sweep scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides TAX_PORT)
  -db      SQLite database path (overrides TAX_DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweep scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/tax.db"
  TAX_DEBT_DAYS=14 TAX_LOG_FORMAT=json ./server -port=3000

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hassan3xl/taxation-backend/api"
	"github.com/hassan3xl/taxation-backend/auth"
	"github.com/hassan3xl/taxation-backend/config"
	"github.com/hassan3xl/taxation-backend/factory"
	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/hassan3xl/taxation-backend/store/sqlite"
	"github.com/hassan3xl/taxation-backend/taxation"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log, err := cfg.Logger()
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure logging")
	}
	if cfg.UsesDevSecret() {
		log.Warn("TAX_JWT_SECRET is not set, using the development secret")
	}

	policy, err := cfg.Policy()
	if err != nil {
		log.WithError(err).Fatal("invalid tax policy")
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	if err := recordPolicy(context.Background(), store, policy); err != nil {
		log.WithError(err).Warn("failed to record policy document")
	}

	tokens, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize auth")
	}

	svc := taxation.NewService(store, *policy, log)
	handler := api.NewHandler(svc, store, log)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Auth:           tokens,
	})

	handler.Sweeper.CheckInterval = cfg.SweepInterval
	handler.Sweeper.Enabled = cfg.SweepEnabled
	handler.Sweeper.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":      cfg.Port,
			"db":        cfg.DBPath,
			"policy":    policy.ID,
			"debt_days": policy.DebtDays,
			"overlap":   policy.ExemptionOverlap,
			"time_zone": policy.TimeZone,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	handler.Sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
		return
	}
	log.Info("server stopped")
}

// recordPolicy stores the policy document, bumping its version only when the
// document changed since the last start.
func recordPolicy(ctx context.Context, store *sqlite.Store, policy *taxation.Policy) error {
	doc, err := factory.NewPolicyFactory().Marshal(policy)
	if err != nil {
		return err
	}
	existing, err := store.GetPolicy(ctx, policy.ID)
	switch {
	case errors.Is(err, generic.ErrNotFound):
	case err != nil:
		return err
	case existing.ConfigJSON == doc:
		return nil
	}
	return store.SavePolicy(ctx, sqlite.PolicyRecord{ID: policy.ID, Name: policy.Name, ConfigJSON: doc})
}

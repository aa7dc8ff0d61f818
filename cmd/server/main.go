/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the hotel operations engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Build the logger
  3. Open the SQLite store
  4. Probe the pre-aggregated procedures, pick the aggregation source
  5. Wire the writer and engines
  6. Optionally load a seed file
  7. Start the HTTP server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the database connection
  4. Exit

ENVIRONMENT:
  PORT, DB_PATH, LOG_LEVEL, LOG_JSON, CORS_ORIGINS, SEED_FILE,
  BATCH_CHUNK_SIZE, BATCH_MAX_RETRIES. See config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lodgekeeper/ops-engine/api"
	"github.com/lodgekeeper/ops-engine/config"
	"github.com/lodgekeeper/ops-engine/record"
	"github.com/lodgekeeper/ops-engine/stock"
	"github.com/lodgekeeper/ops-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	// Pick the aggregation source once; the engines never know which one
	// they got.
	local := &stock.LocalReplay{Store: store}
	source := stock.SelectSource(ctx, store, local, log)
	sourceName := "local"
	if _, ok := source.(*stock.RemoteAggregation); ok {
		sourceName = "remote"
	}
	engine := stock.NewEngine(source)

	writer := record.NewWriter(store, record.AllowAll{}, log)
	writer.Stock = engine
	writer.ChunkSize = cfg.BatchChunkSize
	writer.MaxRetries = cfg.BatchMaxRetries

	if cfg.SeedFile != "" {
		if result, err := api.LoadSeedFile(ctx, writer, cfg.SeedFile); err != nil {
			log.WithFields(logrus.Fields{
				"module":   "main",
				"seedFile": cfg.SeedFile,
				"inserted": len(result.InsertedIDs),
			}).Warnf("seed load incomplete: %v", err)
		} else {
			log.Infof("seeded %d records from %s", len(result.InsertedIDs), cfg.SeedFile)
		}
	}

	handler := api.NewHandler(store, writer, engine, sourceName, log)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("server starting on :%d (aggregation source: %s)", cfg.Port, sourceName)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Info("server stopped")
}

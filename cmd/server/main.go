/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the restaurant back-office engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env file, environment, defaults)
  2. Apply command-line flag overrides
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Configure HTTP router and start the ledger auditor
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -env     Path to an env file (default: .env, missing file is fine)
  -port    HTTP server port (overrides APP_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  APP_PORT, DB_PATH, BUSINESS_TIMEZONE, CORS_ALLOWED_ORIGINS,
  RATE_LIMIT_RPS, RATE_LIMIT_BURST, AUDIT_ENABLED, AUDIT_INTERVAL,
  AUDIT_REPAIR. See config/config.go for defaults.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the auditor and close the database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/backoffice.db"

  # Run with in-memory database in another timezone
  BUSINESS_TIMEZONE=Europe/Berlin ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/backoffice-engine/api"
	"github.com/warp/backoffice-engine/config"
	"github.com/warp/backoffice-engine/store/sqlite"
)

func main() {
	// Flags
	envFile := flag.String("env", ".env", "Path to env file")
	port := flag.Int("port", 0, "HTTP server port (overrides APP_PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.App.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, cfg.Business.Location)

	// Create router
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimit: api.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
	})

	// Ledger audit
	auditor := api.NewLedgerAuditor(store, handler.Suppliers)
	auditor.Enabled = cfg.Audit.Enabled
	auditor.CheckInterval = cfg.Audit.Interval
	auditor.Repair = cfg.Audit.Repair
	auditor.Start()
	defer auditor.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("%s (%s) starting on http://localhost:%d", cfg.App.Name, cfg.App.Env, cfg.App.Port)
		log.Printf("Business timezone: %s, database: %s", cfg.Business.Timezone, cfg.Database.Path)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

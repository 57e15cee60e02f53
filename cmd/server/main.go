/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Create API handler with dependencies (features, UK-agent allowlist)
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080)
  -db          SQLite database path (default: leave.db), ":memory:" works
  -uk-agents   Comma-separated UK-agent email allowlist
  -toil        Enable the TOIL feature (default: true)
  -sick-leave  Enable the sick-leave feature (default: true)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/leave.db" -uk-agents="amy@agency.co.uk,ben@agency.co.uk"
  ./server -db=":memory:" -toil=false

SEE ALSO:
  - api/server.go: Router configuration
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
	"strings"
	"syscall"
	"time"

	"github.com/agencyhq/leave-engine/api"
	"github.com/agencyhq/leave-engine/leave"
	"github.com/agencyhq/leave-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "leave.db", "SQLite database path")
	ukAgents := flag.String("uk-agents", "", "comma-separated UK-agent email allowlist")
	toilEnabled := flag.Bool("toil", true, "enable the TOIL feature")
	sickEnabled := flag.Bool("sick-leave", true, "enable the sick-leave feature")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler
	var agentEmails []string
	for _, e := range strings.Split(*ukAgents, ",") {
		if e = strings.TrimSpace(e); e != "" {
			agentEmails = append(agentEmails, e)
		}
	}

	handler := api.NewHandler(api.Config{
		Store:       store,
		Features:    leave.Features{TOIL: *toilEnabled, SickLeave: *sickEnabled},
		AgentEmails: agentEmails,
		Notifier:    leave.LogNotifier{},
	})

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
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
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

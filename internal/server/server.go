// Package server provides the HTTP REST API for the listing enricher.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/santiago/listing-enricher/internal/config"
	"github.com/santiago/listing-enricher/internal/db"
	"github.com/santiago/listing-enricher/internal/enrichment"
	"github.com/santiago/listing-enricher/internal/extraction"
	"github.com/santiago/listing-enricher/internal/jobs"
	"github.com/santiago/listing-enricher/internal/llm"
	"github.com/santiago/listing-enricher/internal/marketplace"
)

// idempotencyKeyHeader deduplicates logically identical submissions.
const idempotencyKeyHeader = "Idempotency-Key"

// extractRunner runs an extraction batch to completion.
type extractRunner interface {
	Extract(ctx context.Context, job jobs.Job, req extraction.Request)
}

// enrichRunner runs an enrichment batch and exposes model validation for
// the pre-flight check at enqueue time.
type enrichRunner interface {
	Enrich(ctx context.Context, job jobs.Job, req enrichment.Request)
	ValidateModel(ctx context.Context, model string) error
	ListModels(ctx context.Context) ([]string, error)
}

// productStore reads persisted enriched products.
type productStore interface {
	GetEnrichedProduct(ctx context.Context, itemID string) (*db.EnrichedProduct, error)
	SearchEnrichedProducts(ctx context.Context, filters db.EnrichedProductFilters) ([]db.EnrichedProduct, int, error)
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	database   *db.DB
	llmClient  llm.Client

	registry  *jobs.Registry
	pool      *jobs.Pool
	extractor extractRunner
	enricher  enrichRunner
	products  productStore
	validate  *validator.Validate
}

// New creates a server instance wired to Postgres, the marketplace API and
// Gemini.
func New(cfg *config.Config) (*Server, error) {
	ctx := context.Background()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}

	llmClient, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		database.Close()
		return nil, err
	}

	registry := jobs.NewRegistry()
	source := marketplace.NewClient(cfg.Marketplace())

	s := &Server{
		database:  database,
		llmClient: llmClient,
		registry:  registry,
		pool:      jobs.NewPool(cfg.Workers),
		extractor: extraction.NewService(registry, source),
		enricher:  enrichment.NewService(registry, source, llmClient, database),
		products:  database,
		validate:  validator.New(),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withLogging(s.withCORS(s.routes())),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// routes builds the HTTP mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /extract/items/descriptions", s.handleExtractItems)
	mux.HandleFunc("GET /extract/jobs", s.handleListExtractJobs)
	mux.HandleFunc("GET /extract/jobs/{id}", s.handleGetExtractJob)

	mux.HandleFunc("POST /enrichment/run", s.handleRunEnrichment)
	mux.HandleFunc("GET /enrichment/models", s.handleListModels)
	mux.HandleFunc("GET /enrichment/jobs", s.handleListEnrichmentJobs)
	mux.HandleFunc("GET /enrichment/jobs/{id}", s.handleGetEnrichmentJob)
	mux.HandleFunc("GET /enrichment/enriched", s.handleSearchEnrichedProducts)
	mux.HandleFunc("GET /enrichment/enriched/{item_id}", s.handleGetEnrichedProduct)

	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// Start begins listening for requests and blocks until shutdown.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Let in-flight jobs reach a terminal state before closing resources.
	s.pool.Wait()

	if s.llmClient != nil {
		_ = s.llmClient.Close()
	}
	s.database.Close()
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+idempotencyKeyHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

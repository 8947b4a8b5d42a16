// Package main runs the loyalty timeline service:
// - Timeline API: merged customer activity feed over ledger, redemptions and referrals
// - Processor intake: webhook endpoint plus optional firehose stream
// - Operational endpoints: /health, /status, /metrics
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/observability"
	"loyalty-service/internal/processor"
	"loyalty-service/internal/referral"
	"loyalty-service/internal/storage"
	chstore "loyalty-service/internal/storage/clickhouse"
	"loyalty-service/internal/storage/memory"
	"loyalty-service/internal/storage/migrations"
	pgstore "loyalty-service/internal/storage/postgres"
	"loyalty-service/internal/timeline"
	"loyalty-service/internal/upstream"
)

// Server holds all components of the loyalty service.
type Server struct {
	timeline *timeline.Service
	intake   *processor.Intake
	stores   *stores
	logger   *log.Logger

	mu          sync.Mutex
	started     time.Time
	storageMode string
	sourceMode  string

	timelineRequests int
	webhookEvents    int
}

// stores holds the storage implementations behind the timeline and intake.
type stores struct {
	ledger      storage.LedgerStore
	redemptions storage.RedemptionStore
	referrals   storage.ReferralStore
	archive     storage.ProcessorEventStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("LOYALTY_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	apiURL := flag.String("loyalty-api-url", os.Getenv("LOYALTY_API_URL"), "Upstream loyalty API base URL (serves the timeline from upstream fetchers instead of local storage)")
	apiKey := flag.String("loyalty-api-key", os.Getenv("LOYALTY_API_KEY"), "Upstream loyalty API bearer token")
	providerKey := flag.String("provider-key", os.Getenv("PROVIDER_PUBLIC_KEY"), "Hex ed25519 public key for processor event verification (empty disables verification)")
	firehose := flag.String("firehose-endpoint", os.Getenv("FIREHOSE_ENDPOINT"), "Processor firehose WebSocket endpoint (empty disables the stream)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	st, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Timeline sources: local storage by default, upstream fetchers when
	// an API URL is configured.
	sourceMode := "storage"
	sources := timeline.StoreSources(st.ledger, st.redemptions, st.referrals)
	if *apiURL != "" {
		sourceMode = "upstream"
		opts := []upstream.ClientOption{}
		if *apiKey != "" {
			opts = append(opts, upstream.WithAPIKey(*apiKey))
		}
		sources = upstream.NewSources(upstream.NewClient(*apiURL, opts...))
		logger.Printf("Timeline sources: upstream API at %s", *apiURL)
	}

	timelineSvc := timeline.New(timeline.Options{
		Sources: sources,
		Logger:  log.New(os.Stdout, "[timeline] ", log.LstdFlags|log.Lshortfile),
	})

	// Processor intake, optionally with signature verification.
	var verifier *processor.Verifier
	if *providerKey != "" {
		verifier, err = processor.NewVerifier(*providerKey)
		if err != nil {
			logger.Fatalf("Invalid provider key: %v", err)
		}
	} else {
		logger.Println("Warning: no --provider-key, processor events are NOT verified")
	}
	intake := processor.NewIntake(processor.IntakeOptions{
		Verifier: verifier,
		Archive:  st.archive,
		Logger:   log.New(os.Stdout, "[processor] ", log.LstdFlags|log.Lshortfile),
	})

	storageMode := "postgres+clickhouse"
	if *useMemory {
		storageMode = "memory"
	}

	server := &Server{
		timeline:    timelineSvc,
		intake:      intake,
		stores:      st,
		logger:      logger,
		started:     time.Now(),
		storageMode: storageMode,
		sourceMode:  sourceMode,
	}

	// Optional firehose stream feeding the same intake.
	if *firehose != "" {
		stream, err := processor.NewStream(ctx, processor.StreamOptions{
			Endpoint: *firehose,
			Intake:   intake,
		})
		if err != nil {
			logger.Fatalf("Failed to connect to firehose: %v", err)
		}
		defer stream.Close()
		logger.Printf("Consuming processor firehose at %s", *firehose)
	}

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server.routes(),
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	logger.Printf("Listening on %s (storage=%s, sources=%s)", *addr, storageMode, sourceMode)
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		done <- err
		logger.Fatalf("Server error: %v", err)
	}

	done <- nil
	logger.Println("Shutdown complete")
}

// createStores creates the storage layer for the configured mode.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *log.Logger) (*stores, func(), error) {
	if useMemory {
		st := &stores{
			ledger:      memory.NewLedgerStore(),
			redemptions: memory.NewRedemptionStore(),
			referrals:   memory.NewReferralStore(),
			archive:     memory.NewProcessorEventStore(),
		}
		return st, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	st := &stores{
		ledger:      pgstore.NewLedgerStore(pool),
		redemptions: pgstore.NewRedemptionStore(pool),
		referrals:   pgstore.NewReferralStore(pool),
	}

	// Event archive lives in ClickHouse; without a DSN, fall back to an
	// in-memory archive so the timeline API still runs.
	cleanup := func() { pool.Close() }
	if clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		st.archive = chstore.NewProcessorEventStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	} else {
		logger.Println("Warning: no --clickhouse-dsn, archiving processor events in memory")
		st.archive = memory.NewProcessorEventStore()
	}

	return st, cleanup, nil
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/customers/{id}/timeline", s.handleTimeline)
	mux.HandleFunc("GET /v1/customers/{id}/balance", s.handleBalance)
	mux.HandleFunc("POST /v1/customers/{id}/referrals", s.handleCreateReferral)
	mux.HandleFunc("GET /v1/referrals/{code}", s.handleReferralLookup)
	mux.HandleFunc("POST /webhooks/processor", s.handleProcessorWebhook)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	return mux
}

// handleTimeline serves one merged timeline page.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	customerID := r.PathValue("id")
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	page, err := s.timeline.FetchTimeline(r.Context(), timeline.FetchOptions{
		CustomerID:  customerID,
		Limit:       limit,
		Filters:     filtersFromQuery(query),
		CursorToken: query.Get("cursor"),
	})
	if err != nil {
		observability.RecordTimelineFetch("error", time.Since(start).Seconds(), 0)
		s.logger.Printf("Timeline fetch failed for %s: %v", customerID, err)
		writeError(w, http.StatusBadGateway, "timeline temporarily unavailable")
		return
	}

	s.mu.Lock()
	s.timelineRequests++
	s.mu.Unlock()
	observability.RecordTimelineFetch("ok", time.Since(start).Seconds(), len(page.Entries))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

// filtersFromQuery translates query params into timeline filters. Absent
// params mean "everything"; include_* params toggle sources and the
// *_types/*_statuses params narrow them.
func filtersFromQuery(query map[string][]string) *timeline.Filters {
	get := func(key string) string {
		if vals, ok := query[key]; ok && len(vals) > 0 {
			return vals[0]
		}
		return ""
	}
	has := func(keys ...string) bool {
		for _, k := range keys {
			if _, ok := query[k]; ok {
				return true
			}
		}
		return false
	}

	if !has("include_ledger", "include_redemptions", "include_referrals",
		"ledger_types", "redemption_statuses", "referral_statuses") {
		return nil
	}

	include := func(key string) bool {
		return get(key) != "false"
	}

	f := &timeline.Filters{
		IncludeLedger:      include("include_ledger"),
		IncludeRedemptions: include("include_redemptions"),
		IncludeReferrals:   include("include_referrals"),
	}
	for _, v := range splitParam(get("ledger_types")) {
		f.LedgerTypes = append(f.LedgerTypes, domain.LedgerEntryType(v))
	}
	for _, v := range splitParam(get("redemption_statuses")) {
		f.RedemptionStatuses = append(f.RedemptionStatuses, domain.RedemptionStatus(v))
	}
	for _, v := range splitParam(get("referral_statuses")) {
		f.ReferralStatuses = append(f.ReferralStatuses, domain.ReferralStatus(v))
	}
	return f
}

// splitParam splits a comma-separated query value.
func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// handleBalance returns the customer's current point balance.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("id")

	balance, err := s.stores.ledger.PointsBalance(r.Context(), customerID)
	if err != nil {
		s.logger.Printf("Balance query failed for %s: %v", customerID, err)
		writeError(w, http.StatusInternalServerError, "balance unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"customer_id": customerID,
		"points":      balance,
	})
}

// CreateReferralRequest is the body for POST /v1/customers/{id}/referrals.
type CreateReferralRequest struct {
	InviteeEmail string `json:"invitee_email"`
	RewardPoints int64  `json:"reward_points"`
}

// handleCreateReferral issues a referral invite with a fresh short code.
// Code generation is deterministic per (customer, invitee, attempt); the
// attempt counter bumps past store-level code collisions.
func (s *Server) handleCreateReferral(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("id")

	var req CreateReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InviteeEmail == "" {
		writeError(w, http.StatusBadRequest, "invitee_email is required")
		return
	}

	var invite *domain.ReferralInvite
	for attempt := 0; attempt < 5; attempt++ {
		code := referral.NewCode(customerID, req.InviteeEmail, attempt)
		candidate := &domain.ReferralInvite{
			ID:           "inv-" + code,
			CustomerID:   customerID,
			Code:         code,
			InviteeEmail: req.InviteeEmail,
			Status:       domain.ReferralSent,
			RewardPoints: req.RewardPoints,
			CreatedAt:    time.Now().UnixMilli(),
		}

		err := s.stores.referrals.Insert(r.Context(), candidate)
		if err == nil {
			invite = candidate
			break
		}
		if errors.Is(err, storage.ErrDuplicateKey) {
			continue
		}
		s.logger.Printf("Referral insert failed for %s: %v", customerID, err)
		writeError(w, http.StatusInternalServerError, "referral store unavailable")
		return
	}
	if invite == nil {
		writeError(w, http.StatusConflict, "could not allocate a referral code")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(invite)
}

// handleReferralLookup resolves a short code to its invite.
func (s *Server) handleReferralLookup(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !referral.ValidCode(code) {
		writeError(w, http.StatusBadRequest, "malformed referral code")
		return
	}

	invite, err := s.stores.referrals.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown referral code")
			return
		}
		s.logger.Printf("Referral lookup failed for %s: %v", code, err)
		writeError(w, http.StatusInternalServerError, "referral store unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(invite)
}

// handleProcessorWebhook verifies and archives one processor event.
func (s *Server) handleProcessorWebhook(w http.ResponseWriter, r *http.Request) {
	var in processor.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed event")
		return
	}

	event, err := s.intake.Process(r.Context(), in, time.Now().UnixMilli())
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrBadSignature):
			writeError(w, http.StatusUnauthorized, "signature verification failed")
		case errors.Is(err, storage.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "provider and external_id are required")
		default:
			s.logger.Printf("Webhook intake failed: %v", err)
			writeError(w, http.StatusInternalServerError, "archive unavailable")
		}
		return
	}

	s.mu.Lock()
	s.webhookEvents++
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"id": event.ID})
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	StorageMode      string `json:"storage_mode"`
	SourceMode       string `json:"source_mode"`
	TimelineRequests int    `json:"timeline_requests"`
	WebhookEvents    int    `json:"webhook_events"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:           "running",
		Uptime:           time.Since(s.started).String(),
		StorageMode:      s.storageMode,
		SourceMode:       s.sourceMode,
		TimelineRequests: s.timelineRequests,
		WebhookEvents:    s.webhookEvents,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// envOr returns the env value or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

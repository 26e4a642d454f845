// Package main is the entry point for the ingestion API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/broadcast"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/classify"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/config"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/handler"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/llm"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/middleware"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/service"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/storage"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/logger"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting ingestion API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "ingestion-pipeline", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS. Fan-out is best effort, so a missing broker degrades
	// to a no-op publisher instead of failing startup.
	var natsClient *broadcast.Client
	var publisher broadcast.Publisher = broadcast.NopPublisher{}
	if cfg.NATSURL != "" {
		natsClient, err = broadcast.Connect(broadcast.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Warn("NATS unavailable, realtime fan-out disabled", zap.Error(err))
		} else {
			defer natsClient.Close()
			publisher = broadcast.NewNATSPublisher(natsClient, log)
		}
	}

	// Select the store: Postgres with a DSN, in-memory without one.
	var store storage.Store
	if cfg.DatabaseDSN != "" {
		pg, err := storage.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			log.Error("failed to connect to database", zap.Error(err))
			os.Exit(1)
		}
		store = pg
		log.Info("using postgres store")
	} else {
		store = storage.NewMemory()
		log.Warn("DATABASE_DSN not set, using in-memory store")
	}

	// Initialize LLM client
	var llmClient llm.Client
	switch {
	case cfg.DefaultLLM == string(llm.ProviderOpenAI) && cfg.OpenAIAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	case cfg.AnthropicAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderAnthropic, cfg.AnthropicAPIKey)
	case cfg.OpenAIAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	}
	if err != nil {
		log.Warn("failed to create LLM client, classification falls back", zap.Error(err))
		llmClient = nil
	}
	if llmClient == nil {
		log.Warn("no LLM API key configured, every message gets the fallback reply")
	}

	// Initialize services
	classifier := classify.NewLLMClassifier(llmClient, cfg.ClassifierTimeout, log)
	statSvc := service.NewStatService(store, publisher, log)
	caseSvc := service.NewCaseService(store, statSvc, publisher, log, cfg.DedupWindow, cfg.CaseMaxOpenAge)
	pipeline := service.NewPipeline(store, classifier, caseSvc, statSvc, publisher, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	webhookHandler := handler.NewWebhookHandler(pipeline, statSvc, log)
	notificationHandler := handler.NewNotificationHandler(store, log)
	caseHandler := handler.NewCaseHandler(store, caseSvc, log)
	statsHandler := handler.NewStatsHandler(store, log)
	botHandler := handler.NewBotHandler(store, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Platform webhooks authenticate with platform signatures upstream, not
	// operator JWTs.
	r.Post("/webhooks/{platform}/{botID}", webhookHandler.Receive)

	// Operator API with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Post("/{id}/read", notificationHandler.MarkRead)
		})

		r.Route("/cases", func(r chi.Router) {
			r.Get("/", caseHandler.List)
			r.Get("/{id}", caseHandler.Get)
			r.Get("/{id}/messages", caseHandler.Messages)
			r.Post("/{id}/status", caseHandler.UpdateStatus)
		})

		r.Route("/bots", func(r chi.Router) {
			r.Post("/", botHandler.Create)
			r.Get("/{id}", botHandler.Get)
		})

		r.Get("/stats/{botID}", statsHandler.Daily)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

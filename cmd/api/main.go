// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wpp-platform/customer-service/internal/config"
	"github.com/wpp-platform/customer-service/internal/handler"
	"github.com/wpp-platform/customer-service/internal/llm"
	"github.com/wpp-platform/customer-service/internal/middleware"
	natsclient "github.com/wpp-platform/customer-service/internal/nats"
	"github.com/wpp-platform/customer-service/internal/processing"
	"github.com/wpp-platform/customer-service/internal/repository"
	"github.com/wpp-platform/customer-service/internal/repository/memory"
	"github.com/wpp-platform/customer-service/internal/service"
	"github.com/wpp-platform/customer-service/internal/whatsapp"
	"github.com/wpp-platform/customer-service/pkg/logger"
	"github.com/wpp-platform/customer-service/pkg/tracing"
)

const serviceName = "wpp-customer-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("starting API server", zap.Int("port", cfg.Server.Port))

	ctx := context.Background()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	repos, closeStorage, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStorage()

	var publisher service.EventPublisher = service.NopPublisher{}
	var natsConn handler.ConnectionChecker
	if cfg.NATS.Enabled {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATS.URL,
			CAFile:   cfg.NATS.CAFile,
			CertFile: cfg.NATS.CertFile,
			KeyFile:  cfg.NATS.KeyFile,
			Token:    cfg.NATS.Token,
		}, log)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer natsClient.Close()

		events := natsclient.NewEventPublisher(natsClient)
		if err := events.EnsureStream(ctx); err != nil {
			return fmt.Errorf("ensure event stream: %w", err)
		}
		publisher = events
		natsConn = natsClient
	}

	processor, engine, err := newProcessor(cfg, log)
	if err != nil {
		return err
	}

	var sender service.Sender
	if cfg.WhatsApp.AccessToken != "" && cfg.WhatsApp.PhoneNumberID != "" {
		sender = whatsapp.NewClient(whatsapp.Config{
			BaseURL:       cfg.WhatsApp.APIBaseURL,
			AccessToken:   cfg.WhatsApp.AccessToken,
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			Timeout:       cfg.WhatsApp.Timeout,
		}, log)
	} else {
		log.Warn("whatsapp credentials missing, outbound delivery disabled")
	}

	// Services
	userSvc := service.NewUserService(repos.User, log)
	conversationSvc := service.NewConversationService(repos.Conversation, repos.Message, publisher, log)
	messageSvc := service.NewMessageService(repos, userSvc, conversationSvc, processor, sender, publisher, log)
	webhookSvc := service.NewWebhookService(messageSvc, conversationSvc, service.WebhookOptions{
		AutoReply:  cfg.WhatsApp.AutoReply && sender != nil,
		MarkAsRead: cfg.WhatsApp.MarkAsRead && sender != nil,
	}, log)
	analyticsSvc := service.NewAnalyticsService(repos.Stats)
	diagnosticsSvc := service.NewDiagnosticsService(processor, sender, engine, log)

	// Handlers
	healthHandler := handler.NewHealthHandler(repos.Health, natsConn)
	webhookHandler := handler.NewWebhookHandler(webhookSvc, cfg.WhatsApp.VerifyToken, cfg.WhatsApp.AppSecret, log)
	userHandler := handler.NewUserHandler(userSvc, log)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	messageHandler := handler.NewMessageHandler(messageSvc, log)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc, log)
	diagnosticsHandler := handler.NewDiagnosticsHandler(diagnosticsSvc, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Meta calls the webhook unauthenticated; the body signature protects it.
	r.With(middleware.IPRateLimit(cfg.RateLimit.WebhookRequests, cfg.RateLimit.Window)).
		Mount("/webhook", webhookHandler.Routes())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT.Secret))
		r.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
		r.Use(middleware.RequireJSON(1 << 20))

		r.Mount("/users", userHandler.Routes())
		r.Mount("/conversations", conversationHandler.Routes())
		r.Mount("/messages", messageHandler.Routes())

		admin := r.With()
		if cfg.JWT.AdminScope != "" {
			admin = r.With(middleware.RequireScope(cfg.JWT.AdminScope))
		}
		admin.Mount("/analytics", analyticsHandler.Routes())
		admin.Mount("/diagnostics", diagnosticsHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

// openStorage connects Postgres and Redis, or falls back to the in-memory
// store when no database is configured.
func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*repository.Repositories, func(), error) {
	if cfg.Database.DSN == "" {
		log.Warn("DATABASE_URL not set, using in-memory storage")
		return memory.New().Repositories(), func() {}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := repository.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	log.Info("connected to postgres", zap.Int32("max_conns", poolCfg.MaxConns))

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, deduplicating on the database only", zap.Error(err))
			rdb.Close()
			rdb = nil
		}
	}

	closeFn := func() {
		if rdb != nil {
			rdb.Close()
		}
		db.Close()
	}
	return repository.NewRepositories(db, rdb, cfg.Redis.DedupTTL, log), closeFn, nil
}

// newProcessor returns the LLM-backed processor when a provider is
// configured, else the keyword heuristics, along with the engine name.
func newProcessor(cfg *config.Config, log *logger.Logger) (processing.Service, string, error) {
	if cfg.LLM.Provider == "" {
		log.Info("using heuristic message processing")
		return processing.NewHeuristic(), "heuristic", nil
	}

	client, err := llm.NewClient(llm.Config{
		Provider: llm.Provider(cfg.LLM.Provider),
		APIKey:   cfg.LLMAPIKey(),
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, "", fmt.Errorf("create LLM client: %w", err)
	}

	log.Info("using LLM message processing", zap.String("provider", client.Name()))
	return processing.NewLLMService(client, processing.LLMConfig{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, log), client.Name() + ":" + cfg.LLM.Model, nil
}

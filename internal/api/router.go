package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/wanderio/concierge/internal/agent"
	"github.com/wanderio/concierge/internal/agent/gemini"
	"github.com/wanderio/concierge/internal/api/handler"
	custommiddleware "github.com/wanderio/concierge/internal/api/middleware"
	"github.com/wanderio/concierge/internal/channel"
	"github.com/wanderio/concierge/internal/config"
	"github.com/wanderio/concierge/internal/domain"
	"github.com/wanderio/concierge/internal/observability"
	"github.com/wanderio/concierge/internal/provider"
	"github.com/wanderio/concierge/internal/provider/booking"
	"github.com/wanderio/concierge/internal/provider/navigation"
	"github.com/wanderio/concierge/internal/provider/payment"
	"github.com/wanderio/concierge/internal/provider/weather"
	"github.com/wanderio/concierge/internal/provider/whatsapp"
	"github.com/wanderio/concierge/internal/repository/postgres"
	"github.com/wanderio/concierge/internal/repository/redis"
	"github.com/wanderio/concierge/internal/security"
	"github.com/wanderio/concierge/internal/session"
)

// NewRouter creates and configures the HTTP router. It fails when a
// required provider is missing credentials, so a misconfigured server
// refuses to start instead of failing every side-effecting turn.
func NewRouter(cfg *config.Config, db *postgres.DB, redisClient *redis.Client, metrics *observability.Metrics) (http.Handler, error) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(custommiddleware.RequestIDHeader)
	r.Use(custommiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.Server.MiddlewareTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize security components
	tokenManager := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenTTL)

	// Intent payloads carry contact details, so they are encrypted at rest
	// with a key derived from the configured secret.
	encryptionKey := []byte(cfg.Auth.JWTSecret)
	if len(encryptionKey) > 32 {
		encryptionKey = encryptionKey[:32]
	} else if len(encryptionKey) < 32 {
		padded := make([]byte, 32)
		copy(padded, encryptionKey)
		encryptionKey = padded
	}
	encryptor, _ := security.NewEncryptor(encryptionKey)

	// Initialize repositories; the store tolerates nil repos and falls
	// back to memory-only state.
	var (
		sessionRepo domain.SessionRepository
		turnRepo    domain.TurnRepository
	)
	if db != nil {
		sessionRepo = postgres.NewSessionRepository(db.Pool)
		turnRepo = postgres.NewTurnRepository(db.Pool, encryptor)
	}

	store := session.NewStore(session.Options{
		LockTimeout:      cfg.Agent.LockTimeout,
		InactivityWindow: cfg.Agent.InactivityWindow,
		DefaultAutonomy:  domain.AutonomyLevel(cfg.Agent.DefaultAutonomy),
		DefaultLanguage:  cfg.Agent.DefaultLanguage,
	}, sessionRepo, turnRepo)

	// Capability providers. Booking and payment are required; the rest
	// register only when configured and their intents degrade gracefully.
	providers := &provider.Registry{
		Booking: booking.NewClient(cfg.Providers.Booking.BaseURL, cfg.Providers.Booking.APIKey),
		Payment: payment.NewClient(cfg.Providers.Payment.BaseURL, cfg.Providers.Payment.KeyID, cfg.Providers.Payment.KeySecret),
	}
	if cfg.Providers.Weather.BaseURL != "" {
		providers.Weather = weather.NewClient(cfg.Providers.Weather.BaseURL, cfg.Providers.Weather.APIKey)
	}
	if cfg.Providers.Navigation.BaseURL != "" {
		providers.Navigation = navigation.NewClient(cfg.Providers.Navigation.BaseURL, cfg.Providers.Navigation.APIKey)
	}
	if cfg.Providers.WhatsApp.BaseURL != "" {
		providers.Transport = whatsapp.NewTransport(cfg.Providers.WhatsApp.BaseURL, cfg.Providers.WhatsApp.Token)
	} else {
		log.Warn().Msg("whatsapp transport not configured, webhook channel disabled")
	}

	// One shared readiness check at construction; the /ready handler
	// re-runs the same check for the load balancer.
	if err := providers.Readiness(); err != nil {
		return nil, fmt.Errorf("provider registry not ready: %w", err)
	}

	// Intent resolver: deterministic rules by default, Gemini on top when
	// selected and configured.
	var resolver agent.Resolver = agent.NewRuleResolver()
	if cfg.Resolver.Mode == "gemini" {
		if cfg.Resolver.Gemini.APIKey != "" {
			log.Info().Str("model", cfg.Resolver.Gemini.Model).Msg("using gemini intent resolver")
			resolver = gemini.NewResolver(cfg.Resolver.Gemini.APIKey, cfg.Resolver.Gemini.Model, resolver)
		} else {
			log.Warn().Msg("gemini resolver selected but GEMINI_API_KEY is empty, using rules")
		}
	}

	// Rate limiter and idempotency cache
	var (
		rateLimiter *redis.RateLimiter
		idemCache   agent.IdempotencyCache
	)
	if redisClient != nil {
		rateLimiter = redis.NewRateLimiter(
			redisClient,
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		)
		idemCache = redis.NewIdempotencyStore(redisClient)
	}

	dispatcher := agent.NewDispatcher(providers, idemCache, agent.DispatcherOptions{
		MaxAttempts: cfg.Agent.MaxAttempts,
		BackoffBase: cfg.Agent.BackoffBase,
		BackoffCap:  cfg.Agent.BackoffCap,
		Currency:    cfg.Providers.Payment.Currency,
	})

	orchestrator := agent.NewOrchestrator(store, resolver, dispatcher, agent.NewComposer(), metrics, agent.Options{
		TurnTimeout: cfg.Agent.TurnTimeout,
	})

	waAdapter := channel.NewWhatsAppAdapter(providers.Transport, metrics, channel.Options{
		DefaultCountryCode: cfg.Providers.WhatsApp.DefaultCountryCode,
		MaxBodyLength:      cfg.Providers.WhatsApp.MaxBodyLength,
	})

	// Initialize handlers
	messageHandler := handler.NewMessageHandler(orchestrator, tokenManager)
	sessionHandler := handler.NewSessionHandler(orchestrator)
	webhookHandler := handler.NewWebhookHandler(orchestrator, waAdapter, cfg.Providers.WhatsApp.DefaultCountryCode, cfg.Agent.TurnTimeout+15*time.Second)

	sessionAuth := custommiddleware.NewSessionAuth(tokenManager)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(db, providers))
		r.Get("/capabilities", handler.ListCapabilities(providers))

		// Channel entrypoints (public, rate limited by remote address)
		r.Group(func(r chi.Router) {
			if rateLimiter != nil {
				r.Use(custommiddleware.NewRateLimitMiddleware(rateLimiter).Limit)
			}
			r.Post("/messages", messageHandler.Send)
			r.Post("/webhooks/whatsapp", webhookHandler.Receive)
		})

		// Session routes require a token bound to that session
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Use(sessionAuth.Authenticate)

			r.Get("/", sessionHandler.Get)
			r.Get("/turns", sessionHandler.ListTurns)
			r.Patch("/autonomy", sessionHandler.SetAutonomy)
		})
	})

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	// Background session eviction runs for the router's lifetime.
	store.StartJanitor(context.Background(), cfg.Agent.JanitorInterval)

	return r, nil
}

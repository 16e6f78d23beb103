package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"shipwars/internal/game"
	"shipwars/internal/matchmaking"
	"shipwars/internal/payments"
	"shipwars/internal/store"
)

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Registry:   registry,
//	    Matchmaker: svc,
//	    Inventory:  store.NewMemInventory(nil),
//	    JWTSecret:  "test-secret",
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Registry exposes running matches (required)
	Registry *game.MatchRegistry

	// Matchmaker is the matchmaking service (required)
	Matchmaker *matchmaking.Service

	// Inventory backs the cosmetics endpoints (required)
	Inventory store.InventoryStore

	// JWTSecret verifies bearer tokens on protected routes (required)
	JWTSecret string

	// Stripe is the payment client; nil disables checkout
	Stripe *payments.StripeClient

	// Fulfiller completes verified purchases; nil disables the webhook route
	Fulfiller *payments.Fulfiller

	// WebhookSecret verifies Stripe-Signature headers
	WebhookSecret string

	// SocketHandler serves GET /ws when set
	SocketHandler *SocketHandler

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, allows any origin.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler dependencies for the router.
type routerHandlers struct {
	registry      *game.MatchRegistry
	matchmaker    *matchmaking.Service
	inventory     store.InventoryStore
	stripe        *payments.StripeClient
	fulfiller     *payments.Fulfiller
	webhookSecret string
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - it has no side effects:
//   - No goroutines are started (except the rate limiter cleanup)
//   - No network listeners are opened
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	// CORS configuration
	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		registry:      cfg.Registry,
		matchmaker:    cfg.Matchmaker,
		inventory:     cfg.Inventory,
		stripe:        cfg.Stripe,
		fulfiller:     cfg.Fulfiller,
		webhookSecret: cfg.WebhookSecret,
	}

	// Public routes
	r.Get("/health", h.handleHealth)
	if cfg.SocketHandler != nil {
		r.Get("/ws", cfg.SocketHandler.HandleWS)
	}
	if cfg.Fulfiller != nil {
		// Stripe authenticates with its signature header, not a JWT.
		r.Post("/payments/webhook", h.handleWebhook)
	}

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(cfg.JWTSecret))

		r.Post("/matchmaking/join", h.handleMatchmakingJoin)
		r.Get("/inventory", h.handleInventory)
		r.Post("/inventory/equip", h.handleEquip)
		r.Post("/payments/checkout", h.handleCheckout)
	})

	return r
}

// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all server and match settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	DebugPort       int // localhost-only metrics/pprof listener
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:            3000,
		DebugPort:       9090,
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigins:  []string{"*"},
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if p := getEnvInt("DEBUG_PORT", 0); p > 0 {
		cfg.DebugPort = p
	}
	if o := os.Getenv("ALLOWED_ORIGINS"); o != "" {
		cfg.AllowedOrigins = []string{o}
	}

	return cfg
}

// =============================================================================
// AUTH CONFIGURATION
// =============================================================================

// AuthConfig holds JWT verification settings.
type AuthConfig struct {
	JWTSecret string // HS256 signing secret shared with the auth provider
}

// AuthFromEnv returns auth configuration from the environment.
func AuthFromEnv() AuthConfig {
	return AuthConfig{
		JWTSecret: os.Getenv("JWT_SECRET"),
	}
}

// Validate reports whether the auth configuration is usable.
func (c AuthConfig) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// =============================================================================
// MATCH CONFIGURATION
// =============================================================================

// MatchConfig holds matchmaking and match lifecycle settings. Simulation
// constants (tick rate, ship stats, zone schedule) are compiled in; only
// operational knobs live here.
type MatchConfig struct {
	MinPlayers    int
	MaxPlayers    int
	CountdownSecs int
	MaxQueueWait  time.Duration
}

// DefaultMatch returns the default match configuration.
func DefaultMatch() MatchConfig {
	return MatchConfig{
		MinPlayers:    1,
		MaxPlayers:    20,
		CountdownSecs: 5,
		MaxQueueWait:  5 * time.Second,
	}
}

// MatchFromEnv returns match configuration with environment variable overrides.
func MatchFromEnv() MatchConfig {
	cfg := DefaultMatch()

	if v := getEnvInt("MATCH_MIN_PLAYERS", 0); v > 0 {
		cfg.MinPlayers = v
	}
	if v := getEnvInt("MATCH_MAX_PLAYERS", 0); v > 0 {
		cfg.MaxPlayers = v
	}
	if v := getEnvInt("MATCH_COUNTDOWN_SECS", 0); v > 0 {
		cfg.CountdownSecs = v
	}
	if v := getEnvInt("MATCH_MAX_QUEUE_WAIT_SECS", 0); v > 0 {
		cfg.MaxQueueWait = time.Duration(v) * time.Second
	}

	return cfg
}

// =============================================================================
// SUPABASE CONFIGURATION
// =============================================================================

// SupabaseConfig holds the Supabase REST endpoint settings used for
// profiles and inventory persistence.
type SupabaseConfig struct {
	URL            string // project URL, e.g. https://xyz.supabase.co
	ServiceRoleKey string
}

// SupabaseFromEnv returns Supabase configuration from the environment.
func SupabaseFromEnv() SupabaseConfig {
	return SupabaseConfig{
		URL:            os.Getenv("SUPABASE_URL"),
		ServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
	}
}

// Enabled reports whether persistence is configured. Without it the server
// runs with in-memory profiles only.
func (c SupabaseConfig) Enabled() bool {
	return c.URL != "" && c.ServiceRoleKey != ""
}

// =============================================================================
// STRIPE CONFIGURATION
// =============================================================================

// StripeConfig holds the payment integration settings.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// StripeFromEnv returns Stripe configuration from the environment.
func StripeFromEnv() StripeConfig {
	return StripeConfig{
		SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		SuccessURL:    getEnvStr("STRIPE_SUCCESS_URL", "https://shipwars.example/shop/success"),
		CancelURL:     getEnvStr("STRIPE_CANCEL_URL", "https://shipwars.example/shop"),
	}
}

// Enabled reports whether payments are configured.
func (c StripeConfig) Enabled() bool {
	return c.SecretKey != "" && c.WebhookSecret != ""
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server   ServerConfig
	Auth     AuthConfig
	Match    MatchConfig
	Supabase SupabaseConfig
	Stripe   StripeConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server:   ServerFromEnv(),
		Auth:     AuthFromEnv(),
		Match:    MatchFromEnv(),
		Supabase: SupabaseFromEnv(),
		Stripe:   StripeFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"shipwars/internal/api"
	"shipwars/internal/clock"
	"shipwars/internal/config"
	"shipwars/internal/game"
	"shipwars/internal/matchmaking"
	"shipwars/internal/payments"
	"shipwars/internal/store"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	} else {
		log.Println("✅ Loaded environment from .env")
	}

	log.Println("🚢 ================================")
	log.Println("🚢  SHIPWARS - BATTLE ROYALE SERVER")
	log.Println("🚢 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	cfg := config.Load()
	if err := cfg.Auth.Validate(); err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}
	clock.InitServerTime()

	log.Printf("⚙️ Simulation: %d TPS, snapshots every %d ticks",
		clock.SimulationTPS, clock.SnapshotInterval())
	log.Printf("⚙️ Matches: %d-%d players, %ds countdown, %s max queue wait",
		cfg.Match.MinPlayers, cfg.Match.MaxPlayers, cfg.Match.CountdownSecs, cfg.Match.MaxQueueWait)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistence: Supabase when configured, in-memory otherwise.
	var (
		profiles  store.ProfileStore
		inventory store.InventoryStore
	)
	if cfg.Supabase.Enabled() {
		client := store.NewClient(cfg.Supabase)
		profiles = store.NewSupabaseProfiles(client)
		inventory = store.NewSupabaseInventory(client)
		log.Println("🗄️ Supabase persistence enabled")
	} else {
		profiles = store.NewMemProfiles()
		inventory = store.NewMemInventory(defaultCatalog())
		log.Println("⚠️ Supabase not configured, using in-memory stores")
	}

	// Payments: optional.
	var (
		stripe    *payments.StripeClient
		fulfiller *payments.Fulfiller
	)
	if cfg.Stripe.Enabled() {
		stripe = payments.NewStripeClient(cfg.Stripe)
		fulfiller = payments.NewFulfiller(inventory)
		log.Println("💳 Stripe payments enabled")
	} else {
		log.Println("⚠️ Stripe not configured, payments disabled")
	}

	// Match simulation and matchmaking.
	registry := game.NewMatchRegistry()

	matchCfg := game.DefaultConfig()
	matchCfg.MinPlayers = cfg.Match.MinPlayers
	matchCfg.MaxPlayers = cfg.Match.MaxPlayers
	matchCfg.CountdownSecs = cfg.Match.CountdownSecs
	matchCfg.TickHook = api.RecordTick

	opts := matchmaking.DefaultOptions()
	opts.Match = matchCfg
	opts.MaxQueueWait = cfg.Match.MaxQueueWait

	matchmaker := matchmaking.NewService(registry, opts)
	go matchmaker.Run(ctx)

	// Observability (localhost only).
	obsCfg := api.DefaultObservabilityConfig()
	obsCfg.ListenAddr = fmt.Sprintf("127.0.0.1:%d", cfg.Server.DebugPort)
	api.StartDebugServer(obsCfg)
	api.StartStatsLoop(ctx, registry, matchmaker.QueueLen)

	// HTTP + WebSocket server.
	socket := api.NewSocketHandler(matchmaker, profiles, inventory,
		cfg.Auth.JWTSecret, cfg.Server.AllowedOrigins)

	server := api.NewServer(api.RouterConfig{
		Registry:      registry,
		Matchmaker:    matchmaker,
		Inventory:     inventory,
		JWTSecret:     cfg.Auth.JWTSecret,
		Stripe:        stripe,
		Fulfiller:     fulfiller,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		SocketHandler: socket,
		CORSOrigins:   cfg.Server.AllowedOrigins,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("❌ Server error: %v", err)
		}
	case <-ctx.Done():
		log.Println("🛑 Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Shutdown error: %v", err)
	}
	log.Println("👋 Server stopped")
}

// defaultCatalog seeds the in-memory shop so local development has items to
// buy and equip. Fixed ids keep client test fixtures stable.
func defaultCatalog() []store.Item {
	return []store.Item{
		{
			ID:            uuid.MustParse("11111111-0000-0000-0000-000000000001"),
			Name:          "Corsair Flag",
			Kind:          "flag_skin",
			StripePriceID: "price_corsair_flag",
		},
		{
			ID:            uuid.MustParse("11111111-0000-0000-0000-000000000002"),
			Name:          "Kraken Flag",
			Kind:          "flag_skin",
			StripePriceID: "price_kraken_flag",
		},
		{
			ID:            uuid.MustParse("11111111-0000-0000-0000-000000000003"),
			Name:          "Gilded Hull",
			Kind:          "ship_skin",
			StripePriceID: "price_gilded_hull",
		},
	}
}

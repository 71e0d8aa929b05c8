package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlebattle/internal/config"
	"github.com/cory-johannsen/idlebattle/internal/frontend/handlers"
	"github.com/cory-johannsen/idlebattle/internal/frontend/ws"
	"github.com/cory-johannsen/idlebattle/internal/game/dice"
	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
	"github.com/cory-johannsen/idlebattle/internal/game/monster"
	"github.com/cory-johannsen/idlebattle/internal/game/world"
	"github.com/cory-johannsen/idlebattle/internal/gameserver"
	"github.com/cory-johannsen/idlebattle/internal/observability"
	"github.com/cory-johannsen/idlebattle/internal/pkg/clock"
	"github.com/cory-johannsen/idlebattle/internal/server"
)

const healthProbeInterval = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the battle HTTP API, websocket gateway, and health service",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	start := time.Now()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting battle server",
		zap.String("http_addr", cfg.Server.Addr()),
		zap.String("health_addr", cfg.Server.HealthAddr()),
		zap.String("storage", cfg.Storage.Backend),
	)

	// Static content
	contentStart := time.Now()
	maps, err := world.LoadRegistry(cfg.Content.MapsDir)
	if err != nil {
		return fmt.Errorf("loading maps: %w", err)
	}
	templates, err := monster.LoadRegistry(cfg.Content.MonstersDir)
	if err != nil {
		return fmt.Errorf("loading monsters: %w", err)
	}
	items, err := inventory.LoadRegistry(cfg.Content.ItemsDir)
	if err != nil {
		return fmt.Errorf("loading items: %w", err)
	}
	logger.Info("content loaded",
		zap.Int("maps", len(maps.IDs())),
		zap.Int("monsters", templates.Len()),
		zap.Int("items", items.Len()),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	clk := clock.New()
	src := dice.NewCryptoSource()
	roller := dice.NewLoggedRoller(src, logger)

	adapter := gameserver.NewCombatantAdapter(items, cfg.Battle.DeathPenaltyPercent)
	rewards := gameserver.NewRewardService(items, templates, roller, cfg.Battle.InventoryCapacity, logger)
	persist := gameserver.NewPersister(be.store, adapter, rewards, cfg.Battle.PersistTimeout, logger)
	rooms := gameserver.NewRoomService(be.store, adapter, monster.NewSpawner(maps, templates, src), src, clk,
		gameserver.RoomSettings{
			TurnDuration: cfg.Battle.TurnDuration,
			EscapeChance: cfg.Battle.EscapeChance,
		}, logger)

	// The hub needs the handler to attach joins under the room lock, and the
	// handler needs the hub to broadcast; the forwarding func breaks the cycle.
	var hub *ws.Hub
	battles := gameserver.NewBattleHandler(rooms, rewards, persist,
		gameserver.BroadcastFunc(func(roomID string, e gameserver.Event) { hub.Broadcast(roomID, e) }),
		clk, cfg.Battle.DeadlineSlack, logger)

	auth := handlers.NewAuthenticator(cfg.Auth.JWTSecret)
	hub = ws.NewHub(cfg.Websocket, auth, handlers.TokenFromRequest, battles, logger)

	mux := http.NewServeMux()
	handlers.NewAPI(battles, auth, be.health, logger).Register(mux)
	mux.Handle("GET /ws/battle", hub)

	janitor := gameserver.NewJanitor(rooms, clk, cfg.Battle.FinishedRoomTTL, cfg.Battle.SweepInterval, logger)

	stopBattles := make(chan struct{})
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("battles", &server.FuncService{
		StartFn: func() error { <-stopBattles; return nil },
		StopFn: func() {
			battles.Stop()
			hub.Close()
			close(stopBattles)
		},
	})
	lifecycle.Add("janitor", janitor)
	lifecycle.Add("health", server.NewHealthServer(cfg.Server.HealthAddr(), server.Check(be.health), healthProbeInterval, logger))
	lifecycle.Add("http", server.NewHTTPService(cfg.Server.Addr(), mux, cfg.Server.ShutdownTimeout, logger))

	logger.Info("battle server ready", zap.Duration("startup", time.Since(start)))
	return lifecycle.Run(ctx)
}

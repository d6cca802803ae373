package main

import (
	"context"
	"net/rpc"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spinhall/casino-server/auth"
	"github.com/spinhall/casino-server/broadcast"
	"github.com/spinhall/casino-server/config"
	"github.com/spinhall/casino-server/logger"
	"github.com/spinhall/casino-server/monitor"
	"github.com/spinhall/casino-server/persistence"
	"github.com/spinhall/casino-server/rng"
	"github.com/spinhall/casino-server/room"
	casinorpc "github.com/spinhall/casino-server/rpc"
	"github.com/spinhall/casino-server/server"
	"github.com/spinhall/casino-server/services"
	"github.com/spinhall/casino-server/session"
	"github.com/spinhall/casino-server/timer"
	"github.com/spinhall/casino-server/wallet"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	db, err := persistence.NewGormPostgreSQL(
		cfg.Database.Postgres.Host,
		cfg.Database.Postgres.Port,
		cfg.Database.Postgres.User,
		cfg.Database.Postgres.Password,
		cfg.Database.Postgres.DBName,
	)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")

	// Redis backs the recent-outcome cache
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address})

	// NATS carries round and big-win events to the analytics side
	notifier, err := services.NewNATSNotifier(cfg.NATS.URL)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to NATS: %v", err)
	}

	history := services.NewHistoryWriter(db, notifier, rdb)

	// Wallet service is authoritative for all money movements
	walletGateway, err := wallet.NewGRPCGateway(cfg.Wallet.Address)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to wallet service: %v", err)
	}

	mon := monitor.NewMonitor("casino")
	mon.StartServer(cfg.Server.MonitorAddress)

	sessions := session.NewManager()
	rooms := room.NewManager(cfg.Game, room.Deps{
		Broadcaster: broadcast.NewRegistryBroadcaster(sessions),
		Wallet:      walletGateway,
		History:     history,
		Rand:        rng.NewTimeSeeded(),
		Monitor:     mon,
	})

	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret)
	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, verifier, sessions, rooms, mon)

	// Admin RPC exposes round history lookups
	rpcServer, err := casinorpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	rpc.Register(casinorpc.NewHistoryService(db))
	go rpcServer.Start()

	// Periodic jobs: connection liveness sweep and gauge resync
	timers := timer.NewManager()
	timers.Schedule(30*time.Second, 30*time.Second, gameServer.SweepSessions)
	timers.Schedule(10*time.Second, 10*time.Second, func() {
		mon.SetActiveRooms(rooms.Count())
	})

	go func() {
		logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
		if err := gameServer.Start(); err != nil {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down...")
	timers.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gameServer.Shutdown(ctx); err != nil {
		logger.Log.Errorf("Shutdown error: %v", err)
	}
	rpcServer.Stop()
	notifier.Close()
	walletGateway.Close()
	rdb.Close()
	db.Close()
}

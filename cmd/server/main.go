package main

import (
	"context"
	"log"
	"time"

	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/config"
	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/database"
	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/engine"
	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/handlers"
	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/ledger"
	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/services"
	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/store"
	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	db := database.Connect(cfg)
	database.AutoMigrate(db)

	sessionStore := store.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := sessionStore.Ping(ctx); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	cancel()
	log.Println("redis connected")

	gate, err := ledger.Dial(cfg.ChainRPCURL, cfg.ServerPrivateKey, cfg.ContractAddress, cfg.EntryFee, cfg.ChainID)
	if err != nil {
		log.Fatalf("failed to connect to chain: %v", err)
	}

	queue := services.NewMatchmaking(time.Duration(cfg.QueueTTLSeconds) * time.Second)
	queue.Start(30 * time.Second)
	defer queue.Stop()

	payouts := services.NewPayoutService(db)

	eng := engine.New(engine.Deps{
		Auth:          services.NewAuthService(cfg.JWTSecret),
		Prompts:       services.NewPromptService(),
		Queue:         queue,
		Registry:      ws.NewRegistry(),
		Hub:           ws.NewHub(),
		Store:         sessionStore,
		Gate:          gate,
		Payouts:       payouts,
		Capacity:      cfg.MaxPlayersPerGame,
		Duration:      time.Duration(cfg.GameDurationSeconds) * time.Second,
		GraceDelay:    time.Duration(cfg.GraceDelaySeconds) * time.Second,
		PayoutRetries: cfg.PayoutRetries,
	})

	wsHandler := handlers.NewWSHandler(eng)
	sessionHandler := handlers.NewSessionHandler(eng, payouts)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/health", handlers.Health)
	r.GET("/ws", wsHandler.HandleWebSocket)

	api := r.Group("/api/v1")
	{
		api.GET("/sessions", sessionHandler.ListSessions)
		api.GET("/payouts/pending", sessionHandler.ListPendingPayouts)
	}

	log.Printf("server starting on :%s", cfg.ServerPort)
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

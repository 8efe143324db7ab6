package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinova-system/config"
	"clinova-system/internal/database"
	"clinova-system/internal/ledger/commission"
	"clinova-system/internal/ledger/handler"
	"clinova-system/internal/ledger/inventory"
	"clinova-system/internal/ledger/middleware"
	"clinova-system/internal/ledger/settlement"
	"clinova-system/internal/logger"
)

func main() {
	cfg := config.LoadConfig()

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, "ledger")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.MigrateLedgerDB(db); err != nil {
		zlog.Fatal("Failed to migrate database", zap.Error(err))
	}

	redisClient, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		zlog.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	commissionEngine := commission.NewEngine(db, redisClient, zlog)
	inventoryLedger := inventory.NewLedger(db, redisClient, zlog)
	settler := settlement.NewSettler(db, commissionEngine, inventoryLedger, zlog, cfg.DB.TxTimeout)

	rateLimit, err := middleware.RateLimit("300-M")
	if err != nil {
		zlog.Fatal("Failed to build rate limiter", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	api := r.Group("/internal/v1")
	api.Use(rateLimit)
	handler.New(settler, commissionEngine, inventoryLedger, zlog).Register(api)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zlog.Info("Starting ledger server", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down ledger server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("Forced shutdown", zap.Error(err))
	}
}

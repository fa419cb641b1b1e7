package main

import (
	"log"
	"time"

	"invoice-sync-backend/internal/config"
	"invoice-sync-backend/internal/logging"
	"invoice-sync-backend/internal/models"
	"invoice-sync-backend/internal/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&models.TokenRecord{},
		&models.SyncBatch{},
		&models.RowOutcome{},
	); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if err := routes.RegisterRoutes(r, db, cfg, logger); err != nil {
		logger.Fatal("failed to register routes", zap.Error(err))
	}

	logger.Info("server starting", zap.String("addr", cfg.ListenAddr))
	if err := r.Run(cfg.ListenAddr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

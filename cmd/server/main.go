package main

import (
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/nestscore/nest-score-go/internal/api"
	"github.com/nestscore/nest-score-go/internal/cache"
	"github.com/nestscore/nest-score-go/internal/config"
	"github.com/nestscore/nest-score-go/internal/database"
	"github.com/nestscore/nest-score-go/internal/geo"
	"github.com/nestscore/nest-score-go/internal/handler"
	"github.com/nestscore/nest-score-go/internal/logger"
	"github.com/nestscore/nest-score-go/internal/repository"
	"github.com/nestscore/nest-score-go/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer zlog.Sync()

	db, err := database.Open(database.Config{Path: cfg.DBPath})
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	endpoints := cfg.OverpassEndpoints
	if len(endpoints) == 0 {
		endpoints = geo.DefaultOverpassEndpoints
	}
	openMap := geo.NewOpenMapAdapter(endpoints, cfg.OverpassTimeout, zlog)

	commercial := geo.NewCommercialAdapter(cfg.CommercialAPIKey, cfg.CommercialBaseURL, 15*time.Second, zlog)

	var primary geo.OpenMapSource = openMap
	if cfg.CommercialPrimary && commercial.Available() {
		zlog.Info("using commercial places as the primary source")
		primary = commercial
	}

	detailsCache := cache.NewDetailsCache(db, zlog)
	provider := geo.NewHybridProvider(primary, commercial, detailsCache, zlog)

	analysisRepo := repository.NewAnalysisRepository(db)
	analysisService := service.NewAnalysisService(
		provider,
		analysisRepo,
		cfg.AnalysisTTL,
		cfg.EnableFallback,
		cfg.EnableEnrichment,
		zlog,
	)
	analysisHandler := handler.NewAnalysisHandler(analysisService)

	// Periodic cleanup of expired analyses and cached place details.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := analysisService.CleanupExpired(); err != nil {
				zlog.Warn("failed to clean up expired analyses", zap.Error(err))
			} else if n > 0 {
				zlog.Info("removed expired analyses", zap.Int64("count", n))
			}
			if n, err := detailsCache.PruneExpired(); err != nil {
				zlog.Warn("failed to prune place details cache", zap.Error(err))
			} else if n > 0 {
				zlog.Info("pruned expired place details", zap.Int64("count", n))
			}
		}
	}()

	router := api.SetupRouter(cfg, zlog, analysisHandler)

	zlog.Info("server starting", zap.String("addr", cfg.Port))
	if err := router.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

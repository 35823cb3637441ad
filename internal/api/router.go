package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nestscore/nest-score-go/internal/config"
	"github.com/nestscore/nest-score-go/internal/handler"
	"github.com/nestscore/nest-score-go/internal/middleware"
)

// SetupRouter wires middleware and routes
func SetupRouter(cfg *config.Config, logger *zap.Logger, analysisHandler *handler.AnalysisHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "NestScore API is running",
		})
	})

	profileHandler := handler.NewProfileHandler()

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	{
		profiles := api.Group("/profiles")
		{
			profiles.GET("", profileHandler.List)
			profiles.GET("/:key", profileHandler.Get)
		}

		analyses := api.Group("/analyses")
		{
			analyses.GET("", analysisHandler.AnalyzeQuery)
			analyses.GET("/:id", analysisHandler.Get)

			// Mutating operations persist snapshots, keep them authenticated.
			authed := analyses.Group("")
			authed.Use(middleware.JWTAuth(cfg.JWTSecret))
			{
				authed.POST("", analysisHandler.Analyze)
				authed.POST("/rescore", analysisHandler.Rescore)
			}
		}
	}

	return r
}

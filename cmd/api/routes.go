package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/app"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/config"
	_ "github.com/stvowns/portfolio-tracker-starter-sub001/internal/docs" // Import swagger docs
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/handlers"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/middleware"
)

// newRouter mounts every route of the API on a fresh gin engine.
func newRouter(appConfig *config.Config, a *app.App) *gin.Engine {
	priceHandler := handlers.NewPriceHandler(a.Prices, a.SyncLogs, a.Audit)
	tickerHandler := handlers.NewTickerHandler(a.Tickers, a.Audit)
	portfolioHandler := handlers.NewPortfolioHandler(a.Assets, a.Prices, a.Audit)

	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	prices := protected.Group("/prices")
	prices.GET("/latest", priceHandler.GetLatestPrice)
	prices.POST("/sync", priceHandler.SyncPrices)
	prices.GET("/sync/status", priceHandler.GetSyncStatus)
	prices.POST("/assets/:id/sync", priceHandler.SyncAssetPrice)

	tickers := protected.Group("/tickers")
	tickers.GET("/search", tickerHandler.SearchTickers)
	tickers.POST("/sync", tickerHandler.SyncTickers)
	tickers.GET("/stats", tickerHandler.GetTickerStats)

	portfolio := protected.Group("/portfolio")
	portfolio.POST("/sync-prices", portfolioHandler.SyncPrices)
	portfolio.POST("/assets", portfolioHandler.CreateAsset)
	portfolio.GET("/assets", portfolioHandler.GetAssets)
	portfolio.GET("/assets/:id", portfolioHandler.GetAsset)
	portfolio.DELETE("/assets/:id", portfolioHandler.DeleteAsset)
	portfolio.PUT("/assets/:id/price", portfolioHandler.SetManualPrice)
	portfolio.POST("/assets/:id/transactions", portfolioHandler.AddTransaction)
	portfolio.PUT("/transactions/:id", portfolioHandler.UpdateTransaction)

	// Pipeline routes for cron callers
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(appConfig.PipelineAPIKey))
	pipeline.POST("/prices/sync", priceHandler.PipelineSyncPrices)
	pipeline.POST("/tickers/sync", tickerHandler.PipelineSyncTickers)

	return router
}

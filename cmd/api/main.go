package main

import (
	"fmt"
	"os"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/app"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/config"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/database"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/logger"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/validator"
)

// @title           Portfolio Tracker API
// @version         1.0
// @description     Portfolio tracking with market price sync and a searchable ticker directory.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey PipelineAPIKey
// @in header
// @name X-API-Key
// @description Shared key for cron callers.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	// Services and engines
	a := app.New(appConfig, dbManager.DB(), app.Options{})

	router := newRouter(appConfig, a)

	log.Infof("Starting portfolio tracker server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}

package main

import (
	"log"

	"codebattle/config"
	"codebattle/handlers"
	"codebattle/logger"
	"codebattle/middleware"
	"codebattle/models"
	"codebattle/routes"
	"codebattle/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	zlog, err := logger.Init()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer zlog.Sync()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database models
	err = db.AutoMigrate(
		&models.User{},
		&models.Problem{},
		&models.TestCase{},
		&models.Game{},
		&models.GamePlayer{},
		&models.Match{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	// Initialize services
	authService := services.NewAuthService(db, cfg.JWTSecret)
	problemService := services.NewProblemService(db)
	ratingService := services.NewRatingService(db)
	gameService := services.NewGameService(db, redisClient, ratingService, zlog)
	presenceService := services.NewPresenceService(redisClient)

	// Initialize WebSocket hub
	hub := services.NewHub(gameService, presenceService, zlog)
	go hub.Run()

	// Start the stale-game sweep
	cleaner := services.NewCleaner(db, zlog)
	cleaner.Start()
	defer cleaner.Stop()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	problemHandler := handlers.NewProblemHandler(problemService)
	gameHandler := handlers.NewGameHandler(gameService, hub)

	// Setup Gin router
	router := gin.New()
	router.Use(logger.RequestLogger(zlog), gin.Recovery())
	router.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(router, authHandler, problemHandler, gameHandler, hub, gameService, cfg.JWTSecret, zlog)

	// Start server
	zlog.Sugar().Infof("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

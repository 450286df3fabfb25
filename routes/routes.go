package routes

import (
	"net/http"
	"strconv"

	"codebattle/handlers"
	"codebattle/middleware"
	"codebattle/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	problemHandler *handlers.ProblemHandler,
	gameHandler *handlers.GameHandler,
	hub *services.Hub,
	gameService *services.GameService,
	jwtSecret string,
	log *zap.Logger,
) {
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", middleware.RateLimit(rate.Limit(1), 5), authHandler.Register)
			auth.POST("/login", middleware.RateLimit(rate.Limit(2), 10), authHandler.Login)
		}

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			protected.GET("/auth/profile", authHandler.GetProfile)

			problems := protected.Group("/problems")
			{
				problems.GET("", problemHandler.List)
				problems.GET("/:id", problemHandler.Get)
			}

			game := protected.Group("/game")
			{
				game.POST("/random", middleware.RateLimit(rate.Limit(2), 5), gameHandler.JoinRandom)
				game.POST("/room", middleware.RateLimit(rate.Limit(2), 5), gameHandler.CreateRoom)
				game.POST("/room/:roomId/join", gameHandler.JoinRoom)
				game.GET("/play/:gameId", gameHandler.Play)
				game.GET("/my-active", gameHandler.MyActive)
				game.GET("/:gameId", gameHandler.Get)
				game.POST("/force-leave/:gameId", gameHandler.ForceLeave)
				game.POST("/:gameId/submit", gameHandler.SubmitProgress)
			}
		}
	}

	// WebSocket endpoint for real-time game events. Browsers can't set an
	// Authorization header on the upgrade request, so the token rides in
	// the query string.
	router.GET("/ws/:gameId", func(c *gin.Context) {
		userID, err := middleware.ParseToken(c.Query("token"), jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		gameID, err := strconv.ParseUint(c.Param("gameId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
			return
		}

		// Only participants may attach to a game room.
		view, err := gameService.PlayGame(uint(gameID), userID)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant in this game"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("websocket upgrade failed",
				zap.Uint64("game_id", gameID),
				zap.Uint("user_id", userID),
				zap.Error(err))
			return
		}

		username := ""
		for _, p := range view.Players {
			if p.UserID == userID {
				username = p.Username
				break
			}
		}

		hub.RegisterClient(conn, uint(gameID), userID, username)
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"codebattle/services"

	"github.com/gin-gonic/gin"
)

type GameHandler struct {
	gameService *services.GameService
	hub         *services.Hub
}

func NewGameHandler(gameService *services.GameService, hub *services.Hub) *GameHandler {
	return &GameHandler{
		gameService: gameService,
		hub:         hub,
	}
}

// JoinRandom matches the caller into an open game or creates a new one.
func (h *GameHandler) JoinRandom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	game, err := h.gameService.JoinRandom(userID, h.hub)
	if err != nil {
		c.JSON(statusForGameError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, game)
}

func (h *GameHandler) CreateRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	game, err := h.gameService.CreateRoom(userID, req.Difficulty)
	if err != nil {
		c.JSON(statusForGameError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, game)
}

func (h *GameHandler) JoinRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	game, err := h.gameService.JoinRoom(userID, c.Param("roomId"), h.hub)
	if err != nil {
		c.JSON(statusForGameError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, game)
}

// Play is the participant-only direct access endpoint.
func (h *GameHandler) Play(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	game, err := h.gameService.PlayGame(gameID, userID)
	if err != nil {
		c.JSON(statusForGameError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, game)
}

// Get is the status poll endpoint.
func (h *GameHandler) Get(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	game, err := h.gameService.Game(gameID)
	if err != nil {
		c.JSON(statusForGameError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, game)
}

func (h *GameHandler) MyActive(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	game, err := h.gameService.ActiveGame(userID)
	if err != nil {
		if errors.Is(err, services.ErrGameNotFound) {
			c.JSON(http.StatusOK, gin.H{"game": nil})
			return
		}
		c.JSON(statusForGameError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": game})
}

func (h *GameHandler) ForceLeave(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	game, err := h.gameService.ForceLeave(gameID, userID, h.hub)
	if err != nil {
		c.JSON(statusForGameError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "left game", "game": game})
}

func (h *GameHandler) SubmitProgress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	var req services.SubmitProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	game, err := h.gameService.SubmitProgress(gameID, userID, &req, h.hub)
	if err != nil {
		c.JSON(statusForGameError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, game)
}

func currentUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, false
	}
	return userID.(uint), true
}

func gameIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("gameId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return 0, false
	}
	return uint(id), true
}

func statusForGameError(err error) int {
	switch {
	case errors.Is(err, services.ErrGameNotFound),
		errors.Is(err, services.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, services.ErrRoomFull),
		errors.Is(err, services.ErrAlreadyStarted),
		errors.Is(err, services.ErrAlreadyMember),
		errors.Is(err, services.ErrAlreadyInGame),
		errors.Is(err, services.ErrNotOngoing):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

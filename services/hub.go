package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub fans events out to the clients of a game room. Delivery is
// at-most-once; a client that misses an event re-fetches game state over
// HTTP.
type Hub struct {
	clients     map[*Client]bool
	broadcast   chan []byte
	register    chan *Client
	unregister  chan *Client
	mutex       sync.RWMutex
	gameService *GameService
	presence    *PresenceService
	log         *zap.Logger
}

type Client struct {
	hub      *Hub
	id       string
	socket   *websocket.Conn
	send     chan []byte
	gameID   uint
	userID   uint
	username string
}

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func NewHub(gameService *GameService, presence *PresenceService, log *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		broadcast:   make(chan []byte),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		gameService: gameService,
		presence:    presence,
		log:         log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			if err := h.presence.MarkOnline(context.Background(), client.userID); err != nil {
				h.log.Warn("presence mark online failed", zap.Uint("user_id", client.userID), zap.Error(err))
			}
			h.log.Info("client registered",
				zap.String("client_id", client.id),
				zap.Uint("game_id", client.gameID),
				zap.Uint("user_id", client.userID))

		case client := <-h.unregister:
			h.mutex.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			if !ok {
				continue
			}
			if err := h.presence.MarkOffline(context.Background(), client.userID); err != nil {
				h.log.Warn("presence mark offline failed", zap.Uint("user_id", client.userID), zap.Error(err))
			}
			h.log.Info("client unregistered",
				zap.String("client_id", client.id),
				zap.Uint("game_id", client.gameID),
				zap.Uint("user_id", client.userID))
			// Best-effort forfeit/cleanup for the disconnected player.
			if h.gameService != nil {
				h.gameService.HandleDisconnect(client.userID, h)
			}

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// BroadcastToGame emits an event to every client attached to the game.
func (h *Hub) BroadcastToGame(gameID uint, messageType string, payload interface{}) {
	message := Message{
		Type:    messageType,
		Payload: payload,
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("marshal broadcast failed", zap.String("type", messageType), zap.Error(err))
		return
	}

	h.mutex.Lock()
	for client := range h.clients {
		if client.gameID != gameID {
			continue
		}
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
	h.mutex.Unlock()
}

func (h *Hub) ConnectedUsers(gameID uint) []uint {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	var userIDs []uint
	for client := range h.clients {
		if client.gameID == gameID {
			userIDs = append(userIDs, client.userID)
		}
	}
	return userIDs
}

func (h *Hub) IsUserConnected(gameID, userID uint) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		if client.gameID == gameID && client.userID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) RegisterClient(conn *websocket.Conn, gameID, userID uint, username string) *Client {
	client := &Client{
		hub:      h,
		id:       uuid.NewString(),
		socket:   conn,
		send:     make(chan []byte, 256),
		gameID:   gameID,
		userID:   userID,
		username: username,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

func (h *Hub) sendGameStateSync(client *Client) {
	view, err := h.gameService.CachedView(client.gameID)
	if err != nil {
		h.log.Warn("game state sync failed",
			zap.Uint("game_id", client.gameID),
			zap.Error(err))
		return
	}

	message := Message{
		Type:    "game-state-sync",
		Payload: map[string]interface{}{"game": view},
	}
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	h.mutex.Lock()
	if _, ok := h.clients[client]; ok {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
	h.mutex.Unlock()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	defer c.socket.Close()

	for message := range c.send {
		w, err := c.socket.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)
		if err := w.Close(); err != nil {
			return
		}
	}
	c.socket.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		if err := c.hub.presence.Refresh(context.Background(), c.userID); err != nil {
			c.hub.log.Warn("presence refresh failed", zap.Uint("user_id", c.userID), zap.Error(err))
		}
		response := Message{Type: "pong", Payload: "pong"}
		data, _ := json.Marshal(response)
		select {
		case c.send <- data:
		default:
		}

	case "request_game_state":
		c.hub.sendGameStateSync(c)

	default:
		c.hub.log.Debug("unknown message type",
			zap.String("type", msg.Type),
			zap.Uint("user_id", c.userID),
			zap.Uint("game_id", c.gameID))
	}
}

// internal/handlers/websocket.go

package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"relieflink-backend/internal/models"
	"relieflink-backend/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks belong in front of this in production
		return true
	},
}

// Hub tracks connected clients per user and pushes notification
// payloads to every open connection of the recipient. It implements
// services.Pusher.
type Hub struct {
	clients map[primitive.ObjectID]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	mutex sync.RWMutex
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID primitive.ObjectID
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type WebSocketHandler struct {
	hub        *Hub
	jwtManager *auth.JWTManager
}

func NewWebSocketHandler(jwtManager *auth.JWTManager) *WebSocketHandler {
	hub := &Hub{
		clients:    make(map[primitive.ObjectID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}

	return &WebSocketHandler{
		hub:        hub,
		jwtManager: jwtManager,
	}
}

func (h *WebSocketHandler) StartHub() {
	go h.hub.run()
}

// Hub returns the hub for wiring into the notification dispatcher.
func (h *WebSocketHandler) Hub() *Hub {
	return h.hub
}

func (hub *Hub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.mutex.Lock()
			if hub.clients[client.userID] == nil {
				hub.clients[client.userID] = make(map[*Client]bool)
			}
			hub.clients[client.userID][client] = true
			hub.mutex.Unlock()
			logrus.Debugf("WebSocket client registered for user %s", client.userID.Hex())

		case client := <-hub.unregister:
			hub.mutex.Lock()
			if clients, ok := hub.clients[client.userID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(hub.clients, client.userID)
					}
				}
			}
			hub.mutex.Unlock()
			logrus.Debugf("WebSocket client unregistered for user %s", client.userID.Hex())
		}
	}
}

// PushToUser delivers a notification to every open connection of the
// user. Slow clients are dropped rather than blocked on.
func (hub *Hub) PushToUser(userID primitive.ObjectID, notification models.Notification) {
	payload, err := json.Marshal(WSMessage{
		Type: "notification",
		Data: notification,
	})
	if err != nil {
		logrus.WithError(err).Error("failed to marshal notification payload")
		return
	}

	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	clients := hub.clients[userID]
	for client := range clients {
		select {
		case client.send <- payload:
		default:
			close(client.send)
			delete(clients, client)
			if len(clients) == 0 {
				delete(hub.clients, userID)
			}
		}
	}
}

// HandleWebSocket upgrades the connection. Browsers cannot set an
// Authorization header on the upgrade request, so the token travels as
// a query parameter.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Token is required",
		})
		return
	}

	claims, err := h.jwtManager.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid token",
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: claims.UserID,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// readPump drains the connection. Clients never send application
// messages; reading only services the close and pong handshakes.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Debug("WebSocket closed unexpectedly")
			}
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

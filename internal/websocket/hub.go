package websocket

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/fallcrate/milestone-web/internal/auth"
	"github.com/fallcrate/milestone-web/internal/logger"
	"github.com/fallcrate/milestone-web/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin for development
		// In production, implement proper origin checking
		return true
	},
}

// Toast is the unlock notification pushed to the widget frontend.
type Toast struct {
	Type        string             `json:"type"`
	Achievement models.Achievement `json:"achievement"`
}

type envelope struct {
	ownerID string
	payload []byte
}

// Hub fans unlock toasts out to connected widget clients, each scoped to
// its owner. It satisfies the achievement lifecycle's Notifier port.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
}

type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	ownerID string
	send    chan []byte
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan envelope),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// AchievementUnlocked broadcasts a toast to the unlocking owner's clients.
func (h *Hub) AchievementUnlocked(a models.Achievement) {
	payload, err := json.Marshal(Toast{Type: "achievement_unlocked", Achievement: a})
	if err != nil {
		logger.New().WithError(err).Error("failed to encode toast")
		return
	}
	h.broadcast <- envelope{ownerID: a.OwnerID, payload: payload}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			logger.New().Infof("widget client connected. total: %d", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logger.New().Infof("widget client disconnected. total: %d", len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				if client.ownerID != message.ownerID {
					continue
				}
				select {
				case client.send <- message.payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.New().WithError(err).Warn("websocket read failed")
			}
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.New().WithError(err).Warn("websocket write failed")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func handleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerFromContext(r.Context())
	if ownerID == "" {
		http.Error(w, "Missing identity", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.New().WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{hub: hub, conn: conn, ownerID: ownerID, send: make(chan []byte, 256)}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func RegisterRoutes(r *mux.Router, hub *Hub) {
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(hub, w, r)
	})
}

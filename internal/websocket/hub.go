package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/domain/repositories"
	"github.com/fraudshield/voicedesk/internal/voice"
	"github.com/fraudshield/voicedesk/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio frames

	// Outbound queue per client.
	sendBufferSize = 256

	// Queued commands per client.
	commandBufferSize = 32
)

var upgrader = websocket.Upgrader{
	// Browsers connect from the portal origin; the JWT is what authorizes the connection
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SessionOpener creates the voice session behind a connection
type SessionOpener interface {
	OpenSession(userID string, devices usecase.Devices) (*voice.Session, error)
}

// Hub maintains the set of active clients
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	sessions  SessionOpener
	tts       repositories.TextToSpeech
	validator *MessageValidator

	quit     chan struct{}
	quitOnce sync.Once

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub. tts may be nil, in which case speak
// requests fail with a synthesis notice.
func NewHub(sessions SessionOpener, tts repositories.TextToSpeech, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sessions:   sessions,
		tts:        tts,
		validator:  NewMessageValidator(),
		quit:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("clientID", client.id),
				zap.String("userID", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.shutdown()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered",
				zap.String("clientID", client.id),
				zap.String("userID", client.userID))

		case <-h.quit:
			h.mu.Lock()
			for id, client := range h.clients {
				client.shutdown()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Shutdown disconnects every client and stops Run
func (h *Hub) Shutdown() {
	h.quitOnce.Do(func() {
		close(h.quit)
		h.logger.Info("WebSocket hub shutting down")
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
		c.shutdown()
	}
}

// HandleWebSocket upgrades an authenticated request and starts a voice
// session for userID
func HandleWebSocket(hub *Hub, c echo.Context, userID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := newClient(hub, conn, userID, logger)

	session, err := hub.sessions.OpenSession(userID, client.devices())
	if err != nil {
		logger.Error("Failed to open voice session",
			zap.String("userID", userID),
			zap.Error(err))
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(CreateErrorMessage("session_unavailable", "Voice input is unavailable right now.", ""))
		conn.Close()
		return nil
	}
	client.session = session
	client.logger = client.logger.With(zap.String("sessionID", session.ID()))

	if !hub.registerClient(client) {
		session.Close()
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.forwardUpdates()
	go client.runCommands()
	go client.readPump()

	return nil
}

func newClient(hub *Hub, conn *websocket.Conn, userID string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	c := &Client{
		id:       id,
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, sendBufferSize),
		commands: make(chan interface{}, commandBufferSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		userID:   userID,
		logger:   logger.With(zap.String("clientID", id), zap.String("userID", userID)),
	}
	c.microphone = &browserMicrophone{client: c}
	c.synthesizer = &browserSynthesizer{client: c, engine: hub.tts}
	c.player = &browserPlayer{client: c}
	return c
}

package ws

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/usetoolieproject/coachly-sub000/internal/room"
	"github.com/usetoolieproject/coachly-sub000/pkg/constants"
	"github.com/usetoolieproject/coachly-sub000/pkg/jwt"
	"github.com/usetoolieproject/coachly-sub000/pkg/logger"
	"github.com/usetoolieproject/coachly-sub000/pkg/metrics"
)

// LifecycleNotifier receives intents emitted by the signaling path. Durable
// writes happen behind it, off the broadcast critical path.
type LifecycleNotifier interface {
	// RoomStarted fires when a host joins a live room
	RoomStarted(meetingID uuid.UUID)
	// RoomEmptied fires when the last participant leaves a room
	RoomEmptied(meetingID uuid.UUID)
	// MeetingEnded fires when the host explicitly ends the meeting
	MeetingEnded(meetingID uuid.UUID)
}

// Per-connection lifecycle: unjoined -> joined -> left. Left is terminal;
// rejoining requires a fresh connection.
type connState int

const (
	stateUnjoined connState = iota
	stateJoined
	stateLeft
)

// SignalingHub is the gateway and router for WebRTC signaling connections.
// Room membership lives in the Registry; the hub owns the connection table
// and the fan-out.
type SignalingHub struct {
	registry  *room.Registry
	lifecycle LifecycleNotifier
	jwtMgr    *jwt.JWTManager
	metrics   *metrics.Metrics

	// Connected clients by connection ID
	mu      sync.RWMutex
	clients map[uuid.UUID]*SignalingClient

	// Concurrency limit: maxConnections is the maximum number of concurrent WebSocket connections
	maxConnections int
	semaphore      chan struct{}
}

// SignalingClient represents one authenticated WebSocket connection
type SignalingClient struct {
	hub  *SignalingHub
	conn *websocket.Conn
	send chan []byte

	connectionID uuid.UUID
	userID       uuid.UUID
	userName     string

	// guarded by stateMu; mutated by this connection's read loop and by
	// end-meeting teardown running on another connection's loop
	stateMu sync.Mutex
	state   connState
	roomID  uuid.UUID
}

func (c *SignalingClient) currentRoom() (uuid.UUID, bool) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.roomID, c.state == stateJoined
}

func (c *SignalingClient) markJoined(meetingID uuid.UUID) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state != stateUnjoined {
		return false
	}
	c.state = stateJoined
	c.roomID = meetingID
	return true
}

func (c *SignalingClient) detach() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = stateLeft
	c.roomID = uuid.Nil
}

var signalingUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Reject empty origins - require explicit origin for security
			return false
		}

		allowedOrigins := GetAllowedOrigins()
		for allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	},
}

// GetAllowedOrigins returns allowed WebSocket origins from environment or defaults
func GetAllowedOrigins() map[string]bool {
	origins := map[string]bool{
		"http://localhost:3000": true,
		"http://localhost:8080": true,
		"http://127.0.0.1:3000": true,
		"http://127.0.0.1:8080": true,
	}

	if env := os.Getenv("WS_ALLOWED_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origins[strings.TrimSpace(origin)] = true
		}
	}

	return origins
}

// NewSignalingHub creates a new signaling hub
func NewSignalingHub(registry *room.Registry, lifecycle LifecycleNotifier, jwtMgr *jwt.JWTManager, m *metrics.Metrics) *SignalingHub {
	// Default max connections: 1000 (configurable via environment if needed)
	maxConns := 1000
	if val := os.Getenv("WS_MAX_SIGNALING_CONNECTIONS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			maxConns = n
		}
	}

	return &SignalingHub{
		registry:       registry,
		lifecycle:      lifecycle,
		jwtMgr:         jwtMgr,
		metrics:        m,
		clients:        make(map[uuid.UUID]*SignalingClient),
		maxConnections: maxConns,
		semaphore:      make(chan struct{}, maxConns),
	}
}

// ServeWS authenticates and upgrades a signaling connection. No room event
// is processed until the token checks out; a rejected handshake never
// touches the registry.
func (h *SignalingHub) ServeWS(c *gin.Context) {
	// Acquire semaphore to limit concurrent connections
	select {
	case h.semaphore <- struct{}{}:
	default:
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", h.maxConnections))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server at capacity, please try again later"})
		return
	}

	// Browsers cannot set headers on WebSocket requests, so the token comes
	// from a query parameter; the Authorization header is also accepted.
	token := c.Query("token")
	if token == "" {
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
	}
	if token == "" {
		<-h.semaphore
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
		return
	}

	claims, err := h.jwtMgr.ValidateToken(token)
	if err != nil {
		<-h.semaphore
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	if claims.UserID == uuid.Nil || claims.Username == "" {
		<-h.semaphore
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token missing identity"})
		return
	}

	conn, err := signalingUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		<-h.semaphore
		logger.Warn("WebSocket upgrade failed",
			zap.String("user_id", claims.UserID.String()),
			zap.Error(err))
		return
	}

	client := &SignalingClient{
		hub:          h,
		conn:         conn,
		send:         make(chan []byte, 256),
		connectionID: uuid.New(),
		userID:       claims.UserID,
		userName:     claims.Username,
	}

	h.mu.Lock()
	h.clients[client.connectionID] = client
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.IncWebsocketConnections()
	}

	logger.Debug("signaling connection established",
		zap.String("connection_id", client.connectionID.String()),
		zap.String("user_id", client.userID.String()))

	go client.writePump()
	go client.readPump()
}

// disconnect tears down a connection: implicit leave, connection table
// removal, semaphore release
func (h *SignalingHub) disconnect(c *SignalingClient) {
	h.leave(c)

	h.mu.Lock()
	if _, ok := h.clients[c.connectionID]; ok {
		delete(h.clients, c.connectionID)
		close(c.send)
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.DecWebsocketConnections()
	}
	<-h.semaphore
}

// sendTo queues an event for one connection. A vanished target is not an
// error; signaling is best-effort.
func (h *SignalingHub) sendTo(connectionID uuid.UUID, data []byte) bool {
	if data == nil {
		return false
	}

	// The read lock is held across the send itself: disconnect closes the
	// channel under the write lock, so a send can never hit a closed channel.
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connectionID]
	if !ok {
		return false
	}

	select {
	case client.send <- data:
		return true
	default:
		// Slow consumer; drop rather than block the signaling path
		if h.metrics != nil {
			h.metrics.RecordRelayDropped()
		}
		return false
	}
}

// broadcastToRoom fans an event out to every member of a room, optionally
// skipping one connection
func (h *SignalingHub) broadcastToRoom(meetingID uuid.UUID, data []byte, except uuid.UUID) {
	for _, member := range h.registry.Members(meetingID) {
		if member.ConnectionID == except {
			continue
		}
		h.sendTo(member.ConnectionID, data)
	}
}

func (h *SignalingHub) updateRoomGauges() {
	if h.metrics == nil {
		return
	}
	rooms, participants := h.registry.Counts()
	h.metrics.SetRoomsActive(rooms)
	h.metrics.SetParticipantsActive(participants)
}

// readPump reads messages from WebSocket
func (c *SignalingClient) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket connection closed",
					zap.String("connection_id", c.connectionID.String()),
					zap.String("user_id", c.userID.String()),
					zap.Error(err))
			}
			break
		}

		c.hub.handleMessage(c, message)
	}
}

// writePump writes messages to WebSocket
func (c *SignalingClient) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

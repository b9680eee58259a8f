package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kingrain94/entitlement-api/internal/api/dto"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/middleware"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

const (
	websocketReadBufferSize        = 1024
	websocketWriteBufferSize       = 1024
	websocketSendChannelBufferSize = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  websocketReadBufferSize,
	WriteBufferSize: websocketWriteBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EntitlementSource evaluates flags for a stream subscriber.
type EntitlementSource interface {
	GetFeatureFlag(ctx context.Context, key string, ec domain.EvaluationContext) domain.Value
	GetAllFeatureFlags(ctx context.Context, ec domain.EvaluationContext) map[string]domain.Value
}

type Client struct {
	conn *websocket.Conn
	ec   domain.EvaluationContext
	send chan []byte
}

// WebSocketHandler streams entitlement changes to connected callers. Each subscriber
// receives a snapshot on connect and then every change that can affect it, already
// evaluated for its own context.
type WebSocketHandler struct {
	*BaseHandler
	source     EntitlementSource
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	logger     *logger.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewWebSocketHandler(source EntitlementSource, logger *logger.Logger) *WebSocketHandler {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketHandler{
		source:     source,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// HandleWebSocket godoc
// @Summary Stream entitlement changes
// @Description Upgrades to a websocket that pushes a snapshot of the caller's flags and then every relevant change
// @Tags feature_flags
// @Success 101
// @Failure 401 {object} dto.Error
// @Failure 403 {object} dto.FeatureDeniedResponse
// @Router /entitlements/stream [get]
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	ctx := h.RequestCtx(c)
	ec := middleware.EvaluationContextFrom(ctx)
	if ec.UserID == "" && ec.TenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Error{Error: "No caller found"})
		return
	}

	// Evaluate before the upgrade so the snapshot reflects the request's bound context.
	snapshot := h.source.GetAllFeatureFlags(ctx, ec)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := &Client{
		conn: conn,
		ec:   ec,
		send: make(chan []byte, websocketSendChannelBufferSize),
	}
	if message, err := json.Marshal(dto.EntitlementEvent{Type: "snapshot", Flags: snapshot, Timestamp: time.Now().UTC()}); err == nil {
		client.send <- message
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

func (h *WebSocketHandler) Start() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = struct{}{}
			h.mutex.Unlock()

		case client := <-h.unregister:
			h.remove(client)

		case <-h.ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return
		}
	}
}

func (h *WebSocketHandler) Stop() {
	h.cancel()
}

// ClientCount is the number of connected subscribers.
func (h *WebSocketHandler) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *WebSocketHandler) remove(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// OnFlagChange pushes change to every subscriber it can affect. It is registered as a
// pub/sub handler, so it sees changes from every instance.
func (h *WebSocketHandler) OnFlagChange(change *domain.FlagChange, _ bool) {
	h.mutex.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if change.Affects(client.ec.UserID, client.ec.TenantID) {
			targets = append(targets, client)
		}
	}
	h.mutex.RUnlock()

	var slow []*Client
	for _, client := range targets {
		value := h.source.GetFeatureFlag(h.ctx, change.FlagKey, client.ec)
		message, err := json.Marshal(dto.EntitlementEvent{
			Type:      "change",
			Key:       change.FlagKey,
			Value:     value,
			Enabled:   value.Truthy(),
			Action:    string(change.Action),
			Timestamp: change.Timestamp,
		})
		if err != nil {
			h.logger.Error("Failed to marshal entitlement event", err, zap.String("flag", change.FlagKey))
			continue
		}

		if !h.trySend(client, message) {
			slow = append(slow, client)
		}
	}

	// A subscriber that cannot keep up is disconnected.
	for _, client := range slow {
		h.remove(client)
	}
}

func (h *WebSocketHandler) trySend(client *Client, message []byte) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if _, ok := h.clients[client]; !ok {
		return true
	}
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

func (h *WebSocketHandler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) readPump(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.ctx.Done():
		}
		client.conn.Close()
	}()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("Unexpected close error",
					zap.String("user_id", client.ec.UserID),
					zap.String("tenant_id", client.ec.TenantID),
					zap.Error(err))
			}
			return
		}
	}
}

package handler

import (
	"net/http"

	"github.com/filmnt/chat/chat-service/internal/config"
	"github.com/filmnt/chat/chat-service/internal/hub"
	"github.com/filmnt/chat/pkg/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub   *hub.Hub
	wsCfg config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:   h,
		wsCfg: wsCfg,
	}
}

// HandleWebSocket attaches the caller to the room. Every path under /chat
// reaches the same room.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.String(http.StatusUpgradeRequired, "Expected WebSocket")
		return
	}

	l := log.Ctx(c.Request.Context())
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	h.hub.Join(client)
	l.Debug().Str(log.FieldConnID, client.ID()).Msg("websocket connected")

	go client.WritePump()
	go client.ReadPump()
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/chat", h.HandleWebSocket)
	r.GET("/chat/*path", h.HandleWebSocket)
}

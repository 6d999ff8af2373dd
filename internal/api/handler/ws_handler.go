package handler

import (
	"Courier/internal/api/config"
	"Courier/internal/pkg/logger"
	"Courier/internal/pkg/response"
	"Courier/internal/pkg/security"
	"Courier/internal/realtime"
	"Courier/internal/service"
	"context"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type WsHandler struct {
	hub *realtime.Hub
	rev security.Revocation
	cfg config.RealtimeConfig
}

func NewWsHandler(hub *realtime.Hub, rev security.Revocation, cfg config.RealtimeConfig) *WsHandler {
	return &WsHandler{hub: hub, rev: rev, cfg: cfg}
}

// Connect 鉴权后升级为 WebSocket，连接存活期间阻塞
func (s *WsHandler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = security.ExtractBearer(c.GetHeader("Authorization"))
	}
	if token == "" {
		response.Error(c, service.UnauthorizedError)
		return
	}
	claims, err := security.Authenticate(c.Request.Context(), s.rev, token)
	if err != nil {
		log.WarnContext(c.Request.Context(), "WS 鉴权失败", "err", err)
		response.Error(c, service.UnauthorizedError)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.ErrorContext(c.Request.Context(), "WS 协议升级失败", "err", err)
		return
	}

	// 连接生命周期不跟随 HTTP 请求
	ctx := logger.WithUserID(context.WithoutCancel(c.Request.Context()), claims.UserID)
	realtime.NewSession(s.hub, conn, claims.UserID, s.cfg).Run(ctx)
}

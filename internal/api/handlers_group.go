package api

import (
	"Courier/internal/api/handler"
	"Courier/internal/pkg/security"
)

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	ChatHandler *handler.ChatHandler
	WsHandler   *handler.WsHandler
	Revocation  security.Revocation
}

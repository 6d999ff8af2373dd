package api

import (
	"Courier/internal/api/handler"
	"Courier/internal/api/middleware"
	"Courier/internal/pkg/logger"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware())
	logger.SetupGin(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", handler.Ping)

		chatGroup := apiGroup.Group("/chat")
		{
			// WebSocket 在握手阶段自行鉴权
			chatGroup.GET("/ws", group.WsHandler.Connect)

			authGroup := chatGroup.Group("")
			authGroup.Use(middleware.AuthMiddleware(group.Revocation))
			{
				authGroup.POST("/conversations", group.ChatHandler.StartConversation)
				authGroup.GET("/conversations", group.ChatHandler.ListConversations)
				authGroup.GET("/conversations/:conversation_id", group.ChatHandler.GetConversation)
				authGroup.GET("/conversations/:conversation_id/messages", group.ChatHandler.ListMessages)
				authGroup.POST("/messages", group.ChatHandler.SendMessage)
			}
		}
	}

	return r
}

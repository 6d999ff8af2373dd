package middleware

import (
	"Courier/internal/pkg/consts"
	"Courier/internal/pkg/logger"
	"Courier/internal/pkg/response"
	"Courier/internal/pkg/security"
	log "log/slog"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 负责验证 JWT 并将用户身份信息注入 Context，rev 可为 nil
func AuthMiddleware(rev security.Revocation) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := security.ExtractBearer(c.GetHeader("Authorization"))
		if !ok {
			response.Fail(c, response.Unauthorized, "Token 缺失或格式错误")
			c.Abort()
			return
		}

		claims, err := security.Authenticate(c.Request.Context(), rev, tokenString)
		if err != nil {
			log.WarnContext(c.Request.Context(), "auth rejected", "err", err)
			response.Fail(c, response.Unauthorized, "Token 无效或已过期")
			c.Abort()
			return
		}

		c.Set(consts.CtxUserID, claims.UserID)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

// CurrentUserID 取出认证后的用户 ID，未认证返回 0
func CurrentUserID(c *gin.Context) uint64 {
	return c.GetUint64(consts.CtxUserID)
}

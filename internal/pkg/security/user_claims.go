package security

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserClaims Token 中携带的业务信息，与用户服务签发的 Token 兼容
type UserClaims struct {
	UserID uint64   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

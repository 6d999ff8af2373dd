package security

import (
	"Courier/internal/api/config"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	mu         sync.RWMutex
	jwtSecret  = []byte("courier-dev-secret")
	jwtIssuer  = "Courier"
	jwtExpires = 24 * time.Hour
)

// ErrTokenInvalid Token 无效或已过期
var ErrTokenInvalid = errors.New("token 无效或已过期")

// Init 载入签名配置
func Init(cfg config.JWTConfig) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Secret != "" {
		jwtSecret = []byte(cfg.Secret)
	}
	if cfg.Issuer != "" {
		jwtIssuer = cfg.Issuer
	}
	if cfg.TTL > 0 {
		jwtExpires = time.Duration(cfg.TTL) * time.Hour
	}
}

// GenerateToken 生成一个新的 JWT Token，主要用于联调与测试
func GenerateToken(userID uint64, roles []string) (string, error) {
	mu.RLock()
	secret, issuer, ttl := jwtSecret, jwtIssuer, jwtExpires
	mu.RUnlock()

	now := time.Now()
	claims := &UserClaims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("签名 Token 失败: %w", err)
	}
	return tokenString, nil
}

// ValidateToken 验证 Token 字符串并解析出 Claims
func ValidateToken(tokenString string) (*UserClaims, error) {
	mu.RLock()
	secret := jwtSecret
	mu.RUnlock()

	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名方法: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token 解析失败: %w", err)
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ExtractBearer 从 Authorization 头中取出 Token
func ExtractBearer(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// ExtractSignature 从 Token 字符串中提取签名
func ExtractSignature(tokenString string) (string, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return "", errors.New("token 格式不正确")
	}
	return parts[2], nil
}

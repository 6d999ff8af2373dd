package redis

import (
	"Courier/internal/pkg/consts"
	"Courier/internal/pkg/security"
	"context"

	"github.com/redis/go-redis/v9"
)

type tokenBlacklist struct {
	rdb *redis.Client
}

// NewTokenBlacklist 与用户服务共用以签名为键的黑名单
func NewTokenBlacklist(rdb *redis.Client) security.Revocation {
	return &tokenBlacklist{rdb: rdb}
}

func (s *tokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	signature, err := security.ExtractSignature(token)
	if err != nil {
		return true, nil
	}
	n, err := s.rdb.Exists(ctx, consts.TokenBlacklistKey+signature).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

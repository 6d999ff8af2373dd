package redis

import (
	"Courier/internal/pkg/consts"
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// CachedProfile 缓存中的用户简要资料
type CachedProfile struct {
	UserID    uint64 `json:"user_id"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatar_url"`
}

// ProfileCache 用户资料缓存
type ProfileCache interface {
	// MGet 返回命中的部分，未命中的 id 不出现在结果中
	MGet(ctx context.Context, ids []uint64) (map[uint64]*CachedProfile, error)
	MSet(ctx context.Context, profiles []*CachedProfile) error
	Invalidate(ctx context.Context, ids ...uint64) error
}

type profileCacheImpl struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProfileCache(rdb *redis.Client, ttl time.Duration) ProfileCache {
	return &profileCacheImpl{rdb: rdb, ttl: ttl}
}

func profileKey(id uint64) string {
	return consts.UserSimpleInfoKey + strconv.FormatUint(id, 10)
}

func (s *profileCacheImpl) MGet(ctx context.Context, ids []uint64) (map[uint64]*CachedProfile, error) {
	out := make(map[uint64]*CachedProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKey(id)
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "mget profiles")
	}
	for _, v := range values {
		str, ok := v.(string)
		if !ok || str == "" {
			continue
		}
		var p CachedProfile
		if err := json.Unmarshal([]byte(str), &p); err != nil {
			continue
		}
		out[p.UserID] = &p
	}
	return out, nil
}

func (s *profileCacheImpl) MSet(ctx context.Context, profiles []*CachedProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for _, p := range profiles {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		pipe.Set(ctx, profileKey(p.UserID), data, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "mset profiles")
}

func (s *profileCacheImpl) Invalidate(ctx context.Context, ids ...uint64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKey(id)
	}
	return errors.Wrap(s.rdb.Del(ctx, keys...).Err(), "invalidate profiles")
}

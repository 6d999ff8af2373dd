package memstore

import (
	"Courier/internal/model"
	"Courier/internal/pkg/redis"
	"Courier/internal/repository"
	"context"
	"sync"
)

// ProfileRepo 内存用户资料仓储
type ProfileRepo struct {
	mu    sync.RWMutex
	data  map[uint64]*model.UserDetail
	calls int
}

var _ repository.UserProfileRepo = (*ProfileRepo)(nil)

func NewProfileRepo(seed ...*model.UserDetail) *ProfileRepo {
	r := &ProfileRepo{data: make(map[uint64]*model.UserDetail, len(seed))}
	for _, d := range seed {
		r.Put(d)
	}
	return r
}

// Put 新增或覆盖资料
func (s *ProfileRepo) Put(d *model.UserDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.data[d.UserID] = &cp
}

// Calls 查询次数，用于验证缓存命中
func (s *ProfileRepo) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

func (s *ProfileRepo) GetUserSimpleInfoByIds(_ context.Context, ids []uint64) ([]*model.UserDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	out := make([]*model.UserDetail, 0, len(ids))
	for _, id := range ids {
		if d, ok := s.data[id]; ok {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ProfileCache 内存资料缓存，不做过期
type ProfileCache struct {
	mu   sync.RWMutex
	data map[uint64]redis.CachedProfile
}

var _ redis.ProfileCache = (*ProfileCache)(nil)

func NewProfileCache() *ProfileCache {
	return &ProfileCache{data: make(map[uint64]redis.CachedProfile)}
}

func (s *ProfileCache) MGet(_ context.Context, ids []uint64) (map[uint64]*redis.CachedProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uint64]*redis.CachedProfile, len(ids))
	for _, id := range ids {
		if p, ok := s.data[id]; ok {
			cp := p
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *ProfileCache) MSet(_ context.Context, profiles []*redis.CachedProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range profiles {
		s.data[p.UserID] = *p
	}
	return nil
}

func (s *ProfileCache) Invalidate(_ context.Context, ids ...uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.data, id)
	}
	return nil
}

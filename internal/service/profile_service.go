package service

import (
	"Courier/internal/api/dto"
	"Courier/internal/pkg/consts"
	"Courier/internal/pkg/redis"
	"Courier/internal/pkg/util"
	"Courier/internal/repository"
	"context"
	log "log/slog"

	"github.com/jinzhu/copier"
)

// ProfileService 用户展示资料解析
type ProfileService interface {
	// Resolve 批量解析，不存在的用户返回只含 ID 的资料
	Resolve(ctx context.Context, ids []uint64) map[uint64]*dto.UserBriefDTO
	Invalidate(ctx context.Context, ids ...uint64) error
}

type profileServiceImpl struct {
	repo      repository.UserProfileRepo
	cache     redis.ProfileCache
	avatarURL func(string) string
}

// NewProfileService cache 与 avatarURL 均可为 nil
func NewProfileService(repo repository.UserProfileRepo, cache redis.ProfileCache, avatarURL func(string) string) ProfileService {
	if avatarURL == nil {
		avatarURL = func(s string) string { return s }
	}
	return &profileServiceImpl{repo: repo, cache: cache, avatarURL: avatarURL}
}

func (s *profileServiceImpl) Resolve(ctx context.Context, ids []uint64) map[uint64]*dto.UserBriefDTO {
	ids = util.UniqueUint64s(ids)
	out := make(map[uint64]*dto.UserBriefDTO, len(ids))
	if len(ids) == 0 {
		return out
	}

	missing := ids
	if s.cache != nil {
		hit, err := s.cache.MGet(ctx, ids)
		if err != nil {
			log.WarnContext(ctx, "profile cache read failed", "err", err)
		}
		missing = make([]uint64, 0, len(ids))
		for _, id := range ids {
			if p, ok := hit[id]; ok {
				out[id] = &dto.UserBriefDTO{UserID: p.UserID, Nickname: p.Nickname, AvatarURL: s.avatarURL(p.AvatarURL)}
				continue
			}
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		details, err := s.repo.GetUserSimpleInfoByIds(ctx, missing)
		if err != nil {
			log.ErrorContext(ctx, "profile lookup failed, falling back to id-only briefs", "err", err)
		}
		fresh := make([]*redis.CachedProfile, 0, len(details))
		for _, d := range details {
			brief := &dto.UserBriefDTO{}
			if err := copier.Copy(brief, d); err != nil {
				continue
			}
			if brief.AvatarURL == "" {
				brief.AvatarURL = consts.DefaultAvatarURL
			}
			fresh = append(fresh, &redis.CachedProfile{UserID: brief.UserID, Nickname: brief.Nickname, AvatarURL: brief.AvatarURL})
			brief.AvatarURL = s.avatarURL(brief.AvatarURL)
			out[brief.UserID] = brief
		}
		if s.cache != nil && len(fresh) > 0 {
			if err := s.cache.MSet(ctx, fresh); err != nil {
				log.WarnContext(ctx, "profile cache write failed", "err", err)
			}
		}
	}

	for _, id := range ids {
		if _, ok := out[id]; !ok {
			out[id] = &dto.UserBriefDTO{UserID: id}
		}
	}
	return out
}

func (s *profileServiceImpl) Invalidate(ctx context.Context, ids ...uint64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, ids...)
}

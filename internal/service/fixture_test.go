package service

import (
	"Courier/internal/api/dto"
	"Courier/internal/model"
	"Courier/internal/pkg/memstore"
	"testing"
	"time"
)

const (
	alice uint64 = 1
	bob   uint64 = 2
	carol uint64 = 3
	dave  uint64 = 4 // 没有资料的用户
)

type fixture struct {
	convRepo *memstore.ConversationRepo
	msgRepo  *memstore.MessageRepo
	profiles *memstore.ProfileRepo
	cache    *memstore.ProfileCache

	profileSvc ProfileService
	reads      ReadService
	convs      ConversationService
	msgs       MessageService
}

func newFixture(t *testing.T, strict bool) *fixture {
	t.Helper()

	// 每次取时间前进 1ms，避免排序依赖同一时刻
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int64
	prev := nowFunc
	nowFunc = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}
	t.Cleanup(func() { nowFunc = prev })

	f := &fixture{
		convRepo: memstore.NewConversationRepo(strict),
		msgRepo:  memstore.NewMessageRepo(),
		profiles: memstore.NewProfileRepo(
			&model.UserDetail{UserID: alice, Nickname: "alice", AvatarURL: "a.png"},
			&model.UserDetail{UserID: bob, Nickname: "bob", AvatarURL: "b.png"},
			&model.UserDetail{UserID: carol, Nickname: "carol"},
		),
		cache: memstore.NewProfileCache(),
	}
	f.profileSvc = NewProfileService(f.profiles, f.cache, func(s string) string { return "cdn/" + s })
	f.reads = NewReadService(f.msgRepo, f.profileSvc)
	f.convs = NewConversationService(f.convRepo, f.msgRepo, f.reads, f.profileSvc, "New Group")
	f.msgs = NewMessageService(f.convRepo, f.msgRepo, f.convs, f.reads, f.profileSvc)
	return f
}

func userIDs(briefs []*dto.UserBriefDTO) []uint64 {
	out := make([]uint64, 0, len(briefs))
	for _, b := range briefs {
		out = append(out, b.UserID)
	}
	return out
}

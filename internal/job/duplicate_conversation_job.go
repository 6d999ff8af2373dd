package job

import (
	"Courier/internal/pkg/consts"
	"Courier/internal/pkg/mongo"
	"Courier/internal/pkg/redis"
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"
)

const auditTimeout = 5 * time.Minute

// DuplicateConversationJob 巡检同一对用户下的多个单聊，只上报不合并
type DuplicateConversationJob struct {
	convRepo mongo.ConversationRepo
	// distributed 为 true 时通过 redis 锁保证多实例只跑一次
	distributed bool
}

func NewDuplicateConversationJob(convRepo mongo.ConversationRepo, distributed bool) *DuplicateConversationJob {
	return &DuplicateConversationJob{convRepo: convRepo, distributed: distributed}
}

func (s *DuplicateConversationJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	if s.distributed {
		owner := uuid.NewString()
		ok, err := redis.TryLock(ctx, consts.DuplicateAuditLock, owner, auditTimeout, 1)
		if err != nil {
			log.Error("duplicate audit lock failed", "err", err)
			return
		}
		if !ok {
			log.Info("duplicate audit running elsewhere, skip")
			return
		}
		defer redis.UnLock(context.WithoutCancel(ctx), consts.DuplicateAuditLock, owner)
	}

	if _, err := s.Audit(ctx); err != nil {
		log.Error("duplicate audit failed", "err", err)
	}
}

// Audit 返回并记录所有重复的单聊
func (s *DuplicateConversationJob) Audit(ctx context.Context) ([]*mongo.DuplicatePair, error) {
	log.InfoContext(ctx, "start duplicate direct conversation audit")

	pairs, err := s.convRepo.FindDuplicateDirectPairs(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range pairs {
		ids := make([]string, 0, len(p.ConversationIDs))
		for _, id := range p.ConversationIDs {
			ids = append(ids, id.Hex())
		}
		log.WarnContext(ctx, "duplicate direct conversation",
			"pair", p.PairKey,
			"count", p.Count,
			"conversation_ids", ids,
		)
	}

	log.InfoContext(ctx, "duplicate audit finished", "duplicated_pairs", len(pairs))
	return pairs, nil
}

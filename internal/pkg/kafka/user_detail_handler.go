package kafka

import (
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// ProfileInvalidator 资料变更后清理展示缓存
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, ids ...uint64) error
}

// UserDetailHandler 消费 user_detail 表的 binlog，昵称或头像变化时失效缓存
type UserDetailHandler struct {
	profiles ProfileInvalidator
}

func NewUserDetailHandler(profiles ProfileInvalidator) *UserDetailHandler {
	return &UserDetailHandler{profiles: profiles}
}

func (s *UserDetailHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("user detail consumer setup")
	return nil
}

func (s *UserDetailHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("user detail consumer cleanup")
	return nil
}

func (s *UserDetailHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	return pullMessageBatch(session, claim, s.logic)
}

func (s *UserDetailHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	canalMsg, err := ToCanalMessage(msg, "user_detail")
	if err != nil {
		return err
	}
	if !canalMsg.ColumnChanged("nickname", "avatar_url") {
		return nil
	}

	ids := make([]uint64, 0, len(canalMsg.Data))
	for _, row := range canalMsg.Data {
		if id := StrToUint64(row["user_id"]); id != 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return s.profiles.Invalidate(ctx, ids...)
}

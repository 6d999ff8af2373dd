package service

import (
	"Courier/internal/api/dto"
	"Courier/internal/pkg/mongo"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReadService 已读状态计算，调用方负责成员校验
type ReadService interface {
	// MarkRead 返回本次新增已读的消息，无变化时为空
	MarkRead(ctx context.Context, convID primitive.ObjectID, userID uint64) ([]*dto.MessageDTO, error)
	UnreadCount(ctx context.Context, convID primitive.ObjectID, userID uint64) (int64, error)
}

type readServiceImpl struct {
	messages mongo.MessageRepo
	asm      *assembler
}

func NewReadService(messages mongo.MessageRepo, profiles ProfileService) ReadService {
	return &readServiceImpl{messages: messages, asm: newAssembler(messages, profiles)}
}

func (s *readServiceImpl) MarkRead(ctx context.Context, convID primitive.ObjectID, userID uint64) ([]*dto.MessageDTO, error) {
	ids, err := s.messages.FindUnreadIDs(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*dto.MessageDTO{}, nil
	}
	// 并发触发时只有写入成功的一方广播该条
	claimed, err := s.messages.AddReader(ctx, ids, userID)
	if err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		return []*dto.MessageDTO{}, nil
	}

	updated, err := s.messages.GetByIDs(ctx, claimed)
	if err != nil {
		return nil, err
	}
	return s.asm.messageList(ctx, updated)
}

func (s *readServiceImpl) UnreadCount(ctx context.Context, convID primitive.ObjectID, userID uint64) (int64, error) {
	return s.messages.CountUnread(ctx, convID, userID)
}

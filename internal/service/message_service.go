package service

import (
	"Courier/internal/api/dto"
	"Courier/internal/pkg/mongo"
	"Courier/internal/pkg/util"
	"context"
	"errors"
	log "log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageService 消息存储
type MessageService interface {
	SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error)
	// ListMessages 按创建时间升序返回，并将他人消息标记为已读
	ListMessages(ctx context.Context, userID uint64, convID string) ([]*dto.MessageDTO, error)
	GetMessage(ctx context.Context, userID uint64, msgID string) (*dto.MessageDTO, error)
	MarkRead(ctx context.Context, userID uint64, convID string) ([]*dto.MessageDTO, error)
}

type messageServiceImpl struct {
	convRepo mongo.ConversationRepo
	msgRepo  mongo.MessageRepo
	convs    ConversationService
	reads    ReadService
	asm      *assembler
}

func NewMessageService(convRepo mongo.ConversationRepo, msgRepo mongo.MessageRepo, convs ConversationService, reads ReadService, profiles ProfileService) MessageService {
	return &messageServiceImpl{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		convs:    convs,
		reads:    reads,
		asm:      newAssembler(msgRepo, profiles),
	}
}

// SendMessage 发送消息
func (s *messageServiceImpl) SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	if req == nil || req.ConversationID == "" || senderID == 0 {
		return nil, ErrParamInvalid
	}
	if req.Text == "" && req.Caption == "" && len(req.Media) == 0 {
		return nil, ErrEmptyMessage
	}

	conv, err := s.convs.Authorize(ctx, senderID, req.ConversationID)
	if err != nil {
		return nil, err
	}

	msgType, err := deriveType(req)
	if err != nil {
		return nil, err
	}

	var replyTo *primitive.ObjectID
	if req.ReplyTo != "" {
		target, err := s.resolveReply(ctx, conv.ID, req.ReplyTo)
		if err != nil {
			return nil, err
		}
		replyTo = &target.ID
	}

	now := nowFunc()
	msg := &mongo.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Type:           msgType,
		Text:           req.Text,
		Caption:        req.Caption,
		Media:          fromMediaDTOs(req.Media),
		PostID:         req.PostID,
		ReplyTo:        replyTo,
		IsReadBy:       []uint64{senderID},
		ClientTempID:   req.ClientTempID,
		CreatedAt:      now,
	}
	if err = s.msgRepo.Insert(ctx, msg); err != nil {
		return nil, err
	}

	if err = s.convRepo.TouchLastMessage(ctx, conv.ID, msg.ID, now); err != nil {
		// 会话指针更新失败时撤销消息，保证不留半成品
		if delErr := s.msgRepo.Delete(context.WithoutCancel(ctx), msg.ID); delErr != nil {
			log.ErrorContext(ctx, "compensating delete failed", "message_id", msg.ID.Hex(), "err", delErr)
		}
		return nil, err
	}

	return s.asm.message(ctx, msg)
}

func (s *messageServiceImpl) ListMessages(ctx context.Context, userID uint64, convID string) ([]*dto.MessageDTO, error) {
	conv, err := s.convs.Authorize(ctx, userID, convID)
	if err != nil {
		return nil, err
	}
	if _, err = s.reads.MarkRead(ctx, conv.ID, userID); err != nil {
		return nil, err
	}

	msgs, err := s.msgRepo.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	return s.asm.messageList(ctx, msgs)
}

func (s *messageServiceImpl) GetMessage(ctx context.Context, userID uint64, msgID string) (*dto.MessageDTO, error) {
	if userID == 0 {
		return nil, UnauthorizedError
	}
	id, ok := util.ParseObjectID(msgID)
	if !ok {
		return nil, ErrInvalidID
	}
	msg, err := s.msgRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if _, err = s.convs.Authorize(ctx, userID, msg.ConversationID.Hex()); err != nil {
		return nil, err
	}
	return s.asm.message(ctx, msg)
}

func (s *messageServiceImpl) MarkRead(ctx context.Context, userID uint64, convID string) ([]*dto.MessageDTO, error) {
	conv, err := s.convs.Authorize(ctx, userID, convID)
	if err != nil {
		return nil, err
	}
	return s.reads.MarkRead(ctx, conv.ID, userID)
}

func (s *messageServiceImpl) resolveReply(ctx context.Context, convID primitive.ObjectID, replyTo string) (*mongo.Message, error) {
	id, ok := util.ParseObjectID(replyTo)
	if !ok {
		return nil, ErrInvalidReply
	}
	target, err := s.msgRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNotFound) {
			return nil, ErrInvalidReply
		}
		return nil, err
	}
	if target.ConversationID != convID {
		return nil, ErrInvalidReply
	}
	return target, nil
}

// deriveType 显式类型优先，其次按内容形态推断
func deriveType(req *dto.SendMessageReq) (string, error) {
	if req.Type != "" {
		if !mongo.ValidMsgType(req.Type) {
			return "", ErrInvalidMsgType
		}
		return req.Type, nil
	}
	if req.PostID != "" {
		return mongo.MsgTypePost, nil
	}
	if len(req.Media) > 0 {
		switch req.Media[0].Kind {
		case mongo.MsgTypeImage, mongo.MsgTypeVideo:
			return req.Media[0].Kind, nil
		}
	}
	return mongo.MsgTypeText, nil
}

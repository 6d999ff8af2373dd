package service

import (
	"Courier/internal/api/dto"
	"Courier/internal/pkg/mongo"
	"Courier/internal/pkg/util"
	"context"
	"errors"
	log "log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// ConversationService 会话目录
type ConversationService interface {
	// StartConversation created 为 false 表示返回了已存在的单聊
	StartConversation(ctx context.Context, initiatorID uint64, participantIDs []uint64) (conv *dto.ConversationDTO, created bool, err error)
	GetConversation(ctx context.Context, userID uint64, convID string) (*dto.ConversationDTO, error)
	ListConversations(ctx context.Context, userID uint64) ([]*dto.ConversationDTO, error)
	// Authorize 校验用户属于该会话并返回会话文档
	Authorize(ctx context.Context, userID uint64, convID string) (*mongo.Conversation, error)
}

type conversationServiceImpl struct {
	convRepo         mongo.ConversationRepo
	reads            ReadService
	asm              *assembler
	defaultGroupName string
}

func NewConversationService(convRepo mongo.ConversationRepo, msgRepo mongo.MessageRepo, reads ReadService, profiles ProfileService, defaultGroupName string) ConversationService {
	if defaultGroupName == "" {
		defaultGroupName = "New Group"
	}
	return &conversationServiceImpl{
		convRepo:         convRepo,
		reads:            reads,
		asm:              newAssembler(msgRepo, profiles),
		defaultGroupName: defaultGroupName,
	}
}

// StartConversation 发起会话：两人复用已有单聊，三人及以上总是新建群聊
func (s *conversationServiceImpl) StartConversation(ctx context.Context, initiatorID uint64, participantIDs []uint64) (*dto.ConversationDTO, bool, error) {
	if initiatorID == 0 {
		return nil, false, UnauthorizedError
	}
	if len(participantIDs) == 0 {
		return nil, false, ErrEmptyParticipants
	}
	for _, id := range participantIDs {
		if id == 0 {
			return nil, false, ErrParamInvalid
		}
	}

	members := normalizeParticipants(initiatorID, participantIDs)
	now := nowFunc()

	switch {
	case len(members) == 1:
		return nil, false, ErrSelfChat

	case len(members) == 2:
		pairKey := mongo.DirectPairKey(members[0], members[1])
		existing, err := s.convRepo.FindDirectByPairKey(ctx, pairKey)
		if err == nil {
			return s.single(ctx, existing, initiatorID, false)
		}
		if !errors.Is(err, mongo.ErrNotFound) {
			return nil, false, err
		}

		conv := &mongo.Conversation{
			Participants: members,
			PairKey:      pairKey,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err = s.convRepo.Create(ctx, conv); err != nil {
			if !errors.Is(err, mongo.ErrDuplicatePair) {
				return nil, false, err
			}
			// 并发创建落败，返回胜出的那一条
			winner, findErr := s.convRepo.FindDirectByPairKey(ctx, pairKey)
			if findErr != nil {
				return nil, false, findErr
			}
			return s.single(ctx, winner, initiatorID, false)
		}
		log.InfoContext(ctx, "direct conversation created", "conversation_id", conv.ID.Hex(), "pair", pairKey)
		return s.single(ctx, conv, initiatorID, true)

	default:
		conv := &mongo.Conversation{
			Participants: members,
			IsGroup:      true,
			GroupName:    s.defaultGroupName,
			Admin:        initiatorID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.convRepo.Create(ctx, conv); err != nil {
			return nil, false, err
		}
		log.InfoContext(ctx, "group conversation created", "conversation_id", conv.ID.Hex(), "members", len(members))
		return s.single(ctx, conv, initiatorID, true)
	}
}

func (s *conversationServiceImpl) GetConversation(ctx context.Context, userID uint64, convID string) (*dto.ConversationDTO, error) {
	conv, err := s.Authorize(ctx, userID, convID)
	if err != nil {
		return nil, err
	}
	d, _, err := s.single(ctx, conv, userID, false)
	return d, err
}

// ListConversations 按最近活跃倒序，未读数在读取时计算
func (s *conversationServiceImpl) ListConversations(ctx context.Context, userID uint64) ([]*dto.ConversationDTO, error) {
	if userID == 0 {
		return nil, UnauthorizedError
	}
	convs, err := s.convRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	counts := make([]int64, len(convs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, c := range convs {
		g.Go(func() error {
			n, err := s.reads.UnreadCount(gCtx, c.ID, userID)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	unread := make(map[primitive.ObjectID]int64, len(convs))
	for i, c := range convs {
		unread[c.ID] = counts[i]
	}
	return s.asm.conversationList(ctx, convs, unread)
}

func (s *conversationServiceImpl) Authorize(ctx context.Context, userID uint64, convID string) (*mongo.Conversation, error) {
	if userID == 0 {
		return nil, UnauthorizedError
	}
	id, ok := util.ParseObjectID(convID)
	if !ok {
		return nil, ErrInvalidID
	}
	conv, err := s.convRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, UnauthorizedError
	}
	return conv, nil
}

func (s *conversationServiceImpl) single(ctx context.Context, conv *mongo.Conversation, viewer uint64, created bool) (*dto.ConversationDTO, bool, error) {
	unread := map[primitive.ObjectID]int64{}
	if !created {
		n, err := s.reads.UnreadCount(ctx, conv.ID, viewer)
		if err != nil {
			return nil, false, err
		}
		unread[conv.ID] = n
	}
	list, err := s.asm.conversationList(ctx, []*mongo.Conversation{conv}, unread)
	if err != nil {
		return nil, false, err
	}
	return list[0], created, nil
}

// normalizeParticipants 发起者在首位，其余按出现顺序去重
func normalizeParticipants(initiatorID uint64, participantIDs []uint64) []uint64 {
	seen := map[uint64]struct{}{initiatorID: {}}
	out := []uint64{initiatorID}
	for _, id := range participantIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

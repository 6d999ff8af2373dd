package memstore

import (
	"Courier/internal/pkg/mongo"
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConversationRepo 内存会话仓储
type ConversationRepo struct {
	mu     sync.RWMutex
	data   map[primitive.ObjectID]*mongo.Conversation
	strict bool

	// FailTouch 非空时 TouchLastMessage 直接返回该错误
	FailTouch error
	// BeforeCreate 插入前回调，测试用来制造并发窗口
	BeforeCreate func(conv *mongo.Conversation)
}

var _ mongo.ConversationRepo = (*ConversationRepo)(nil)

// NewConversationRepo strict 为 true 时模拟单聊唯一索引
func NewConversationRepo(strict bool) *ConversationRepo {
	return &ConversationRepo{
		data:   make(map[primitive.ObjectID]*mongo.Conversation),
		strict: strict,
	}
}

func (s *ConversationRepo) Create(_ context.Context, conv *mongo.Conversation) error {
	if s.BeforeCreate != nil {
		s.BeforeCreate(conv)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.strict && !conv.IsGroup && conv.PairKey != "" {
		for _, c := range s.data {
			if !c.IsGroup && c.PairKey == conv.PairKey {
				return mongo.ErrDuplicatePair
			}
		}
	}
	if conv.ID.IsZero() {
		conv.ID = primitive.NewObjectID()
	}
	s.data[conv.ID] = cloneConversation(conv)
	return nil
}

// Len 当前会话总数
func (s *ConversationRepo) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *ConversationRepo) GetByID(_ context.Context, id primitive.ObjectID) (*mongo.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[id]
	if !ok {
		return nil, mongo.ErrNotFound
	}
	return cloneConversation(c), nil
}

func (s *ConversationRepo) FindDirectByPairKey(_ context.Context, pairKey string) (*mongo.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *mongo.Conversation
	for _, c := range s.data {
		if c.IsGroup || c.PairKey != pairKey {
			continue
		}
		if found == nil || c.CreatedAt.Before(found.CreatedAt) ||
			(c.CreatedAt.Equal(found.CreatedAt) && c.ID.Hex() < found.ID.Hex()) {
			found = c
		}
	}
	if found == nil {
		return nil, mongo.ErrNotFound
	}
	return cloneConversation(found), nil
}

func (s *ConversationRepo) ListByParticipant(_ context.Context, userID uint64) ([]*mongo.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*mongo.Conversation, 0)
	for _, c := range s.data {
		if c.HasParticipant(userID) {
			out = append(out, cloneConversation(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out, nil
}

func (s *ConversationRepo) TouchLastMessage(_ context.Context, id primitive.ObjectID, msgID primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailTouch != nil {
		return s.FailTouch
	}
	c, ok := s.data[id]
	if !ok {
		return mongo.ErrNotFound
	}
	last := msgID
	c.LastMessage = &last
	c.UpdatedAt = at
	return nil
}

func (s *ConversationRepo) FindDuplicateDirectPairs(_ context.Context) ([]*mongo.DuplicatePair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make(map[string][]primitive.ObjectID)
	for _, c := range s.data {
		if !c.IsGroup && c.PairKey != "" {
			groups[c.PairKey] = append(groups[c.PairKey], c.ID)
		}
	}
	out := make([]*mongo.DuplicatePair, 0)
	for key, ids := range groups {
		if len(ids) > 1 {
			sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
			out = append(out, &mongo.DuplicatePair{PairKey: key, Count: len(ids), ConversationIDs: ids})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PairKey < out[j].PairKey })
	return out, nil
}

func cloneConversation(c *mongo.Conversation) *mongo.Conversation {
	cp := *c
	cp.Participants = append([]uint64(nil), c.Participants...)
	if c.LastMessage != nil {
		last := *c.LastMessage
		cp.LastMessage = &last
	}
	return &cp
}

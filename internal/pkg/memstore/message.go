package memstore

import (
	"Courier/internal/pkg/mongo"
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageRepo 内存消息仓储
type MessageRepo struct {
	mu   sync.RWMutex
	data map[primitive.ObjectID]*mongo.Message

	// FailInsert 非空时 Insert 直接返回该错误
	FailInsert error
	// BeforeAddReader 加锁前回调，测试用来制造并发窗口
	BeforeAddReader func(userID uint64)
}

var _ mongo.MessageRepo = (*MessageRepo)(nil)

func NewMessageRepo() *MessageRepo {
	return &MessageRepo{data: make(map[primitive.ObjectID]*mongo.Message)}
}

func (s *MessageRepo) Insert(_ context.Context, msg *mongo.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailInsert != nil {
		return s.FailInsert
	}
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	s.data[msg.ID] = cloneMessage(msg)
	return nil
}

func (s *MessageRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *MessageRepo) GetByID(_ context.Context, id primitive.ObjectID) (*mongo.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[id]
	if !ok {
		return nil, mongo.ErrNotFound
	}
	return cloneMessage(m), nil
}

func (s *MessageRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]*mongo.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*mongo.Message, 0, len(ids))
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if m, ok := s.data[id]; ok {
			out = append(out, cloneMessage(m))
		}
	}
	sortMessages(out)
	return out, nil
}

func (s *MessageRepo) ListByConversation(_ context.Context, convID primitive.ObjectID) ([]*mongo.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*mongo.Message, 0)
	for _, m := range s.data {
		if m.ConversationID == convID {
			out = append(out, cloneMessage(m))
		}
	}
	sortMessages(out)
	return out, nil
}

func (s *MessageRepo) FindUnreadIDs(_ context.Context, convID primitive.ObjectID, userID uint64) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var unread []*mongo.Message
	for _, m := range s.data {
		if isUnread(m, convID, userID) {
			unread = append(unread, m)
		}
	}
	sortMessages(unread)
	ids := make([]primitive.ObjectID, 0, len(unread))
	for _, m := range unread {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (s *MessageRepo) AddReader(_ context.Context, ids []primitive.ObjectID, userID uint64) ([]primitive.ObjectID, error) {
	if s.BeforeAddReader != nil {
		s.BeforeAddReader(userID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	claimed := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		m, ok := s.data[id]
		if !ok || m.IsReadByUser(userID) {
			continue
		}
		m.IsReadBy = append(m.IsReadBy, userID)
		claimed = append(claimed, id)
	}
	return claimed, nil
}

func (s *MessageRepo) CountUnread(_ context.Context, convID primitive.ObjectID, userID uint64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, m := range s.data {
		if isUnread(m, convID, userID) {
			n++
		}
	}
	return n, nil
}

func isUnread(m *mongo.Message, convID primitive.ObjectID, userID uint64) bool {
	return m.ConversationID == convID && m.SenderID != userID && !m.IsReadByUser(userID)
}

func sortMessages(ms []*mongo.Message) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.Before(ms[j].CreatedAt)
		}
		return ms[i].ID.Hex() < ms[j].ID.Hex()
	})
}

func cloneMessage(m *mongo.Message) *mongo.Message {
	cp := *m
	cp.Media = append([]mongo.Media(nil), m.Media...)
	cp.IsReadBy = append([]uint64(nil), m.IsReadBy...)
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		cp.ReplyTo = &r
	}
	return &cp
}

// Len 当前消息总数
func (s *MessageRepo) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

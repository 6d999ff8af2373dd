package realtime

import (
	"Courier/internal/api/dto"
	"Courier/internal/pkg/consts"
	"Courier/internal/service"
	"context"
	log "log/slog"
	"sync"

	"github.com/goccy/go-json"
)

// Hub 管理本实例内的房间成员，跨实例投递交给 Broker
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Session]struct{}
	sessions map[*Session]struct{}
	subs     map[string]*roomSub

	broker Broker
	convs  service.ConversationService
	msgs   service.MessageService
}

// roomSub 房间在 Broker 上的订阅状态，mu 在整个 Broker 调用期间持有
type roomSub struct {
	mu         sync.Mutex
	refs       int // 受 hub.mu 保护
	subscribed bool
}

func NewHub(broker Broker, convs service.ConversationService, msgs service.MessageService) *Hub {
	h := &Hub{
		rooms:    make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]struct{}),
		subs:     make(map[string]*roomSub),
		broker:   broker,
		convs:    convs,
		msgs:     msgs,
	}
	broker.Start(h.deliver)
	return h
}

func roomName(convID string) string {
	return consts.IMConversationKey + convID
}

// Register 登记连接，用于关闭时统一下线
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

// Unregister 连接断开时退出所有房间
func (h *Hub) Unregister(ctx context.Context, s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	left := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		h.removeLocked(room, s)
		left = append(left, room)
	}
	h.mu.Unlock()

	for _, room := range left {
		if err := h.syncRoom(ctx, room); err != nil {
			log.WarnContext(ctx, "room unsubscribe failed", "room", room, "err", err)
		}
	}
}

// Join 加入房间，视为用户正在查看会话，随即标记已读并广播增量
func (h *Hub) Join(ctx context.Context, s *Session, convID string) error {
	if _, err := h.convs.Authorize(ctx, s.UserID, convID); err != nil {
		return err
	}

	room := roomName(convID)
	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[room] = members
	}
	members[s] = struct{}{}
	s.rooms[room] = struct{}{}
	h.mu.Unlock()

	// 订阅完成后才广播已读增量
	if err := h.syncRoom(ctx, room); err != nil {
		h.leave(ctx, s, room)
		return err
	}
	log.DebugContext(ctx, "session joined room", "session", s.ID, "room", room)

	return h.RequestMarkRead(ctx, s, convID)
}

// Leave 退出房间，不改变任何状态
func (h *Hub) Leave(ctx context.Context, s *Session, convID string) {
	h.leave(ctx, s, roomName(convID))
}

func (h *Hub) leave(ctx context.Context, s *Session, room string) {
	h.mu.Lock()
	h.removeLocked(room, s)
	h.mu.Unlock()

	if err := h.syncRoom(ctx, room); err != nil {
		log.WarnContext(ctx, "room unsubscribe failed", "room", room, "err", err)
	}
}

func (h *Hub) removeLocked(room string, s *Session) {
	delete(s.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// syncRoom 按当前成员数对齐 Broker 订阅，同一房间的调用串行执行，
// 最后一次调用看到的成员状态即最终订阅状态
func (h *Hub) syncRoom(ctx context.Context, room string) error {
	h.mu.Lock()
	sub, ok := h.subs[room]
	if !ok {
		sub = &roomSub{}
		h.subs[room] = sub
	}
	sub.refs++
	h.mu.Unlock()

	sub.mu.Lock()
	err := h.reconcileLocked(ctx, room, sub)
	subscribed := sub.subscribed
	sub.mu.Unlock()

	h.mu.Lock()
	sub.refs--
	if sub.refs == 0 && !subscribed {
		delete(h.subs, room)
	}
	h.mu.Unlock()
	return err
}

func (h *Hub) reconcileLocked(ctx context.Context, room string, sub *roomSub) error {
	h.mu.RLock()
	want := len(h.rooms[room]) > 0
	h.mu.RUnlock()

	switch {
	case want && !sub.subscribed:
		if err := h.broker.Subscribe(ctx, room); err != nil {
			return err
		}
		sub.subscribed = true
	case !want && sub.subscribed:
		// 退订失败也视为已退订，下次加入时重新订阅
		sub.subscribed = false
		return h.broker.Unsubscribe(ctx, room)
	}
	return nil
}

// RequestMarkRead 标记已读，有增量时向房间广播 messagesRead
func (h *Hub) RequestMarkRead(ctx context.Context, s *Session, convID string) error {
	delta, err := h.msgs.MarkRead(ctx, s.UserID, convID)
	if err != nil {
		return err
	}
	if len(delta) == 0 {
		return nil
	}
	return h.broadcast(ctx, convID, dto.EventMessagesRead, &dto.MessagesReadEvent{
		ConversationID: convID,
		Messages:       delta,
	})
}

// PublishNewMessage 转发已持久化的消息，从存储重新读取以防伪造
func (h *Hub) PublishNewMessage(ctx context.Context, s *Session, req *dto.RelayReq) error {
	msg, err := h.msgs.GetMessage(ctx, s.UserID, req.ID)
	if err != nil {
		return err
	}
	if req.ConversationID != "" && req.ConversationID != msg.ConversationID {
		return service.ErrParamInvalid
	}
	return h.broadcast(ctx, msg.ConversationID, dto.EventNewMessage, msg)
}

func (h *Hub) broadcast(ctx context.Context, convID string, event string, data any) error {
	payload, err := encodeEnvelope(event, data)
	if err != nil {
		return err
	}
	return h.broker.Publish(ctx, roomName(convID), payload)
}

// deliver 非阻塞投递，发送队列已满的会话直接断开，由客户端重连后全量拉取
func (h *Hub) deliver(room string, payload []byte) {
	h.mu.RLock()
	var slow []*Session
	for s := range h.rooms[room] {
		if !s.trySend(payload) {
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		log.Warn("dropping slow session", "session", s.ID, "user_id", s.UserID, "room", room)
		s.Close()
	}
}

// RoomSize 本实例内房间成员数
func (h *Hub) RoomSize(convID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomName(convID)])
}

// Close 断开全部连接并关闭 Broker
func (h *Hub) Close() error {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
	return h.broker.Close()
}

func encodeEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&dto.Envelope{Event: event, Data: raw})
}

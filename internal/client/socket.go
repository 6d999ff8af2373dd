package client

import (
	"Courier/internal/api/dto"
	"context"
	log "log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	writeWait   = 10 * time.Second
	eventBuffer = 64
)

// ErrSocketClosed 连接已关闭
var ErrSocketClosed = errors.New("socket closed")

// Socket 实时通道客户端
type Socket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	events chan *dto.Envelope
	done   chan struct{}
	once   sync.Once
}

// Dial wsURL 形如 ws://host/api/chat/ws
func Dial(ctx context.Context, wsURL, token string) (*Socket, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse ws url")
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrap(err, "dial realtime")
	}

	s := &Socket{
		conn:   conn,
		events: make(chan *dto.Envelope, eventBuffer),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Events 服务端推送，连接关闭后 channel 被关闭
func (s *Socket) Events() <-chan *dto.Envelope {
	return s.events
}

func (s *Socket) Join(conversationID string, userID uint64) error {
	return s.send(dto.EventJoinConversation, &dto.RoomReq{ConversationID: conversationID, UserID: userID})
}

func (s *Socket) Leave(conversationID string) error {
	return s.send(dto.EventLeaveConversation, &dto.RoomReq{ConversationID: conversationID})
}

// PublishMessage 请求服务端转发已持久化的消息
func (s *Socket) PublishMessage(msg *dto.MessageDTO) error {
	return s.send(dto.EventSendMessage, &dto.RelayReq{ID: msg.ID, ConversationID: msg.ConversationID})
}

func (s *Socket) ReadMessages(conversationID string, userID uint64) error {
	return s.send(dto.EventReadMessages, &dto.RoomReq{ConversationID: conversationID, UserID: userID})
}

// SendRaw 发送任意帧
func (s *Socket) SendRaw(event string, data any) error {
	return s.send(event, data)
}

func (s *Socket) send(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(&dto.Envelope{Event: event, Data: raw})
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return ErrSocketClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Socket) readLoop() {
	defer close(s.events)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				log.Warn("realtime connection lost", "err", err)
			}
			s.Close()
			return
		}
		var env dto.Envelope
		if err = json.Unmarshal(raw, &env); err != nil {
			log.Warn("realtime malformed frame", "err", err)
			continue
		}
		select {
		case s.events <- &env:
		case <-s.done:
			return
		}
	}
}

// Close 可重复调用
func (s *Socket) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

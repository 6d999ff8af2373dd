package realtime

import (
	"Courier/internal/api/config"
	"Courier/internal/api/dto"
	"Courier/internal/pkg/util"
	"Courier/internal/service"
	"context"
	log "log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Session 单个 WebSocket 连接
type Session struct {
	ID     string
	UserID uint64

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	// rooms 由 hub.mu 保护
	rooms map[string]struct{}

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
	maxSize    int64
}

func NewSession(hub *Hub, conn *websocket.Conn, userID uint64, cfg config.RealtimeConfig) *Session {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}
	s := &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, buffer),
		done:       make(chan struct{}),
		rooms:      make(map[string]struct{}),
		writeWait:  seconds(cfg.WriteWaitSeconds, 10),
		pongWait:   seconds(cfg.PongWaitSeconds, 60),
		pingPeriod: seconds(cfg.PingPeriodSeconds, 54),
		maxSize:    cfg.MaxMessageSizeBytes,
	}
	if s.pingPeriod >= s.pongWait {
		s.pingPeriod = s.pongWait * 9 / 10
	}
	if s.maxSize <= 0 {
		s.maxSize = 64 * 1024
	}
	return s
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

// Run 阻塞直到连接断开
func (s *Session) Run(ctx context.Context) {
	s.hub.Register(s)
	log.InfoContext(ctx, "WS session opened", "session", s.ID)

	go s.writePump()
	s.readPump(ctx)

	s.hub.Unregister(ctx, s)
	s.Close()
	log.InfoContext(ctx, "WS session closed", "session", s.ID)
}

// Close 可重复调用
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

// Done 连接关闭后返回
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) trySend(payload []byte) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *Session) readPump(ctx context.Context) {
	s.conn.SetReadLimit(s.maxSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		msgType, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.WarnContext(ctx, "WS read error", "session", s.ID, "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var env dto.Envelope
		if err = json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			log.WarnContext(ctx, "WS malformed frame", "session", s.ID, "err", err)
			s.sendError("", service.ErrParamInvalid)
			continue
		}
		if err = s.dispatch(ctx, &env); err != nil {
			s.sendError(env.Event, err)
		}
	}
}

func (s *Session) dispatch(ctx context.Context, env *dto.Envelope) error {
	switch env.Event {
	case dto.EventJoinConversation, dto.EventLeaveConversation, dto.EventReadMessages:
		var req dto.RoomReq
		if err := decodePayload(env.Data, &req); err != nil {
			return err
		}
		switch env.Event {
		case dto.EventJoinConversation:
			return s.hub.Join(ctx, s, req.ConversationID)
		case dto.EventLeaveConversation:
			s.hub.Leave(ctx, s, req.ConversationID)
			return nil
		default:
			return s.hub.RequestMarkRead(ctx, s, req.ConversationID)
		}

	case dto.EventSendMessage:
		var req dto.RelayReq
		if err := decodePayload(env.Data, &req); err != nil {
			return err
		}
		return s.hub.PublishNewMessage(ctx, s, &req)

	default:
		return service.ErrParamInvalid
	}
}

func decodePayload(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return service.ErrParamInvalid
	}
	if err := json.Unmarshal(data, v); err != nil {
		return service.ErrParamInvalid
	}
	if err := util.ValidateDTO(v); err != nil {
		return service.ErrParamInvalid
	}
	return nil
}

// sendError 错误只回给当前会话
func (s *Session) sendError(event string, err error) {
	code, known := service.CodeOf(err)
	msg := err.Error()
	if !known {
		log.Error("WS handler failed", "session", s.ID, "event", event, "err", err)
		msg = service.UnExpectedError.Error()
	}
	payload, encErr := encodeEnvelope(dto.EventError, &dto.ErrorEvent{Event: event, Code: code, Message: msg})
	if encErr != nil {
		return
	}
	if !s.trySend(payload) {
		s.Close()
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case message := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

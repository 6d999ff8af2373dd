package dto

import "github.com/goccy/go-json"

// 实时事件名
const (
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
	EventSendMessage       = "sendMessage"
	EventReadMessages      = "readMessages"
	EventNewMessage        = "newMessage"
	EventMessagesRead      = "messagesRead"
	EventError             = "error"
)

// Envelope WebSocket 帧
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RoomReq joinConversation / leaveConversation / readMessages 的载荷
type RoomReq struct {
	ConversationID string `json:"conversationId" validate:"required,len=24,hexadecimal"`
	// 仅作兼容，服务端始终以连接身份为准
	UserID uint64 `json:"userId,omitempty"`
}

// RelayReq sendMessage 载荷，消息必须已通过 REST 持久化
type RelayReq struct {
	ID             string `json:"id" validate:"required,len=24,hexadecimal"`
	ConversationID string `json:"conversationId" validate:"omitempty,len=24,hexadecimal"`
}

// MessagesReadEvent 已读增量
type MessagesReadEvent struct {
	ConversationID string        `json:"conversationId"`
	Messages       []*MessageDTO `json:"messages"`
}

// ErrorEvent 下发给出错会话的错误帧
type ErrorEvent struct {
	Event   string `json:"event"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

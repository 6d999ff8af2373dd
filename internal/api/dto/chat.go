package dto

import "time"

// UserBriefDTO 展示用的用户简要资料
type UserBriefDTO struct {
	UserID    uint64 `json:"userId"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatarUrl"`
}

// MediaDTO 附件描述
type MediaDTO struct {
	Kind     string  `json:"kind" binding:"required,oneof=image video"`
	URL      string  `json:"url" binding:"required"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	CoverURL string  `json:"coverUrl,omitempty"`
}

// StartConversationReq 发起会话
type StartConversationReq struct {
	ParticipantIDs []uint64 `json:"participantIds"`
}

// SendMessageReq 发送消息请求体
type SendMessageReq struct {
	ConversationID string     `json:"conversationId"`
	Type           string     `json:"type,omitempty"`
	Text           string     `json:"text,omitempty"`
	Caption        string     `json:"caption,omitempty"`
	Media          []MediaDTO `json:"media,omitempty" binding:"omitempty,dive"`
	PostID         string     `json:"postId,omitempty"`
	ReplyTo        string     `json:"replyTo,omitempty"`
	ClientTempID   string     `json:"clientTempId,omitempty" binding:"omitempty,max=64"`
}

// ReplyDTO 被回复消息的摘要
type ReplyDTO struct {
	ID      string        `json:"id"`
	Sender  *UserBriefDTO `json:"sender"`
	Text    string        `json:"text,omitempty"`
	Caption string        `json:"caption,omitempty"`
	Media   []MediaDTO    `json:"media,omitempty"`
}

// MessageDTO 消息明细响应
type MessageDTO struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	Sender         *UserBriefDTO   `json:"sender"`
	Type           string          `json:"type"`
	Text           string          `json:"text,omitempty"`
	Caption        string          `json:"caption,omitempty"`
	Media          []MediaDTO      `json:"media"`
	PostID         string          `json:"postId,omitempty"`
	ReplyTo        *ReplyDTO       `json:"replyTo,omitempty"`
	IsReadBy       []*UserBriefDTO `json:"isReadBy"`
	ClientTempID   string          `json:"clientTempId,omitempty"`
	Status         string          `json:"status,omitempty"` // 仅客户端使用: sending | confirmed | failed
	CreatedAt      time.Time       `json:"createdAt"`
}

// LastMessageDTO 会话列表中的最新消息预览
type LastMessageDTO struct {
	ID        string    `json:"id"`
	SenderID  uint64    `json:"senderId"`
	Text      string    `json:"text,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationDTO 会话响应
type ConversationDTO struct {
	ID           string          `json:"id"`
	Participants []*UserBriefDTO `json:"participants"`
	IsGroup      bool            `json:"isGroup"`
	GroupName    string          `json:"groupName,omitempty"`
	Admin        *UserBriefDTO   `json:"admin,omitempty"`
	LastMessage  *LastMessageDTO `json:"lastMessage,omitempty"`
	UnreadCount  int64           `json:"unreadCount"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

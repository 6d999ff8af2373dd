package mongo

import (
	"Courier/internal/pkg/util"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 消息类型
const (
	MsgTypeText  = "text"
	MsgTypeImage = "image"
	MsgTypeVideo = "video"
	MsgTypePost  = "post"
	MsgTypeReel  = "reel"
)

// ValidMsgType 校验消息类型
func ValidMsgType(t string) bool {
	switch t {
	case MsgTypeText, MsgTypeImage, MsgTypeVideo, MsgTypePost, MsgTypeReel:
		return true
	}
	return false
}

// Message 消息明细文档，创建后仅 IsReadBy 单调增长
type Message struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ConversationID primitive.ObjectID  `bson:"conversation_id" json:"conversationId"`
	SenderID       uint64              `bson:"sender_id" json:"senderId"`
	Type           string              `bson:"type" json:"type"`
	Text           string              `bson:"text,omitempty" json:"text,omitempty"`
	Caption        string              `bson:"caption,omitempty" json:"caption,omitempty"`
	Media          []Media             `bson:"media" json:"media"`
	PostID         string              `bson:"post_id,omitempty" json:"postId,omitempty"` // 外部内容引用，不做解析
	ReplyTo        *primitive.ObjectID `bson:"reply_to,omitempty" json:"replyTo,omitempty"`
	IsReadBy       []uint64            `bson:"is_read_by" json:"isReadBy"`
	ClientTempID   string              `bson:"client_temp_id,omitempty" json:"clientTempId,omitempty"`
	CreatedAt      time.Time           `bson:"created_at" json:"createdAt"`
}

// Media 附件
type Media struct {
	Kind     string  `bson:"kind" json:"kind"`
	URL      string  `bson:"url" json:"url"`
	Width    int     `bson:"width,omitempty" json:"width,omitempty"`
	Height   int     `bson:"height,omitempty" json:"height,omitempty"`
	Duration float64 `bson:"duration,omitempty" json:"duration,omitempty"`
	CoverURL string  `bson:"cover_url,omitempty" json:"coverUrl,omitempty"`
}

// IsReadByUser 判断用户是否已读
func (m *Message) IsReadByUser(userID uint64) bool {
	return util.ContainsUint64(m.IsReadBy, userID)
}

package mongo

import (
	"Courier/internal/pkg/util"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation 会话文档
type Conversation struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Participants []uint64            `bson:"participants" json:"participants"`           // 参与者 UID，去重
	PairKey      string              `bson:"pair_key,omitempty" json:"pairKey,omitempty"` // 单聊归一化键 uid1_uid2
	IsGroup      bool                `bson:"is_group" json:"isGroup"`
	GroupName    string              `bson:"group_name,omitempty" json:"groupName,omitempty"`
	Admin        uint64              `bson:"admin,omitempty" json:"admin,omitempty"`
	LastMessage  *primitive.ObjectID `bson:"last_message,omitempty" json:"lastMessage,omitempty"` // 最新消息指针
	CreatedAt    time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updated_at" json:"updatedAt"`
}

// HasParticipant 判断用户是否属于该会话
func (c *Conversation) HasParticipant(userID uint64) bool {
	return util.ContainsUint64(c.Participants, userID)
}

// DirectPairKey 生成单聊唯一标识，与参数顺序无关
func DirectPairKey(a, b uint64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

// DuplicatePair 审计结果：同一对用户存在多个单聊
type DuplicatePair struct {
	PairKey         string               `bson:"_id"`
	Count           int                  `bson:"count"`
	ConversationIDs []primitive.ObjectID `bson:"ids"`
}

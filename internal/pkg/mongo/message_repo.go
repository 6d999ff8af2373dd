package mongo

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MessageRepo interface {
	Insert(ctx context.Context, msg *Message) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*Message, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*Message, error)
	ListByConversation(ctx context.Context, convID primitive.ObjectID) ([]*Message, error)
	FindUnreadIDs(ctx context.Context, convID primitive.ObjectID, userID uint64) ([]primitive.ObjectID, error)
	// AddReader 返回本次调用实际新增已读的消息，并发调用之间互不重叠
	AddReader(ctx context.Context, ids []primitive.ObjectID, userID uint64) ([]primitive.ObjectID, error)
	CountUnread(ctx context.Context, convID primitive.ObjectID, userID uint64) (int64, error)
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection(messageCollection),
	}
}

// Insert 将消息存入 MongoDB，ID 回填到 msg
func (s *messageRepoImpl) Insert(ctx context.Context, msg *Message) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, msg)
	return errors.Wrap(err, "insert message")
}

// Delete 补偿删除，仅在会话更新失败时使用
func (s *messageRepoImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	return errors.Wrap(err, "delete message")
}

func (s *messageRepoImpl) GetByID(ctx context.Context, id primitive.ObjectID) (*Message, error) {
	var msg Message
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "find message")
	}
	return &msg, nil
}

// GetByIDs 批量查询，结果按创建时间升序
func (s *messageRepoImpl) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*Message, error) {
	if len(ids) == 0 {
		return []*Message{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// ListByConversation 会话全部消息，按创建时间升序
func (s *messageRepoImpl) ListByConversation(ctx context.Context, convID primitive.ObjectID) ([]*Message, error) {
	return s.find(ctx, bson.M{"conversation_id": convID})
}

// FindUnreadIDs 他人发送且该用户未读的消息
func (s *messageRepoImpl) FindUnreadIDs(ctx context.Context, convID primitive.ObjectID, userID uint64) ([]primitive.ObjectID, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.col.Find(ctx, unreadFilter(convID, userID), opts)
	if err != nil {
		return nil, errors.Wrap(err, "find unread")
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "decode unread")
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// AddReader 逐条条件更新，只有把用户写入已读集合的那次调用才会拿到该消息
func (s *messageRepoImpl) AddReader(ctx context.Context, ids []primitive.ObjectID, userID uint64) ([]primitive.ObjectID, error) {
	claimed := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		res, err := s.col.UpdateOne(ctx,
			bson.M{"_id": id, "is_read_by": bson.M{"$ne": userID}},
			bson.M{"$addToSet": bson.M{"is_read_by": userID}},
		)
		if err != nil {
			return nil, errors.Wrap(err, "add reader")
		}
		if res.ModifiedCount == 1 {
			claimed = append(claimed, id)
		}
	}
	return claimed, nil
}

func (s *messageRepoImpl) CountUnread(ctx context.Context, convID primitive.ObjectID, userID uint64) (int64, error) {
	n, err := s.col.CountDocuments(ctx, unreadFilter(convID, userID))
	if err != nil {
		return 0, errors.Wrap(err, "count unread")
	}
	return n, nil
}

func (s *messageRepoImpl) find(ctx context.Context, filter bson.M) ([]*Message, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, errors.Wrap(err, "find messages")
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	messages := make([]*Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, errors.Wrap(err, "decode messages")
	}
	return messages, nil
}

func unreadFilter(convID primitive.ObjectID, userID uint64) bson.M {
	return bson.M{
		"conversation_id": convID,
		"sender_id":       bson.M{"$ne": userID},
		"is_read_by":      bson.M{"$ne": userID},
	}
}

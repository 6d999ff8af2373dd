package mongo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ConversationRepo interface {
	Create(ctx context.Context, conv *Conversation) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*Conversation, error)
	FindDirectByPairKey(ctx context.Context, pairKey string) (*Conversation, error)
	ListByParticipant(ctx context.Context, userID uint64) ([]*Conversation, error)
	TouchLastMessage(ctx context.Context, id primitive.ObjectID, msgID primitive.ObjectID, at time.Time) error
	FindDuplicateDirectPairs(ctx context.Context) ([]*DuplicatePair, error)
}

type conversationRepoImpl struct {
	col *mongo.Collection
}

func NewConversationRepo(db *mongo.Database) ConversationRepo {
	return &conversationRepoImpl{
		col: db.Collection(conversationCollection),
	}
}

// Create 新建会话，ID 由调用方回填
func (s *conversationRepoImpl) Create(ctx context.Context, conv *Conversation) error {
	if conv.ID.IsZero() {
		conv.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, conv)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicatePair
	}
	return errors.Wrap(err, "insert conversation")
}

func (s *conversationRepoImpl) GetByID(ctx context.Context, id primitive.ObjectID) (*Conversation, error) {
	var conv Conversation
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "find conversation")
	}
	return &conv, nil
}

// FindDirectByPairKey 查找两人单聊，多条时取最早创建的一条
func (s *conversationRepoImpl) FindDirectByPairKey(ctx context.Context, pairKey string) (*Conversation, error) {
	var conv Conversation
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	err := s.col.FindOne(ctx, bson.M{"is_group": false, "pair_key": pairKey}, opts).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "find direct conversation")
	}
	return &conv, nil
}

// ListByParticipant 用户参与的全部会话，按最近活跃倒序
func (s *conversationRepoImpl) ListByParticipant(ctx context.Context, userID uint64) ([]*Conversation, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := s.col.Find(ctx, bson.M{"participants": userID}, findOptions)
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	convs := make([]*Conversation, 0)
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, errors.Wrap(err, "decode conversations")
	}
	return convs, nil
}

// TouchLastMessage 更新最新消息指针与活跃时间
func (s *conversationRepoImpl) TouchLastMessage(ctx context.Context, id primitive.ObjectID, msgID primitive.ObjectID, at time.Time) error {
	res, err := s.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"last_message": msgID, "updated_at": at},
	})
	if err != nil {
		return errors.Wrap(err, "touch conversation")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// FindDuplicateDirectPairs 审计同一对用户下的重复单聊
func (s *conversationRepoImpl) FindDuplicateDirectPairs(ctx context.Context) ([]*DuplicatePair, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"is_group": false, "pair_key": bson.M{"$exists": true}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$pair_key",
			"count": bson.M{"$sum": 1},
			"ids":   bson.M{"$push": "$_id"},
		}}},
		{{Key: "$match", Value: bson.M{"count": bson.M{"$gt": 1}}}},
	}

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate duplicate pairs")
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var pairs []*DuplicatePair
	if err := cursor.All(ctx, &pairs); err != nil {
		return nil, errors.Wrap(err, "decode duplicate pairs")
	}
	return pairs, nil
}

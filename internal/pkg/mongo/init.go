package mongo

import (
	"Courier/internal/api/config"
	"Courier/internal/pkg/logger"
	"context"
	log "log/slog"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	conversationCollection = "conversation"
	messageCollection      = "message"
)

// ErrNotFound 文档不存在
var ErrNotFound = mongo.ErrNoDocuments

// ErrDuplicatePair 严格模式下单聊唯一索引冲突
var ErrDuplicatePair = errors.New("direct conversation already exists")

// InitMongo 建立连接并返回 Database 引用，同时初始化索引
func InitMongo(cfg config.MongoConfig, strictDirect bool) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 建立连接
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URL).
		SetMonitor(logger.NewMongoMonitor()),
	)
	if err != nil {
		return nil, err
	}

	// 检查连通性
	if err = client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(cfg.Database)
	if err = EnsureIndexes(ctx, db, strictDirect); err != nil {
		return nil, err
	}

	log.Info("MongoDB initialized successfully", "db", cfg.Database, "strict_direct", strictDirect)
	return db, nil
}

// EnsureIndexes 创建会话与消息集合所需索引
func EnsureIndexes(ctx context.Context, db *mongo.Database, strictDirect bool) error {
	pairIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "pair_key", Value: 1}},
		Options: options.Index().SetName("idx_pair_key"),
	}
	if strictDirect {
		pairIndex.Options = options.Index().
			SetName("uniq_direct_pair_key").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"is_group": false, "pair_key": bson.M{"$exists": true}})
	}

	convIndexes := []mongo.IndexModel{
		pairIndex,
		{
			Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_participant_updated"),
		},
	}
	if _, err := db.Collection(conversationCollection).Indexes().CreateMany(ctx, convIndexes); err != nil {
		return errors.Wrap(err, "create conversation indexes")
	}

	msgIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_conv_created"),
		},
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "is_read_by", Value: 1}},
			Options: options.Index().SetName("idx_conv_readers"),
		},
	}
	if _, err := db.Collection(messageCollection).Indexes().CreateMany(ctx, msgIndexes); err != nil {
		return errors.Wrap(err, "create message indexes")
	}
	return nil
}

package wire

import (
	"Courier/internal/api"
	"Courier/internal/api/config"
	"Courier/internal/api/handler"
	"Courier/internal/job"
	"Courier/internal/model"
	"Courier/internal/pkg/cron"
	"Courier/internal/pkg/kafka"
	"Courier/internal/pkg/memstore"
	"Courier/internal/pkg/minio"
	"Courier/internal/pkg/mongo"
	"Courier/internal/pkg/redis"
	"Courier/internal/pkg/security"
	"Courier/internal/realtime"
	"Courier/internal/repository"
	"Courier/internal/service"
	log "log/slog"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Infra 已建立的外部连接，未启用的为 nil
type Infra struct {
	DB    *gorm.DB
	Mongo *mongodriver.Database
	Redis *goredis.Client
}

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router       *gin.Engine
	Hub          *realtime.Hub
	CronMgr      *cron.Manager
	KafkaManager *kafka.ConsumerManager
	Profiles     service.ProfileService
}

func BuildApplication(infra *Infra, cfg *config.Config) (*ApplicationContainer, error) {
	if infra == nil {
		infra = &Infra{}
	}

	// 会话与消息存储
	var convRepo mongo.ConversationRepo
	var msgRepo mongo.MessageRepo
	if cfg.Storage.Driver == "mongo" && infra.Mongo != nil {
		convRepo = mongo.NewConversationRepo(infra.Mongo)
		msgRepo = mongo.NewMessageRepo(infra.Mongo)
	} else {
		convRepo = memstore.NewConversationRepo(cfg.IM.StrictDirectUniqueness)
		msgRepo = memstore.NewMessageRepo()
	}

	// 用户资料与缓存
	var profileRepo repository.UserProfileRepo
	if infra.DB != nil {
		profileRepo = repository.NewUserProfileRepo(infra.DB)
	} else {
		profileRepo = memstore.NewProfileRepo(seedProfiles(cfg.Storage.SeedProfiles)...)
	}
	var profileCache redis.ProfileCache
	var revocation security.Revocation
	if infra.Redis != nil {
		profileCache = redis.NewProfileCache(infra.Redis, time.Duration(cfg.IM.ProfileCacheTTL)*time.Minute)
		revocation = redis.NewTokenBlacklist(infra.Redis)
	} else {
		profileCache = memstore.NewProfileCache()
	}
	minioCfg := cfg.MinIO
	profiles := service.NewProfileService(profileRepo, profileCache, func(name string) string {
		return minio.GetPublicURL(minioCfg, name)
	})

	reads := service.NewReadService(msgRepo, profiles)
	convs := service.NewConversationService(convRepo, msgRepo, reads, profiles, cfg.IM.DefaultGroupName)
	msgs := service.NewMessageService(convRepo, msgRepo, convs, reads, profiles)

	// 房间广播
	var broker realtime.Broker = realtime.NewLocalBroker()
	if cfg.Realtime.Broker == "redis" && infra.Redis != nil {
		broker = realtime.NewRedisBroker(infra.Redis)
	}
	hub := realtime.NewHub(broker, convs, msgs)

	handlers := &api.HandlersGroup{
		ChatHandler: handler.NewChatHandler(convs, msgs),
		WsHandler:   handler.NewWsHandler(hub, revocation, cfg.Realtime),
		Revocation:  revocation,
	}
	router := api.SetupRouter(handlers)

	duplicateJob := job.NewDuplicateConversationJob(convRepo, infra.Redis != nil)
	cronMgr := cron.NewCronManager(cfg.IM.DuplicateAuditSpec, duplicateJob)

	var kafkaMgr *kafka.ConsumerManager
	if cfg.Kafka.Enable {
		var err error
		kafkaMgr, err = kafka.NewConsumerManager(cfg, profiles)
		if err != nil {
			return nil, err
		}
	}

	log.Info("Application assembled",
		"storage", cfg.Storage.Driver,
		"broker", cfg.Realtime.Broker,
		"profile_db", infra.DB != nil,
		"kafka", kafkaMgr != nil,
	)

	return &ApplicationContainer{
		Router:       router,
		Hub:          hub,
		CronMgr:      cronMgr,
		KafkaManager: kafkaMgr,
		Profiles:     profiles,
	}, nil
}

func seedProfiles(seed []config.SeedProfile) []*model.UserDetail {
	out := make([]*model.UserDetail, 0, len(seed))
	for _, p := range seed {
		out = append(out, &model.UserDetail{UserID: p.UserID, Nickname: p.Nickname, AvatarURL: p.AvatarURL})
	}
	return out
}

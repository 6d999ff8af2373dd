package config

// Config 配置主体
type Config struct {
	Server                  ServerConfig            `mapstructure:"server"`
	DB                      DBConfig                `mapstructure:"database"`
	Redis                   RedisConfig             `mapstructure:"redis"`
	Mongo                   MongoConfig             `mapstructure:"mongo"`
	MinIO                   MinIOConfig             `mapstructure:"minio"`
	Kafka                   KafkaConfig             `mapstructure:"kafka"`
	KafkaUserDetailConsumer KafkaUserDetailConsumer `mapstructure:"kafka_user_detail_consumer"`
	Logstash                LogstashConfig          `mapstructure:"logstash"`
	JWT                     JWTConfig               `mapstructure:"jwt"`
	Storage                 StorageConfig           `mapstructure:"storage"`
	Realtime                RealtimeConfig          `mapstructure:"realtime"`
	IM                      IMConfig                `mapstructure:"im"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port        int `mapstructure:"port"`
	ReadTimeout int `mapstructure:"read_timeout"`
}

// DBConfig 用户资料库 (MySQL)
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

// MinIOConfig 头像存储
type MinIOConfig struct {
	InternalEndpoint string `mapstructure:"internal_endpoint"`
	ExternalEndpoint string `mapstructure:"external_endpoint"`
	AccessKey        string `mapstructure:"access_key"`
	SecretKey        string `mapstructure:"secret_key"`
	AvatarBucket     string `mapstructure:"avatar_bucket"`
	InternalUseSSL   bool   `mapstructure:"internal_use_ssl"`
	ExternalUseSSL   bool   `mapstructure:"external_use_ssl"`
}

type KafkaConfig struct {
	Enable   bool           `mapstructure:"enable"`
	Brokers  []string       `mapstructure:"brokers"`
	Sasl     SaslConfig     `mapstructure:"sasl"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ConsumerConfig struct {
	SessionTimeout    int `mapstructure:"session_timeout"`
	HeartbeatInterval int `mapstructure:"heartbeat_interval"`
	RebalanceTimeout  int `mapstructure:"rebalance_timeout"`
	MaxProcessingTime int `mapstructure:"max_processing_time"`
}

type KafkaUserDetailConsumer struct {
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type LogstashConfig struct {
	Address string `mapstructure:"address"`
	Index   string `mapstructure:"index"`
	Token   string `mapstructure:"token"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
	TTL    int    `mapstructure:"ttl"` // 小时
}

// StorageConfig 存储驱动: mongo | memory
type StorageConfig struct {
	Driver       string        `mapstructure:"driver"`
	SeedProfiles []SeedProfile `mapstructure:"seed_profiles"`
}

// SeedProfile memory 模式下预置的用户资料
type SeedProfile struct {
	UserID    uint64 `mapstructure:"user_id"`
	Nickname  string `mapstructure:"nickname"`
	AvatarURL string `mapstructure:"avatar_url"`
}

// RealtimeConfig 房间广播: redis | local
type RealtimeConfig struct {
	Broker              string `mapstructure:"broker"`
	SendBuffer          int    `mapstructure:"send_buffer"`
	WriteWaitSeconds    int    `mapstructure:"write_wait_seconds"`
	PongWaitSeconds     int    `mapstructure:"pong_wait_seconds"`
	PingPeriodSeconds   int    `mapstructure:"ping_period_seconds"`
	MaxMessageSizeBytes int64  `mapstructure:"max_message_size_bytes"`
}

type IMConfig struct {
	DefaultGroupName       string `mapstructure:"default_group_name"`
	StrictDirectUniqueness bool   `mapstructure:"strict_direct_uniqueness"`
	ProfileCacheTTL        int    `mapstructure:"profile_cache_ttl"` // 分钟
	DuplicateAuditSpec     string `mapstructure:"duplicate_audit_spec"`
}

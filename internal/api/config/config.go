package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从文件加载配置并填充到 Cfg，配置文件缺失时使用默认值
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("COURIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	Cfg = &cfg

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)

	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.max_open", 50)
	v.SetDefault("database.max_lifetime", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("mongo.url", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "courier")

	v.SetDefault("minio.avatar_bucket", "avatars")

	v.SetDefault("kafka.consumer.session_timeout", 10)
	v.SetDefault("kafka.consumer.heartbeat_interval", 3)
	v.SetDefault("kafka.consumer.rebalance_timeout", 60)
	v.SetDefault("kafka.consumer.max_processing_time", 5)
	v.SetDefault("kafka_user_detail_consumer.topic", "canal_user_detail")
	v.SetDefault("kafka_user_detail_consumer.group_id", "courier_user_detail")

	v.SetDefault("logstash.index", "logstash-courier")

	v.SetDefault("jwt.issuer", "Courier")
	v.SetDefault("jwt.ttl", 24)

	v.SetDefault("storage.driver", "memory")

	v.SetDefault("realtime.broker", "local")
	v.SetDefault("realtime.send_buffer", 256)
	v.SetDefault("realtime.write_wait_seconds", 10)
	v.SetDefault("realtime.pong_wait_seconds", 60)
	v.SetDefault("realtime.ping_period_seconds", 54)
	v.SetDefault("realtime.max_message_size_bytes", 64*1024)

	v.SetDefault("im.default_group_name", "New Group")
	v.SetDefault("im.profile_cache_ttl", 60)
	v.SetDefault("im.duplicate_audit_spec", "0 0 3 * * *")
}

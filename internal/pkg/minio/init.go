package minio

import (
	"Courier/internal/api/config"
	"context"
	"fmt"
	log "log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	// Client 全局 MinIO 客户端实例
	Client *minio.Client
	// AvatarBucket 头像存储桶
	AvatarBucket string
)

// Init 初始化 MinIO 客户端并确认头像桶可访问
func Init(cfg config.MinIOConfig) error {
	endpoint, useSSL := cfg.InternalEndpoint, cfg.InternalUseSSL
	if endpoint == "" {
		endpoint, useSSL = cfg.ExternalEndpoint, cfg.ExternalUseSSL
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.AvatarBucket)
	if err != nil {
		return fmt.Errorf("failed to connect to minio server: %w", err)
	}
	if !exists {
		log.Warn("Avatar bucket not found, avatar urls may be broken", "bucket", cfg.AvatarBucket)
	}

	Client = client
	AvatarBucket = cfg.AvatarBucket
	return nil
}

package minio

import (
	"Courier/internal/api/config"
	"fmt"
	"strings"
)

// GetPublicURL 将头像对象名转换为客户端可访问的地址，已是完整 URL 的原样返回
func GetPublicURL(cfg config.MinIOConfig, objectName string) string {
	if objectName == "" {
		return ""
	}
	if strings.HasPrefix(objectName, "http://") || strings.HasPrefix(objectName, "https://") {
		return objectName
	}

	endpoint, useSSL := cfg.ExternalEndpoint, cfg.ExternalUseSSL
	if endpoint == "" && Client != nil {
		u := Client.EndpointURL()
		endpoint, useSSL = u.Host, u.Scheme == "https"
	}
	if endpoint == "" {
		endpoint, useSSL = cfg.InternalEndpoint, cfg.InternalUseSSL
	}
	if endpoint == "" {
		return objectName
	}

	protocol := "http"
	if useSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, endpoint, cfg.AvatarBucket, strings.TrimPrefix(objectName, "/"))
}

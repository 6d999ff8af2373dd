package logger

import (
	"context"
	log "log/slog"
)

type ctxKey string

// Context 中携带的日志字段
const (
	TraceIDKey = "trace_id"
	UserIDKey  = "user_id"
)

// WithTraceID 将 trace_id 写入 ctx
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey(TraceIDKey), traceID)
}

// WithUserID 将当前用户写入 ctx，会话连接等长生命周期场景使用
func WithUserID(ctx context.Context, userID uint64) context.Context {
	return context.WithValue(ctx, ctxKey(UserIDKey), userID)
}

// TraceID 取出 trace_id，不存在返回空串
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(ctxKey(TraceIDKey)).(string); ok {
		return id
	}
	// gin.Context 以字符串为 key 存值
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextHandler 从 ctx 中提取 trace_id 与 user_id 附加到每条日志
type ContextHandler struct {
	log.Handler
}

func (h *ContextHandler) Handle(ctx context.Context, r log.Record) error {
	if traceID := TraceID(ctx); traceID != "" {
		r.AddAttrs(log.String(TraceIDKey, traceID))
	}
	if ctx != nil {
		if uid, ok := ctx.Value(ctxKey(UserIDKey)).(uint64); ok {
			r.AddAttrs(log.Uint64(UserIDKey, uid))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []log.Attr) log.Handler {
	return &ContextHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) log.Handler {
	return &ContextHandler{h.Handler.WithGroup(name)}
}

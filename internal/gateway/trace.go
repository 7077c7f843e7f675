package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// RequestIDHeader 每次 REST 调用携带的追踪头
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// NewRequestID 生成 16 字节随机 ID
func NewRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// 降级到时间戳
		return hex.EncodeToString([]byte(time.Now().Format("20060102150405.000000")))
	}
	return hex.EncodeToString(b)
}

// WithRequestID 让调用方指定一次调用的追踪 ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom 返回 ctx 中的追踪 ID；没有时生成新的
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return NewRequestID()
}

package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink pushes reports onto a capped Redis list, newest first.
type RedisSink struct {
	client *redis.Client
	key    string
	maxLen int64
}

func NewRedisSink(addr, password string, db int, key string, maxLen int) (*RedisSink, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if key == "" {
		key = "console:frontend-logs"
	}
	if maxLen <= 0 {
		maxLen = 10000
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisSink{
		client: client,
		key:    key,
		maxLen: int64(maxLen),
	}, nil
}

func (s *RedisSink) Write(ctx context.Context, r Report) error {
	if s == nil || s.client == nil {
		return ErrClosed
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, 0, s.maxLen-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to limit stored reports, newest first.
func (s *RedisSink) Recent(ctx context.Context, limit int) ([]Report, error) {
	if s == nil || s.client == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}
	values, err := s.client.LRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Report, 0, len(values))
	for _, v := range values {
		var r Report
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisSink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/config"
	goredis "github.com/redis/go-redis/v9"
)

const (
	taskKeyPrefix    = "task:"
	lockKeyPrefix    = "stream_lock:"
	messageKeyPrefix = "messages:"
	channelPrefix    = "streaming:"
)

func taskKey(id uuid.UUID) string    { return taskKeyPrefix + id.String() }
func lockKey(id uuid.UUID) string    { return lockKeyPrefix + id.String() }
func messageKey(id uuid.UUID) string { return messageKeyPrefix + id.String() }
func channelName(id uuid.UUID) string {
	return channelPrefix + id.String()
}

// NewClient opens a client and verifies the connection with PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

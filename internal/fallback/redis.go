package fallback

import (
	"context"
	"fmt"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// RedisKey is the hash holding one msgpack-encoded entry per currency code
const RedisKey = "fallback:rates"

// RedisMirror keeps fallback entries in Redis so they survive restarts
type RedisMirror struct {
	client *redis.Client
	key    string
}

// ConnectRedis creates a client and checks the connection
func ConnectRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		PoolSize:     16,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisMirror creates a mirror over an existing client
func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client, key: RedisKey}
}

func (m *RedisMirror) Save(ctx context.Context, entry models.FallbackEntry) error {
	data, err := msgpack.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("failed to encode fallback entry %s: %w", entry.Code, err)
	}
	return m.client.HSet(ctx, m.key, entry.Code, data).Err()
}

func (m *RedisMirror) LoadAll(ctx context.Context) ([]models.FallbackEntry, error) {
	fields, err := m.client.HGetAll(ctx, m.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback entries: %w", err)
	}

	entries := make([]models.FallbackEntry, 0, len(fields))
	for code, raw := range fields {
		var entry models.FallbackEntry
		if err := msgpack.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode fallback entry %s: %w", code, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

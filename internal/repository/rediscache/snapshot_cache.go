package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NastyaGoryachaya/coin-dashboard/internal/config"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/domain"
	errs "github.com/NastyaGoryachaya/coin-dashboard/internal/errors"
	"github.com/redis/go-redis/v9"
)

// SnapshotCache — последний успешный снапшот в Redis для внешних потребителей.
type SnapshotCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// cachedSnapshot — формат значения в Redis; интервал хранится в секундах.
type cachedSnapshot struct {
	Coins           []domain.Coin `json:"coins"`
	Status          string        `json:"status"`
	IntervalSeconds int           `json:"interval_seconds"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// NewClient — клиент Redis с проверкой соединения.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func NewSnapshotCache(client *redis.Client, key string, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, key: key, ttl: ttl}
}

// SaveSnapshot — перезаписывает ключ; TTL гарантирует, что устаревшие данные исчезнут сами.
func (c *SnapshotCache) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}
	return nil
}

// Latest — последний записанный снапшот; ErrNoSnapshot, если ключа нет.
func (c *SnapshotCache) Latest(ctx context.Context) (domain.Snapshot, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, errs.ErrNoSnapshot
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return decode(data)
}

func encode(snap domain.Snapshot) ([]byte, error) {
	data, err := json.Marshal(cachedSnapshot{
		Coins:           snap.Coins,
		Status:          snap.Status,
		IntervalSeconds: snap.IntervalSeconds(),
		UpdatedAt:       snap.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (domain.Snapshot, error) {
	var cs cachedSnapshot
	if err := json.Unmarshal(data, &cs); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return domain.Snapshot{
		Coins:     cs.Coins,
		Status:    cs.Status,
		Interval:  time.Duration(cs.IntervalSeconds) * time.Second,
		UpdatedAt: cs.UpdatedAt,
	}, nil
}

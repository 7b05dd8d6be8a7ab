package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCheckpoint is the JSON document stored per feed.
type redisCheckpoint struct {
	LastRun       string `json:"last_run"`
	LastEntryDate *int64 `json:"last_entry_date,omitempty"`
}

type RedisStore struct {
	client *redis.Client
	ctx    context.Context
	logger *slog.Logger
}

func NewRedisStore(addr, password string, db int, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx := context.Background()

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		ctx:    ctx,
		logger: logger,
	}, nil
}

func (s *RedisStore) Load(feedName string) (*Checkpoint, error) {
	data, err := s.client.Get(s.ctx, s.checkpointKey(feedName)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var doc redisCheckpoint
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		s.logger.Warn("Malformed checkpoint, treating as absent", "feed", feedName, "error", err)
		return nil, nil
	}

	lastRun, err := time.Parse(time.RFC3339, doc.LastRun)
	if err != nil {
		s.logger.Warn("Malformed checkpoint, treating as absent", "feed", feedName, "error", err)
		return nil, nil
	}

	cp := &Checkpoint{LastRun: lastRun}
	if doc.LastEntryDate != nil {
		lastEntryDate := time.Unix(*doc.LastEntryDate, 0).UTC()
		cp.LastEntryDate = &lastEntryDate
	}

	return cp, nil
}

func (s *RedisStore) Save(feedName string, lastRun time.Time, lastEntryDate *time.Time) error {
	doc := redisCheckpoint{
		LastRun: lastRun.UTC().Format(time.RFC3339),
	}
	if lastEntryDate != nil {
		epoch := lastEntryDate.Unix()
		doc.LastEntryDate = &epoch
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if err := s.client.Set(s.ctx, s.checkpointKey(feedName), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) checkpointKey(feedName string) string {
	return fmt.Sprintf("feedspout:checkpoint:%s", feedName)
}

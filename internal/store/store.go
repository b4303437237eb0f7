package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "game:"
	connKeyPrefix    = "conn:"
	activeSetKey     = "active_games"

	// Crash-recovery bound; every record expires after an hour regardless.
	recordTTL = time.Hour
)

// RedisStore mirrors live session state into Redis. It is write-behind: the
// in-memory table is authoritative and never reads back through here on the
// hot path.
type RedisStore struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *RedisStore {
	return &RedisStore{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) SaveSession(ctx context.Context, rec *models.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", rec.ID, err)
	}
	return s.rdb.Set(ctx, sessionKeyPrefix+rec.ID, data, recordTTL).Err()
}

func (s *RedisStore) GetSession(ctx context.Context, id string) (*models.SessionRecord, error) {
	data, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec models.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &rec, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+id).Err()
}

func (s *RedisStore) AddActive(ctx context.Context, id string) error {
	return s.rdb.SAdd(ctx, activeSetKey, id).Err()
}

func (s *RedisStore) RemoveActive(ctx context.Context, id string) error {
	return s.rdb.SRem(ctx, activeSetKey, id).Err()
}

func (s *RedisStore) ActiveSessions(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, activeSetKey).Result()
}

func (s *RedisStore) SaveConnection(ctx context.Context, rec *models.ConnectionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal connection %s: %w", rec.ConnID, err)
	}
	return s.rdb.Set(ctx, connKeyPrefix+rec.ConnID, data, recordTTL).Err()
}

func (s *RedisStore) DeleteConnection(ctx context.Context, connID string) error {
	return s.rdb.Del(ctx, connKeyPrefix+connID).Err()
}

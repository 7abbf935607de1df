package store

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/redis/go-redis/v9"

	"warden/internal/account/models"
	"warden/pkg/platform/sentinel"
)

const sessionKeyPrefix = "warden:session:"

const (
	fieldUUID       = "uuid"
	fieldAddress    = "address"
	fieldCreatedAt  = "created_at"
	fieldLastSeenAt = "last_seen_at"
	fieldExpiresAt  = "expires_at"
)

// RedisStore keeps each session in a hash whose key TTL matches the session
// lifetime, so expired sessions disappear on their own.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// RefreshOrCreate runs in a MULTI block. HSETNX keeps the creation time of a
// live session; a session that expired is gone and starts over.
func (s *RedisStore) RefreshOrCreate(ctx context.Context, identity models.Identity, now time.Time, ttl time.Duration) (*models.Session, error) {
	key := sessionKeyPrefix + identity.Key()
	expiresAt := now.Add(ttl)

	var fields *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldCreatedAt, formatTime(now))
		pipe.HSet(ctx, key,
			fieldUUID, identity.UUID,
			fieldAddress, identity.Address.String(),
			fieldLastSeenAt, formatTime(now),
			fieldExpiresAt, formatTime(expiresAt),
		)
		pipe.PExpire(ctx, key, ttl)
		fields = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	session, err := decodeSession(identity.Key(), fields.Val())
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *RedisStore) Find(ctx context.Context, key string, now time.Time) (*models.Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(fields) == 0) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	session, err := decodeSession(key, fields)
	if err != nil {
		return nil, err
	}
	if session.Expired(now) {
		return nil, sentinel.ErrNotFound
	}
	return session, nil
}

func decodeSession(key string, fields map[string]string) (*models.Session, error) {
	session := &models.Session{Key: key, UUID: fields[fieldUUID]}
	var err error
	if session.Address, err = netip.ParseAddr(fields[fieldAddress]); err != nil {
		return nil, fmt.Errorf("decode session address: %w", err)
	}
	for field, dst := range map[string]*time.Time{
		fieldCreatedAt:  &session.CreatedAt,
		fieldLastSeenAt: &session.LastSeenAt,
		fieldExpiresAt:  &session.ExpiresAt,
	} {
		if *dst, err = time.Parse(time.RFC3339Nano, fields[field]); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", field, err)
		}
	}
	return session, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

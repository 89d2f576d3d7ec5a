package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no live session matches the lookup.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrCorrupt is returned when a stored session blob fails to decode.
var ErrCorrupt = errors.New("session record corrupt")

// deleteSessionScript removes one session atomically: the record key, its
// (user, token) index entry, and its membership in the per-user set.
const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
redis.call("DEL", KEYS[1], KEYS[3])
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store persists session records in Redis. Record keys and their
// (user, token) index keys share a TTL equal to the session expiration, so
// Redis eviction and the embedded expiry agree; DeleteExpired sweeps
// whatever membership entries TTL eviction leaves behind.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session store namespacing its keys under prefix.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "sa"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) sessionKey(id string) string {
	return s.prefix + ":sess:" + id
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

func (s *Store) tokenKey(userID, secretToken string) string {
	return s.prefix + ":tok:" + userID + ":" + secretToken
}

// Create inserts a new session row. The record must not already be
// expired.
func (s *Store) Create(ctx context.Context, record *Record) error {
	ttl := time.Until(time.Unix(record.ExpiresAt, 0))
	if ttl <= 0 {
		return errors.New("session already expired at creation")
	}

	encoded, err := Encode(record)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(record.ID), encoded, ttl)
		pipe.Set(ctx, s.tokenKey(record.UserID, record.SecretToken), record.ID, ttl)
		pipe.SAdd(ctx, s.userKey(record.UserID), record.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// GetByID returns the session with the given id. A record past its
// embedded expiry is deleted and reported as not found.
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	record, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if record.ExpiresAt <= time.Now().Unix() {
		_ = s.deleteRecord(ctx, record)
		return nil, ErrNotFound
	}
	return record, nil
}

// GetByUserAndToken resolves a session by its unique (userID, secretToken)
// pair.
func (s *Store) GetByUserAndToken(ctx context.Context, userID, secretToken string) (*Record, error) {
	id, err := s.redis.Get(ctx, s.tokenKey(userID, secretToken)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	record, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.UserID != userID || record.SecretToken != secretToken {
		return nil, fmt.Errorf("%w: token index mismatch", ErrCorrupt)
	}
	return record, nil
}

// UpdateLastUsed bumps the record's last-used timestamp, preserving the
// key's remaining TTL.
func (s *Store) UpdateLastUsed(ctx context.Context, id string, lastUsedAt int64) error {
	record, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	record.LastUsedAt = lastUsedAt
	encoded, err := Encode(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.sessionKey(id), encoded, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Delete removes the session with the given id. Deleting an absent
// session is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	data, err := s.redis.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	record, err := Decode(data)
	if err != nil {
		// Unreadable blob: drop the key itself, nothing else is known.
		_ = s.redis.Del(ctx, s.sessionKey(id)).Err()
		return nil
	}

	return s.deleteRecord(ctx, record)
}

// DeleteUser removes every session belonging to userID and returns how
// many records were deleted.
func (s *Store) DeleteUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	deleted := 0
	for _, id := range ids {
		data, err := s.redis.Get(ctx, s.sessionKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return deleted, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		record, decodeErr := Decode(data)
		if decodeErr == nil {
			_ = s.redis.Del(ctx, s.tokenKey(record.UserID, record.SecretToken)).Err()
		}
		if err := s.redis.Del(ctx, s.sessionKey(id)).Err(); err != nil {
			return deleted, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		deleted++
	}

	if err := s.redis.Del(ctx, s.userKey(userID)).Err(); err != nil {
		return deleted, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return deleted, nil
}

// DeleteExpired sweeps all sessions whose expiration has passed, including
// dangling index entries left behind by Redis TTL eviction. It is
// idempotent and intended to run periodically, not per request.
func (s *Store) DeleteExpired(ctx context.Context, now int64) (int, error) {
	deleted := 0

	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.prefix+":user:*", 64).Result()
		if err != nil {
			return deleted, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		for _, userKey := range keys {
			ids, err := s.redis.SMembers(ctx, userKey).Result()
			if err != nil {
				return deleted, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}

			for _, id := range ids {
				data, err := s.redis.Get(ctx, s.sessionKey(id)).Bytes()
				if err != nil {
					if errors.Is(err, redis.Nil) {
						// TTL eviction got there first; the membership
						// entry is all that remains.
						_ = s.redis.SRem(ctx, userKey, id).Err()
						deleted++
						continue
					}
					return deleted, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
				}

				record, decodeErr := Decode(data)
				if decodeErr != nil {
					_ = s.redis.Del(ctx, s.sessionKey(id)).Err()
					_ = s.redis.SRem(ctx, userKey, id).Err()
					continue
				}
				if record.ExpiresAt <= now {
					if err := s.deleteRecord(ctx, record); err != nil {
						return deleted, err
					}
					deleted++
				}
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}

func (s *Store) deleteRecord(ctx context.Context, record *Record) error {
	keys := []string{
		s.sessionKey(record.ID),
		s.userKey(record.UserID),
		s.tokenKey(record.UserID, record.SecretToken),
	}
	if err := deleteSessionLua.Run(ctx, s.redis, keys, record.ID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

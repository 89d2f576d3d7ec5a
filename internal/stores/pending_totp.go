package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingTOTPRecordVersion1 = 1

var (
	ErrPendingTOTPNotFound = errors.New("pending totp secret not found")
	ErrPendingTOTPExpired  = errors.New("pending totp secret expired")
	ErrPendingTOTPBackend  = errors.New("pending totp backend unavailable")
)

// PendingTOTPStore keeps not-yet-confirmed TOTP secrets in Redis so the
// enrollment handshake survives process restarts and works across
// instances. Entries carry both a Redis TTL and an embedded expiry; the
// embedded one is authoritative on read.
type PendingTOTPStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewPendingTOTPStore(redisClient redis.UniversalClient, prefix string) *PendingTOTPStore {
	if prefix == "" {
		prefix = "ptotp"
	}
	return &PendingTOTPStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *PendingTOTPStore) key(userID string) string {
	return s.prefix + ":" + userID
}

// Put stores the pending secret for userID, replacing any previous entry.
// Concurrent enrollments for one user race with last-write-wins semantics.
func (s *PendingTOTPStore) Put(ctx context.Context, userID, secret string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return ErrPendingTOTPExpired
	}

	encoded, err := encodePendingTOTP(secret, expiresAt.Unix())
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPendingTOTPBackend, err)
	}
	return nil
}

// Get returns the pending secret for userID. An entry past its embedded
// expiry is deleted and reported as not found.
func (s *PendingTOTPStore) Get(ctx context.Context, userID string) (string, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrPendingTOTPNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrPendingTOTPBackend, err)
	}

	secret, expiresAt, err := decodePendingTOTP(data)
	if err != nil {
		return "", err
	}
	if time.Now().Unix() > expiresAt {
		_, _ = s.redis.Del(ctx, s.key(userID)).Result()
		return "", ErrPendingTOTPNotFound
	}
	return secret, nil
}

// Delete removes the pending secret for userID. Deleting an absent entry
// is not an error.
func (s *PendingTOTPStore) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPendingTOTPBackend, err)
	}
	return nil
}

func encodePendingTOTP(secret string, expiresAt int64) ([]byte, error) {
	if len(secret) > 65535 {
		return nil, errors.New("pending totp secret length exceeded")
	}

	var buf bytes.Buffer
	buf.WriteByte(pendingTOTPRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, expiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(secret))); err != nil {
		return nil, err
	}
	buf.WriteString(secret)

	return buf.Bytes(), nil
}

func decodePendingTOTP(data []byte) (string, int64, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil || version != pendingTOTPRecordVersion1 {
		return "", 0, errors.New("unknown pending totp record version")
	}

	var expiresAt int64
	if err := binary.Read(r, binary.BigEndian, &expiresAt); err != nil {
		return "", 0, errors.New("truncated pending totp record")
	}

	var secretLen uint16
	if err := binary.Read(r, binary.BigEndian, &secretLen); err != nil {
		return "", 0, errors.New("truncated pending totp record")
	}

	secret := make([]byte, secretLen)
	if _, err := io.ReadFull(r, secret); err != nil {
		return "", 0, errors.New("truncated pending totp record")
	}

	return string(secret), expiresAt, nil
}

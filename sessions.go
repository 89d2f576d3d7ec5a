package stepauth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/halcyonlabs/stepauth/internal"
	"github.com/halcyonlabs/stepauth/session"
)

// issuedSession bundles a freshly created session row with its signed
// bearer tokens.
type issuedSession struct {
	record       *SessionRecord
	accessToken  string
	refreshToken string
}

// createSession mints a session row for userID and signs the access and
// refresh tokens that embed its secret token.
func (e *Engine) createSession(ctx context.Context, userID string) (*issuedSession, error) {
	secret, err := internal.AlphanumericToken(e.config.Session.TokenLength)
	if err != nil {
		return nil, internalErr(err)
	}

	now := time.Now().UTC()
	record := &SessionRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		SecretToken: secret,
		CreatedAt:   now,
		ExpiresAt:   e.interval.from(now),
		LastUsedAt:  now,
	}

	if err := e.sessions.CreateSession(ctx, record); err != nil {
		return nil, internalErr(err)
	}

	access, err := e.jwtManager.SignAccess(userID, secret)
	if err != nil {
		_ = e.sessions.DeleteSession(ctx, record.ID)
		return nil, internalErr(err)
	}
	refresh, err := e.jwtManager.SignRefresh(userID, secret)
	if err != nil {
		_ = e.sessions.DeleteSession(ctx, record.ID)
		return nil, internalErr(err)
	}

	return &issuedSession{
		record:       record,
		accessToken:  access,
		refreshToken: refresh,
	}, nil
}

// sessionByClaims resolves the session a token's claims point at and
// rejects it when expired. Expiry is checked here as well as in the
// store, so host-provided stores without their own sweep stay correct.
func (e *Engine) sessionByClaims(ctx context.Context, userID, secretToken string) (*SessionRecord, error) {
	sess, err := e.sessions.GetSessionByUserAndToken(ctx, userID, secretToken)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, internalErr(err)
	}
	if sess.Expired(time.Now().UTC()) {
		_ = e.sessions.DeleteSession(ctx, sess.ID)
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// RevokeUserSessions deletes every session belonging to userID and
// returns how many were removed.
func (e *Engine) RevokeUserSessions(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrInvalidRequest
	}

	deleted, err := e.sessions.DeleteUserSessions(ctx, userID)
	if err != nil {
		e.emitAudit(ctx, auditEventSessionsRevoked, false, userID, "", err, nil)
		return 0, internalErr(err)
	}

	for i := 0; i < deleted; i++ {
		e.metricInc(MetricSessionsRevoked)
	}
	e.emitAudit(ctx, auditEventSessionsRevoked, true, userID, "", nil, func() map[string]string {
		return map[string]string{
			"deleted": strconv.Itoa(deleted),
		}
	})
	return deleted, nil
}

// SweepExpiredSessions removes every session past its expiry. Hosts run
// this periodically; frequency is their call.
func (e *Engine) SweepExpiredSessions(ctx context.Context) (int, error) {
	deleted, err := e.sessions.DeleteExpiredSessions(ctx, time.Now().UTC())
	if err != nil {
		e.emitAudit(ctx, auditEventSessionsSwept, false, "", "", err, nil)
		return 0, internalErr(err)
	}

	for i := 0; i < deleted; i++ {
		e.metricInc(MetricSessionsSwept)
	}
	e.emitAudit(ctx, auditEventSessionsSwept, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"deleted": strconv.Itoa(deleted),
		}
	})
	return deleted, nil
}

// redisSessionStore adapts the Redis-backed session package to the
// [SessionStore] interface and error taxonomy.
type redisSessionStore struct {
	store *session.Store
}

// NewRedisSessionStore creates a [SessionStore] backed by Redis, for
// hosts that do not bring their own session persistence. Keys are
// namespaced under prefix.
func NewRedisSessionStore(client redis.UniversalClient, prefix string) SessionStore {
	return &redisSessionStore{store: session.NewStore(client, prefix)}
}

func (s *redisSessionStore) CreateSession(ctx context.Context, record *SessionRecord) error {
	return s.store.Create(ctx, toSessionRecord(record))
}

func (s *redisSessionStore) GetSessionByID(ctx context.Context, id string) (*SessionRecord, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapSessionErr(err)
	}
	return fromSessionRecord(rec), nil
}

func (s *redisSessionStore) GetSessionByUserAndToken(ctx context.Context, userID, secretToken string) (*SessionRecord, error) {
	rec, err := s.store.GetByUserAndToken(ctx, userID, secretToken)
	if err != nil {
		return nil, mapSessionErr(err)
	}
	return fromSessionRecord(rec), nil
}

func (s *redisSessionStore) UpdateSessionLastUsed(ctx context.Context, id string, lastUsedAt time.Time) error {
	if err := s.store.UpdateLastUsed(ctx, id, lastUsedAt.Unix()); err != nil {
		return mapSessionErr(err)
	}
	return nil
}

func (s *redisSessionStore) DeleteSession(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *redisSessionStore) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	return s.store.DeleteUser(ctx, userID)
}

func (s *redisSessionStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	return s.store.DeleteExpired(ctx, now.Unix())
}

func toSessionRecord(record *SessionRecord) *session.Record {
	return &session.Record{
		ID:          record.ID,
		UserID:      record.UserID,
		SecretToken: record.SecretToken,
		CreatedAt:   record.CreatedAt.Unix(),
		ExpiresAt:   record.ExpiresAt.Unix(),
		LastUsedAt:  record.LastUsedAt.Unix(),
	}
}

func fromSessionRecord(rec *session.Record) *SessionRecord {
	return &SessionRecord{
		ID:          rec.ID,
		UserID:      rec.UserID,
		SecretToken: rec.SecretToken,
		CreatedAt:   time.Unix(rec.CreatedAt, 0).UTC(),
		ExpiresAt:   time.Unix(rec.ExpiresAt, 0).UTC(),
		LastUsedAt:  time.Unix(rec.LastUsedAt, 0).UTC(),
	}
}

func mapSessionErr(err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}

//go:build integration
// +build integration

// Package test holds cross-package integration tests: the engine wired to a
// real (mini)Redis session store, store consistency under failure, and Redis
// round-trip budgets.
package test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/halcyonlabs/stepauth"
	"github.com/halcyonlabs/stepauth/session"
)

const integrationPrefix = "it"

/*
====================================
REDIS FIXTURES
====================================
*/

// newIntegrationStore returns a session.Store backed by a fresh miniredis,
// plus the miniredis handle for TTL fast-forwarding and raw key inspection.
func newIntegrationStore(t *testing.T) (*session.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return session.NewStore(client, integrationPrefix), mr
}

// makeRecord builds a session record expiring ttl from now.
func makeRecord(id, userID, token string, ttl time.Duration) *session.Record {
	now := time.Now().Unix()
	return &session.Record{
		ID:          id,
		UserID:      userID,
		SecretToken: token,
		CreatedAt:   now,
		ExpiresAt:   time.Now().Add(ttl).Unix(),
		LastUsedAt:  now,
	}
}

/*
====================================
ENGINE FIXTURE
====================================
*/

func integrationConfig() *stepauth.Config {
	return &stepauth.Config{
		Tokens: stepauth.TokensConfig{
			Access:  stepauth.TokenKindConfig{Secret: []byte("it-access-secret"), Issuer: "it-access", TTL: time.Minute},
			Refresh: stepauth.TokenKindConfig{Secret: []byte("it-refresh-secret"), Issuer: "it-refresh", TTL: time.Hour},
			Login:   stepauth.TokenKindConfig{Secret: []byte("it-login-secret"), Issuer: "it-login", TTL: time.Minute},
		},
		Session:  stepauth.SessionConfig{TokenLength: 64, Expiration: "1d", RedisPrefix: integrationPrefix},
		Password: stepauth.PasswordConfig{Algorithm: "sha512"},
		TOTP: stepauth.TOTPConfig{
			Issuer: "it", Digits: 6, Period: 30, Algorithm: "SHA1",
			Skew: 1, SecretLength: 20, PendingTTL: 5 * time.Minute,
			BackupCodeCount: 4, BackupCodeLength: 8,
		},
		ProofOfWork: stepauth.ProofOfWorkConfig{HashingSpeed: 1_000_000},
		Audit:       stepauth.AuditConfig{Enabled: false},
	}
}

// newIntegrationEngine builds an engine whose session and pending-TOTP
// stores live in a fresh miniredis; user and account records stay in memory.
func newIntegrationEngine(t *testing.T) (*stepauth.Engine, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	engine, err := stepauth.New().
		WithConfig(integrationConfig()).
		WithRedis(client).
		WithUserStore(newMemUserStore()).
		WithAccountStore(newMemAccountStore()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, mr
}

func registerUser(t *testing.T, engine *stepauth.Engine, username, email string) *stepauth.RegisterResult {
	t.Helper()

	result, err := engine.Register(context.Background(), &stepauth.RegisterRequest{
		Username: username,
		Email:    email,
		Password: "longenough1",
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	return result
}

/*
====================================
MEMORY USER / ACCOUNT STORES
====================================
*/

type memUserStore struct {
	mu    sync.Mutex
	users map[string]stepauth.UserRecord
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[string]stepauth.UserRecord{}}
}

func (s *memUserStore) get(match func(stepauth.UserRecord) bool) (*stepauth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			out := u
			return &out, nil
		}
	}
	return nil, stepauth.ErrUserNotFound
}

func (s *memUserStore) GetUserByID(_ context.Context, id string) (*stepauth.UserRecord, error) {
	return s.get(func(u stepauth.UserRecord) bool { return u.ID == id })
}

func (s *memUserStore) GetUserByUsername(_ context.Context, username string) (*stepauth.UserRecord, error) {
	return s.get(func(u stepauth.UserRecord) bool { return u.Username != nil && *u.Username == username })
}

func (s *memUserStore) GetUserByEmail(_ context.Context, email string) (*stepauth.UserRecord, error) {
	return s.get(func(u stepauth.UserRecord) bool { return u.Email != nil && *u.Email == email })
}

func (s *memUserStore) CreateUser(_ context.Context, user *stepauth.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	return nil
}

func (s *memUserStore) update(id string, apply func(*stepauth.UserRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return stepauth.ErrUserNotFound
	}
	apply(&u)
	s.users[id] = u
	return nil
}

func (s *memUserStore) UpdateDisplayName(_ context.Context, id, name string) error {
	return s.update(id, func(u *stepauth.UserRecord) { u.DisplayName = name })
}

func (s *memUserStore) UpdateRole(_ context.Context, id string, role stepauth.Role) error {
	return s.update(id, func(u *stepauth.UserRecord) { u.Role = role })
}

func (s *memUserStore) UpdateProofOfWork(_ context.Context, id string, token *string) error {
	return s.update(id, func(u *stepauth.UserRecord) { u.ProofOfWork = token })
}

func (s *memUserStore) SoftDeleteUser(_ context.Context, id string, deletedAt time.Time) error {
	return s.update(id, func(u *stepauth.UserRecord) {
		u.Username = nil
		u.Email = nil
		u.DisplayName = ""
		u.DeletedAt = &deletedAt
	})
}

func (s *memUserStore) SetBanned(_ context.Context, id string, bannedAt *time.Time) error {
	return s.update(id, func(u *stepauth.UserRecord) { u.BannedAt = bannedAt })
}

func (s *memUserStore) ListUsers(context.Context) ([]stepauth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stepauth.UserRecord, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

type memAccountStore struct {
	mu       sync.Mutex
	accounts map[string]stepauth.AccountRecord
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{accounts: map[string]stepauth.AccountRecord{}}
}

func (s *memAccountStore) GetAccountByID(_ context.Context, id string) (*stepauth.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, stepauth.ErrAccountNotFound
	}
	return &a, nil
}

func (s *memAccountStore) GetAccountByUserID(_ context.Context, userID string) (*stepauth.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.UserID == userID {
			out := a
			return &out, nil
		}
	}
	return nil, stepauth.ErrAccountNotFound
}

func (s *memAccountStore) CreateAccount(_ context.Context, account *stepauth.AccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = *account
	return nil
}

func (s *memAccountStore) update(id string, apply func(*stepauth.AccountRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return stepauth.ErrAccountNotFound
	}
	apply(&a)
	s.accounts[id] = a
	return nil
}

func (s *memAccountStore) UpdatePasswordHash(_ context.Context, id string, hash []byte) error {
	return s.update(id, func(a *stepauth.AccountRecord) { a.PasswordHash = hash })
}

func (s *memAccountStore) UpdateOTPSecret(_ context.Context, id string, secret *string) error {
	return s.update(id, func(a *stepauth.AccountRecord) { a.OTPSecret = secret })
}

func (s *memAccountStore) UpdateRecoveryCodes(_ context.Context, id string, codes []string) error {
	return s.update(id, func(a *stepauth.AccountRecord) { a.RecoveryCodes = codes })
}

func (s *memAccountStore) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
	return nil
}

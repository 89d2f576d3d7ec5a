package stepauth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	internalstores "github.com/halcyonlabs/stepauth/internal/stores"
)

// memoryPendingTOTPStore is the default [PendingTOTPStore]: a single
// mutex-guarded map from user id to a not-yet-confirmed secret with its
// insertion deadline. It is process-local; multi-instance deployments
// should wire the Redis-backed store instead.
type memoryPendingTOTPStore struct {
	mu      sync.Mutex
	entries map[string]pendingTOTPEntry
	now     func() time.Time
}

type pendingTOTPEntry struct {
	secret    string
	expiresAt time.Time
}

// NewMemoryPendingTOTPStore creates the in-process pending-secret store.
func NewMemoryPendingTOTPStore() PendingTOTPStore {
	return &memoryPendingTOTPStore{
		entries: make(map[string]pendingTOTPEntry),
		now:     time.Now,
	}
}

// Put replaces any previous pending secret for userID. Concurrent
// enrollments for one user race with last-write-wins semantics. Expired
// entries are swept opportunistically while the lock is held.
func (s *memoryPendingTOTPStore) Put(_ context.Context, userID, secret string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	s.entries[userID] = pendingTOTPEntry{secret: secret, expiresAt: expiresAt}
	return nil
}

// Get returns the pending secret for userID, treating an expired entry as
// absent and pruning it.
func (s *memoryPendingTOTPStore) Get(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[userID]
	if !ok {
		return "", ErrEnrollmentNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, userID)
		return "", ErrEnrollmentNotFound
	}
	return entry.secret, nil
}

// Delete removes the pending secret for userID. Deleting an absent entry
// is not an error.
func (s *memoryPendingTOTPStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, userID)
	return nil
}

func (s *memoryPendingTOTPStore) pruneLocked() {
	now := s.now()
	for userID, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, userID)
		}
	}
}

// redisPendingTOTPStore adapts the internal Redis store to the
// [PendingTOTPStore] interface and error taxonomy.
type redisPendingTOTPStore struct {
	store *internalstores.PendingTOTPStore
}

// NewRedisPendingTOTPStore creates a Redis-backed [PendingTOTPStore] for
// multi-instance deployments. Keys are namespaced under prefix.
func NewRedisPendingTOTPStore(client redis.UniversalClient, prefix string) PendingTOTPStore {
	return &redisPendingTOTPStore{store: internalstores.NewPendingTOTPStore(client, prefix)}
}

func (s *redisPendingTOTPStore) Put(ctx context.Context, userID, secret string, expiresAt time.Time) error {
	return s.store.Put(ctx, userID, secret, expiresAt)
}

func (s *redisPendingTOTPStore) Get(ctx context.Context, userID string) (string, error) {
	secret, err := s.store.Get(ctx, userID)
	if err != nil {
		switch err {
		case internalstores.ErrPendingTOTPNotFound, internalstores.ErrPendingTOTPExpired:
			return "", ErrEnrollmentNotFound
		}
		return "", err
	}
	return secret, nil
}

func (s *redisPendingTOTPStore) Delete(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}

//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/halcyonlabs/stepauth/session"
)

func TestStoreConsistencyDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newIntegrationStore(t)

	if err := store.Create(ctx, makeRecord("sid-idem", "u1", "tok-idem", time.Hour)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Delete(ctx, "sid-idem"); err != nil {
		t.Fatalf("first Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "sid-idem"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
}

func TestStoreConsistencyCorruptBlobIsReportedAndContained(t *testing.T) {
	ctx := context.Background()
	store, mr := newIntegrationStore(t)

	if err := store.Create(ctx, makeRecord("sid-ok", "u2", "tok-ok", time.Hour)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := mr.Set(integrationPrefix+":sess:sid-bad", "not a session blob"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := store.GetByID(ctx, "sid-bad"); !errors.Is(err, session.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}

	// The healthy record is unaffected.
	if _, err := store.GetByID(ctx, "sid-ok"); err != nil {
		t.Fatalf("healthy record lookup failed: %v", err)
	}

	// Delete drops an unreadable blob instead of failing.
	if err := store.Delete(ctx, "sid-bad"); err != nil {
		t.Fatalf("Delete of corrupt record failed: %v", err)
	}
	if mr.Exists(integrationPrefix + ":sess:sid-bad") {
		t.Fatal("corrupt record key must be removed")
	}
}

func TestStoreConsistencyEmbeddedExpiryWins(t *testing.T) {
	ctx := context.Background()
	store, mr := newIntegrationStore(t)

	// A record whose embedded expiry has passed while its Redis key is
	// still live (clock skew between writer and Redis) must read as gone.
	expired := &session.Record{
		ID:          "sid-skew",
		UserID:      "u3",
		SecretToken: "tok-skew",
		CreatedAt:   time.Now().Add(-2 * time.Hour).Unix(),
		ExpiresAt:   time.Now().Add(-time.Hour).Unix(),
		LastUsedAt:  time.Now().Add(-2 * time.Hour).Unix(),
	}
	encoded, err := session.Encode(expired)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := mr.Set(integrationPrefix+":sess:sid-skew", string(encoded)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := store.GetByID(ctx, "sid-skew"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for embedded-expired record, got %v", err)
	}
	if mr.Exists(integrationPrefix + ":sess:sid-skew") {
		t.Fatal("embedded-expired record must be deleted on read")
	}
}

func TestStoreConsistencyDeleteUserCountsRecords(t *testing.T) {
	ctx := context.Background()
	store, _ := newIntegrationStore(t)

	for i := 0; i < 3; i++ {
		record := makeRecord(fmt.Sprintf("sid-u4-%d", i), "u4", fmt.Sprintf("tok-u4-%d", i), time.Hour)
		if err := store.Create(ctx, record); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}
	if err := store.Create(ctx, makeRecord("sid-u5", "u5", "tok-u5", time.Hour)); err != nil {
		t.Fatalf("Create bystander failed: %v", err)
	}

	deleted, err := store.DeleteUser(ctx, "u4")
	if err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("DeleteUser deleted %d, want 3", deleted)
	}

	if _, err := store.GetByID(ctx, "sid-u5"); err != nil {
		t.Fatalf("bystander session lost: %v", err)
	}

	again, err := store.DeleteUser(ctx, "u4")
	if err != nil {
		t.Fatalf("repeat DeleteUser failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("repeat DeleteUser deleted %d, want 0", again)
	}
}

func TestStoreConsistencyUpdateLastUsedKeepsTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newIntegrationStore(t)

	if err := store.Create(ctx, makeRecord("sid-bump", "u6", "tok-bump", time.Hour)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	before := mr.TTL(integrationPrefix + ":sess:sid-bump")

	bumped := time.Now().Add(time.Minute).Unix()
	if err := store.UpdateLastUsed(ctx, "sid-bump", bumped); err != nil {
		t.Fatalf("UpdateLastUsed failed: %v", err)
	}

	record, err := store.GetByID(ctx, "sid-bump")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if record.LastUsedAt != bumped {
		t.Fatalf("LastUsedAt = %d, want %d", record.LastUsedAt, bumped)
	}

	after := mr.TTL(integrationPrefix + ":sess:sid-bump")
	if after <= 0 || after > before {
		t.Fatalf("TTL after bump = %v, want preserved (before %v)", after, before)
	}

	if err := store.UpdateLastUsed(ctx, "sid-missing", bumped); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing session, got %v", err)
	}
}

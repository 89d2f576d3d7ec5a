package stepauth

import (
	"context"
	"errors"
	"testing"
)

func TestRegenerateRecoveryCodesInvalidatesOldBatch(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	reg := registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")

	fresh, err := engine.RegenerateRecoveryCodes(ctx, reg.User.ID, "longenough1")
	if err != nil {
		t.Fatalf("RegenerateRecoveryCodes failed: %v", err)
	}
	if len(fresh) != engine.config.TOTP.BackupCodeCount {
		t.Fatalf("batch size %d, want %d", len(fresh), engine.config.TOTP.BackupCodeCount)
	}

	// An old code no longer logs in.
	_, err = engine.Login(ctx, &LoginRequest{
		Username:   "alice-01",
		Type:       VerificationBackupCode,
		BackupCode: reg.RecoveryCodes[0],
	})
	if !errors.Is(err, ErrInvalidBackupCode) {
		t.Fatalf("old code: expected ErrInvalidBackupCode, got %v", err)
	}

	// A fresh one does.
	result, err := engine.Login(ctx, &LoginRequest{
		Username:   "alice-01",
		Type:       VerificationBackupCode,
		BackupCode: fresh[0],
	})
	if err != nil {
		t.Fatalf("fresh code login failed: %v", err)
	}
	if result.Status != LoginComplete {
		t.Fatalf("status %v, want complete", result.Status)
	}

	remaining, err := engine.RecoveryCodesRemaining(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("RecoveryCodesRemaining failed: %v", err)
	}
	if remaining != len(fresh)-1 {
		t.Fatalf("remaining %d, want %d", remaining, len(fresh)-1)
	}
}

func TestRegenerateRecoveryCodesRequiresPassword(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	reg := registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")

	_, err := engine.RegenerateRecoveryCodes(ctx, reg.User.ID, "wrong-password")
	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	// The stored batch is untouched by the failed attempt.
	remaining, err := engine.RecoveryCodesRemaining(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("RecoveryCodesRemaining failed: %v", err)
	}
	if remaining != len(reg.RecoveryCodes) {
		t.Fatalf("remaining %d, want %d", remaining, len(reg.RecoveryCodes))
	}

	_, err = engine.RegenerateRecoveryCodes(ctx, "no-such-user", "longenough1")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRegenerateRecoveryCodesBatchesAreDistinct(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	reg := registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")

	fresh, err := engine.RegenerateRecoveryCodes(ctx, reg.User.ID, "longenough1")
	if err != nil {
		t.Fatalf("RegenerateRecoveryCodes failed: %v", err)
	}

	old := make(map[string]bool, len(reg.RecoveryCodes))
	for _, code := range reg.RecoveryCodes {
		old[code] = true
	}
	for _, code := range fresh {
		if old[code] {
			t.Fatalf("regenerated batch repeats old code %q", code)
		}
	}
}

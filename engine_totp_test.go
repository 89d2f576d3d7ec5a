package stepauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// codeForNow produces the current code for secret under cfg, the way a
// user's authenticator app would.
func codeForNow(t *testing.T, secret string, cfg TOTPConfig) string {
	t.Helper()

	code, err := totp.GenerateCodeCustom(secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    cfg.Period,
		Skew:      cfg.Skew,
		Digits:    otp.Digits(cfg.Digits),
		Algorithm: newTOTPEngine(cfg).algorithm(),
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom failed: %v", err)
	}
	return code
}

// enableTOTPForTest runs the full enrollment handshake for userID and
// returns the committed secret. The account password must be the
// fixture default "longenough1".
func enableTOTPForTest(t *testing.T, engine *Engine, userID string) string {
	t.Helper()

	ctx := context.Background()
	enr, err := engine.BeginTOTPEnrollment(ctx, userID)
	if err != nil {
		t.Fatalf("BeginTOTPEnrollment failed: %v", err)
	}
	code := codeForNow(t, enr.Secret, engine.config.TOTP)
	if err := engine.ConfirmTOTPEnrollment(ctx, userID, code, "longenough1"); err != nil {
		t.Fatalf("ConfirmTOTPEnrollment failed: %v", err)
	}
	return enr.Secret
}

func TestTOTPEnrollmentHandshake(t *testing.T) {
	engine, stores := newTestEngine(t)
	ctx := context.Background()

	reg := registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")

	enr, err := engine.BeginTOTPEnrollment(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("BeginTOTPEnrollment failed: %v", err)
	}
	if enr.Secret == "" {
		t.Fatal("enrollment missing secret")
	}
	if !strings.HasPrefix(enr.URI, "otpauth://totp/") {
		t.Fatalf("provisioning URI %q, want otpauth://totp/ scheme", enr.URI)
	}
	if !strings.Contains(enr.URI, "alice-01") {
		t.Fatalf("provisioning URI %q should carry the username label", enr.URI)
	}
	remaining := time.Until(enr.ExpiresAt)
	if remaining <= 0 || remaining > engine.config.TOTP.PendingTTL {
		t.Fatalf("pending expiry %v out of range", remaining)
	}

	// Nothing is committed until confirmation.
	enabled, err := engine.TOTPEnabled(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("TOTPEnabled failed: %v", err)
	}
	if enabled {
		t.Fatal("secret must not commit before confirmation")
	}

	code := codeForNow(t, enr.Secret, engine.config.TOTP)
	if err := engine.ConfirmTOTPEnrollment(ctx, reg.User.ID, code, "longenough1"); err != nil {
		t.Fatalf("ConfirmTOTPEnrollment failed: %v", err)
	}

	enabled, err = engine.TOTPEnabled(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("TOTPEnabled failed: %v", err)
	}
	if !enabled {
		t.Fatal("secret must commit after confirmation")
	}
	account, err := stores.accounts.GetAccountByUserID(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("GetAccountByUserID failed: %v", err)
	}
	if account.OTPSecret == nil || *account.OTPSecret != enr.Secret {
		t.Fatal("committed secret does not match the enrolled one")
	}

	// The pending entry is consumed; confirming again finds nothing.
	err = engine.ConfirmTOTPEnrollment(ctx, reg.User.ID, code, "longenough1")
	if !errors.Is(err, ErrTOTPAlreadyEnabled) {
		t.Fatalf("expected ErrTOTPAlreadyEnabled on re-confirm, got %v", err)
	}
}

func TestTOTPEnrollmentRejections(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	reg := registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")

	// Confirm without a pending secret.
	err := engine.ConfirmTOTPEnrollment(ctx, reg.User.ID, "123456", "longenough1")
	if !errors.Is(err, ErrEnrollmentNotFound) {
		t.Fatalf("expected ErrEnrollmentNotFound, got %v", err)
	}

	enr, err := engine.BeginTOTPEnrollment(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("BeginTOTPEnrollment failed: %v", err)
	}
	code := codeForNow(t, enr.Secret, engine.config.TOTP)

	// Wrong account password, checked before the pending lookup.
	err = engine.ConfirmTOTPEnrollment(ctx, reg.User.ID, code, "wrong-password")
	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	// Wrong code leaves the pending entry in place.
	err = engine.ConfirmTOTPEnrollment(ctx, reg.User.ID, "000000", "longenough1")
	if !errors.Is(err, ErrInvalidTOTP) {
		t.Fatalf("expected ErrInvalidTOTP, got %v", err)
	}
	if err := engine.ConfirmTOTPEnrollment(ctx, reg.User.ID, code, "longenough1"); err != nil {
		t.Fatalf("confirm after a wrong code must still work: %v", err)
	}

	// A second enrollment while enabled is rejected.
	_, err = engine.BeginTOTPEnrollment(ctx, reg.User.ID)
	if !errors.Is(err, ErrTOTPAlreadyEnabled) {
		t.Fatalf("expected ErrTOTPAlreadyEnabled, got %v", err)
	}

	_, err = engine.BeginTOTPEnrollment(ctx, "no-such-user")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestTOTPEnrollmentCancel(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	reg := registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")

	enr, err := engine.BeginTOTPEnrollment(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("BeginTOTPEnrollment failed: %v", err)
	}
	if err := engine.CancelTOTPEnrollment(ctx, reg.User.ID); err != nil {
		t.Fatalf("CancelTOTPEnrollment failed: %v", err)
	}

	code := codeForNow(t, enr.Secret, engine.config.TOTP)
	err = engine.ConfirmTOTPEnrollment(ctx, reg.User.ID, code, "longenough1")
	if !errors.Is(err, ErrEnrollmentNotFound) {
		t.Fatalf("expected ErrEnrollmentNotFound after cancel, got %v", err)
	}

	// Cancelling with nothing pending is a no-op.
	if err := engine.CancelTOTPEnrollment(ctx, reg.User.ID); err != nil {
		t.Fatalf("cancel with nothing pending failed: %v", err)
	}
	if err := engine.CancelTOTPEnrollment(ctx, ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for empty user id, got %v", err)
	}
}

// fakeClock drives the memory pending store's clock so expiry does not
// require sleeping through the TTL.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) get() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTOTPEnrollmentPendingExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC()}
	pending := &memoryPendingTOTPStore{
		entries: make(map[string]pendingTOTPEntry),
		now:     clock.get,
	}
	engine, _ := newTestEngine(t, func(b *Builder) {
		b.WithPendingTOTPStore(pending)
	})
	ctx := context.Background()

	reg := registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")

	enr, err := engine.BeginTOTPEnrollment(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("BeginTOTPEnrollment failed: %v", err)
	}

	clock.advance(engine.config.TOTP.PendingTTL + time.Second)

	code := codeForNow(t, enr.Secret, engine.config.TOTP)
	err = engine.ConfirmTOTPEnrollment(ctx, reg.User.ID, code, "longenough1")
	if !errors.Is(err, ErrEnrollmentNotFound) {
		t.Fatalf("expected ErrEnrollmentNotFound after pending TTL, got %v", err)
	}
}

func TestDisableTOTPWithCode(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	reg := registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")
	secret := enableTOTPForTest(t, engine, reg.User.ID)

	err := engine.DisableTOTP(ctx, reg.User.ID, VerificationTOTP, "000000")
	if !errors.Is(err, ErrInvalidTOTP) {
		t.Fatalf("expected ErrInvalidTOTP, got %v", err)
	}

	code := codeForNow(t, secret, engine.config.TOTP)
	if err := engine.DisableTOTP(ctx, reg.User.ID, VerificationTOTP, code); err != nil {
		t.Fatalf("DisableTOTP failed: %v", err)
	}

	enabled, err := engine.TOTPEnabled(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("TOTPEnabled failed: %v", err)
	}
	if enabled {
		t.Fatal("secret must be cleared after disable")
	}

	// Disabling twice has nothing to prove against.
	err = engine.DisableTOTP(ctx, reg.User.ID, VerificationTOTP, code)
	if !errors.Is(err, ErrTOTPNotEnabled) {
		t.Fatalf("expected ErrTOTPNotEnabled, got %v", err)
	}
}

func TestDisableTOTPWithBackupCode(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	reg := registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")
	enableTOTPForTest(t, engine, reg.User.ID)

	before, err := engine.RecoveryCodesRemaining(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("RecoveryCodesRemaining failed: %v", err)
	}

	err = engine.DisableTOTP(ctx, reg.User.ID, VerificationBackupCode, "not-a-code")
	if !errors.Is(err, ErrInvalidBackupCode) {
		t.Fatalf("expected ErrInvalidBackupCode, got %v", err)
	}

	if err := engine.DisableTOTP(ctx, reg.User.ID, VerificationBackupCode, reg.RecoveryCodes[0]); err != nil {
		t.Fatalf("DisableTOTP with backup code failed: %v", err)
	}

	// The recovery code is consumed like any other use.
	after, err := engine.RecoveryCodesRemaining(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("RecoveryCodesRemaining failed: %v", err)
	}
	if after != before-1 {
		t.Fatalf("remaining codes %d, want %d", after, before-1)
	}
}

func TestDisableTOTPRejectsOtherProofTypes(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	reg := registerTestUser(t, engine, "alice-01", "alice@example.com", "longenough1")
	enableTOTPForTest(t, engine, reg.User.ID)

	for _, proof := range []VerificationType{VerificationPassword, VerificationEmail, VerificationType("fingerprint")} {
		err := engine.DisableTOTP(ctx, reg.User.ID, proof, "anything")
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("proof %q: expected ErrInvalidRequest, got %v", proof, err)
		}
	}
}

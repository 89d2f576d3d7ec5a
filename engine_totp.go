package stepauth

import (
	"context"
	"errors"
	"time"
)

// BeginTOTPEnrollment generates a fresh TOTP secret for userID and
// parks it in the pending store. The secret only commits once
// [Engine.ConfirmTOTPEnrollment] proves the user's authenticator can
// produce codes for it.
func (e *Engine) BeginTOTPEnrollment(ctx context.Context, userID string) (*TOTPEnrollment, error) {
	user, err := e.activeUser(ctx, userID)
	if err != nil {
		return nil, e.failTOTPEnroll(ctx, userID, err, "user_lookup")
	}
	account, err := e.accountForUser(ctx, userID)
	if err != nil {
		return nil, e.failTOTPEnroll(ctx, userID, err, "account_lookup")
	}
	if account.TOTPEnabled() {
		return nil, e.failTOTPEnroll(ctx, userID, ErrTOTPAlreadyEnabled, "already_enabled")
	}

	key, err := e.totp.generate(totpAccountLabel(user))
	if err != nil {
		return nil, e.failTOTPEnroll(ctx, userID, internalErr(err), "secret_generation")
	}

	expiresAt := time.Now().UTC().Add(e.config.TOTP.PendingTTL)
	if err := e.pendingTOTP.Put(ctx, userID, key.Secret(), expiresAt); err != nil {
		return nil, e.failTOTPEnroll(ctx, userID, internalErr(err), "pending_store")
	}

	e.metricInc(MetricTOTPEnrollStarted)
	e.emitAudit(ctx, auditEventTOTPEnrollStarted, true, userID, "", nil, nil)

	return &TOTPEnrollment{
		Secret:    key.Secret(),
		URI:       key.URL(),
		ExpiresAt: expiresAt,
	}, nil
}

// ConfirmTOTPEnrollment commits the pending secret after the caller
// proves both a valid code for it and the account password.
func (e *Engine) ConfirmTOTPEnrollment(ctx context.Context, userID, code, accountPassword string) error {
	if _, err := e.activeUser(ctx, userID); err != nil {
		return e.failTOTPEnroll(ctx, userID, err, "user_lookup")
	}
	account, err := e.accountForUser(ctx, userID)
	if err != nil {
		return e.failTOTPEnroll(ctx, userID, err, "account_lookup")
	}
	if account.TOTPEnabled() {
		return e.failTOTPEnroll(ctx, userID, ErrTOTPAlreadyEnabled, "already_enabled")
	}

	if !e.verifyPassword(account, accountPassword) {
		return e.failTOTPEnroll(ctx, userID, ErrInvalidPassword, "password")
	}

	secret, err := e.pendingTOTP.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrEnrollmentNotFound) {
			return e.failTOTPEnroll(ctx, userID, ErrEnrollmentNotFound, "pending_missing")
		}
		return e.failTOTPEnroll(ctx, userID, internalErr(err), "pending_store")
	}

	if !e.totp.verify(secret, code) {
		return e.failTOTPEnroll(ctx, userID, ErrInvalidTOTP, "code")
	}

	if err := e.accounts.UpdateOTPSecret(ctx, account.ID, &secret); err != nil {
		return e.failTOTPEnroll(ctx, userID, internalErr(err), "commit_secret")
	}
	_ = e.pendingTOTP.Delete(ctx, userID)

	e.metricInc(MetricTOTPEnrollConfirmed)
	e.emitAudit(ctx, auditEventTOTPEnrollConfirmed, true, userID, "", nil, nil)
	return nil
}

// CancelTOTPEnrollment discards any pending secret for userID.
func (e *Engine) CancelTOTPEnrollment(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidRequest
	}
	if err := e.pendingTOTP.Delete(ctx, userID); err != nil {
		return internalErr(err)
	}

	e.metricInc(MetricTOTPEnrollCancelled)
	e.emitAudit(ctx, auditEventTOTPEnrollCancelled, true, userID, "", nil, nil)
	return nil
}

// DisableTOTP removes the committed secret. The caller proves control
// with either a current TOTP code or a recovery code; a recovery code
// used here is consumed like any other use.
func (e *Engine) DisableTOTP(ctx context.Context, userID string, proofType VerificationType, code string) error {
	if _, err := e.activeUser(ctx, userID); err != nil {
		return e.failTOTPDisable(ctx, userID, err, "user_lookup")
	}
	account, err := e.accountForUser(ctx, userID)
	if err != nil {
		return e.failTOTPDisable(ctx, userID, err, "account_lookup")
	}
	if !account.TOTPEnabled() {
		return e.failTOTPDisable(ctx, userID, ErrTOTPNotEnabled, "not_enabled")
	}

	switch proofType {
	case VerificationTOTP:
		if !e.totp.verify(*account.OTPSecret, code) {
			return e.failTOTPDisable(ctx, userID, ErrInvalidTOTP, "code")
		}
	case VerificationBackupCode:
		if err := e.useRecoveryCode(ctx, account, code); err != nil {
			return e.failTOTPDisable(ctx, userID, err, "backup_code")
		}
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, userID, "", nil, nil)
	default:
		return e.failTOTPDisable(ctx, userID, ErrInvalidRequest, "proof_type")
	}

	if err := e.accounts.UpdateOTPSecret(ctx, account.ID, nil); err != nil {
		return e.failTOTPDisable(ctx, userID, internalErr(err), "clear_secret")
	}

	e.metricInc(MetricTOTPDisabled)
	e.emitAudit(ctx, auditEventTOTPDisabled, true, userID, "", nil, nil)
	return nil
}

// TOTPEnabled reports whether userID has a committed TOTP secret.
func (e *Engine) TOTPEnabled(ctx context.Context, userID string) (bool, error) {
	account, err := e.accountForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return account.TOTPEnabled(), nil
}

func (e *Engine) failTOTPEnroll(ctx context.Context, userID string, err error, reason string) error {
	e.emitAudit(ctx, auditEventTOTPEnrollFailure, false, userID, "", err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return err
}

func (e *Engine) failTOTPDisable(ctx context.Context, userID string, err error, reason string) error {
	e.emitAudit(ctx, auditEventTOTPDisableFailure, false, userID, "", err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return err
}

// totpAccountLabel picks the provisioning-URI account name.
func totpAccountLabel(user *UserRecord) string {
	switch {
	case user.Username != nil && *user.Username != "":
		return *user.Username
	case user.Email != nil && *user.Email != "":
		return *user.Email
	default:
		return user.ID
	}
}

package stepauth

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonlabs/stepauth/internal"
)

const (
	minUsernameLength = 5
	maxUsernameLength = 250
	minPasswordLength = 8
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Register creates a user, their credential account, and a first
// session. Recovery codes are returned here and never surfaced again.
func (e *Engine) Register(ctx context.Context, req *RegisterRequest) (*RegisterResult, error) {
	if req == nil {
		return nil, e.failRegister(ctx, ErrInvalidRequest, "nil_request")
	}
	if len(req.Username) < minUsernameLength || len(req.Username) > maxUsernameLength {
		return nil, e.failRegister(ctx, ErrUsernameLength, "username_length")
	}
	if !emailRe.MatchString(req.Email) {
		return nil, e.failRegister(ctx, ErrInvalidEmail, "email_syntax")
	}
	if len(req.Password) < minPasswordLength {
		return nil, e.failRegister(ctx, ErrPasswordTooShort, "password_length")
	}

	if err := e.checkIdentityAvailable(ctx, req.Username, req.Email); err != nil {
		return nil, e.failRegister(ctx, err, "identity_taken")
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}

	username := req.Username
	email := req.Email
	user := &UserRecord{
		ID:          uuid.NewString(),
		Username:    &username,
		Email:       &email,
		DisplayName: displayName,
		Role:        RoleUnverified,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.users.CreateUser(ctx, user); err != nil {
		return nil, e.failRegister(ctx, internalErr(err), "create_user")
	}

	hash := e.hasher.Hash(req.Password)
	codes, err := internal.RecoveryCodes(e.config.TOTP.BackupCodeCount, e.config.TOTP.BackupCodeLength)
	if err != nil {
		return nil, e.failRegister(ctx, internalErr(err), "recovery_codes")
	}

	account := &AccountRecord{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		PasswordHash:  hash,
		RecoveryCodes: codes,
	}
	if err := e.accounts.CreateAccount(ctx, account); err != nil {
		return nil, e.failRegister(ctx, internalErr(err), "create_account")
	}

	issued, err := e.createSession(ctx, user.ID)
	if err != nil {
		return nil, e.failRegister(ctx, err, "session_creation")
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, issued.record.ID, nil, nil)

	return &RegisterResult{
		User:          user,
		SessionID:     issued.record.ID,
		AccessToken:   issued.accessToken,
		RefreshToken:  issued.refreshToken,
		RecoveryCodes: codes,
	}, nil
}

// checkIdentityAvailable rejects a second account reusing a username or
// email already claimed by a live user.
func (e *Engine) checkIdentityAvailable(ctx context.Context, username, email string) error {
	if _, err := e.users.GetUserByUsername(ctx, username); err == nil {
		return ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return internalErr(err)
	}

	if _, err := e.users.GetUserByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return internalErr(err)
	}

	return nil
}

// ChangePassword replaces a user's password after verifying the current
// one.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if userID == "" {
		return e.failPasswordChange(ctx, userID, ErrInvalidRequest, "missing_user_id")
	}
	if len(newPassword) < minPasswordLength {
		return e.failPasswordChange(ctx, userID, ErrPasswordTooShort, "password_length")
	}

	if _, err := e.activeUser(ctx, userID); err != nil {
		return e.failPasswordChange(ctx, userID, err, "user_lookup")
	}
	account, err := e.accountForUser(ctx, userID)
	if err != nil {
		return e.failPasswordChange(ctx, userID, err, "account_lookup")
	}

	if !e.verifyPassword(account, oldPassword) {
		return e.failPasswordChange(ctx, userID, ErrInvalidPassword, "old_password")
	}

	if err := e.accounts.UpdatePasswordHash(ctx, account.ID, e.hasher.Hash(newPassword)); err != nil {
		return e.failPasswordChange(ctx, userID, internalErr(err), "update_hash")
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChanged, true, userID, "", nil, nil)
	return nil
}

func (e *Engine) failRegister(ctx context.Context, err error, reason string) error {
	e.metricInc(MetricRegisterFailure)
	e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return err
}

func (e *Engine) failPasswordChange(ctx context.Context, userID string, err error, reason string) error {
	e.metricInc(MetricPasswordChangeFailure)
	e.emitAudit(ctx, auditEventPasswordChangeFail, false, userID, "", err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return err
}

// accountForUser loads the credential account behind a user id.
func (e *Engine) accountForUser(ctx context.Context, userID string) (*AccountRecord, error) {
	account, err := e.accounts.GetAccountByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, internalErr(err)
	}
	return account, nil
}

func (e *Engine) verifyPassword(account *AccountRecord, candidate string) bool {
	if account == nil || candidate == "" {
		return false
	}
	return e.hasher.Verify(candidate, account.PasswordHash)
}

// useRecoveryCode consumes one recovery code. The store update commits
// before success is reported, so a code can never satisfy two logins.
func (e *Engine) useRecoveryCode(ctx context.Context, account *AccountRecord, candidate string) error {
	if account == nil || candidate == "" {
		return ErrInvalidBackupCode
	}

	idx := -1
	for i, code := range account.RecoveryCodes {
		if code == candidate {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrInvalidBackupCode
	}

	remaining := make([]string, 0, len(account.RecoveryCodes)-1)
	remaining = append(remaining, account.RecoveryCodes[:idx]...)
	remaining = append(remaining, account.RecoveryCodes[idx+1:]...)

	if err := e.accounts.UpdateRecoveryCodes(ctx, account.ID, remaining); err != nil {
		return internalErr(err)
	}
	account.RecoveryCodes = remaining
	return nil
}

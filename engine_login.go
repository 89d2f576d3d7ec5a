package stepauth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Login runs one step of the step-up login protocol. The first hop
// identifies the user by username or email; later hops carry the login
// token issued by a previous intermediary result. An attempt completes
// as soon as one verification type has been satisfied; clients wanting
// additional factors re-present the login token instead of the tokens
// from a complete result.
func (e *Engine) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	start := time.Now()
	defer func() { e.metricObserve(MetricLoginLatency, time.Since(start)) }()

	if req == nil {
		return nil, e.failLogin(ctx, "", ErrInvalidRequest, "nil_request")
	}

	user, used, err := e.resolveLoginIdentity(ctx, req)
	if err != nil {
		return nil, e.failLogin(ctx, "", err, "identity")
	}

	// No factor presented: report where the attempt stands.
	if req.Type == "" {
		return e.loginIntermediary(ctx, user, used)
	}
	if !req.Type.Valid() {
		return nil, e.failLogin(ctx, user.ID, ErrInvalidRequest, "unknown_verification_type")
	}
	if req.Type.BlockedBy(used) {
		return nil, e.failLogin(ctx, user.ID, ErrVerificationTypeBlocked, string(req.Type))
	}

	account, err := e.accounts.GetAccountByUserID(ctx, user.ID)
	if err != nil {
		// A user without an account is a data-integrity violation, not a
		// user-facing condition.
		return nil, e.failLogin(ctx, user.ID, fmt.Errorf("%w: account missing for user", ErrInternal), "account_missing")
	}

	if err := e.verifyLoginFactor(ctx, account, req); err != nil {
		return nil, e.failLogin(ctx, user.ID, err, string(req.Type))
	}

	used = append(used, req.Type)

	// Single successful factor finalizes the attempt.
	if len(used) >= 1 {
		return e.loginComplete(ctx, user, used)
	}
	return e.loginIntermediary(ctx, user, used)
}

// resolveLoginIdentity picks the acting user from exactly one of
// username, email, or a login-kind token, and returns the verification
// types already satisfied in this attempt.
func (e *Engine) resolveLoginIdentity(ctx context.Context, req *LoginRequest) (*UserRecord, []VerificationType, error) {
	selectors := 0
	for _, present := range []bool{req.Username != "", req.Email != "", req.Token != ""} {
		if present {
			selectors++
		}
	}
	if selectors != 1 {
		return nil, nil, ErrInvalidRequest
	}

	var (
		user *UserRecord
		used []VerificationType
		err  error
	)

	switch {
	case req.Token != "":
		claims, parseErr := e.jwtManager.ParseLogin(req.Token)
		if parseErr != nil {
			return nil, nil, ErrInvalidToken
		}
		for _, vt := range claims.VerificationTypes {
			used = append(used, VerificationType(vt))
		}
		user, err = e.users.GetUserByID(ctx, claims.UserID)
	case req.Username != "":
		user, err = e.users.GetUserByUsername(ctx, req.Username)
	default:
		user, err = e.users.GetUserByEmail(ctx, req.Email)
	}
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, internalErr(err)
	}

	if user.Deleted() {
		return nil, nil, ErrUserDeleted
	}
	if user.Banned() {
		return nil, nil, ErrUserBanned
	}
	if user.Role == RoleSystem {
		return nil, nil, ErrForbidden
	}

	return user, used, nil
}

// verifyLoginFactor dispatches one credential check. It mutates nothing
// except consuming a recovery code exactly when that factor succeeds.
func (e *Engine) verifyLoginFactor(ctx context.Context, account *AccountRecord, req *LoginRequest) error {
	switch req.Type {
	case VerificationPassword:
		if !e.verifyPassword(account, req.Password) {
			return ErrInvalidPassword
		}
		return nil
	case VerificationTOTP:
		if !account.TOTPEnabled() {
			return ErrTOTPNotEnabled
		}
		if !e.totp.verify(*account.OTPSecret, req.TOTPCode) {
			return ErrInvalidTOTP
		}
		return nil
	case VerificationBackupCode:
		if err := e.useRecoveryCode(ctx, account, req.BackupCode); err != nil {
			return err
		}
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, account.UserID, "", nil, nil)
		return nil
	case VerificationEmail:
		return ErrVerificationNotSupported
	default:
		return ErrInvalidRequest
	}
}

func (e *Engine) loginComplete(ctx context.Context, user *UserRecord, used []VerificationType) (*LoginResult, error) {
	issued, err := e.createSession(ctx, user.ID)
	if err != nil {
		return nil, e.failLogin(ctx, user.ID, err, "session_creation")
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, issued.record.ID, nil, func() map[string]string {
		return map[string]string{
			"verification_types": joinVerificationTypes(used),
		}
	})

	return &LoginResult{
		Status:       LoginComplete,
		User:         user,
		SessionID:    issued.record.ID,
		AccessToken:  issued.accessToken,
		RefreshToken: issued.refreshToken,
	}, nil
}

func (e *Engine) loginIntermediary(ctx context.Context, user *UserRecord, used []VerificationType) (*LoginResult, error) {
	var next []VerificationType
	for _, vt := range AllVerificationTypes() {
		if !vt.BlockedBy(used) {
			next = append(next, vt)
		}
	}

	usedStrs := make([]string, 0, len(used))
	for _, vt := range used {
		usedStrs = append(usedStrs, string(vt))
	}
	token, err := e.jwtManager.SignLogin(user.ID, usedStrs)
	if err != nil {
		return nil, e.failLogin(ctx, user.ID, internalErr(err), "login_token_signing")
	}

	e.metricInc(MetricLoginIntermediary)
	e.emitAudit(ctx, auditEventLoginIntermediary, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{
			"verification_types": joinVerificationTypes(used),
		}
	})

	return &LoginResult{
		Status:   LoginIntermediary,
		Previous: used,
		Next:     next,
		Token:    token,
	}, nil
}

// failLogin records the rejection and hands the typed error back.
func (e *Engine) failLogin(ctx context.Context, userID string, err error, reason string) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return err
}

func joinVerificationTypes(types []VerificationType) string {
	out := ""
	for i, vt := range types {
		if i > 0 {
			out += ","
		}
		out += string(vt)
	}
	return out
}

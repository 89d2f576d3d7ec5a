package stepauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginIntermediary   = "login_intermediary"
	auditEventRegisterSuccess     = "register_success"
	auditEventRegisterFailure     = "register_failure"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshFailure      = "refresh_failure"
	auditEventValidateFailure     = "validate_failure"
	auditEventLogoutSession       = "logout_session"
	auditEventSessionsRevoked     = "sessions_revoked"
	auditEventSessionsSwept       = "sessions_swept"
	auditEventPasswordChanged     = "password_changed"
	auditEventPasswordChangeFail  = "password_change_failure"
	auditEventTOTPEnrollStarted   = "totp_enroll_started"
	auditEventTOTPEnrollConfirmed = "totp_enroll_confirmed"
	auditEventTOTPEnrollCancelled = "totp_enroll_cancelled"
	auditEventTOTPEnrollFailure   = "totp_enroll_failure"
	auditEventTOTPDisabled        = "totp_disabled"
	auditEventTOTPDisableFailure  = "totp_disable_failure"
	auditEventBackupCodeUsed      = "backup_code_used"
	auditEventBackupCodesRotated  = "backup_codes_rotated"
	auditEventProofOfWorkAccepted = "proof_of_work_accepted"
	auditEventProofOfWorkRejected = "proof_of_work_rejected"
	auditEventUserBanned          = "user_banned"
	auditEventUserUnbanned        = "user_unbanned"
	auditEventUserDeleted         = "user_deleted"
	auditEventRoleChanged         = "role_changed"
	auditEventDisplayNameChanged  = "display_name_changed"
)

// AuditErrorCode is the stable wire form of an engine error inside an
// audit event.
type AuditErrorCode string

const (
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrUserDeleted        AuditErrorCode = "user_deleted"
	auditErrUserBanned         AuditErrorCode = "user_banned"
	auditErrVerificationBlock  AuditErrorCode = "verification_blocked"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrPolicy             AuditErrorCode = "policy_violation"
	auditErrTOTPState          AuditErrorCode = "totp_state"
	auditErrEnrollmentExpired  AuditErrorCode = "enrollment_expired"
	auditErrProofOfWorkWeak    AuditErrorCode = "proof_of_work_too_weak"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrInvalidTOTP),
		errors.Is(err, ErrInvalidBackupCode):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrAccountNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrUserDeleted):
		return auditErrUserDeleted
	case errors.Is(err, ErrUserBanned):
		return auditErrUserBanned
	case errors.Is(err, ErrVerificationTypeBlocked),
		errors.Is(err, ErrVerificationNotSupported):
		return auditErrVerificationBlock
	case errors.Is(err, ErrUsernameTaken),
		errors.Is(err, ErrEmailTaken):
		return auditErrDuplicate
	case errors.Is(err, ErrPasswordTooShort),
		errors.Is(err, ErrUsernameLength),
		errors.Is(err, ErrInvalidEmail):
		return auditErrPolicy
	case errors.Is(err, ErrTOTPNotEnabled),
		errors.Is(err, ErrTOTPAlreadyEnabled):
		return auditErrTOTPState
	case errors.Is(err, ErrEnrollmentNotFound):
		return auditErrEnrollmentExpired
	case errors.Is(err, ErrProofOfWorkTooWeak):
		return auditErrProofOfWorkWeak
	default:
		return auditErrInternal
	}
}

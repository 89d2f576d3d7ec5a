package stepauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/halcyonlabs/stepauth/jwt"
	"github.com/halcyonlabs/stepauth/password"
)

// Engine is the authentication engine facade. Build one with [New]; all
// methods are safe for concurrent use.
type Engine struct {
	config      Config
	interval    sessionInterval
	users       UserStore
	accounts    AccountStore
	sessions    SessionStore
	pendingTOTP PendingTOTPStore
	jwtManager  *jwt.Manager
	hasher      *password.Hasher
	totp        *totpEngine
	audit       *auditDispatcher
	metrics     *Metrics
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were discarded because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters
// and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// internalErr wraps an unexpected dependency failure so callers can match
// ErrInternal without losing the cause.
func internalErr(err error) error {
	return fmt.Errorf("%w: %v", ErrInternal, err)
}

// activeUser loads a user and rejects deleted or banned accounts.
func (e *Engine) activeUser(ctx context.Context, userID string) (*UserRecord, error) {
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internalErr(err)
	}
	if user.Deleted() {
		return nil, ErrUserDeleted
	}
	if user.Banned() {
		return nil, ErrUserBanned
	}
	return user, nil
}

// Validate checks an access token and its backing session, and returns
// the authenticated identity. The session's last-used timestamp is
// bumped best-effort.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*AuthResult, error) {
	start := time.Now()
	defer func() { e.metricObserve(MetricValidateLatency, time.Since(start)) }()

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		return nil, ErrInvalidToken
	}

	sess, err := e.sessionByClaims(ctx, claims.UserID, claims.SessionToken)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		e.emitAudit(ctx, auditEventValidateFailure, false, claims.UserID, "", err, nil)
		return nil, err
	}

	if _, err := e.activeUser(ctx, claims.UserID); err != nil {
		e.metricInc(MetricValidateFailure)
		e.emitAudit(ctx, auditEventValidateFailure, false, claims.UserID, sess.ID, err, nil)
		return nil, err
	}

	// A stale bump loses nothing a later request will not restore.
	_ = e.sessions.UpdateSessionLastUsed(ctx, sess.ID, time.Now().UTC())

	e.metricInc(MetricValidateSuccess)
	return &AuthResult{
		UserID:    claims.UserID,
		SessionID: sess.ID,
	}, nil
}

// Refresh mints a fresh access token against a still-valid refresh
// token. The refresh token itself is not rotated; it stays valid until
// its own expiry or until the session ends.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	start := time.Now()
	defer func() { e.metricObserve(MetricRefreshLatency, time.Since(start)) }()

	claims, err := e.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, "", "", ErrInvalidToken, nil)
		return nil, ErrInvalidToken
	}

	sess, err := e.sessionByClaims(ctx, claims.UserID, claims.SessionToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, claims.UserID, "", err, nil)
		return nil, err
	}

	if _, err := e.activeUser(ctx, claims.UserID); err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, claims.UserID, sess.ID, err, nil)
		return nil, err
	}

	access, err := e.jwtManager.SignAccess(claims.UserID, sess.SecretToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, claims.UserID, sess.ID, err, nil)
		return nil, internalErr(err)
	}

	_ = e.sessions.UpdateSessionLastUsed(ctx, sess.ID, time.Now().UTC())

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, claims.UserID, sess.ID, nil, nil)

	return &RefreshResult{
		UserID:      claims.UserID,
		SessionID:   sess.ID,
		AccessToken: access,
	}, nil
}

// Logout ends the session behind an access token. A token whose session
// is already gone still logs out cleanly.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutSession, false, "", "", ErrInvalidToken, nil)
		return ErrInvalidToken
	}

	sess, err := e.sessionByClaims(ctx, claims.UserID, claims.SessionToken)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			e.emitAudit(ctx, auditEventLogoutSession, true, claims.UserID, "", nil, nil)
			return nil
		}
		e.emitAudit(ctx, auditEventLogoutSession, false, claims.UserID, "", err, nil)
		return err
	}

	if err := e.sessions.DeleteSession(ctx, sess.ID); err != nil {
		e.emitAudit(ctx, auditEventLogoutSession, false, claims.UserID, sess.ID, err, nil)
		return internalErr(err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, claims.UserID, sess.ID, nil, nil)
	return nil
}

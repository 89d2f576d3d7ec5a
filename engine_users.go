package stepauth

import (
	"context"
	"errors"
	"time"
)

// BanUser stamps the user banned and revokes their sessions. Banned
// users fail login and validation until unbanned.
func (e *Engine) BanUser(ctx context.Context, userID string) error {
	user, err := e.lookupUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Deleted() {
		return ErrUserDeleted
	}

	now := time.Now().UTC()
	if err := e.users.SetBanned(ctx, userID, &now); err != nil {
		return internalErr(err)
	}
	if _, err := e.RevokeUserSessions(ctx, userID); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventUserBanned, true, userID, "", nil, nil)
	return nil
}

// UnbanUser clears a ban stamp.
func (e *Engine) UnbanUser(ctx context.Context, userID string) error {
	if _, err := e.lookupUser(ctx, userID); err != nil {
		return err
	}

	if err := e.users.SetBanned(ctx, userID, nil); err != nil {
		return internalErr(err)
	}

	e.emitAudit(ctx, auditEventUserUnbanned, true, userID, "", nil, nil)
	return nil
}

// DeleteUser revokes all sessions, removes the credential account, and
// soft-deletes the user: PII is nulled and the row stamped, never
// physically removed.
func (e *Engine) DeleteUser(ctx context.Context, userID string) error {
	user, err := e.lookupUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Deleted() {
		return ErrUserDeleted
	}

	if _, err := e.RevokeUserSessions(ctx, userID); err != nil {
		return err
	}

	account, err := e.accountForUser(ctx, userID)
	switch {
	case err == nil:
		if err := e.accounts.DeleteAccount(ctx, account.ID); err != nil {
			return internalErr(err)
		}
	case errors.Is(err, ErrAccountNotFound):
		// Nothing to remove.
	default:
		return err
	}

	if err := e.users.SoftDeleteUser(ctx, userID, time.Now().UTC()); err != nil {
		return internalErr(err)
	}

	e.emitAudit(ctx, auditEventUserDeleted, true, userID, "", nil, nil)
	return nil
}

// SetRole changes a user's role. The system role is assignable only
// through the store directly, never through the engine.
func (e *Engine) SetRole(ctx context.Context, userID string, role Role) error {
	if role == RoleSystem {
		return ErrForbidden
	}
	if _, err := e.activeUser(ctx, userID); err != nil {
		return err
	}

	if err := e.users.UpdateRole(ctx, userID, role); err != nil {
		return internalErr(err)
	}

	e.emitAudit(ctx, auditEventRoleChanged, true, userID, "", nil, func() map[string]string {
		return map[string]string{
			"role": role.String(),
		}
	})
	return nil
}

// SetDisplayName changes a user's display name.
func (e *Engine) SetDisplayName(ctx context.Context, userID, displayName string) error {
	if displayName == "" {
		return ErrInvalidRequest
	}
	if _, err := e.activeUser(ctx, userID); err != nil {
		return err
	}

	if err := e.users.UpdateDisplayName(ctx, userID, displayName); err != nil {
		return internalErr(err)
	}

	e.emitAudit(ctx, auditEventDisplayNameChanged, true, userID, "", nil, nil)
	return nil
}

// lookupUser fetches a user without the active checks, for
// administrative operations that act on banned or deleted rows.
func (e *Engine) lookupUser(ctx context.Context, userID string) (*UserRecord, error) {
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internalErr(err)
	}
	return user, nil
}

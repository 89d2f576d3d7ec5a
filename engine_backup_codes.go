package stepauth

import (
	"context"

	"github.com/halcyonlabs/stepauth/internal"
)

// RecoveryCodesRemaining returns how many unused recovery codes the
// user still holds.
func (e *Engine) RecoveryCodesRemaining(ctx context.Context, userID string) (int, error) {
	account, err := e.accountForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(account.RecoveryCodes), nil
}

// RegenerateRecoveryCodes replaces the user's recovery codes with a
// fresh batch, invalidating every previous code. Requires the account
// password. The new batch is surfaced only here.
func (e *Engine) RegenerateRecoveryCodes(ctx context.Context, userID, accountPassword string) ([]string, error) {
	if _, err := e.activeUser(ctx, userID); err != nil {
		return nil, err
	}
	account, err := e.accountForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !e.verifyPassword(account, accountPassword) {
		return nil, ErrInvalidPassword
	}

	codes, err := internal.RecoveryCodes(e.config.TOTP.BackupCodeCount, e.config.TOTP.BackupCodeLength)
	if err != nil {
		return nil, internalErr(err)
	}
	if err := e.accounts.UpdateRecoveryCodes(ctx, account.ID, codes); err != nil {
		return nil, internalErr(err)
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, auditEventBackupCodesRotated, true, userID, "", nil, nil)
	return codes, nil
}

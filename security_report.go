package stepauth

// SecurityReport summarizes the engine's effective security posture for
// operational review. It reads only immutable configuration.
func (e *Engine) SecurityReport() SecurityReport {
	return SecurityReport{
		PasswordAlgorithm: e.hasher.Algorithm(),
		AccessTTL:         e.config.Tokens.Access.TTL,
		RefreshTTL:        e.config.Tokens.Refresh.TTL,
		LoginTTL:          e.config.Tokens.Login.TTL,
		SessionExpiration: e.config.Session.Expiration,
		SessionTokenLen:   e.config.Session.TokenLength,
		TOTPAlgorithm:     e.config.TOTP.Algorithm,
		TOTPDigits:        e.config.TOTP.Digits,
		TOTPPeriod:        e.config.TOTP.Period,
		TOTPWindow:        int(e.config.TOTP.Skew),
		PendingTOTPTTL:    e.config.TOTP.PendingTTL,
		AuditEnabled:      e.config.Audit.Enabled,
		MetricsEnabled:    e.config.Metrics.Enabled,
	}
}

package stepauth

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpEngine wraps the process-wide TOTP parameters. Codes are accepted
// for the current time step or any step within the configured skew window;
// there is no replay protection beyond the window.
type totpEngine struct {
	cfg TOTPConfig
}

func newTOTPEngine(cfg TOTPConfig) *totpEngine {
	return &totpEngine{cfg: cfg}
}

func (e *totpEngine) algorithm() otp.Algorithm {
	switch e.cfg.Algorithm {
	case "SHA256":
		return otp.AlgorithmSHA256
	case "SHA512":
		return otp.AlgorithmSHA512
	default:
		return otp.AlgorithmSHA1
	}
}

// generate creates a fresh secret plus its otpauth:// provisioning URI,
// labelled with the configured issuer and the given account label.
func (e *totpEngine) generate(accountLabel string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      e.cfg.Issuer,
		AccountName: accountLabel,
		Period:      e.cfg.Period,
		SecretSize:  uint(e.cfg.SecretLength),
		Digits:      otp.Digits(e.cfg.Digits),
		Algorithm:   e.algorithm(),
	})
}

// verify checks candidate against the secret at the current wall clock.
func (e *totpEngine) verify(secret, candidate string) bool {
	return e.verifyAt(secret, candidate, time.Now())
}

func (e *totpEngine) verifyAt(secret, candidate string, at time.Time) bool {
	ok, err := totp.ValidateCustom(candidate, secret, at.UTC(), totp.ValidateOpts{
		Period:    e.cfg.Period,
		Skew:      uint(e.cfg.Skew),
		Digits:    otp.Digits(e.cfg.Digits),
		Algorithm: e.algorithm(),
	})
	return err == nil && ok
}

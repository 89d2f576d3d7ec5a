package stepauth

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/halcyonlabs/stepauth/password"
)

// Config is the process-wide engine configuration. It is loaded once,
// validated by [Builder.Build], and immutable afterwards.
type Config struct {
	Tokens      TokensConfig
	Session     SessionConfig
	Password    PasswordConfig
	TOTP        TOTPConfig
	ProofOfWork ProofOfWorkConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenKindConfig is the signing material for one bearer-token kind.
// Tokens of one kind never validate under another kind's secret or issuer.
type TokenKindConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// TokensConfig holds the three token kinds: access (short-lived, ordinary
// requests), refresh (long-lived, minting new access tokens), and login
// (very short-lived, mid-protocol step-up state).
type TokensConfig struct {
	Access  TokenKindConfig
	Refresh TokenKindConfig
	Login   TokenKindConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session rows created by the engine.
type SessionConfig struct {
	// TokenLength is the length of the opaque alphanumeric secret token,
	// between 1 and 255.
	TokenLength int
	// Expiration is a duration expression matching ^\d+[dwmy]?$ (days,
	// weeks, months, years; bare numbers mean days). Malformed values
	// fail Builder.Build.
	Expiration string
	// RedisPrefix namespaces keys of the bundled Redis session store.
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the one-way digest used for password hashes.
type PasswordConfig struct {
	// Algorithm is one of the identifiers registered in the password
	// subpackage ("sha256", "sha512", "sha3-256", "sha3-512").
	Algorithm string
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig holds the process-wide TOTP parameters shared by enrollment
// and verification.
type TOTPConfig struct {
	Issuer       string
	Digits       int
	Period       uint
	Algorithm    string // "SHA1" (default), "SHA256", "SHA512"
	Skew         uint   // accepted time steps on each side of now
	SecretLength int    // random bytes behind the base32 secret
	// PendingTTL bounds the generate → verify enrollment handshake.
	PendingTTL time.Duration
	// BackupCodeCount and BackupCodeLength size the recovery-code batch
	// issued at registration and on regeneration.
	BackupCodeCount  int
	BackupCodeLength int
}

/*
====================================
PROOF OF WORK CONFIG
====================================
*/

// ProofOfWorkConfig tunes reporting for the proof-of-work gate.
type ProofOfWorkConfig struct {
	// HashingSpeed is the assumed client hash rate in hashes/second.
	// Used only to estimate solve duration, never for enforcement.
	HashingSpeed float64
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls asynchronous audit event dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Tokens: TokensConfig{
			Access:  TokenKindConfig{Issuer: "stepauth-access", TTL: 15 * time.Minute},
			Refresh: TokenKindConfig{Issuer: "stepauth-refresh", TTL: 7 * 24 * time.Hour},
			Login:   TokenKindConfig{Issuer: "stepauth-login", TTL: 5 * time.Minute},
		},
		Session: SessionConfig{
			TokenLength: 64,
			Expiration:  "1d",
			RedisPrefix: "sa",
		},
		Password: PasswordConfig{
			Algorithm: "sha512",
		},
		TOTP: TOTPConfig{
			Issuer:           "stepauth",
			Digits:           6,
			Period:           30,
			Algorithm:        "SHA1",
			Skew:             1,
			SecretLength:     20,
			PendingTTL:       5 * time.Minute,
			BackupCodeCount:  50,
			BackupCodeLength: 16,
		},
		ProofOfWork: ProofOfWorkConfig{
			HashingSpeed: 1_000_000,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Tokens.Access.Secret = cloneBytes(cfg.Tokens.Access.Secret)
	out.Tokens.Refresh.Secret = cloneBytes(cfg.Tokens.Refresh.Secret)
	out.Tokens.Login.Secret = cloneBytes(cfg.Tokens.Login.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

func validateConfig(cfg *Config) error {
	for _, kind := range []struct {
		name string
		tk   *TokenKindConfig
	}{
		{"access", &cfg.Tokens.Access},
		{"refresh", &cfg.Tokens.Refresh},
		{"login", &cfg.Tokens.Login},
	} {
		if len(kind.tk.Secret) == 0 {
			return fmt.Errorf("tokens: %s secret is required", kind.name)
		}
		if kind.tk.Issuer == "" {
			return fmt.Errorf("tokens: %s issuer is required", kind.name)
		}
		if kind.tk.TTL <= 0 {
			return fmt.Errorf("tokens: %s ttl must be positive", kind.name)
		}
	}

	// The bundled Redis store encodes the secret token as a single
	// length-prefixed field, so 255 is the hard ceiling.
	if cfg.Session.TokenLength <= 0 || cfg.Session.TokenLength > 255 {
		return fmt.Errorf("session: token length must be between 1 and 255")
	}
	if _, err := parseSessionExpiration(cfg.Session.Expiration); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	if !password.Supported(cfg.Password.Algorithm) {
		return fmt.Errorf("password: unknown algorithm %q", cfg.Password.Algorithm)
	}

	if cfg.TOTP.Digits != 6 && cfg.TOTP.Digits != 8 {
		return fmt.Errorf("totp: digits must be 6 or 8")
	}
	if cfg.TOTP.Period == 0 {
		return fmt.Errorf("totp: period must be positive")
	}
	switch cfg.TOTP.Algorithm {
	case "SHA1", "SHA256", "SHA512":
	default:
		return fmt.Errorf("totp: unknown algorithm %q", cfg.TOTP.Algorithm)
	}
	if cfg.TOTP.SecretLength < 16 {
		return fmt.Errorf("totp: secret length must be at least 16 bytes")
	}
	if cfg.TOTP.PendingTTL <= 0 {
		return fmt.Errorf("totp: pending ttl must be positive")
	}
	if cfg.TOTP.BackupCodeCount <= 0 || cfg.TOTP.BackupCodeLength <= 0 {
		return fmt.Errorf("totp: backup code count and length must be positive")
	}

	if cfg.ProofOfWork.HashingSpeed <= 0 {
		return fmt.Errorf("proof of work: hashing speed must be positive")
	}

	return nil
}

/*
====================================
SESSION EXPIRATION EXPRESSION
====================================
*/

var sessionExpirationRe = regexp.MustCompile(`^(\d+)([dwmy]?)$`)

// sessionInterval is a parsed session-expiration expression. Units are
// applied calendar-wise so "1m" lands on the same day next month.
type sessionInterval struct {
	count int
	unit  byte
}

func parseSessionExpiration(expr string) (sessionInterval, error) {
	m := sessionExpirationRe.FindStringSubmatch(expr)
	if m == nil {
		return sessionInterval{}, fmt.Errorf("malformed session expiration expression %q", expr)
	}

	count, err := strconv.Atoi(m[1])
	if err != nil || count <= 0 {
		return sessionInterval{}, fmt.Errorf("malformed session expiration expression %q", expr)
	}

	unit := byte('d')
	if m[2] != "" {
		unit = m[2][0]
	}

	return sessionInterval{count: count, unit: unit}, nil
}

func (i sessionInterval) from(now time.Time) time.Time {
	switch i.unit {
	case 'w':
		return now.AddDate(0, 0, 7*i.count)
	case 'm':
		return now.AddDate(0, i.count, 0)
	case 'y':
		return now.AddDate(i.count, 0, 0)
	default:
		return now.AddDate(0, 0, i.count)
	}
}

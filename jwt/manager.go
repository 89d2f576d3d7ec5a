package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind names one of the three bearer-token classes. Each kind signs and
// verifies against its own secret, issuer, and expiration; a token of one
// kind never validates as another.
type Kind string

const (
	// KindAccess is the short-lived token authorizing ordinary requests.
	KindAccess Kind = "access"
	// KindRefresh is the long-lived token used only to mint new access
	// tokens.
	KindRefresh Kind = "refresh"
	// KindLogin is the very short-lived token carrying step-up login
	// state between protocol hops.
	KindLogin Kind = "login"
)

// KindConfig is the signing material for one token kind.
type KindConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Config holds the per-kind signing material plus shared parser options.
type Config struct {
	Access  KindConfig
	Refresh KindConfig
	Login   KindConfig
	Leeway  time.Duration
}

// SessionClaims is the payload of access and refresh tokens: the owning
// user plus the session's opaque secret token. The secret token is what
// binds the bearer token to a live session row.
type SessionClaims struct {
	UserID       string `json:"user_id"`
	SessionToken string `json:"session_token"`
	jwt.RegisteredClaims
}

// LoginClaims is the payload of login tokens: the acting user plus the
// ordered list of verification types already satisfied in this attempt.
type LoginClaims struct {
	UserID            string   `json:"user_id"`
	VerificationTypes []string `json:"verification_types"`
	jwt.RegisteredClaims
}

// Manager signs and verifies all three token kinds with HS256.
type Manager struct {
	config Config
}

// NewManager validates the per-kind configuration and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	for _, kind := range []struct {
		name Kind
		kc   KindConfig
	}{
		{KindAccess, cfg.Access},
		{KindRefresh, cfg.Refresh},
		{KindLogin, cfg.Login},
	} {
		if len(kind.kc.Secret) == 0 {
			return nil, fmt.Errorf("%s: secret is required", kind.name)
		}
		if kind.kc.Issuer == "" {
			return nil, fmt.Errorf("%s: issuer is required", kind.name)
		}
		if kind.kc.TTL <= 0 {
			return nil, fmt.Errorf("%s: ttl must be positive", kind.name)
		}
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// SignAccess mints an access token for the given user and session secret
// token.
func (m *Manager) SignAccess(userID, sessionToken string) (string, error) {
	return m.signSession(KindAccess, userID, sessionToken)
}

// SignRefresh mints a refresh token carrying the same payload shape as an
// access token under the refresh kind's secret and issuer.
func (m *Manager) SignRefresh(userID, sessionToken string) (string, error) {
	return m.signSession(KindRefresh, userID, sessionToken)
}

// SignLogin mints a login token embedding the verification types already
// satisfied in this login attempt, in order of use.
func (m *Manager) SignLogin(userID string, verificationTypes []string) (string, error) {
	kc := m.kindConfig(KindLogin)
	now := time.Now()

	claims := LoginClaims{
		UserID:            userID,
		VerificationTypes: verificationTypes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    kc.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(kc.TTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(kc.Secret)
}

// ParseAccess verifies tokenStr as an access token.
func (m *Manager) ParseAccess(tokenStr string) (*SessionClaims, error) {
	return m.parseSession(KindAccess, tokenStr)
}

// ParseRefresh verifies tokenStr as a refresh token.
func (m *Manager) ParseRefresh(tokenStr string) (*SessionClaims, error) {
	return m.parseSession(KindRefresh, tokenStr)
}

// ParseLogin verifies tokenStr as a login token.
func (m *Manager) ParseLogin(tokenStr string) (*LoginClaims, error) {
	kc := m.kindConfig(KindLogin)

	token, err := m.parser(kc).ParseWithClaims(tokenStr, &LoginClaims{}, func(*jwt.Token) (interface{}, error) {
		return kc.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*LoginClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (m *Manager) signSession(kind Kind, userID, sessionToken string) (string, error) {
	kc := m.kindConfig(kind)
	now := time.Now()

	claims := SessionClaims{
		UserID:       userID,
		SessionToken: sessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    kc.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(kc.TTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(kc.Secret)
}

func (m *Manager) parseSession(kind Kind, tokenStr string) (*SessionClaims, error) {
	kc := m.kindConfig(kind)

	token, err := m.parser(kc).ParseWithClaims(tokenStr, &SessionClaims{}, func(*jwt.Token) (interface{}, error) {
		return kc.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (m *Manager) parser(kc KindConfig) *jwt.Parser {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(kc.Issuer),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	return jwt.NewParser(options...)
}

func (m *Manager) kindConfig(kind Kind) KindConfig {
	switch kind {
	case KindRefresh:
		return m.config.Refresh
	case KindLogin:
		return m.config.Login
	default:
		return m.config.Access
	}
}

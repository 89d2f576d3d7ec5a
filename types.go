package stepauth

import (
	"context"
	"time"
)

// Role is the enumerated privilege level carried on a user record.
type Role uint8

const (
	// RoleUnverified is the role assigned to every newly registered user.
	RoleUnverified Role = iota
	// RoleUser is a regular verified user.
	RoleUser
	// RoleModerator holds elevated moderation privileges.
	RoleModerator
	// RoleAdmin holds administrative privileges.
	RoleAdmin
	// RoleSystem is reserved for internal actors and can never log in.
	RoleSystem
)

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case RoleUnverified:
		return "unverified"
	case RoleUser:
		return "user"
	case RoleModerator:
		return "moderator"
	case RoleAdmin:
		return "admin"
	case RoleSystem:
		return "system"
	default:
		return "unknown"
	}
}

// VerificationType is a closed set of factor categories usable to satisfy a
// login step.
type VerificationType string

const (
	// VerificationPassword verifies the account password.
	VerificationPassword VerificationType = "password"
	// VerificationEmail is declared but not implemented; using it always
	// fails with [ErrVerificationNotSupported].
	VerificationEmail VerificationType = "email"
	// VerificationTOTP verifies a time-based one-time code.
	VerificationTOTP VerificationType = "totp"
	// VerificationBackupCode consumes a single-use recovery code.
	VerificationBackupCode VerificationType = "backup_code"
)

// verificationBlocks is the static blocking table: once a type has been used
// within a login attempt, every type in its set is disallowed for the rest
// of the attempt. A factor category can never satisfy the protocol twice.
var verificationBlocks = map[VerificationType][]VerificationType{
	VerificationPassword:   {VerificationPassword},
	VerificationEmail:      {VerificationEmail},
	VerificationTOTP:       {VerificationTOTP, VerificationBackupCode},
	VerificationBackupCode: {VerificationBackupCode, VerificationTOTP},
}

// Valid reports whether v is one of the declared verification types.
func (v VerificationType) Valid() bool {
	switch v {
	case VerificationPassword, VerificationEmail, VerificationTOTP, VerificationBackupCode:
		return true
	default:
		return false
	}
}

// Blocks returns the verification types disallowed after v has been used.
func (v VerificationType) Blocks() []VerificationType {
	return verificationBlocks[v]
}

// BlockedBy reports whether v is blocked by any type in used.
func (v VerificationType) BlockedBy(used []VerificationType) bool {
	for _, u := range used {
		for _, b := range u.Blocks() {
			if b == v {
				return true
			}
		}
	}
	return false
}

// AllVerificationTypes lists every declared verification type in protocol
// order.
func AllVerificationTypes() []VerificationType {
	return []VerificationType{
		VerificationPassword,
		VerificationEmail,
		VerificationTOTP,
		VerificationBackupCode,
	}
}

// UserRecord is the public identity record persisted by the host's
// [UserStore]. Username and Email become nil when the user is soft-deleted.
type UserRecord struct {
	ID          string
	Username    *string
	Email       *string
	DisplayName string
	Role        Role
	CreatedAt   time.Time
	DeletedAt   *time.Time
	BannedAt    *time.Time
	ProofOfWork *string
}

// Deleted reports whether the user has been soft-deleted.
func (u *UserRecord) Deleted() bool {
	return u != nil && u.DeletedAt != nil
}

// Banned reports whether the user is currently banned.
func (u *UserRecord) Banned() bool {
	return u != nil && u.BannedAt != nil
}

// AccountRecord is the credential set persisted by the host's
// [AccountStore]. Exactly one account exists per user.
type AccountRecord struct {
	ID            string
	UserID        string
	PasswordHash  []byte
	OTPSecret     *string
	RecoveryCodes []string
}

// TOTPEnabled reports whether a TOTP secret is committed on the account.
func (a *AccountRecord) TOTPEnabled() bool {
	return a != nil && a.OTPSecret != nil && *a.OTPSecret != ""
}

// SessionRecord is one authenticated device/browser instance persisted by
// the host's [SessionStore]. The secret token never reaches the client
// directly; it travels only inside signed access/refresh tokens.
type SessionRecord struct {
	ID          string
	UserID      string
	SecretToken string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	LastUsedAt  time.Time
}

// Expired reports whether the session's expiry has passed at now.
func (s *SessionRecord) Expired(now time.Time) bool {
	return s != nil && s.ExpiresAt.Before(now)
}

// UserStore is the identity half of the record store the host must
// implement. Lookup methods return [ErrUserNotFound] when no row matches;
// they never return a nil record with a nil error.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*UserRecord, error)
	GetUserByUsername(ctx context.Context, username string) (*UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (*UserRecord, error)
	CreateUser(ctx context.Context, user *UserRecord) error
	UpdateDisplayName(ctx context.Context, id, displayName string) error
	UpdateRole(ctx context.Context, id string, role Role) error
	UpdateProofOfWork(ctx context.Context, id string, token *string) error
	// SoftDeleteUser nulls the user's username and email and stamps
	// DeletedAt. The row is never physically removed.
	SoftDeleteUser(ctx context.Context, id string, deletedAt time.Time) error
	SetBanned(ctx context.Context, id string, bannedAt *time.Time) error
	ListUsers(ctx context.Context) ([]UserRecord, error)
}

// AccountStore is the credential half of the record store. Lookup methods
// return [ErrAccountNotFound] when no row matches.
type AccountStore interface {
	GetAccountByID(ctx context.Context, id string) (*AccountRecord, error)
	GetAccountByUserID(ctx context.Context, userID string) (*AccountRecord, error)
	CreateAccount(ctx context.Context, account *AccountRecord) error
	UpdatePasswordHash(ctx context.Context, id string, hash []byte) error
	UpdateOTPSecret(ctx context.Context, id string, secret *string) error
	UpdateRecoveryCodes(ctx context.Context, id string, codes []string) error
	DeleteAccount(ctx context.Context, id string) error
}

// SessionStore is the session half of the record store. Lookup methods
// return [ErrSessionNotFound] when no row matches. (userID, secretToken)
// pairs are unique. The module ships a Redis-backed implementation in the
// session subpackage for hosts without a relational store.
type SessionStore interface {
	CreateSession(ctx context.Context, session *SessionRecord) error
	GetSessionByID(ctx context.Context, id string) (*SessionRecord, error)
	GetSessionByUserAndToken(ctx context.Context, userID, secretToken string) (*SessionRecord, error)
	UpdateSessionLastUsed(ctx context.Context, id string, lastUsedAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID string) (int, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// PendingTOTPStore holds not-yet-confirmed TOTP secrets during the
// enrollment handshake. Entries expire after the configured TTL; Get must
// treat an expired entry as absent and is allowed to prune it. The default
// implementation is process-local; a Redis-backed one lives in
// internal/stores for multi-instance deployments.
type PendingTOTPStore interface {
	Put(ctx context.Context, userID, secret string, expiresAt time.Time) error
	Get(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, userID string) error
}

// LoginStatus tells a caller whether a login attempt finished or needs
// another hop.
type LoginStatus uint8

const (
	// LoginIntermediary means the attempt continues: the result carries a
	// fresh login token plus the used and still-available types.
	LoginIntermediary LoginStatus = iota
	// LoginComplete means a session was created and tokens were issued.
	LoginComplete
)

// LoginRequest is one step of the step-up login protocol. Exactly one of
// Username, Email, or Token selects the acting identity, and Type selects
// which credential field is consulted.
type LoginRequest struct {
	Username string
	Email    string
	// Token is a login-kind bearer token from a prior intermediary result.
	Token string

	Type       VerificationType
	Password   string
	TOTPCode   string
	BackupCode string
	EmailCode  string
}

// LoginResult is returned by [Engine.Login]. Status decides which fields
// are populated.
type LoginResult struct {
	Status LoginStatus

	// Intermediary fields.
	Previous []VerificationType
	Next     []VerificationType
	Token    string

	// Complete fields.
	User         *UserRecord
	SessionID    string
	AccessToken  string
	RefreshToken string
}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// RegisterResult is returned by [Engine.Register]. RecoveryCodes are
// surfaced exactly once, at registration.
type RegisterResult struct {
	User          *UserRecord
	SessionID     string
	AccessToken   string
	RefreshToken  string
	RecoveryCodes []string
}

// AuthResult identifies the session behind a validated access token.
type AuthResult struct {
	UserID    string
	SessionID string
}

// RefreshResult carries the fresh access token minted from a refresh token.
type RefreshResult struct {
	UserID      string
	SessionID   string
	AccessToken string
}

// TOTPEnrollment is returned by [Engine.BeginTOTPEnrollment]. The secret is
// pending until confirmed and expires after the configured TTL.
type TOTPEnrollment struct {
	Secret string
	URI    string
	// ExpiresAt is when the pending secret lapses if not confirmed.
	ExpiresAt time.Time
}

// ProofOfWorkStatus is returned by [Engine.ProofOfWork]. Difficulty is
// recomputed from the stored token on every call, never persisted.
type ProofOfWorkStatus struct {
	Token         *string
	Difficulty    int
	EstimatedWork float64
	// EstimatedDuration assumes the configured hashing speed. Reporting
	// only, no enforcement.
	EstimatedDuration time.Duration
}

// SecurityReport is a read-only snapshot of the engine's effective
// security posture, returned by [Engine.SecurityReport].
type SecurityReport struct {
	PasswordAlgorithm string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	LoginTTL          time.Duration
	SessionExpiration string
	SessionTokenLen   int
	TOTPAlgorithm     string
	TOTPDigits        int
	TOTPPeriod        uint
	TOTPWindow        int
	PendingTOTPTTL    time.Duration
	AuditEnabled      bool
	MetricsEnabled    bool
}

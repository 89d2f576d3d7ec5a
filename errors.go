package stepauth

import "errors"

var (
	// ErrInvalidRequest indicates malformed or missing input, including
	// supplying both a username and an email in one login step.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidToken indicates a bearer token failed signature, issuer,
	// or expiration verification for the expected kind.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserNotFound is returned when no user matches the id, username,
	// or email used to resolve the acting identity.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountNotFound is returned when a credential set is absent for
	// an account id or user id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrSessionNotFound is returned when a session lookup misses, either
	// by id, by (user, secret token), or via a bearer token.
	ErrSessionNotFound = errors.New("session not found")
	// ErrForbidden indicates the target user may not authenticate or the
	// caller lacks the privilege for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrUserDeleted indicates the target user has been soft-deleted.
	ErrUserDeleted = errors.New("user deleted")
	// ErrUserBanned indicates the target user is banned.
	ErrUserBanned = errors.New("user banned")
	// ErrInvalidPassword indicates the supplied password does not match
	// the stored hash.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidTOTP indicates the supplied one-time code does not match
	// any code within the validation window.
	ErrInvalidTOTP = errors.New("invalid totp code")
	// ErrInvalidBackupCode indicates the supplied recovery code is not in
	// the account's remaining code list.
	ErrInvalidBackupCode = errors.New("invalid backup code")
	// ErrTOTPNotEnabled indicates a TOTP operation on an account without a
	// committed secret.
	ErrTOTPNotEnabled = errors.New("totp not enabled")
	// ErrTOTPAlreadyEnabled indicates enrollment was requested while a
	// secret is already committed.
	ErrTOTPAlreadyEnabled = errors.New("totp already enabled")
	// ErrVerificationTypeBlocked indicates the requested verification type
	// is blocked by a type already used in this login attempt.
	ErrVerificationTypeBlocked = errors.New("verification type is blocked by a previously used verification type")
	// ErrVerificationNotSupported indicates a declared but unimplemented
	// verification type (email).
	ErrVerificationNotSupported = errors.New("verification type not supported")
	// ErrUsernameTaken indicates the username is already in use.
	ErrUsernameTaken = errors.New("username already used")
	// ErrEmailTaken indicates the email is already in use.
	ErrEmailTaken = errors.New("email already used")
	// ErrPasswordTooShort indicates the new password is below the minimum
	// length of eight characters.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrUsernameLength indicates the username is outside the 5..250
	// character range.
	ErrUsernameLength = errors.New("username must be between 5 and 250 characters")
	// ErrInvalidEmail indicates the email address is not plausible.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrEnrollmentNotFound indicates no pending TOTP secret exists for
	// the user, or the pending entry has expired.
	ErrEnrollmentNotFound = errors.New("totp enrollment not found")
	// ErrProofOfWorkTooWeak indicates the submitted token's difficulty is
	// lower than the stored proof's difficulty.
	ErrProofOfWorkTooWeak = errors.New("proof of work difficulty below stored difficulty")
	// ErrInternal indicates a data-integrity violation or an unexpected
	// dependency failure; details are never surfaced to callers.
	ErrInternal = errors.New("internal error")

	// ErrNilConfig is returned by [Builder.Build] when no configuration
	// was supplied.
	ErrNilConfig = errors.New("nil config")
	// ErrNoUserStore is returned by [Builder.Build] when no user store was
	// supplied.
	ErrNoUserStore = errors.New("user store required")
	// ErrNoAccountStore is returned by [Builder.Build] when no account
	// store was supplied.
	ErrNoAccountStore = errors.New("account store required")
	// ErrNoSessionStore is returned by [Builder.Build] when neither a
	// session store nor a Redis client was supplied.
	ErrNoSessionStore = errors.New("session store required")
)

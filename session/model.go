package session

// Record is one persisted session row. Timestamps are Unix seconds.
type Record struct {
	ID          string
	UserID      string
	SecretToken string
	CreatedAt   int64
	ExpiresAt   int64
	LastUsedAt  int64
}

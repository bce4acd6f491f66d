package model

import "time"

// PersistedSession is the durable snapshot of a user's in-memory session
// state. It is not authoritative: the daily counter is rebuilt from the
// usage table when the in-memory copy is missing or expired.
type PersistedSession struct {
	UserID       int64     `db:"user_id" json:"user_id"`
	DailyTokens  int       `db:"daily_tokens" json:"daily_tokens"`
	DailyResetAt time.Time `db:"daily_reset_at" json:"daily_reset_at"`
	LastActivity time.Time `db:"last_activity" json:"last_activity"`
}

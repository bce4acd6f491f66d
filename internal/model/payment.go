package model

import "time"

// Payment is an append-only record of a completed Stars charge. The
// provider charge ID carries a unique constraint and is the idempotency
// source of truth for webhook redeliveries.
type Payment struct {
	ID               int64     `db:"id" json:"id"`
	UserID           int64     `db:"user_id" json:"user_id"`
	TelegramChargeID string    `db:"telegram_charge_id" json:"telegram_charge_id"`
	Stars            int       `db:"stars" json:"stars"`
	AmountUSD        float64   `db:"amount_usd" json:"amount_usd"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

package model

import "time"

// Tier is the subscription tier of a user.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Subscription holds the per-user quota counters. The remaining counters
// never go negative: every decrement is conditioned at the SQL level.
type Subscription struct {
	UserID                  int64      `db:"user_id" json:"user_id"`
	Tier                    Tier       `db:"tier" json:"tier"`
	ExpiresAt               *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	YoutubeMinutesRemaining int        `db:"youtube_minutes_remaining" json:"youtube_minutes_remaining"`
	TranslationRemaining    int        `db:"translation_remaining" json:"translation_remaining"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at" json:"updated_at"`
}

// Expired reports whether the subscription's period has ended.
func (s *Subscription) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// Active reports whether the subscription is premium and unexpired.
func (s *Subscription) Active(now time.Time) bool {
	return s.Tier == TierPremium && !s.Expired(now)
}

// PlanLimits describes the quota granted by one tier of the plan.
type PlanLimits struct {
	Translations   int
	YoutubeMinutes int
	PeriodDays     int
}

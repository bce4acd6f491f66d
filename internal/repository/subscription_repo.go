package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tarjimonbot/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository is the quota ledger. Reservations are conditional
// decrements at the SQL level; a reservation that matches zero rows is a
// normal "insufficient balance" outcome, not an error.
type SubscriptionRepository interface {
	GetSubscription(ctx context.Context, userID int64) (*model.Subscription, error)
	// ReserveTranslation decrements translation_remaining by one if the
	// balance allows. Returns true iff exactly one row was updated.
	ReserveTranslation(ctx context.Context, userID int64) (bool, error)
	// ReserveYoutubeMinutes decrements youtube_minutes_remaining by the
	// billable amount if the balance allows.
	ReserveYoutubeMinutes(ctx context.Context, userID int64, minutes int) (bool, error)
	// RefundTranslation reverses a translation reservation.
	RefundTranslation(ctx context.Context, userID int64) error
	// RefundYoutubeMinutes reverses a minutes reservation.
	RefundYoutubeMinutes(ctx context.Context, userID int64, minutes int) error
	// ActivatePremium extends or creates a premium subscription. An
	// unexpired subscription stacks: the new expiry is computed from the
	// current expiry and the remaining counters are added to.
	ActivatePremium(ctx context.Context, userID int64, days, translations, youtubeMinutes int) error
	// EnsureFreeSubscription creates a free-tier row if none exists, or
	// resets an expired one to the free limits. An active row is untouched.
	EnsureFreeSubscription(ctx context.Context, userID int64, limits model.PlanLimits) error
	IsPremium(ctx context.Context, userID int64) (bool, error)
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

// GetSubscription returns the user's subscription row, or nil when none exists.
func (r *subscriptionRepo) GetSubscription(ctx context.Context, userID int64) (*model.Subscription, error) {
	const q = `
        SELECT user_id, tier, expires_at, youtube_minutes_remaining, translation_remaining, created_at, updated_at
        FROM subscriptions
        WHERE user_id = $1
    `
	var s model.Subscription
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&s.UserID,
		&s.Tier,
		&s.ExpiresAt,
		&s.YoutubeMinutesRemaining,
		&s.TranslationRemaining,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch subscription for user %d: %w", userID, err)
	}
	return &s, nil
}

// ReserveTranslation is the sole concurrency-safety mechanism for
// translation credits: the database's row-level update semantics serialize
// concurrent reservations from the same user.
func (r *subscriptionRepo) ReserveTranslation(ctx context.Context, userID int64) (bool, error) {
	const q = `
        UPDATE subscriptions
        SET translation_remaining = translation_remaining - 1,
            updated_at = NOW()
        WHERE user_id = $1
          AND translation_remaining > 0
    `
	tag, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return false, fmt.Errorf("reserve translation for user %d: %w", userID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *subscriptionRepo) ReserveYoutubeMinutes(ctx context.Context, userID int64, minutes int) (bool, error) {
	const q = `
        UPDATE subscriptions
        SET youtube_minutes_remaining = youtube_minutes_remaining - $2,
            updated_at = NOW()
        WHERE user_id = $1
          AND youtube_minutes_remaining >= $2
    `
	tag, err := r.pool.Exec(ctx, q, userID, minutes)
	if err != nil {
		return false, fmt.Errorf("reserve %d youtube minutes for user %d: %w", minutes, userID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// RefundTranslation is unconditional; a missing row cannot un-happen a
// charge that was never billed, so it is reported but treated as non-fatal
// by callers.
func (r *subscriptionRepo) RefundTranslation(ctx context.Context, userID int64) error {
	const q = `
        UPDATE subscriptions
        SET translation_remaining = translation_remaining + 1,
            updated_at = NOW()
        WHERE user_id = $1
    `
	tag, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return fmt.Errorf("refund translation for user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("refund translation for user %d: no subscription row", userID)
	}
	return nil
}

func (r *subscriptionRepo) RefundYoutubeMinutes(ctx context.Context, userID int64, minutes int) error {
	const q = `
        UPDATE subscriptions
        SET youtube_minutes_remaining = youtube_minutes_remaining + $2,
            updated_at = NOW()
        WHERE user_id = $1
    `
	tag, err := r.pool.Exec(ctx, q, userID, minutes)
	if err != nil {
		return fmt.Errorf("refund %d youtube minutes for user %d: %w", minutes, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("refund youtube minutes for user %d: no subscription row", userID)
	}
	return nil
}

// ActivatePremium stacks renewals: when an unexpired subscription exists the
// new expiry is computed from the current expiry, not from NOW(), and the
// counters accumulate so mid-period top-ups are never lost.
func (r *subscriptionRepo) ActivatePremium(ctx context.Context, userID int64, days, translations, youtubeMinutes int) error {
	const q = `
        INSERT INTO subscriptions (user_id, tier, expires_at, youtube_minutes_remaining, translation_remaining, created_at, updated_at)
        VALUES ($1, 'premium', NOW() + make_interval(days => $2), $3, $4, NOW(), NOW())
        ON CONFLICT (user_id) DO UPDATE
        SET tier = 'premium',
            expires_at = CASE
                WHEN subscriptions.expires_at IS NOT NULL AND subscriptions.expires_at > NOW()
                    THEN subscriptions.expires_at + make_interval(days => $2)
                ELSE NOW() + make_interval(days => $2)
            END,
            youtube_minutes_remaining = subscriptions.youtube_minutes_remaining + $3,
            translation_remaining = subscriptions.translation_remaining + $4,
            updated_at = NOW()
    `
	if _, err := r.pool.Exec(ctx, q, userID, days, youtubeMinutes, translations); err != nil {
		return fmt.Errorf("activate premium for user %d: %w", userID, err)
	}
	return nil
}

// EnsureFreeSubscription is idempotent: the conditional update only fires
// when the existing row has expired, so an active subscription keeps its
// balance across repeated calls.
func (r *subscriptionRepo) EnsureFreeSubscription(ctx context.Context, userID int64, limits model.PlanLimits) error {
	const q = `
        INSERT INTO subscriptions (user_id, tier, expires_at, youtube_minutes_remaining, translation_remaining, created_at, updated_at)
        VALUES ($1, 'free', NOW() + make_interval(days => $2), $3, $4, NOW(), NOW())
        ON CONFLICT (user_id) DO UPDATE
        SET tier = 'free',
            expires_at = NOW() + make_interval(days => $2),
            youtube_minutes_remaining = $3,
            translation_remaining = $4,
            updated_at = NOW()
        WHERE subscriptions.expires_at IS NOT NULL
          AND subscriptions.expires_at <= NOW()
    `
	if _, err := r.pool.Exec(ctx, q, userID, limits.PeriodDays, limits.YoutubeMinutes, limits.Translations); err != nil {
		return fmt.Errorf("ensure free subscription for user %d: %w", userID, err)
	}
	return nil
}

// IsPremium reports whether the user holds an unexpired premium subscription.
func (r *subscriptionRepo) IsPremium(ctx context.Context, userID int64) (bool, error) {
	const q = `SELECT tier, expires_at FROM subscriptions WHERE user_id = $1`
	var tier model.Tier
	var expiresAt *time.Time
	err := r.pool.QueryRow(ctx, q, userID).Scan(&tier, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check premium for user %d: %w", userID, err)
	}
	s := model.Subscription{Tier: tier, ExpiresAt: expiresAt}
	return s.Active(time.Now()), nil
}

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

// SessionRepository persists session snapshots so token counters survive a
// restart. The in-memory session tracker is the hot path; this is written
// at most once per persist interval per session.
type SessionRepository interface {
	Get(ctx context.Context, userID int64) (*model.PersistedSession, error)
	Upsert(ctx context.Context, s *model.PersistedSession) error
	// DeleteInactiveBefore removes sessions whose last activity predates the cutoff.
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type sessionRepo struct {
	pool *pgxpool.Pool
}

// NewSessionRepo creates a new SessionRepository.
func NewSessionRepo(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepo{pool: pool}
}

func (r *sessionRepo) Get(ctx context.Context, userID int64) (*model.PersistedSession, error) {
	const q = `
        SELECT user_id, daily_tokens, daily_reset_at, last_activity
        FROM user_sessions
        WHERE user_id = $1
    `
	var s model.PersistedSession
	err := r.pool.QueryRow(ctx, q, userID).Scan(&s.UserID, &s.DailyTokens, &s.DailyResetAt, &s.LastActivity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch session for user %d: %w", userID, err)
	}
	return &s, nil
}

func (r *sessionRepo) Upsert(ctx context.Context, s *model.PersistedSession) error {
	const q = `
        INSERT INTO user_sessions (user_id, daily_tokens, daily_reset_at, last_activity)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id) DO UPDATE
        SET daily_tokens = EXCLUDED.daily_tokens,
            daily_reset_at = EXCLUDED.daily_reset_at,
            last_activity = EXCLUDED.last_activity
    `
	if _, err := r.pool.Exec(ctx, q, s.UserID, s.DailyTokens, s.DailyResetAt, s.LastActivity); err != nil {
		return fmt.Errorf("upsert session for user %d: %w", s.UserID, err)
	}
	return nil
}

func (r *sessionRepo) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM user_sessions WHERE last_activity < $1`
	tag, err := r.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete inactive sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

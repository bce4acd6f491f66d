package repository

import (
	"context"
	"fmt"
	"time"

	"tarjimonbot/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository is the append-only log of billable calls. Its aggregates
// back the daily and monthly token budget checks.
type UsageRepository interface {
	// Insert records one billable call and returns the new row ID, which
	// follow-up questions use as their parent_request_id.
	Insert(ctx context.Context, rec *model.UsageRecord) (int64, error)
	// DailyTokens sums the user's tokens since the given start of day.
	DailyTokens(ctx context.Context, userID int64, since time.Time) (int, error)
	// MonthlyTokensByService sums tokens for one service in the current calendar month.
	MonthlyTokensByService(ctx context.Context, service string) (int, error)
	// MonthlyTokensTotal sums all tokens in the current calendar month.
	MonthlyTokensTotal(ctx context.Context) (int, error)
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) Insert(ctx context.Context, rec *model.UsageRecord) (int64, error) {
	const q = `
        INSERT INTO usage_log (user_id, service_name, token_count, input_tokens, output_tokens,
                               cost_usd, content_type, content_preview, video_duration_minutes,
                               parent_request_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
        RETURNING id
    `
	var id int64
	err := r.pool.QueryRow(ctx, q,
		rec.UserID,
		rec.ServiceName,
		rec.TokenCount,
		rec.InputTokens,
		rec.OutputTokens,
		rec.CostUSD,
		rec.ContentType,
		rec.ContentPreview,
		rec.VideoDurationMinutes,
		rec.ParentRequestID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert usage record for user %d: %w", rec.UserID, err)
	}
	return id, nil
}

func (r *usageRepo) DailyTokens(ctx context.Context, userID int64, since time.Time) (int, error) {
	const q = `
        SELECT COALESCE(SUM(token_count), 0)
        FROM usage_log
        WHERE user_id = $1
          AND created_at >= $2
    `
	var total int
	if err := r.pool.QueryRow(ctx, q, userID, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum daily tokens for user %d: %w", userID, err)
	}
	return total, nil
}

func (r *usageRepo) MonthlyTokensByService(ctx context.Context, service string) (int, error) {
	const q = `
        SELECT COALESCE(SUM(token_count), 0)
        FROM usage_log
        WHERE service_name = $1
          AND created_at >= date_trunc('month', NOW())
    `
	var total int
	if err := r.pool.QueryRow(ctx, q, service).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum monthly tokens for service %s: %w", service, err)
	}
	return total, nil
}

func (r *usageRepo) MonthlyTokensTotal(ctx context.Context) (int, error) {
	const q = `
        SELECT COALESCE(SUM(token_count), 0)
        FROM usage_log
        WHERE created_at >= date_trunc('month', NOW())
    `
	var total int
	if err := r.pool.QueryRow(ctx, q).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum monthly tokens: %w", err)
	}
	return total, nil
}

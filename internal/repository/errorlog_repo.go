package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrorLogRepository records operator-facing failure detail. Nothing in
// this table is ever shown to end users.
type ErrorLogRepository interface {
	Insert(ctx context.Context, errorType, message string, userID int64, contentType, contentPreview string) error
}

type errorLogRepo struct {
	pool *pgxpool.Pool
}

// NewErrorLogRepo creates a new ErrorLogRepository.
func NewErrorLogRepo(pool *pgxpool.Pool) ErrorLogRepository {
	return &errorLogRepo{pool: pool}
}

func (r *errorLogRepo) Insert(ctx context.Context, errorType, message string, userID int64, contentType, contentPreview string) error {
	const q = `
        INSERT INTO error_log (error_type, error_message, user_id, content_type, content_preview, created_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
    `
	if _, err := r.pool.Exec(ctx, q, errorType, truncateRunes(message, 1000), userID, contentType, truncateRunes(contentPreview, 500)); err != nil {
		return fmt.Errorf("insert error log entry: %w", err)
	}
	return nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

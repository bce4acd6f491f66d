package repository

import (
	"context"
	"errors"
	"fmt"

	"tarjimonbot/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentRepository stores completed Stars charges. telegram_charge_id is
// unique; looking it up before activation is what makes webhook
// redeliveries idempotent.
type PaymentRepository interface {
	GetByChargeID(ctx context.Context, chargeID string) (*model.Payment, error)
	Insert(ctx context.Context, p *model.Payment) (int64, error)
}

type paymentRepo struct {
	pool *pgxpool.Pool
}

// NewPaymentRepo creates a new PaymentRepository.
func NewPaymentRepo(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepo{pool: pool}
}

// GetByChargeID returns the payment with the given provider charge ID, or
// nil when none exists.
func (r *paymentRepo) GetByChargeID(ctx context.Context, chargeID string) (*model.Payment, error) {
	const q = `
        SELECT id, user_id, telegram_charge_id, stars, amount_usd, created_at
        FROM payments
        WHERE telegram_charge_id = $1
    `
	var p model.Payment
	err := r.pool.QueryRow(ctx, q, chargeID).Scan(
		&p.ID,
		&p.UserID,
		&p.TelegramChargeID,
		&p.Stars,
		&p.AmountUSD,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch payment %s: %w", chargeID, err)
	}
	return &p, nil
}

func (r *paymentRepo) Insert(ctx context.Context, p *model.Payment) (int64, error) {
	const q = `
        INSERT INTO payments (user_id, telegram_charge_id, stars, amount_usd, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        RETURNING id
    `
	var id int64
	err := r.pool.QueryRow(ctx, q, p.UserID, p.TelegramChargeID, p.Stars, p.AmountUSD).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert payment %s for user %d: %w", p.TelegramChargeID, p.UserID, err)
	}
	return id, nil
}

package service

import (
	"context"
	"testing"
	"time"

	"tarjimonbot/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessPaymentActivatesPremium(t *testing.T) {
	expires := time.Now().Add(30 * 24 * time.Hour)
	subRepo := &fakeSubscriptionRepo{sub: &model.Subscription{
		UserID:    1,
		Tier:      model.TierPremium,
		ExpiresAt: &expires,
	}}
	paymentRepo := &fakePaymentRepo{}
	s := NewSubscriptionService(subRepo, paymentRepo, testConfig(), zerolog.Nop())

	res, err := s.ProcessPayment(context.Background(), 1, "charge-abc", 350)
	require.NoError(t, err)

	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, model.TierPremium, res.Subscription.Tier)
	assert.InDelta(t, 4.9, res.NetUSD, 1e-9)

	require.Len(t, paymentRepo.inserted, 1)
	assert.Equal(t, "charge-abc", paymentRepo.inserted[0].TelegramChargeID)
	assert.Equal(t, 350, paymentRepo.inserted[0].Stars)

	assert.Equal(t, 1, subRepo.activateCalls)
	assert.Equal(t, int64(1), subRepo.activatedUserID)
	assert.Equal(t, 30, subRepo.activatedDays)
	assert.Equal(t, 50, subRepo.activatedTrans)
	assert.Equal(t, 120, subRepo.activatedYTMins)
}

func TestProcessPaymentDuplicateChargeIsIdempotent(t *testing.T) {
	subRepo := &fakeSubscriptionRepo{}
	paymentRepo := &fakePaymentRepo{byCharge: map[string]*model.Payment{
		"charge-abc": {ID: 1, UserID: 1, TelegramChargeID: "charge-abc", Stars: 350},
	}}
	s := NewSubscriptionService(subRepo, paymentRepo, testConfig(), zerolog.Nop())

	res, err := s.ProcessPayment(context.Background(), 1, "charge-abc", 350)
	require.NoError(t, err)

	assert.True(t, res.AlreadyProcessed)
	assert.Equal(t, msgPaymentAlreadyProcessed, res.UserMessage)
	assert.Empty(t, paymentRepo.inserted, "a duplicate delivery writes nothing")
	assert.Equal(t, 0, subRepo.activateCalls, "quota is granted at most once per charge")
}

func TestProcessPaymentInsertRaceIsIdempotent(t *testing.T) {
	subRepo := &fakeSubscriptionRepo{}
	paymentRepo := &fakePaymentRepo{insertErr: &pgconn.PgError{Code: "23505"}}
	s := NewSubscriptionService(subRepo, paymentRepo, testConfig(), zerolog.Nop())

	res, err := s.ProcessPayment(context.Background(), 1, "charge-abc", 350)
	require.NoError(t, err)

	assert.True(t, res.AlreadyProcessed, "losing the unique-constraint race equals a duplicate")
	assert.Equal(t, 0, subRepo.activateCalls)
}

func TestProcessPaymentInsertErrorPropagates(t *testing.T) {
	subRepo := &fakeSubscriptionRepo{}
	paymentRepo := &fakePaymentRepo{insertErr: assert.AnError}
	s := NewSubscriptionService(subRepo, paymentRepo, testConfig(), zerolog.Nop())

	_, err := s.ProcessPayment(context.Background(), 1, "charge-abc", 350)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, subRepo.activateCalls, "no quota is granted when the payment row is lost")
}

func TestNetRevenueUSD(t *testing.T) {
	s := NewSubscriptionService(&fakeSubscriptionRepo{}, &fakePaymentRepo{}, testConfig(), zerolog.Nop())

	assert.InDelta(t, 4.9, s.NetRevenueUSD(350), 1e-9)
	assert.InDelta(t, 0.014, s.NetRevenueUSD(1), 1e-9)
}

package service

import (
	"context"
	"errors"
	"fmt"

	"tarjimonbot/internal/config"
	"tarjimonbot/internal/model"
	"tarjimonbot/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// PaymentResult reports the outcome of one Stars checkout delivery.
type PaymentResult struct {
	// AlreadyProcessed is set when the charge ID was seen before. No quota
	// was mutated; the response is the idempotent "already processed" text.
	AlreadyProcessed bool
	Subscription     *model.Subscription
	NetUSD           float64
	UserMessage      string
}

// SubscriptionService handles Stars payments and subscription status.
type SubscriptionService interface {
	// ProcessPayment activates or extends premium for a successful charge.
	// A repeated charge ID short-circuits before any quota mutation.
	ProcessPayment(ctx context.Context, userID int64, chargeID string, stars int) (*PaymentResult, error)
	// Status returns the user's subscription row, creating nothing.
	Status(ctx context.Context, userID int64) (*model.Subscription, error)
	// NetRevenueUSD converts a Stars amount to net USD after the provider fee.
	NetRevenueUSD(stars int) float64
}

type subscriptionService struct {
	subRepo     repository.SubscriptionRepository
	paymentRepo repository.PaymentRepository
	cfg         *config.Config
	logger      zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(subRepo repository.SubscriptionRepository, paymentRepo repository.PaymentRepository, cfg *config.Config, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		subRepo:     subRepo,
		paymentRepo: paymentRepo,
		cfg:         cfg,
		logger:      logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

func (s *subscriptionService) ProcessPayment(ctx context.Context, userID int64, chargeID string, stars int) (*PaymentResult, error) {
	existing, err := s.paymentRepo.GetByChargeID(ctx, chargeID)
	if err != nil {
		return nil, fmt.Errorf("payment lookup: %w", err)
	}
	if existing != nil {
		s.logger.Info().
			Int64("user_id", userID).
			Str("charge_id", chargeID).
			Msg("Duplicate payment delivery, answering idempotently")
		return &PaymentResult{AlreadyProcessed: true, UserMessage: msgPaymentAlreadyProcessed}, nil
	}

	netUSD := s.NetRevenueUSD(stars)
	payment := &model.Payment{
		UserID:           userID,
		TelegramChargeID: chargeID,
		Stars:            stars,
		AmountUSD:        netUSD,
	}
	if _, err := s.paymentRepo.Insert(ctx, payment); err != nil {
		// Two deliveries can race past the lookup; the unique constraint on
		// the charge ID decides the winner.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			s.logger.Info().
				Str("charge_id", chargeID).
				Msg("Concurrent duplicate payment lost the insert race")
			return &PaymentResult{AlreadyProcessed: true, UserMessage: msgPaymentAlreadyProcessed}, nil
		}
		return nil, fmt.Errorf("payment insert: %w", err)
	}

	if err := s.subRepo.ActivatePremium(ctx, userID, s.cfg.PremiumPeriodDays, s.cfg.PremiumTranslations, s.cfg.PremiumYoutubeMins); err != nil {
		return nil, fmt.Errorf("premium activation: %w", err)
	}

	sub, err := s.subRepo.GetSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("subscription fetch after activation: %w", err)
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("charge_id", chargeID).
		Int("stars", stars).
		Float64("net_usd", netUSD).
		Msg("Premium activated")

	return &PaymentResult{Subscription: sub, NetUSD: netUSD}, nil
}

// Status returns the user's subscription regardless of tier.
func (s *subscriptionService) Status(ctx context.Context, userID int64) (*model.Subscription, error) {
	sub, err := s.subRepo.GetSubscription(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to fetch subscription")
		return nil, err
	}
	return sub, nil
}

func (s *subscriptionService) NetRevenueUSD(stars int) float64 {
	return float64(stars) * s.cfg.StarsToUSD * (1 - float64(s.cfg.TelegramFeePercent)/100)
}

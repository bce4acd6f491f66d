package service

import (
	"context"
	"fmt"

	"tarjimonbot/internal/gemini"

	"github.com/rs/zerolog"
)

// Deps is the capability record for one billable action. The orchestrator
// is a function over this record, so tests substitute deterministic fakes
// for every dependency and assert on call counts and ordering.
type Deps struct {
	// EnsureSubscription lazily creates the free-tier row. Nil for premium users.
	EnsureSubscription func(ctx context.Context, userID int64) error
	// ReserveQuota conditionally decrements the counter. False means exhausted.
	ReserveQuota func(ctx context.Context, userID int64) (bool, error)
	// RefundQuota reverses the reservation.
	RefundQuota func(ctx context.Context, userID int64) error
	// Call performs the generative request.
	Call func(ctx context.Context) (*gemini.Result, error)
	// LogUsage appends the usage record and returns its row ID.
	LogUsage func(ctx context.Context, res *gemini.Result) (int64, error)
	// RecordSessionUsage adds to the in-memory daily token counter.
	RecordSessionUsage func(userID int64, tokens int)
}

// Outcome is the orchestrator's verdict on one billable action.
type Outcome struct {
	OK bool
	// Denied is set when the reservation failed: quota exhausted, no call made.
	Denied bool
	// Text is the generated output on success.
	Text string
	// UsageID links follow-up questions to this call's usage row.
	UsageID      int64
	TotalTokens  int
	InputTokens  int
	OutputTokens int
	// UserMessage is the localized response for non-OK outcomes. Filled in
	// by the calling service, which knows the surrounding plan context.
	UserMessage string
	// Note is an optional localized remark appended to a successful result,
	// such as the no-transcript cost explanation.
	Note string
}

// Execute is the reserve -> call -> commit-or-refund pipeline. Exactly one
// of {refund, log usage} happens per call that passed reservation: an error
// from the call refunds before propagating, zero output refunds and reports
// failure, and success commits by writing the usage record.
func Execute(ctx context.Context, userID int64, deps Deps, logger zerolog.Logger) (*Outcome, error) {
	if deps.EnsureSubscription != nil {
		if err := deps.EnsureSubscription(ctx, userID); err != nil {
			return nil, fmt.Errorf("ensure subscription: %w", err)
		}
	}

	reserved, err := deps.ReserveQuota(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reserve quota: %w", err)
	}
	if !reserved {
		return &Outcome{Denied: true}, nil
	}

	res, err := deps.Call(ctx)
	if err != nil {
		if refundErr := deps.RefundQuota(ctx, userID); refundErr != nil {
			logger.Error().Err(refundErr).Int64("user_id", userID).Msg("Refund after failed call did not apply")
		}
		return nil, err
	}

	if res.TotalTokens <= 0 || res.Text == "" {
		if refundErr := deps.RefundQuota(ctx, userID); refundErr != nil {
			logger.Error().Err(refundErr).Int64("user_id", userID).Msg("Refund after empty result did not apply")
		}
		return &Outcome{Text: res.Text}, nil
	}

	usageID, err := deps.LogUsage(ctx, res)
	if err != nil {
		// The user was served and the quota is consumed; losing the usage
		// row must not turn a delivered result into a failure.
		logger.Error().Err(err).Int64("user_id", userID).Msg("Usage record insert failed after successful call")
	}
	if deps.RecordSessionUsage != nil {
		deps.RecordSessionUsage(userID, res.TotalTokens)
	}

	return &Outcome{
		OK:           true,
		Text:         res.Text,
		UsageID:      usageID,
		TotalTokens:  res.TotalTokens,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
	}, nil
}

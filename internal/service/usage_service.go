package service

import (
	"context"

	"tarjimonbot/internal/config"
	"tarjimonbot/internal/gemini"
	"tarjimonbot/internal/model"
	"tarjimonbot/internal/repository"

	"github.com/rs/zerolog"
)

// UsageService writes the append-only billing log and derives call cost.
type UsageService interface {
	// LogUsage records one billable call. Calls with zero tokens are skipped
	// entirely; the returned ID is 0 in that case.
	LogUsage(ctx context.Context, userID int64, serviceName string, res *gemini.Result, contentType, contentPreview string, videoMinutes *int, parentRequestID *int64) (int64, error)
	// CostUSD computes the charge for one call in USD.
	CostUSD(inputTokens, outputTokens, totalTokens int) float64
	// MonthlyTokensByService reads the month-to-date total for one service.
	MonthlyTokensByService(ctx context.Context, serviceName string) (int, error)
	// MonthlyTokensTotal reads the month-to-date total across all services.
	MonthlyTokensTotal(ctx context.Context) (int, error)
}

type usageService struct {
	repo   repository.UsageRepository
	cfg    *config.Config
	logger zerolog.Logger
}

// NewUsageService creates a new UsageService.
func NewUsageService(repo repository.UsageRepository, cfg *config.Config, logger zerolog.Logger) UsageService {
	return &usageService{
		repo:   repo,
		cfg:    cfg,
		logger: logger.With().Str("service", "UsageService").Logger(),
	}
}

func (s *usageService) LogUsage(ctx context.Context, userID int64, serviceName string, res *gemini.Result, contentType, contentPreview string, videoMinutes *int, parentRequestID *int64) (int64, error) {
	if res.TotalTokens <= 0 {
		return 0, nil
	}
	rec := &model.UsageRecord{
		UserID:               userID,
		ServiceName:          serviceName,
		TokenCount:           res.TotalTokens,
		InputTokens:          res.InputTokens,
		OutputTokens:         res.OutputTokens,
		CostUSD:              s.CostUSD(res.InputTokens, res.OutputTokens, res.TotalTokens),
		ContentType:          contentType,
		ContentPreview:       truncatePreview(contentPreview, 500),
		VideoDurationMinutes: videoMinutes,
		ParentRequestID:      parentRequestID,
	}
	id, err := s.repo.Insert(ctx, rec)
	if err != nil {
		return 0, err
	}
	s.logger.Info().
		Int64("user_id", userID).
		Str("service_name", serviceName).
		Int("tokens", res.TotalTokens).
		Float64("cost_usd", rec.CostUSD).
		Bool("estimated", res.Estimated).
		Msg("Usage recorded")
	return id, nil
}

// CostUSD bills output at max(total-input, output) so thinking tokens are
// charged at the output rate even when the provider reports them only in
// the total. Long-context requests use the doubled price tier.
func (s *usageService) CostUSD(inputTokens, outputTokens, totalTokens int) float64 {
	billableOutput := totalTokens - inputTokens
	if outputTokens > billableOutput {
		billableOutput = outputTokens
	}
	if billableOutput < 0 {
		billableOutput = 0
	}

	inputPrice := s.cfg.GeminiInputPricePerM
	outputPrice := s.cfg.GeminiOutputPricePerM
	if inputTokens > s.cfg.GeminiLongContextTokens {
		inputPrice = s.cfg.GeminiInputPricePerMLong
		outputPrice = s.cfg.GeminiOutputPricePerMLong
	}

	return float64(inputTokens)/1e6*inputPrice + float64(billableOutput)/1e6*outputPrice
}

func (s *usageService) MonthlyTokensByService(ctx context.Context, serviceName string) (int, error) {
	return s.repo.MonthlyTokensByService(ctx, serviceName)
}

func (s *usageService) MonthlyTokensTotal(ctx context.Context) (int, error) {
	return s.repo.MonthlyTokensTotal(ctx)
}

func truncatePreview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

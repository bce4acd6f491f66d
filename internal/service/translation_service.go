package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"tarjimonbot/internal/config"
	"tarjimonbot/internal/gemini"
	"tarjimonbot/internal/model"
	"tarjimonbot/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const translationPrompt = "Quyidagi matnni o'zbek tiliga tarjima qiling. Faqat tarjimani qaytaring, izoh bermang.\n\n"

const imageTranslationPrompt = "Rasmdagi matnni aniqlang va o'zbek tiliga tarjima qiling. Faqat tarjimani qaytaring."

// TranslationService runs text and image translations through the billing
// pipeline: rate limit, token budgets, quota reservation, generative call,
// commit or refund.
type TranslationService struct {
	subRepo  repository.SubscriptionRepository
	usage    UsageService
	sessions *SessionService
	errorLog repository.ErrorLogRepository
	engine   *gemini.Engine
	validate *validator.Validate
	cfg      *config.Config
	logger   zerolog.Logger
}

// NewTranslationService creates a new TranslationService.
func NewTranslationService(
	subRepo repository.SubscriptionRepository,
	usage UsageService,
	sessions *SessionService,
	errorLog repository.ErrorLogRepository,
	engine *gemini.Engine,
	validate *validator.Validate,
	cfg *config.Config,
	logger zerolog.Logger,
) *TranslationService {
	return &TranslationService{
		subRepo:  subRepo,
		usage:    usage,
		sessions: sessions,
		errorLog: errorLog,
		engine:   engine,
		validate: validate,
		cfg:      cfg,
		logger:   logger.With().Str("service", "TranslationService").Logger(),
	}
}

// Translate executes one translation request end to end. Non-OK outcomes
// carry a localized user message; the returned error is reserved for
// infrastructure failures the transport cannot phrase for the user.
func (s *TranslationService) Translate(ctx context.Context, req *model.Request, onProgress gemini.ProgressFunc) (*Outcome, error) {
	requestID := uuid.NewString()
	logger := s.logger.With().
		Str("request_id", requestID).
		Int64("user_id", req.UserID).
		Str("kind", string(req.Kind)).
		Logger()

	if err := s.validate.Struct(req); err != nil {
		logger.Warn().Err(err).Msg("Request failed validation")
		return &Outcome{UserMessage: msgClientRequestError}, nil
	}
	if req.Kind != model.KindTranslateText && req.Kind != model.KindTranslateImage {
		return nil, fmt.Errorf("translation service cannot handle kind %s", req.Kind)
	}

	if req.Kind == model.KindTranslateText {
		if req.Text == "" {
			return &Outcome{UserMessage: msgEmptyText}, nil
		}
		if len(req.Text) > s.cfg.MaxTextLength {
			return &Outcome{UserMessage: fmt.Sprintf(msgTextTooLong, len(req.Text), s.cfg.MaxTextLength)}, nil
		}
	}

	if allowed, msg := s.sessions.CheckRateLimit(ctx, req.UserID); !allowed {
		return &Outcome{UserMessage: msg}, nil
	}

	estimated := s.estimateTokens(req)
	ok, msg, err := s.sessions.CheckTokenLimits(ctx, req.UserID, model.ServiceTranslation, estimated)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Outcome{UserMessage: msg}, nil
	}

	genReq := s.buildRequest(req)
	deps := Deps{
		ReserveQuota: s.subRepo.ReserveTranslation,
		RefundQuota:  s.subRepo.RefundTranslation,
		Call: func(ctx context.Context) (*gemini.Result, error) {
			return s.engine.GenerateStream(ctx, genReq, onProgress)
		},
		LogUsage: func(ctx context.Context, res *gemini.Result) (int64, error) {
			return s.usage.LogUsage(ctx, req.UserID, model.ServiceTranslation, res, string(req.Kind), req.Text, nil, nil)
		},
		RecordSessionUsage: func(userID int64, tokens int) {
			s.sessions.RecordTokenUsage(ctx, userID, tokens)
		},
	}
	if !req.IsPremium {
		deps.EnsureSubscription = func(ctx context.Context, userID int64) error {
			return s.subRepo.EnsureFreeSubscription(ctx, userID, model.PlanLimits{
				Translations:   s.cfg.FreeTranslations,
				YoutubeMinutes: s.cfg.FreeYoutubeMinutes,
				PeriodDays:     s.cfg.FreePeriodDays,
			})
		}
	}

	outcome, err := Execute(ctx, req.UserID, deps, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Translation pipeline failed")
		s.recordError(ctx, err, req)
		return &Outcome{UserMessage: s.userMessageForError(err)}, nil
	}

	switch {
	case outcome.Denied:
		outcome.UserMessage = s.quotaExhaustedMessage(req.IsPremium)
	case !outcome.OK:
		logger.Warn().Msg("Generation produced no billable output, quota refunded")
		outcome.UserMessage = msgTranslationFailed
	default:
		logger.Info().Int("tokens", outcome.TotalTokens).Msg("Translation completed")
	}
	return outcome, nil
}

func (s *TranslationService) buildRequest(req *model.Request) *gemini.Request {
	var parts []gemini.Part
	if req.Kind == model.KindTranslateImage {
		parts = append(parts,
			gemini.Part{Text: imageTranslationPrompt},
			gemini.Part{InlineData: &gemini.Blob{
				MIMEType: req.ImageMIME,
				Data:     base64.StdEncoding.EncodeToString(req.ImageData),
			}},
		)
		if req.Text != "" {
			parts = append(parts, gemini.Part{Text: translationPrompt + req.Text})
		}
	} else {
		parts = append(parts, gemini.Part{Text: translationPrompt + req.Text})
	}
	return &gemini.Request{
		Contents: []gemini.Content{{Role: "user", Parts: parts}},
	}
}

// estimateTokens is the pre-flight guess used only for budget checks.
func (s *TranslationService) estimateTokens(req *model.Request) int {
	est := len(req.Text) / s.cfg.TokenEstimationRatio
	if req.Kind == model.KindTranslateImage {
		est += 1500
	}
	if est == 0 {
		est = 1
	}
	return est
}

func (s *TranslationService) quotaExhaustedMessage(isPremium bool) string {
	if isPremium {
		return fmt.Sprintf(msgTranslationLimitExceededPremium,
			s.cfg.PremiumPriceStars, s.cfg.PremiumTranslations, s.cfg.PremiumPeriodDays)
	}
	return fmt.Sprintf(msgTranslationLimitExceededFree,
		s.cfg.FreeTranslations, s.cfg.PremiumPriceStars, s.cfg.PremiumTranslations, s.cfg.PremiumPeriodDays)
}

func (s *TranslationService) userMessageForError(err error) string {
	return userMessageForError(err)
}

func (s *TranslationService) recordError(ctx context.Context, err error, req *model.Request) {
	if s.errorLog == nil {
		return
	}
	if logErr := s.errorLog.Insert(ctx, errorTypeOf(err), err.Error(), req.UserID, string(req.Kind), req.Text); logErr != nil {
		s.logger.Warn().Err(logErr).Msg("Error log insert failed")
	}
}

// userMessageForError maps the tagged error variants to localized strings.
// Raw error text never reaches the end user.
func userMessageForError(err error) string {
	switch {
	case errors.Is(err, gemini.ErrOverloaded):
		return msgModelOverloaded
	case errors.Is(err, gemini.ErrTimeout):
		return msgTimedOut
	case errors.Is(err, gemini.ErrUnavailable):
		return msgServiceUnavailable
	case errors.Is(err, gemini.ErrInvalidRequest),
		errors.Is(err, gemini.ErrAuthFailed),
		errors.Is(err, gemini.ErrBlocked):
		return msgClientRequestError
	default:
		return msgGenericError
	}
}

func errorTypeOf(err error) string {
	switch {
	case errors.Is(err, gemini.ErrOverloaded):
		return "model_overloaded"
	case errors.Is(err, gemini.ErrTimeout):
		return "timeout"
	case errors.Is(err, gemini.ErrUnavailable):
		return "service_unavailable"
	case errors.Is(err, gemini.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, gemini.ErrAuthFailed):
		return "auth_failed"
	case errors.Is(err, gemini.ErrBlocked):
		return "blocked"
	default:
		return "internal"
	}
}

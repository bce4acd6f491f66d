package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"tarjimonbot/internal/cache"
	"tarjimonbot/internal/config"
	"tarjimonbot/internal/gemini"
	"tarjimonbot/internal/model"
	"tarjimonbot/internal/repository"
	"tarjimonbot/internal/supadata"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const summaryPrompt = "Quyidagi video transkriptini o'zbek tilida qisqacha va tushunarli qilib umumlashtiring. Asosiy fikrlarni alohida ajrating.\n\n"

const videoSummaryPrompt = "Ushbu videoni o'zbek tilida qisqacha va tushunarli qilib umumlashtiring. Asosiy fikrlarni alohida ajrating."

const followupPrompt = "Quyidagi kontekst asosida savolga o'zbek tilida javob bering.\n\nKontekst:\n%s\n\nSavol: %s"

// YoutubeService runs video summarizations and follow-up questions.
// Summaries are billed in minutes through the reservation pipeline;
// follow-ups are usage-logged against the parent summary but consume no
// quota.
type YoutubeService struct {
	subRepo  repository.SubscriptionRepository
	usage    UsageService
	sessions *SessionService
	errorLog repository.ErrorLogRepository
	engine   *gemini.Engine
	videos   supadata.Client
	dedup    *cache.DedupGuard
	validate *validator.Validate
	cfg      *config.Config
	logger   zerolog.Logger
}

// NewYoutubeService creates a new YoutubeService.
func NewYoutubeService(
	subRepo repository.SubscriptionRepository,
	usage UsageService,
	sessions *SessionService,
	errorLog repository.ErrorLogRepository,
	engine *gemini.Engine,
	videos supadata.Client,
	dedup *cache.DedupGuard,
	validate *validator.Validate,
	cfg *config.Config,
	logger zerolog.Logger,
) *YoutubeService {
	return &YoutubeService{
		subRepo:  subRepo,
		usage:    usage,
		sessions: sessions,
		errorLog: errorLog,
		engine:   engine,
		videos:   videos,
		dedup:    dedup,
		validate: validate,
		cfg:      cfg,
		logger:   logger.With().Str("service", "YoutubeService").Logger(),
	}
}

// Summarize executes one video summarization end to end. The billable
// amount is computed before reservation and treated as a constant for the
// rest of the request.
func (s *YoutubeService) Summarize(ctx context.Context, req *model.Request, onProgress gemini.ProgressFunc) (*Outcome, error) {
	requestID := uuid.NewString()
	logger := s.logger.With().
		Str("request_id", requestID).
		Int64("user_id", req.UserID).
		Logger()

	if err := s.validate.Struct(req); err != nil {
		logger.Warn().Err(err).Msg("Request failed validation")
		return &Outcome{UserMessage: msgClientRequestError}, nil
	}
	if req.Kind != model.KindSummarizeVideo {
		return nil, fmt.Errorf("youtube service cannot handle kind %s", req.Kind)
	}

	videoID, err := ExtractVideoID(req.VideoURL)
	if err != nil {
		return &Outcome{UserMessage: msgInvalidYoutubeURL}, nil
	}
	logger = logger.With().Str("video_id", videoID).Logger()

	// Suppress webhook retries for the same video before any other work.
	if !s.dedup.Acquire(req.UserID, videoID) {
		logger.Info().Msg("Duplicate video request suppressed")
		return &Outcome{UserMessage: msgDuplicateRequest}, nil
	}
	defer s.dedup.Release(req.UserID, videoID)

	if allowed, msg := s.sessions.CheckRateLimit(ctx, req.UserID); !allowed {
		return &Outcome{UserMessage: msg}, nil
	}

	meta, err := s.videos.GetVideoMetadata(ctx, videoID)
	if err != nil {
		logger.Error().Err(err).Msg("Video metadata fetch failed")
		s.recordError(ctx, err, req, "youtube_metadata")
		return &Outcome{UserMessage: msgServiceUnavailable}, nil
	}
	if meta.DurationSeconds <= 0 {
		// Billing is denominated in minutes; a video without a known
		// duration would reserve zero and summarize for free.
		err := fmt.Errorf("video metadata for %s has no duration", videoID)
		logger.Error().Err(err).Msg("Video metadata unusable")
		s.recordError(ctx, err, req, "youtube_metadata")
		return &Outcome{UserMessage: msgServiceUnavailable}, nil
	}

	durationMinutes := (meta.DurationSeconds + 59) / 60
	if durationMinutes > s.cfg.YoutubeMaxDurationMinutes {
		return &Outcome{UserMessage: fmt.Sprintf(msgVideoTooLong, durationMinutes, s.cfg.YoutubeMaxDurationMinutes)}, nil
	}

	transcript := req.Transcript
	hasTranscript := transcript != ""
	if !hasTranscript {
		transcript, hasTranscript, err = s.videos.GetTranscript(ctx, videoID)
		if err != nil {
			logger.Warn().Err(err).Msg("Transcript fetch failed, billing as no-transcript video")
			transcript, hasTranscript = "", false
		}
	}

	billableMinutes := durationMinutes
	if !hasTranscript {
		billableMinutes = durationMinutes * s.cfg.YoutubeNoTranscriptMultiplier
	}
	logger.Info().
		Int("duration_minutes", durationMinutes).
		Int("billable_minutes", billableMinutes).
		Bool("has_transcript", hasTranscript).
		Msg("Billable minutes computed")

	estimated := s.estimateTokens(transcript, durationMinutes, hasTranscript)
	ok, msg, err := s.sessions.CheckTokenLimits(ctx, req.UserID, model.ServiceYoutubeSummary, estimated)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Outcome{UserMessage: msg}, nil
	}

	genReq := s.buildSummaryRequest(req.VideoURL, transcript, hasTranscript)
	deps := Deps{
		ReserveQuota: func(ctx context.Context, userID int64) (bool, error) {
			return s.subRepo.ReserveYoutubeMinutes(ctx, userID, billableMinutes)
		},
		RefundQuota: func(ctx context.Context, userID int64) error {
			return s.subRepo.RefundYoutubeMinutes(ctx, userID, billableMinutes)
		},
		Call: func(ctx context.Context) (*gemini.Result, error) {
			return s.engine.GenerateStream(ctx, genReq, onProgress)
		},
		LogUsage: func(ctx context.Context, res *gemini.Result) (int64, error) {
			// The row records the real duration; the multiplier shows up
			// only in the minutes charged.
			return s.usage.LogUsage(ctx, req.UserID, model.ServiceYoutubeSummary, res, "youtube", req.VideoURL, &durationMinutes, nil)
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
		logger.Error().Err(err).Msg("Summarization pipeline failed")
		s.recordError(ctx, err, req, "youtube_summary")
		return &Outcome{UserMessage: userMessageForError(err)}, nil
	}

	switch {
	case outcome.Denied:
		outcome.UserMessage = s.minutesExhaustedMessage(ctx, req.UserID, billableMinutes)
	case !outcome.OK:
		logger.Warn().Msg("Summarization produced no billable output, minutes refunded")
		outcome.UserMessage = msgGenericError
	default:
		if !hasTranscript {
			outcome.Note = fmt.Sprintf(msgNoTranscriptCostNote, s.cfg.YoutubeNoTranscriptMultiplier)
		}
		logger.Info().Int("tokens", outcome.TotalTokens).Msg("Summarization completed")
	}
	return outcome, nil
}

// AnswerFollowup answers a question about an already summarized video. The
// context source preference is transcript, then summary, then the raw
// video. No quota is reserved; the usage row links to the parent summary
// for cost aggregation.
func (s *YoutubeService) AnswerFollowup(ctx context.Context, req *model.Request, question, summary string, parentRequestID *int64, onProgress gemini.ProgressFunc) (*Outcome, error) {
	logger := s.logger.With().
		Int64("user_id", req.UserID).
		Str("kind", "followup").
		Logger()

	if err := s.validate.Struct(req); err != nil {
		logger.Warn().Err(err).Msg("Request failed validation")
		return &Outcome{UserMessage: msgClientRequestError}, nil
	}
	if req.Kind != model.KindAnswerFollowup {
		return nil, fmt.Errorf("follow-up handler cannot handle kind %s", req.Kind)
	}
	if question == "" {
		return &Outcome{UserMessage: msgEmptyText}, nil
	}

	if allowed, msg := s.sessions.CheckRateLimit(ctx, req.UserID); !allowed {
		return &Outcome{UserMessage: msg}, nil
	}

	estimated := (len(req.Transcript) + len(summary) + len(question)) / s.cfg.TokenEstimationRatio
	if estimated == 0 {
		estimated = 1
	}
	ok, msg, err := s.sessions.CheckTokenLimits(ctx, req.UserID, model.ServiceYoutubeSummary, estimated)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Outcome{UserMessage: msg}, nil
	}

	genReq := s.buildFollowupRequest(req, question, summary)
	res, err := s.engine.GenerateStream(ctx, genReq, onProgress)
	if err != nil {
		logger.Error().Err(err).Msg("Follow-up generation failed")
		s.recordError(ctx, err, req, "youtube_followup")
		return &Outcome{UserMessage: userMessageForError(err)}, nil
	}
	if res.TotalTokens <= 0 || res.Text == "" {
		return &Outcome{UserMessage: msgGenericError}, nil
	}

	usageID, err := s.usage.LogUsage(ctx, req.UserID, model.ServiceYoutubeSummary, res, "youtube_followup", question, nil, parentRequestID)
	if err != nil {
		logger.Error().Err(err).Msg("Usage record insert failed for follow-up")
	}
	s.sessions.RecordTokenUsage(ctx, req.UserID, res.TotalTokens)

	return &Outcome{
		OK:           true,
		Text:         res.Text,
		UsageID:      usageID,
		TotalTokens:  res.TotalTokens,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
	}, nil
}

// SweepDedup drops expired in-flight markers; run periodically in case a
// Release was skipped.
func (s *YoutubeService) SweepDedup() int {
	return s.dedup.Sweep()
}

func (s *YoutubeService) buildSummaryRequest(videoURL, transcript string, hasTranscript bool) *gemini.Request {
	var parts []gemini.Part
	if hasTranscript {
		parts = append(parts, gemini.Part{Text: summaryPrompt + transcript})
	} else {
		// No transcript: send the video itself, which is what the cost
		// multiplier pays for.
		parts = append(parts,
			gemini.Part{Text: videoSummaryPrompt},
			gemini.Part{FileData: &gemini.FileData{FileURI: videoURL}},
		)
	}
	return &gemini.Request{Contents: []gemini.Content{{Role: "user", Parts: parts}}}
}

func (s *YoutubeService) buildFollowupRequest(req *model.Request, question, summary string) *gemini.Request {
	switch {
	case req.Transcript != "":
		text := fmt.Sprintf(followupPrompt, req.Transcript, question)
		return &gemini.Request{Contents: []gemini.Content{{Role: "user", Parts: []gemini.Part{{Text: text}}}}}
	case summary != "":
		text := fmt.Sprintf(followupPrompt, summary, question)
		return &gemini.Request{Contents: []gemini.Content{{Role: "user", Parts: []gemini.Part{{Text: text}}}}}
	default:
		return &gemini.Request{Contents: []gemini.Content{{Role: "user", Parts: []gemini.Part{
			{Text: fmt.Sprintf(followupPrompt, "", question)},
			{FileData: &gemini.FileData{FileURI: req.VideoURL}},
		}}}}
	}
}

func (s *YoutubeService) estimateTokens(transcript string, durationMinutes int, hasTranscript bool) int {
	if hasTranscript {
		est := len(transcript) / s.cfg.TokenEstimationRatio
		if est == 0 {
			est = 1
		}
		return est
	}
	// Raw video processing scales with duration.
	return durationMinutes * 1000
}

func (s *YoutubeService) minutesExhaustedMessage(ctx context.Context, userID int64, billableMinutes int) string {
	remaining := 0
	if sub, err := s.subRepo.GetSubscription(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Subscription fetch failed for denial message")
	} else if sub != nil {
		remaining = sub.YoutubeMinutesRemaining
	}
	return fmt.Sprintf(msgYoutubeLimitExceeded,
		remaining, billableMinutes,
		s.cfg.PremiumPriceStars, s.cfg.PremiumYoutubeMins, s.cfg.PremiumPeriodDays)
}

func (s *YoutubeService) recordError(ctx context.Context, err error, req *model.Request, contentType string) {
	if s.errorLog == nil {
		return
	}
	if logErr := s.errorLog.Insert(ctx, errorTypeOf(err), err.Error(), req.UserID, contentType, req.VideoURL); logErr != nil {
		s.logger.Warn().Err(logErr).Msg("Error log insert failed")
	}
}

// ExtractVideoID pulls the 11-character video ID out of the common YouTube
// URL shapes: watch?v=, youtu.be/, shorts/ and embed/.
func ExtractVideoID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse video url: %w", err)
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		if id != "" {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			return v, nil
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
			if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
				if id, _, _ := strings.Cut(rest, "/"); id != "" {
					return id, nil
				}
			}
		}
	}
	return "", fmt.Errorf("no video id in url %q", rawURL)
}

package service

import (
	"context"
	"io"
	"time"

	"tarjimonbot/internal/config"
	"tarjimonbot/internal/gemini"
	"tarjimonbot/internal/model"
	"tarjimonbot/internal/supadata"
)

// testConfig returns the production defaults with delays shrunk so retry
// paths finish instantly.
func testConfig() *config.Config {
	return &config.Config{
		MaxAttempts:           3,
		InitialDelaySec:       0.001,
		BackoffMultiplier:     2,
		MaxDelaySec:           0.004,
		OverallTimeoutSec:     5,
		ProgressMinIntervalMs: 0,
		ProgressMinChars:      0,
		TokenEstimationRatio:  4,

		RequestsPerMinute:   10,
		DailyTokensPerUser:  20000,
		MonthlyServiceToken: 5000000,
		MonthlyTotalTokens:  5000000,

		SessionTimeoutSec:         7200,
		SessionCleanupIntervalSec: 3600,
		SessionPersistIntervalSec: 60,
		MaxInactiveSessions:       1000,

		YoutubeCacheTTLSec:            300,
		YoutubeMaxDurationMinutes:     60,
		YoutubeNoTranscriptMultiplier: 3,

		FreeTranslations:    10,
		FreeYoutubeMinutes:  10,
		FreePeriodDays:      30,
		PremiumTranslations: 50,
		PremiumYoutubeMins:  120,
		PremiumPeriodDays:   30,
		PremiumPriceStars:   350,

		GeminiInputPricePerM:      1.25,
		GeminiOutputPricePerM:     10.00,
		GeminiInputPricePerMLong:  2.50,
		GeminiOutputPricePerMLong: 20.00,
		GeminiLongContextTokens:   200000,
		StarsToUSD:                0.02,
		TelegramFeePercent:        30,

		MaxTextLength: 50000,
	}
}

type fakeSubscriptionRepo struct {
	sub    *model.Subscription
	subErr error

	reserveOK       bool
	reserveErr      error
	reserveCalls    int
	refundCalls     int
	reservedMinutes int
	refundedMinutes int
	ensureCalls     int
	ensureLimits    model.PlanLimits
	activateCalls   int
	activatedUserID int64
	activatedDays   int
	activatedTrans  int
	activatedYTMins int
	premium         bool
}

func (f *fakeSubscriptionRepo) GetSubscription(ctx context.Context, userID int64) (*model.Subscription, error) {
	return f.sub, f.subErr
}

func (f *fakeSubscriptionRepo) ReserveTranslation(ctx context.Context, userID int64) (bool, error) {
	f.reserveCalls++
	return f.reserveOK, f.reserveErr
}

func (f *fakeSubscriptionRepo) ReserveYoutubeMinutes(ctx context.Context, userID int64, minutes int) (bool, error) {
	f.reserveCalls++
	f.reservedMinutes = minutes
	return f.reserveOK, f.reserveErr
}

func (f *fakeSubscriptionRepo) RefundTranslation(ctx context.Context, userID int64) error {
	f.refundCalls++
	return nil
}

func (f *fakeSubscriptionRepo) RefundYoutubeMinutes(ctx context.Context, userID int64, minutes int) error {
	f.refundCalls++
	f.refundedMinutes = minutes
	return nil
}

func (f *fakeSubscriptionRepo) ActivatePremium(ctx context.Context, userID int64, periodDays, translations, youtubeMinutes int) error {
	f.activateCalls++
	f.activatedUserID = userID
	f.activatedDays = periodDays
	f.activatedTrans = translations
	f.activatedYTMins = youtubeMinutes
	return nil
}

func (f *fakeSubscriptionRepo) EnsureFreeSubscription(ctx context.Context, userID int64, limits model.PlanLimits) error {
	f.ensureCalls++
	f.ensureLimits = limits
	return nil
}

func (f *fakeSubscriptionRepo) IsPremium(ctx context.Context, userID int64) (bool, error) {
	return f.premium, nil
}

type fakeUsageRepo struct {
	inserted  []*model.UsageRecord
	insertID  int64
	insertErr error

	daily            int
	dailyErr         error
	monthlyByService int
	monthlyTotal     int
	monthlyErr       error
}

func (f *fakeUsageRepo) Insert(ctx context.Context, rec *model.UsageRecord) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, rec)
	if f.insertID == 0 {
		return int64(len(f.inserted)), nil
	}
	return f.insertID, nil
}

func (f *fakeUsageRepo) DailyTokens(ctx context.Context, userID int64, since time.Time) (int, error) {
	return f.daily, f.dailyErr
}

func (f *fakeUsageRepo) MonthlyTokensByService(ctx context.Context, service string) (int, error) {
	return f.monthlyByService, f.monthlyErr
}

func (f *fakeUsageRepo) MonthlyTokensTotal(ctx context.Context) (int, error) {
	return f.monthlyTotal, f.monthlyErr
}

type fakeSessionRepo struct {
	persisted map[int64]*model.PersistedSession
	upserts   []*model.PersistedSession
	deleted   int64
	// getHook runs at the start of Get, letting tests interleave work with
	// an in-flight session rebuild.
	getHook func(userID int64)
}

func (f *fakeSessionRepo) Get(ctx context.Context, userID int64) (*model.PersistedSession, error) {
	if f.getHook != nil {
		f.getHook(userID)
	}
	if f.persisted == nil {
		return nil, nil
	}
	return f.persisted[userID], nil
}

func (f *fakeSessionRepo) Upsert(ctx context.Context, s *model.PersistedSession) error {
	f.upserts = append(f.upserts, s)
	return nil
}

func (f *fakeSessionRepo) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return f.deleted, nil
}

type fakePaymentRepo struct {
	byCharge  map[string]*model.Payment
	inserted  []*model.Payment
	insertErr error
}

func (f *fakePaymentRepo) GetByChargeID(ctx context.Context, chargeID string) (*model.Payment, error) {
	if f.byCharge == nil {
		return nil, nil
	}
	return f.byCharge[chargeID], nil
}

func (f *fakePaymentRepo) Insert(ctx context.Context, p *model.Payment) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, p)
	return int64(len(f.inserted)), nil
}

type fakeErrorLog struct {
	entries []string
}

func (f *fakeErrorLog) Insert(ctx context.Context, errorType, message string, userID int64, contentType, contentPreview string) error {
	f.entries = append(f.entries, errorType)
	return nil
}

type fakeVideos struct {
	meta          *supadata.VideoMetadata
	metaErr       error
	transcript    string
	hasTranscript bool
	transcriptErr error
}

func (f *fakeVideos) GetVideoMetadata(ctx context.Context, videoID string) (*supadata.VideoMetadata, error) {
	return f.meta, f.metaErr
}

func (f *fakeVideos) GetTranscript(ctx context.Context, videoID string) (string, bool, error) {
	return f.transcript, f.hasTranscript, f.transcriptErr
}

// fixedClient returns the same response, or error, for every generation.
type fixedClient struct {
	resp  *gemini.Response
	err   error
	calls int
}

func (c *fixedClient) Generate(ctx context.Context, model string, req *gemini.Request) (*gemini.Response, error) {
	c.calls++
	return c.resp, c.err
}

func (c *fixedClient) GenerateStream(ctx context.Context, model string, req *gemini.Request) (gemini.StreamReader, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &fixedStream{resp: c.resp}, nil
}

type fixedStream struct {
	resp *gemini.Response
	done bool
}

func (s *fixedStream) Recv() (*gemini.Response, error) {
	if s.done {
		return nil, io.EOF
	}
	s.done = true
	return s.resp, nil
}

func (s *fixedStream) Close() error { return nil }

package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"tarjimonbot/internal/gemini"
	"tarjimonbot/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type translationHarness struct {
	svc         *TranslationService
	subRepo     *fakeSubscriptionRepo
	usageRepo   *fakeUsageRepo
	sessionRepo *fakeSessionRepo
	errorLog    *fakeErrorLog
	client      *fixedClient
}

func newTranslationHarness(client *fixedClient) *translationHarness {
	cfg := testConfig()
	h := &translationHarness{
		subRepo:     &fakeSubscriptionRepo{reserveOK: true},
		usageRepo:   &fakeUsageRepo{},
		sessionRepo: &fakeSessionRepo{},
		errorLog:    &fakeErrorLog{},
		client:      client,
	}
	engine := gemini.NewEngine(client, "test-model", gemini.EngineConfig{
		MaxAttempts:       cfg.MaxAttempts,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          4 * time.Millisecond,
		OverallTimeout:    5 * time.Second,
		CharsPerToken:     cfg.TokenEstimationRatio,
	}, zerolog.Nop())
	sessions := NewSessionService(h.usageRepo, h.sessionRepo, cfg, zerolog.Nop())
	usage := NewUsageService(h.usageRepo, cfg, zerolog.Nop())
	h.svc = NewTranslationService(h.subRepo, usage, sessions, h.errorLog,
		engine, validator.New(validator.WithRequiredStructEnabled()), cfg, zerolog.Nop())
	return h
}

func translatedResponse(text string, total, input, output int) *gemini.Response {
	return &gemini.Response{
		Candidates:    []gemini.Candidate{{Content: &gemini.Content{Parts: []gemini.Part{{Text: text}}}}},
		UsageMetadata: &gemini.UsageMetadata{PromptTokenCount: input, CandidatesTokenCount: output, TotalTokenCount: total},
	}
}

func textRequest(text string) *model.Request {
	return &model.Request{UserID: 1, Kind: model.KindTranslateText, Text: text}
}

func TestTranslateSuccessCommitsOneUsageRow(t *testing.T) {
	h := newTranslationHarness(&fixedClient{resp: translatedResponse("Salom dunyo", 100, 40, 60)})

	out, err := h.svc.Translate(context.Background(), textRequest("Hello world"), nil)
	require.NoError(t, err)

	assert.True(t, out.OK)
	assert.Equal(t, "Salom dunyo", out.Text)
	assert.Equal(t, 100, out.TotalTokens)

	assert.Equal(t, 1, h.subRepo.reserveCalls)
	assert.Equal(t, 0, h.subRepo.refundCalls)
	require.Len(t, h.usageRepo.inserted, 1, "exactly one usage row per committed call")
	assert.Equal(t, model.ServiceTranslation, h.usageRepo.inserted[0].ServiceName)
	assert.Equal(t, 100, h.usageRepo.inserted[0].TokenCount)

	assert.Equal(t, 1, h.subRepo.ensureCalls, "free users get a lazily created subscription")
	assert.Equal(t, 10, h.subRepo.ensureLimits.Translations)
}

func TestTranslatePremiumSkipsFreeTierProvisioning(t *testing.T) {
	h := newTranslationHarness(&fixedClient{resp: translatedResponse("Salom", 50, 20, 30)})

	req := textRequest("Hello")
	req.IsPremium = true
	out, err := h.svc.Translate(context.Background(), req, nil)
	require.NoError(t, err)

	assert.True(t, out.OK)
	assert.Equal(t, 0, h.subRepo.ensureCalls)
}

func TestTranslateQuotaExhaustedMakesNoCall(t *testing.T) {
	h := newTranslationHarness(&fixedClient{resp: translatedResponse("Salom", 50, 20, 30)})
	h.subRepo.reserveOK = false

	out, err := h.svc.Translate(context.Background(), textRequest("Hello"), nil)
	require.NoError(t, err)

	assert.False(t, out.OK)
	assert.True(t, out.Denied)
	assert.Contains(t, out.UserMessage, "Tarjima limiti tugadi")
	assert.Equal(t, 0, h.client.calls, "an exhausted user never reaches the model")
	assert.Empty(t, h.usageRepo.inserted)
	assert.Equal(t, 0, h.subRepo.refundCalls)
}

func TestTranslateCallFailureRefundsAndLocalizes(t *testing.T) {
	h := newTranslationHarness(&fixedClient{err: gemini.ErrInvalidRequest})

	out, err := h.svc.Translate(context.Background(), textRequest("Hello"), nil)
	require.NoError(t, err, "model failures become user messages, not errors")

	assert.False(t, out.OK)
	assert.Equal(t, msgClientRequestError, out.UserMessage)
	assert.Equal(t, 1, h.subRepo.refundCalls, "the failed call returns the reserved unit")
	assert.Empty(t, h.usageRepo.inserted)
	assert.Equal(t, []string{"invalid_request"}, h.errorLog.entries)
}

func TestTranslateOverloadedMessageAfterRetries(t *testing.T) {
	h := newTranslationHarness(&fixedClient{err: gemini.ErrOverloaded})

	out, err := h.svc.Translate(context.Background(), textRequest("Hello"), nil)
	require.NoError(t, err)

	assert.Equal(t, msgModelOverloaded, out.UserMessage)
	assert.Equal(t, 1, h.subRepo.refundCalls)
	// 3 streaming attempts plus the one-time blocking fallback.
	assert.Equal(t, 4, h.client.calls)
}

func TestTranslateEmptyResultRefunds(t *testing.T) {
	h := newTranslationHarness(&fixedClient{resp: &gemini.Response{
		Candidates: []gemini.Candidate{{Content: &gemini.Content{Parts: []gemini.Part{}}}},
	}})

	out, err := h.svc.Translate(context.Background(), textRequest("Hello"), nil)
	require.NoError(t, err)

	assert.False(t, out.OK)
	assert.Equal(t, msgTranslationFailed, out.UserMessage)
	assert.Equal(t, 1, h.subRepo.refundCalls)
	assert.Empty(t, h.usageRepo.inserted)
}

func TestTranslateRejectsEmptyText(t *testing.T) {
	h := newTranslationHarness(&fixedClient{})

	out, err := h.svc.Translate(context.Background(), textRequest(""), nil)
	require.NoError(t, err)

	assert.Equal(t, msgEmptyText, out.UserMessage)
	assert.Equal(t, 0, h.subRepo.reserveCalls)
}

func TestTranslateRejectsOversizedText(t *testing.T) {
	h := newTranslationHarness(&fixedClient{})

	out, err := h.svc.Translate(context.Background(), textRequest(strings.Repeat("a", 50001)), nil)
	require.NoError(t, err)

	assert.Contains(t, out.UserMessage, "juda uzun")
	assert.Equal(t, 0, h.subRepo.reserveCalls)
}

func TestTranslateRejectsInvalidRequest(t *testing.T) {
	h := newTranslationHarness(&fixedClient{})

	out, err := h.svc.Translate(context.Background(), &model.Request{Kind: model.KindTranslateText, Text: "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, msgClientRequestError, out.UserMessage, "a zero user ID fails validation")
}

func TestTranslateRateLimited(t *testing.T) {
	h := newTranslationHarness(&fixedClient{resp: translatedResponse("Salom", 50, 20, 30)})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := h.svc.Translate(ctx, textRequest("Hello"), nil)
		require.NoError(t, err)
	}
	out, err := h.svc.Translate(ctx, textRequest("Hello"), nil)
	require.NoError(t, err)

	assert.Contains(t, out.UserMessage, "Juda ko'p so'rov")
	assert.Equal(t, 10, h.subRepo.reserveCalls, "the 11th request never reaches reservation")
}

func TestTranslateImageRequestCarriesInlineData(t *testing.T) {
	h := newTranslationHarness(&fixedClient{resp: translatedResponse("Salom", 2000, 1600, 400)})

	req := &model.Request{
		UserID:    1,
		Kind:      model.KindTranslateImage,
		ImageData: []byte{0xFF, 0xD8, 0xFF},
		ImageMIME: "image/jpeg",
	}
	out, err := h.svc.Translate(context.Background(), req, nil)
	require.NoError(t, err)

	assert.True(t, out.OK)
	require.Len(t, h.usageRepo.inserted, 1)
	assert.Equal(t, string(model.KindTranslateImage), h.usageRepo.inserted[0].ContentType)
}

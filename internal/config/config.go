package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENV" default:"development"`
	DBHost      string `envconfig:"DB_HOST" required:"true"`
	DBPort      int    `envconfig:"DB_PORT" default:"5432"`
	DBUser      string `envconfig:"DB_USER" required:"true"`
	DBPassword  string `envconfig:"DB_PASSWORD" required:"true"`
	DBName      string `envconfig:"DB_NAME" required:"true"`

	// Gemini settings
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiModelName string `envconfig:"GEMINI_MODEL_NAME" required:"true"`
	GeminiBaseURL   string `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`

	// Supadata settings (YouTube metadata + transcripts)
	SupadataAPIKey  string `envconfig:"SUPADATA_API_KEY" required:"true"`
	SupadataBaseURL string `envconfig:"SUPADATA_BASE_URL" default:"https://api.supadata.ai/v1"`

	// Generation retry/backoff settings
	MaxAttempts           int     `envconfig:"GEN_MAX_ATTEMPTS" default:"3"`
	InitialDelaySec       float64 `envconfig:"GEN_INITIAL_DELAY_SEC" default:"1.0"`
	BackoffMultiplier     float64 `envconfig:"GEN_BACKOFF_MULTIPLIER" default:"2.0"`
	MaxDelaySec           float64 `envconfig:"GEN_MAX_DELAY_SEC" default:"30.0"`
	OverallTimeoutSec     int     `envconfig:"GEN_OVERALL_TIMEOUT_SEC" default:"120"`
	ProgressMinIntervalMs int     `envconfig:"GEN_PROGRESS_MIN_INTERVAL_MS" default:"1500"`
	ProgressMinChars      int     `envconfig:"GEN_PROGRESS_MIN_CHARS" default:"200"`
	TokenEstimationRatio  int     `envconfig:"GEN_TOKEN_ESTIMATION_RATIO" default:"4"`

	// Rate limiting and token budgets
	RequestsPerMinute   int `envconfig:"RATE_REQUESTS_PER_MINUTE" default:"10"`
	DailyTokensPerUser  int `envconfig:"RATE_DAILY_TOKENS_PER_USER" default:"20000"`
	MonthlyServiceToken int `envconfig:"RATE_MONTHLY_SERVICE_TOKENS" default:"5000000"`
	MonthlyTotalTokens  int `envconfig:"RATE_MONTHLY_TOTAL_TOKENS" default:"5000000"`

	// Session tracking
	SessionTimeoutSec         int `envconfig:"SESSION_TIMEOUT_SEC" default:"7200"`
	SessionCleanupIntervalSec int `envconfig:"SESSION_CLEANUP_INTERVAL_SEC" default:"3600"`
	SessionPersistIntervalSec int `envconfig:"SESSION_PERSIST_INTERVAL_SEC" default:"60"`
	MaxInactiveSessions       int `envconfig:"SESSION_MAX_INACTIVE" default:"1000"`

	// YouTube processing
	YoutubeCacheTTLSec            int `envconfig:"YOUTUBE_CACHE_TTL_SEC" default:"300"`
	YoutubeMaxDurationMinutes     int `envconfig:"YOUTUBE_MAX_DURATION_MINUTES" default:"60"`
	YoutubeNoTranscriptMultiplier int `envconfig:"YOUTUBE_NO_TRANSCRIPT_MULTIPLIER" default:"3"`
	TranscriptFetchMaxAttempts    int `envconfig:"TRANSCRIPT_FETCH_MAX_ATTEMPTS" default:"3"`
	TranscriptFetchRetryDelaySec  int `envconfig:"TRANSCRIPT_FETCH_RETRY_DELAY_SEC" default:"2"`

	// Subscription plan (Stars pricing)
	FreeTranslations    int `envconfig:"PLAN_FREE_TRANSLATIONS" default:"10"`
	FreeYoutubeMinutes  int `envconfig:"PLAN_FREE_YOUTUBE_MINUTES" default:"10"`
	FreePeriodDays      int `envconfig:"PLAN_FREE_PERIOD_DAYS" default:"30"`
	PremiumTranslations int `envconfig:"PLAN_PREMIUM_TRANSLATIONS" default:"50"`
	PremiumYoutubeMins  int `envconfig:"PLAN_PREMIUM_YOUTUBE_MINUTES" default:"120"`
	PremiumPeriodDays   int `envconfig:"PLAN_PREMIUM_PERIOD_DAYS" default:"30"`
	PremiumPriceStars   int `envconfig:"PLAN_PREMIUM_PRICE_STARS" default:"350"`

	// Pricing (USD)
	GeminiInputPricePerM      float64 `envconfig:"PRICE_GEMINI_INPUT_PER_M" default:"1.25"`
	GeminiOutputPricePerM     float64 `envconfig:"PRICE_GEMINI_OUTPUT_PER_M" default:"10.00"`
	GeminiInputPricePerMLong  float64 `envconfig:"PRICE_GEMINI_INPUT_PER_M_LONG" default:"2.50"`
	GeminiOutputPricePerMLong float64 `envconfig:"PRICE_GEMINI_OUTPUT_PER_M_LONG" default:"20.00"`
	GeminiLongContextTokens   int     `envconfig:"PRICE_GEMINI_LONG_CONTEXT_TOKENS" default:"200000"`
	StarsToUSD                float64 `envconfig:"PRICE_STARS_TO_USD" default:"0.02"`
	TelegramFeePercent        int     `envconfig:"PRICE_TELEGRAM_FEE_PERCENT" default:"30"`

	// Input validation
	MaxTextLength  int `envconfig:"MAX_TEXT_LENGTH" default:"50000"`
	MaxImageSizeMB int `envconfig:"MAX_IMAGE_SIZE_MB" default:"10"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

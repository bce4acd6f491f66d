package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"tarjimonbot/internal/cache"
	"tarjimonbot/internal/config"
	"tarjimonbot/internal/gemini"
	"tarjimonbot/internal/logger"
	"tarjimonbot/internal/repository"
	"tarjimonbot/internal/service"
	"tarjimonbot/internal/supadata"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// application bundles the wired services. The Telegram transport layer
// mounts translation, youtube and subscriptions; this binary owns the
// background maintenance loops.
type application struct {
	translation   *service.TranslationService
	youtube       *service.YoutubeService
	subscriptions service.SubscriptionService
	sessions      *service.SessionService
	cfg           *config.Config
	logger        zerolog.Logger
}

func main() {
	logger := logger.New()

	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// 2. Open DB connection pool
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB connection: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
	}
	logger.Info().Msg("Database connection established")

	// 3. Initialize repositories
	subRepo := repository.NewSubscriptionRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	paymentRepo := repository.NewPaymentRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	errorLogRepo := repository.NewErrorLogRepo(pool)

	// 4. Initialize clients and validator
	validate := validator.New(validator.WithRequiredStructEnabled())
	geminiClient := gemini.NewClient(cfg.GeminiBaseURL, cfg.GeminiAPIKey, logger)
	engine := gemini.NewEngine(geminiClient, cfg.GeminiModelName, engineConfig(cfg), logger)
	videos := supadata.NewClient(
		cfg.SupadataBaseURL,
		cfg.SupadataAPIKey,
		cfg.TranscriptFetchMaxAttempts,
		time.Duration(cfg.TranscriptFetchRetryDelaySec)*time.Second,
		logger,
	)
	dedup := cache.NewDedupGuard(time.Duration(cfg.YoutubeCacheTTLSec) * time.Second)

	// 5. Initialize services
	sessions := service.NewSessionService(usageRepo, sessionRepo, cfg, logger)
	usage := service.NewUsageService(usageRepo, cfg, logger)
	app := &application{
		translation:   service.NewTranslationService(subRepo, usage, sessions, errorLogRepo, engine, validate, cfg, logger),
		youtube:       service.NewYoutubeService(subRepo, usage, sessions, errorLogRepo, engine, videos, dedup, validate, cfg, logger),
		subscriptions: service.NewSubscriptionService(subRepo, paymentRepo, cfg, logger),
		sessions:      sessions,
		cfg:           cfg,
		logger:        logger,
	}

	// 6. Run maintenance loops until a shutdown signal arrives
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app.run(ctx)
}

func (a *application) run(ctx context.Context) {
	go a.sessions.RunCleanup(ctx)
	go a.sweepDedupLoop(ctx)

	a.logger.Info().Msg("Billing core initialized")
	<-ctx.Done()
	a.logger.Info().Msg("Shutdown signal received, exiting...")
}

// sweepDedupLoop removes TTL-expired in-flight markers that a skipped
// Release left behind.
func (a *application) sweepDedupLoop(ctx context.Context) {
	interval := time.Duration(a.cfg.YoutubeCacheTTLSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := a.youtube.SweepDedup(); removed > 0 {
				a.logger.Debug().Int("removed", removed).Msg("Dedup cache sweep complete")
			}
		}
	}
}

func engineConfig(cfg *config.Config) gemini.EngineConfig {
	return gemini.EngineConfig{
		MaxAttempts:         cfg.MaxAttempts,
		InitialDelay:        time.Duration(cfg.InitialDelaySec * float64(time.Second)),
		BackoffMultiplier:   cfg.BackoffMultiplier,
		MaxDelay:            time.Duration(cfg.MaxDelaySec * float64(time.Second)),
		OverallTimeout:      time.Duration(cfg.OverallTimeoutSec) * time.Second,
		ProgressMinInterval: time.Duration(cfg.ProgressMinIntervalMs) * time.Millisecond,
		ProgressMinChars:    cfg.ProgressMinChars,
		CharsPerToken:       cfg.TokenEstimationRatio,
	}
}

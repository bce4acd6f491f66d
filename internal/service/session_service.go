package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tarjimonbot/internal/cache"
	"tarjimonbot/internal/config"
	"tarjimonbot/internal/model"
	"tarjimonbot/internal/repository"

	"github.com/rs/zerolog"
)

// userSession is the in-memory per-user tracking state. It is approximate
// and lossy across restarts by design: an occasional missed limit after a
// crash costs less than a persistence round trip on every check.
type userSession struct {
	userID       int64
	requests     []time.Time
	dailyTokens  int
	dailyResetAt time.Time
	lastActivity time.Time
	lastPersist  time.Time
	dirty        bool
}

// SessionService is the sliding-window rate limiter and token budget
// tracker. Session state lives in a capacity-bounded expiring map and is
// snapshotted to the database at most once per persist interval.
type SessionService struct {
	mu          sync.Mutex
	sessions    *cache.ExpiringMap[int64, *userSession]
	usageRepo   repository.UsageRepository
	sessionRepo repository.SessionRepository
	cfg         *config.Config
	logger      zerolog.Logger

	// window capacity leaves slack above the per-minute cap so denied
	// requests still register in the observed count.
	windowCap int
}

// NewSessionService creates a new SessionService.
func NewSessionService(usageRepo repository.UsageRepository, sessionRepo repository.SessionRepository, cfg *config.Config, logger zerolog.Logger) *SessionService {
	ttl := time.Duration(cfg.SessionTimeoutSec) * time.Second
	return &SessionService{
		sessions:    cache.NewExpiringMap[int64, *userSession](ttl, cfg.MaxInactiveSessions),
		usageRepo:   usageRepo,
		sessionRepo: sessionRepo,
		cfg:         cfg,
		logger:      logger.With().Str("service", "SessionService").Logger(),
		windowCap:   60,
	}
}

// CheckRateLimit appends the current timestamp to the user's sliding window
// and counts requests within the last minute. The denial message embeds the
// observed and allowed counts.
func (s *SessionService) CheckRateLimit(ctx context.Context, userID int64) (bool, string) {
	sess := s.getOrCreate(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	sess.lastActivity = now

	sess.requests = append(sess.requests, now)
	if len(sess.requests) > s.windowCap {
		sess.requests = sess.requests[len(sess.requests)-s.windowCap:]
	}
	s.touch(sess)

	recent := 0
	cutoff := now.Add(-time.Minute)
	for _, t := range sess.requests {
		if t.After(cutoff) {
			recent++
		}
	}
	if recent > s.cfg.RequestsPerMinute {
		return false, fmt.Sprintf(msgTooManyRequests, recent, s.cfg.RequestsPerMinute)
	}
	return true, ""
}

// CheckTokenLimits verifies the daily per-user cap, then the monthly
// service and global budgets. The monthly aggregates are read through from
// the usage log on every check.
func (s *SessionService) CheckTokenLimits(ctx context.Context, userID int64, serviceName string, estimatedTokens int) (bool, string, error) {
	sess := s.getOrCreate(ctx, userID)

	s.mu.Lock()
	s.resetDailyIfStale(sess)
	daily := sess.dailyTokens
	s.mu.Unlock()

	if daily+estimatedTokens > s.cfg.DailyTokensPerUser {
		return false, fmt.Sprintf(msgDailyTokenLimitExceeded, daily, s.cfg.DailyTokensPerUser), nil
	}

	serviceTotal, err := s.usageRepo.MonthlyTokensByService(ctx, serviceName)
	if err != nil {
		return false, "", fmt.Errorf("monthly service budget check: %w", err)
	}
	if serviceTotal+estimatedTokens > s.cfg.MonthlyServiceToken {
		return false, fmt.Sprintf(msgMonthlyServiceLimit, serviceName, serviceName), nil
	}

	total, err := s.usageRepo.MonthlyTokensTotal(ctx)
	if err != nil {
		return false, "", fmt.Errorf("monthly global budget check: %w", err)
	}
	if total+estimatedTokens > s.cfg.MonthlyTotalTokens {
		return false, msgMonthlySystemLimit, nil
	}
	return true, "", nil
}

// RecordTokenUsage adds to the daily counter and persists the session when
// the persist interval has elapsed.
func (s *SessionService) RecordTokenUsage(ctx context.Context, userID int64, tokens int) {
	sess := s.getOrCreate(ctx, userID)

	s.mu.Lock()
	s.resetDailyIfStale(sess)
	sess.dailyTokens += tokens
	sess.lastActivity = time.Now()
	sess.dirty = true
	s.touch(sess)

	persistDue := time.Since(sess.lastPersist) >= time.Duration(s.cfg.SessionPersistIntervalSec)*time.Second
	snapshot := s.snapshot(sess)
	if persistDue {
		sess.lastPersist = time.Now()
		sess.dirty = false
	}
	s.mu.Unlock()

	if persistDue {
		if err := s.sessionRepo.Upsert(ctx, snapshot); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Session persist failed")
		}
	}
}

// RunCleanup persists dirty sessions, sweeps expired in-memory entries and
// deletes stale persisted rows until the context is cancelled.
func (s *SessionService) RunCleanup(ctx context.Context) {
	interval := time.Duration(s.cfg.SessionCleanupIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("Session cleanup loop started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Session cleanup loop stopped")
			return
		case <-ticker.C:
			s.cleanupOnce(ctx)
		}
	}
}

func (s *SessionService) cleanupOnce(ctx context.Context) {
	var snapshots []*model.PersistedSession
	s.mu.Lock()
	s.sessions.Range(func(_ int64, sess *userSession) bool {
		if sess.dirty {
			snapshots = append(snapshots, s.snapshot(sess))
			sess.dirty = false
			sess.lastPersist = time.Now()
		}
		return true
	})
	s.mu.Unlock()

	for _, snap := range snapshots {
		if err := s.sessionRepo.Upsert(ctx, snap); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", snap.UserID).Msg("Session persist failed during cleanup")
		}
	}

	swept := s.sessions.Sweep()
	cutoff := time.Now().Add(-time.Duration(s.cfg.SessionTimeoutSec) * time.Second)
	deleted, err := s.sessionRepo.DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Stale session delete failed")
	}
	s.logger.Info().
		Int("swept_in_memory", swept).
		Int64("deleted_persisted", deleted).
		Msg("Session cleanup pass complete")
}

// getOrCreate must be called without s.mu held: a cache miss rebuilds state
// from the persisted snapshot, and those DB reads must not stall every other
// user's checks. Losing the insert race hands back the winner's session.
func (s *SessionService) getOrCreate(ctx context.Context, userID int64) *userSession {
	if sess, ok := s.sessions.Get(userID); ok {
		return sess
	}

	now := time.Now()
	sess := &userSession{
		userID:       userID,
		dailyResetAt: startOfDayUTC(now),
		lastActivity: now,
		lastPersist:  now,
	}

	if persisted, err := s.sessionRepo.Get(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Session load failed, starting fresh")
	} else if persisted != nil && sameDayUTC(persisted.DailyResetAt, now) {
		sess.dailyTokens = persisted.DailyTokens
		sess.dailyResetAt = persisted.DailyResetAt
	} else {
		if tokens, err := s.usageRepo.DailyTokens(ctx, userID, startOfDayUTC(now)); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Daily usage rebuild failed, assuming zero")
		} else {
			sess.dailyTokens = tokens
		}
	}

	if !s.sessions.PutIfAbsent(userID, sess) {
		if existing, ok := s.sessions.Get(userID); ok {
			return existing
		}
		// The winner expired between the two calls; take over.
		s.sessions.Put(userID, sess)
	}
	return sess
}

// touch refreshes the session's TTL entry. Assumes s.mu is held.
func (s *SessionService) touch(sess *userSession) {
	s.sessions.Put(sess.userID, sess)
}

// resetDailyIfStale zeroes the counter when the stored reset timestamp
// belongs to a previous UTC day. Assumes s.mu is held.
func (s *SessionService) resetDailyIfStale(sess *userSession) {
	now := time.Now()
	if !sameDayUTC(sess.dailyResetAt, now) {
		sess.dailyTokens = 0
		sess.dailyResetAt = startOfDayUTC(now)
		sess.dirty = true
	}
}

func (s *SessionService) snapshot(sess *userSession) *model.PersistedSession {
	return &model.PersistedSession{
		UserID:       sess.userID,
		DailyTokens:  sess.dailyTokens,
		DailyResetAt: sess.dailyResetAt,
		LastActivity: sess.lastActivity,
	}
}

func startOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDayUTC(a, b time.Time) bool {
	au, bu := a.UTC(), b.UTC()
	return au.Year() == bu.Year() && au.YearDay() == bu.YearDay()
}

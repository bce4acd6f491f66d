package repository

import (
	"context"
	"os"
	"sync"
	"testing"

	"tarjimonbot/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// testPool connects to the database named by TEST_DATABASE_URL, which must
// already carry the schema. The tests are skipped otherwise.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set, skip DB integration test")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed to open pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func seedSubscription(t *testing.T, pool *pgxpool.Pool, userID int64, translations, minutes int) {
	t.Helper()
	ctx := context.Background()
	_, err := pool.Exec(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		t.Fatalf("failed to clear subscription: %v", err)
	}
	_, err = pool.Exec(ctx, `
        INSERT INTO subscriptions (user_id, tier, expires_at, youtube_minutes_remaining, translation_remaining)
        VALUES ($1, 'free', NOW() + INTERVAL '30 days', $2, $3)
    `, userID, minutes, translations)
	if err != nil {
		t.Fatalf("failed to seed subscription: %v", err)
	}
}

// Five workers race for two remaining translations; the conditional
// decrement must admit exactly two of them and leave the balance at zero.
func TestReserveTranslationConcurrent(t *testing.T) {
	pool := testPool(t)
	repo := NewSubscriptionRepo(pool)
	ctx := context.Background()

	const userID = int64(900001)
	seedSubscription(t, pool, userID, 2, 0)

	var wg sync.WaitGroup
	results := make(chan bool, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ReserveTranslation(ctx, userID)
			if err != nil {
				t.Errorf("reserve failed: %v", err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	granted := 0
	for ok := range results {
		if ok {
			granted++
		}
	}
	if granted != 2 {
		t.Fatalf("expected exactly 2 reservations to succeed, got %d", granted)
	}

	sub, err := repo.GetSubscription(ctx, userID)
	if err != nil {
		t.Fatalf("failed to read subscription: %v", err)
	}
	if sub.TranslationRemaining != 0 {
		t.Fatalf("expected 0 remaining translations, got %d", sub.TranslationRemaining)
	}
}

func TestReserveYoutubeMinutesInsufficientBalance(t *testing.T) {
	pool := testPool(t)
	repo := NewSubscriptionRepo(pool)
	ctx := context.Background()

	const userID = int64(900002)
	seedSubscription(t, pool, userID, 0, 5)

	ok, err := repo.ReserveYoutubeMinutes(ctx, userID, 10)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if ok {
		t.Fatal("expected reservation of 10 minutes against a balance of 5 to fail")
	}

	ok, err = repo.ReserveYoutubeMinutes(ctx, userID, 5)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if !ok {
		t.Fatal("expected reservation matching the full balance to succeed")
	}
}

func TestRefundRestoresBalance(t *testing.T) {
	pool := testPool(t)
	repo := NewSubscriptionRepo(pool)
	ctx := context.Background()

	const userID = int64(900003)
	seedSubscription(t, pool, userID, 1, 10)

	ok, err := repo.ReserveTranslation(ctx, userID)
	if err != nil || !ok {
		t.Fatalf("reserve failed: ok=%v err=%v", ok, err)
	}
	if err := repo.RefundTranslation(ctx, userID); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	ok, err = repo.ReserveYoutubeMinutes(ctx, userID, 10)
	if err != nil || !ok {
		t.Fatalf("minutes reserve failed: ok=%v err=%v", ok, err)
	}
	if err := repo.RefundYoutubeMinutes(ctx, userID, 10); err != nil {
		t.Fatalf("minutes refund failed: %v", err)
	}

	sub, err := repo.GetSubscription(ctx, userID)
	if err != nil {
		t.Fatalf("failed to read subscription: %v", err)
	}
	if sub.TranslationRemaining != 1 || sub.YoutubeMinutesRemaining != 10 {
		t.Fatalf("expected balances restored to 1/10, got %d/%d",
			sub.TranslationRemaining, sub.YoutubeMinutesRemaining)
	}
}

func TestEnsureFreeSubscriptionLeavesActiveRowUntouched(t *testing.T) {
	pool := testPool(t)
	repo := NewSubscriptionRepo(pool)
	ctx := context.Background()

	const userID = int64(900004)
	seedSubscription(t, pool, userID, 7, 3)

	limits := model.PlanLimits{Translations: 10, YoutubeMinutes: 10, PeriodDays: 30}
	if err := repo.EnsureFreeSubscription(ctx, userID, limits); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	sub, err := repo.GetSubscription(ctx, userID)
	if err != nil {
		t.Fatalf("failed to read subscription: %v", err)
	}
	if sub.TranslationRemaining != 7 || sub.YoutubeMinutesRemaining != 3 {
		t.Fatalf("active row was reset: got %d/%d", sub.TranslationRemaining, sub.YoutubeMinutesRemaining)
	}
}

package perftests

import (
	"context"
	"fmt"
	"testing"
	"time"

	auction "auction-engine/internal/auctionService"
	"auction-engine/internal/config"
	"auction-engine/internal/database"
	"auction-engine/internal/events"
	"auction-engine/internal/inventory"
	"auction-engine/internal/ledger"
	"auction-engine/internal/lock"
	"auction-engine/internal/metrics"
	"auction-engine/internal/notify"
	"auction-engine/internal/repository"
	"auction-engine/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// stack is the engine and ledger wired on SQLite and miniredis.
type stack struct {
	engine *auction.Engine
	ledger *ledger.Ledger
}

func newStack(b *testing.B) *stack {
	b.Helper()
	utils.InitLogger(config.LoggingConfig{Level: "error"})

	db, err := database.OpenMemory()
	if err != nil {
		b.Fatalf("failed to open database: %v", err)
	}
	b.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	mr := miniredis.RunT(b)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { client.Close() })

	m := metrics.New(metrics.NewRegistry())
	publisher := events.NewLogPublisher()

	cfg := auction.DefaultConfig()
	cfg.MinBidInterval = 0
	cfg.BidLock = lock.Options{TTL: 5 * time.Second, MaxRetries: 2000, RetryDelay: time.Millisecond}
	cfg.CloseLock = cfg.BidLock

	led := ledger.New(db, publisher, m)
	engine := auction.NewEngine(auction.Dependencies{
		Repo:      repository.NewGormRepo(db),
		Locker:    lock.NewRedisLock(client, ""),
		Ledger:    led.WithoutEvents(),
		Inventory: inventory.NewStore(db),
		Notifier:  notify.NewRedisNotifier(client, time.Hour),
		Publisher: publisher,
		Metrics:   m,
	}, cfg)
	b.Cleanup(engine.Wait)

	return &stack{engine: engine, ledger: led}
}

func (s *stack) fund(b *testing.B, userID string, amount int64) {
	b.Helper()
	if _, err := s.ledger.Grant(context.Background(), ledger.Entry{UserID: userID, Amount: amount, Source: "benchmark"}); err != nil {
		b.Fatalf("failed to fund %s: %v", userID, err)
	}
}

func (s *stack) auctions(b *testing.B, n int) []string {
	b.Helper()
	ids := make([]string, n)
	for i := range ids {
		a, err := s.engine.CreateAuction(context.Background(), auction.CreateAuctionRequest{
			ItemID:          fmt.Sprintf("item_%d", i),
			StartPrice:      100,
			DurationMinutes: 60,
			MinIncrement:    1,
		})
		if err != nil {
			b.Fatalf("failed to create auction: %v", err)
		}
		ids[i] = a.AuctionID
	}
	return ids
}

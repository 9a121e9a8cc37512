package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/database"
	"auction-engine/internal/events"
	"auction-engine/internal/models"

	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestLedger(t *testing.T) (*Ledger, *recordingPublisher) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	pub := &recordingPublisher{}
	return New(db, pub, nil), pub
}

func TestGrantAndSpend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, pub := newTestLedger(t)

	txn, err := l.Grant(ctx, Entry{UserID: "u1", Amount: 100, Source: "daily_gift"})
	require.NoError(t, err)
	require.Equal(t, int64(100), txn.Amount)
	require.Equal(t, models.TransactionEarn, txn.Kind)
	require.Equal(t, int64(100), txn.BalanceAfter)

	txn, err = l.Spend(ctx, Entry{UserID: "u1", Amount: 30, Source: "shop", Metadata: map[string]any{"item": "hat"}})
	require.NoError(t, err)
	require.Equal(t, int64(-30), txn.Amount)
	require.Equal(t, models.TransactionSpend, txn.Kind)
	require.Equal(t, int64(70), txn.BalanceAfter)

	account, err := l.GetAccount(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(70), account.Besitos)
	require.Equal(t, int64(100), account.LifetimeBesitos)

	require.Equal(t, []events.Type{events.TypeBesitosEarned, events.TypeBesitosSpent}, pub.types())
}

func TestSpendInsufficientFundsLeavesBalance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, pub := newTestLedger(t)

	_, err := l.Grant(ctx, Entry{UserID: "u1", Amount: 50, Source: "mission"})
	require.NoError(t, err)

	_, err = l.Spend(ctx, Entry{UserID: "u1", Amount: 60, Source: "shop"})
	require.ErrorIs(t, err, auctionerrors.ErrInsufficientFunds)
	require.Equal(t, auctionerrors.KindResource, auctionerrors.KindOf(err))

	balance, err := l.GetBalance(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)

	history, err := l.GetHistory(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Len(t, pub.types(), 1)
}

func TestSpendUnknownUser(t *testing.T) {
	t.Parallel()
	l, _ := newTestLedger(t)

	_, err := l.Spend(context.Background(), Entry{UserID: "ghost", Amount: 1, Source: "shop"})
	require.ErrorIs(t, err, auctionerrors.ErrInsufficientFunds)

	balance, err := l.GetBalance(context.Background(), "ghost")
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestInvalidEntries(t *testing.T) {
	t.Parallel()
	l, _ := newTestLedger(t)

	tests := []struct {
		name  string
		entry Entry
		want  error
	}{
		{name: "zero_amount", entry: Entry{UserID: "u1", Amount: 0, Source: "x"}, want: auctionerrors.ErrInvalidAmount},
		{name: "negative_amount", entry: Entry{UserID: "u1", Amount: -5, Source: "x"}, want: auctionerrors.ErrInvalidAmount},
		{name: "missing_user", entry: Entry{Amount: 5, Source: "x"}, want: auctionerrors.ErrInvalidEntry},
		{name: "missing_source", entry: Entry{UserID: "u1", Amount: 5}, want: auctionerrors.ErrInvalidEntry},
	}

	for _, tc := range tests {
		_, err := l.Grant(context.Background(), tc.entry)
		require.ErrorIs(t, err, tc.want, tc.name)
		_, err = l.Spend(context.Background(), tc.entry)
		require.ErrorIs(t, err, tc.want, tc.name)
	}
}

func TestReferenceReplayIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, pub := newTestLedger(t)

	_, err := l.Grant(ctx, Entry{UserID: "u1", Amount: 200, Source: "mission"})
	require.NoError(t, err)

	entry := Entry{UserID: "u1", Amount: 120, Source: "auction_settlement", Reference: "auction_settlement:a1:0"}
	first, err := l.Spend(ctx, entry)
	require.NoError(t, err)
	second, err := l.Spend(ctx, entry)
	require.NoError(t, err)
	require.Equal(t, first.TransactionID, second.TransactionID)

	balance, err := l.GetBalance(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(80), balance)
	require.Len(t, pub.types(), 2)

	_, err = l.Spend(ctx, Entry{UserID: "u2", Amount: 120, Source: "auction_settlement", Reference: "auction_settlement:a1:0"})
	require.ErrorIs(t, err, auctionerrors.ErrReferenceConflict)

	_, err = l.Grant(ctx, Entry{UserID: "u1", Amount: 120, Source: "auction_refund", Reference: "auction_settlement:a1:0"})
	require.ErrorIs(t, err, auctionerrors.ErrReferenceConflict)
}

func TestHistoryNewestFirstWithLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newTestLedger(t)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 4; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		l.now = func() time.Time { return at }
		_, err := l.Grant(ctx, Entry{UserID: "u1", Amount: int64(i), Source: "mission"})
		require.NoError(t, err)
	}

	history, err := l.GetHistory(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, int64(4), history[0].Amount)
	require.Equal(t, int64(3), history[1].Amount)

	history, err = l.GetHistory(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, history, 4)
}

func TestLifetimeNeverDecreases(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newTestLedger(t)

	_, err := l.Grant(ctx, Entry{UserID: "u1", Amount: 40, Source: "mission"})
	require.NoError(t, err)
	_, err = l.Spend(ctx, Entry{UserID: "u1", Amount: 40, Source: "shop"})
	require.NoError(t, err)
	_, err = l.Grant(ctx, Entry{UserID: "u1", Amount: 10, Source: "mission"})
	require.NoError(t, err)

	lifetime, err := l.GetLifetime(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(50), lifetime)

	balance, err := l.GetBalance(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(10), balance)
}

func TestConcurrentSpendsNeverOverdraw(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newTestLedger(t)

	_, err := l.Grant(ctx, Entry{UserID: "u1", Amount: 100, Source: "mission"})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Spend(ctx, Entry{UserID: "u1", Amount: 10, Source: "shop"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, auctionerrors.ErrInsufficientFunds):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 10, succeeded)
	require.Equal(t, 10, rejected)

	rec, err := l.Reconcile(ctx, "u1")
	require.NoError(t, err)
	require.True(t, rec.Consistent)
	require.Zero(t, rec.Besitos)
	require.Zero(t, rec.LogTotal)
}

func TestConcurrentGrantsAndSpendsReconcile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newTestLedger(t)

	var wg sync.WaitGroup
	for i := 0; i < 15; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := l.Grant(ctx, Entry{UserID: "u1", Amount: 7, Source: "mission"}); err != nil {
				t.Errorf("grant: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			_, err := l.Spend(ctx, Entry{UserID: "u1", Amount: 5, Source: "shop"})
			if err != nil && !errors.Is(err, auctionerrors.ErrInsufficientFunds) {
				t.Errorf("spend: %v", err)
			}
		}()
	}
	wg.Wait()

	rec, err := l.Reconcile(ctx, "u1")
	require.NoError(t, err)
	require.True(t, rec.Consistent)
	require.GreaterOrEqual(t, rec.Besitos, int64(0))

	lifetime, err := l.GetLifetime(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(105), lifetime)
}

func TestHasReference(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newTestLedger(t)

	found, err := l.HasReference(ctx, "auction_refund:a1:0")
	require.NoError(t, err)
	require.False(t, found)

	_, err = l.Grant(ctx, Entry{UserID: "u1", Amount: 120, Source: "auction_refund", Reference: "auction_refund:a1:0"})
	require.NoError(t, err)

	found, err = l.HasReference(ctx, "auction_refund:a1:0")
	require.NoError(t, err)
	require.True(t, found)
}

func TestWithoutEventsSharesStoreButPublishesNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, pub := newTestLedger(t)
	quiet := l.WithoutEvents()

	_, err := quiet.Grant(ctx, Entry{UserID: "u1", Amount: 100, Source: "daily_gift"})
	require.NoError(t, err)
	require.Empty(t, pub.types())

	_, err = l.Spend(ctx, Entry{UserID: "u1", Amount: 40, Source: "shop"})
	require.NoError(t, err)
	require.Equal(t, []events.Type{events.TypeBesitosSpent}, pub.types())

	balance, err := quiet.GetBalance(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(60), balance)
}

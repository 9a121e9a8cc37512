package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"auction-engine/internal/auctionerrors"
	model "auction-engine/internal/models"
)

// AuctionDB defines the auction and bid storage interface for the auction engine
type AuctionDB interface {
	CreateAuction(ctx context.Context, auction model.Auction) error
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	ListAuctions(ctx context.Context, status model.AuctionStatus) ([]model.Auction, error)

	// RecordBid appends bid, clears is_winning on the previous winning bid and
	// stores updated, all only if the stored auction still has expectedVersion.
	RecordBid(ctx context.Context, bid model.Bid, updated model.Auction, expectedVersion int64) error
	// CloseAuction stores updated if the stored auction still has expectedVersion.
	CloseAuction(ctx context.Context, updated model.Auction, expectedVersion int64) error

	GetLastUserBid(ctx context.Context, auctionID, userID string) (model.Bid, error)
	GetTopBids(ctx context.Context, auctionID string, limit int) ([]model.Bid, error)
	GetBidsByUser(ctx context.Context, userID string, limit int) ([]model.Bid, error)

	// RecordSettlementFailure inserts failure, or replaces the stored failure
	// with the same FailureID.
	RecordSettlementFailure(ctx context.Context, failure model.SettlementFailure) error
	ListSettlementFailures(ctx context.Context, limit int) ([]model.SettlementFailure, error)
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu       sync.RWMutex
	auctions map[string]model.Auction // key: auctionID -> value: auction
	bids     map[string][]model.Bid   // key: auctionID -> value: bids in insertion order
	userBids map[string][]bidRef      // key: userID -> value: positions of the user's bids
	failures []model.SettlementFailure
}

type bidRef struct {
	auctionID string
	index     int
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions: make(map[string]model.Auction),
		bids:     make(map[string][]model.Bid),
		userBids: make(map[string][]bidRef),
	}
}

// CreateAuction stores a new auction
func (r *MemoryRepo) CreateAuction(_ context.Context, auction model.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if auction.AuctionID == "" {
		return fmt.Errorf("create auction: %w - missing id", auctionerrors.ErrInvalidAuction)
	}
	if _, exists := r.auctions[auction.AuctionID]; exists {
		return fmt.Errorf("create auction %s: %w - duplicate id", auction.AuctionID, auctionerrors.ErrInvalidAuction)
	}
	r.auctions[auction.AuctionID] = auction
	return nil
}

// GetAuction returns an auction by id
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return auction, nil
}

// ListAuctions returns auctions with the given status ordered by end time
func (r *MemoryRepo) ListAuctions(_ context.Context, status model.AuctionStatus) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Auction, 0)
	for _, a := range r.auctions {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EndTime.Equal(out[j].EndTime) {
			return out[i].AuctionID < out[j].AuctionID
		}
		return out[i].EndTime.Before(out[j].EndTime)
	})
	return out, nil
}

// RecordBid records an accepted bid together with the auction update
func (r *MemoryRepo) RecordBid(_ context.Context, bid model.Bid, updated model.Auction, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkVersion(updated.AuctionID, expectedVersion); err != nil {
		return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, err)
	}

	bids := r.bids[bid.AuctionID]
	for i := range bids {
		bids[i].IsWinning = false
	}
	r.bids[bid.AuctionID] = append(bids, bid)
	r.userBids[bid.UserID] = append(r.userBids[bid.UserID], bidRef{auctionID: bid.AuctionID, index: len(bids)})

	updated.Version = expectedVersion + 1
	r.auctions[updated.AuctionID] = updated
	return nil
}

// CloseAuction stores the closed auction
func (r *MemoryRepo) CloseAuction(_ context.Context, updated model.Auction, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkVersion(updated.AuctionID, expectedVersion); err != nil {
		return fmt.Errorf("close auction %s: %w", updated.AuctionID, err)
	}
	updated.Version = expectedVersion + 1
	r.auctions[updated.AuctionID] = updated
	return nil
}

func (r *MemoryRepo) checkVersion(auctionID string, expectedVersion int64) error {
	current, ok := r.auctions[auctionID]
	if !ok {
		return auctionerrors.ErrAuctionNotFound
	}
	if current.Version != expectedVersion {
		return auctionerrors.ErrConcurrentModification
	}
	return nil
}

// GetLastUserBid returns the most recent bid of a user on an auction
func (r *MemoryRepo) GetLastUserBid(_ context.Context, auctionID, userID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids := r.bids[auctionID]
	for i := len(bids) - 1; i >= 0; i-- {
		if bids[i].UserID == userID {
			return bids[i], nil
		}
	}
	return model.Bid{}, fmt.Errorf("get last bid of user %s on auction %s: %w", userID, auctionID, auctionerrors.ErrNoBids)
}

// GetTopBids returns the highest bids of an auction, earliest first on ties
func (r *MemoryRepo) GetTopBids(_ context.Context, auctionID string, limit int) ([]model.Bid, error) {
	r.mu.RLock()
	bids := append([]model.Bid(nil), r.bids[auctionID]...)
	r.mu.RUnlock()

	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].Amount > bids[j].Amount
	})
	if limit > 0 && len(bids) > limit {
		bids = bids[:limit]
	}
	if bids == nil {
		bids = []model.Bid{}
	}
	return bids, nil
}

// GetBidsByUser returns a user's bids across auctions, newest first
func (r *MemoryRepo) GetBidsByUser(_ context.Context, userID string, limit int) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := r.userBids[userID]
	out := make([]model.Bid, 0, len(refs))
	for i := len(refs) - 1; i >= 0; i-- {
		out = append(out, r.bids[refs[i].auctionID][refs[i].index])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// RecordSettlementFailure stores a settlement failure for reconciliation,
// replacing an earlier record with the same ID in place
func (r *MemoryRepo) RecordSettlementFailure(_ context.Context, failure model.SettlementFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, f := range r.failures {
		if f.FailureID == failure.FailureID {
			r.failures[i] = failure
			return nil
		}
	}
	r.failures = append(r.failures, failure)
	return nil
}

// ListSettlementFailures returns recorded failures, newest first
func (r *MemoryRepo) ListSettlementFailures(_ context.Context, limit int) ([]model.SettlementFailure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.SettlementFailure, 0, len(r.failures))
	for i := len(r.failures) - 1; i >= 0; i-- {
		out = append(out, r.failures[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

package helpers

import (
	"time"

	model "auction-engine/internal/models"
)

// Request/Response DTOs
// CreateAuctionRequest is the body of POST /auctions
type CreateAuctionRequest struct {
	ItemID          string `json:"item_id" binding:"required"`
	StartPrice      int64  `json:"start_price" binding:"gte=0"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,gt=0"`
	Kind            string `json:"kind" binding:"omitempty,oneof=standard dutch silent"`
	MinIncrement    int64  `json:"min_increment" binding:"required,gt=0"`
}

// PlaceBidRequest is the body of POST /auctions/:auction_id/bids
type PlaceBidRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}

// LedgerEntryRequest is the body of POST /users/:user_id/grant and /spend
type LedgerEntryRequest struct {
	Amount    int64          `json:"amount" binding:"required,gt=0"`
	Source    string         `json:"source" binding:"required"`
	Reference string         `json:"reference"`
	Metadata  map[string]any `json:"metadata"`
}

// BidResponse is the public view of a bid
type BidResponse struct {
	BidID     string `json:"bid_id"`
	AuctionID string `json:"auction_id"`
	UserID    string `json:"user_id"`
	Amount    int64  `json:"amount"`
	IsWinning bool   `json:"is_winning"`
	CreatedAt string `json:"created_at"`
}

// BalanceResponse is the public view of a besitos account
type BalanceResponse struct {
	UserID          string `json:"user_id"`
	Besitos         int64  `json:"besitos"`
	LifetimeBesitos int64  `json:"lifetime_besitos"`
}

func ToBidResponse(bid model.Bid) BidResponse {
	return BidResponse{
		BidID:     bid.BidID,
		AuctionID: bid.AuctionID,
		UserID:    bid.UserID,
		Amount:    bid.Amount,
		IsWinning: bid.IsWinning,
		CreatedAt: bid.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func ToBidResponses(bids []model.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, ToBidResponse(b))
	}
	return out
}

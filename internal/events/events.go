package events

import (
	"context"
	"time"

	"auction-engine/internal/models"
	"auction-engine/utils"
)

// Type is the closed set of outbound domain events.
type Type string

const (
	TypeAuctionStarted Type = "auction_started"
	TypeBidPlaced      Type = "bid_placed"
	TypeAuctionWon     Type = "auction_won"
	TypeAuctionNoBids  Type = "auction_no_bids"
	TypeBesitosEarned  Type = "besitos_earned"
	TypeBesitosSpent   Type = "besitos_spent"
)

// Event is the envelope delivered to the notification and analytics consumers.
type Event struct {
	ID         string    `json:"event_id"`
	Type       Type      `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Publisher delivers committed domain events. Delivery is at-least-once and
// purely observational: callers never depend on it for correctness.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type AuctionStartedPayload struct {
	AuctionID  string    `json:"auction_id"`
	ItemID     string    `json:"item_id"`
	StartPrice int64     `json:"start_price"`
	EndTime    time.Time `json:"end_time"`
}

type BidPlacedPayload struct {
	AuctionID  string `json:"auction_id"`
	UserID     string `json:"user_id"`
	Amount     int64  `json:"amount"`
	CurrentBid int64  `json:"current_bid"`
}

type AuctionWonPayload struct {
	AuctionID  string `json:"auction_id"`
	UserID     string `json:"user_id"`
	ItemID     string `json:"item_id"`
	WinningBid int64  `json:"winning_bid"`
}

type AuctionNoBidsPayload struct {
	AuctionID string `json:"auction_id"`
}

type BesitosEarnedPayload struct {
	TransactionID string `json:"transaction_id"`
	UserID     string `json:"user_id"`
	Amount     int64  `json:"amount"`
	Source     string `json:"source"`
	NewBalance int64  `json:"new_balance"`
}

type BesitosSpentPayload struct {
	TransactionID string `json:"transaction_id"`
	UserID     string `json:"user_id"`
	Amount     int64  `json:"amount"`
	Purpose    string `json:"purpose"`
	NewBalance int64  `json:"new_balance"`
}

func newEvent(t Type, payload any) Event {
	return Event{
		ID:         utils.GenerateID(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

func AuctionStarted(a models.Auction) Event {
	return newEvent(TypeAuctionStarted, AuctionStartedPayload{
		AuctionID:  a.AuctionID,
		ItemID:     a.ItemID,
		StartPrice: a.StartPrice,
		EndTime:    a.EndTime,
	})
}

func BidPlaced(bid models.Bid, currentBid int64) Event {
	return newEvent(TypeBidPlaced, BidPlacedPayload{
		AuctionID:  bid.AuctionID,
		UserID:     bid.UserID,
		Amount:     bid.Amount,
		CurrentBid: currentBid,
	})
}

func AuctionWon(a models.Auction) Event {
	var winner string
	if a.Winner != nil {
		winner = *a.Winner
	}
	return newEvent(TypeAuctionWon, AuctionWonPayload{
		AuctionID:  a.AuctionID,
		UserID:     winner,
		ItemID:     a.ItemID,
		WinningBid: a.CurrentBid,
	})
}

func AuctionNoBids(a models.Auction) Event {
	return newEvent(TypeAuctionNoBids, AuctionNoBidsPayload{AuctionID: a.AuctionID})
}

// Besitos events carry an ID derived from the transaction, so consumers can
// drop a redelivered event.
func BesitosEarned(txn models.Transaction) Event {
	event := newEvent(TypeBesitosEarned, BesitosEarnedPayload{
		TransactionID: txn.TransactionID,
		UserID:        txn.UserID,
		Amount:        txn.Amount,
		Source:        txn.Source,
		NewBalance:    txn.BalanceAfter,
	})
	event.ID = utils.StableID(string(TypeBesitosEarned), txn.TransactionID)
	return event
}

func BesitosSpent(txn models.Transaction) Event {
	event := newEvent(TypeBesitosSpent, BesitosSpentPayload{
		TransactionID: txn.TransactionID,
		UserID:        txn.UserID,
		Amount:        -txn.Amount,
		Purpose:       txn.Source,
		NewBalance:    txn.BalanceAfter,
	})
	event.ID = utils.StableID(string(TypeBesitosSpent), txn.TransactionID)
	return event
}

const (
	publishAttempts   = 3
	publishTimeout    = 2 * time.Second
	publishRetryDelay = 100 * time.Millisecond
)

// Emit publishes event, retrying a failed publish, and logs the last failure
// instead of returning it. It must only be called after the state change behind
// event has committed. Publishing outlives cancellation of ctx.
func Emit(ctx context.Context, p Publisher, event Event) {
	if p == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	var err error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(publishRetryDelay * time.Duration(attempt))
		}
		if err = publishOnce(ctx, p, event); err == nil {
			return
		}
	}
	utils.Warn("events: publish failed", map[string]any{
		"event_id":   event.ID,
		"event_type": string(event.Type),
		"attempts":   publishAttempts,
		"error":      err.Error(),
	})
}

func publishOnce(ctx context.Context, p Publisher, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.Publish(ctx, event)
}

// LogPublisher writes events to the structured log. Used when no broker is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher { return &LogPublisher{} }

func (LogPublisher) Publish(_ context.Context, event Event) error {
	utils.Info("event published", map[string]any{
		"event_id":   event.ID,
		"event_type": string(event.Type),
		"payload":    event.Payload,
	})
	return nil
}

func (LogPublisher) Close() error { return nil }

package models

import "time"

// AuctionStatus is the lifecycle state of an auction. The only transition is active -> closed.
type AuctionStatus string

const (
	AuctionActive AuctionStatus = "active"
	AuctionClosed AuctionStatus = "closed"
)

// AuctionKind records the auction format chosen by the administrator.
type AuctionKind string

const (
	KindStandard AuctionKind = "standard"
	KindDutch    AuctionKind = "dutch"
	KindSilent   AuctionKind = "silent"
)

// Valid reports whether k is one of the known auction kinds.
func (k AuctionKind) Valid() bool {
	switch k {
	case KindStandard, KindDutch, KindSilent:
		return true
	}
	return false
}

// Auction represents an item auction
type Auction struct {
	AuctionID       string        `json:"auction_id" gorm:"primaryKey;size:36"`
	ItemID          string        `json:"item_id" gorm:"size:64;not null;index"`
	Kind            AuctionKind   `json:"kind" gorm:"size:16;not null"`
	StartPrice      int64         `json:"start_price" gorm:"not null"`
	CurrentBid      int64         `json:"current_bid" gorm:"not null"`
	CurrentBidder   *string       `json:"current_bidder,omitempty" gorm:"size:64"`
	Winner          *string       `json:"winner,omitempty" gorm:"size:64"`
	Status          AuctionStatus `json:"status" gorm:"size:16;not null;index"`
	StartTime       time.Time     `json:"start_time" gorm:"not null"`
	EndTime         time.Time     `json:"end_time" gorm:"not null"`
	ExtendedEndTime *time.Time    `json:"extended_end_time,omitempty"`
	MinBidIncrement int64         `json:"min_bid_increment" gorm:"not null"`
	BidCount        int           `json:"bid_count" gorm:"not null;default:0"`
	ExtensionCount  int           `json:"extension_count" gorm:"not null;default:0"`
	ClosedAt        *time.Time    `json:"closed_at,omitempty"`
	Version         int64         `json:"-" gorm:"not null;default:0"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (Auction) TableName() string { return "auctions" }

// EffectiveEndTime is the extended end time when set, otherwise the original end time.
func (a Auction) EffectiveEndTime() time.Time {
	if a.ExtendedEndTime != nil {
		return *a.ExtendedEndTime
	}
	return a.EndTime
}

// MinimumNextBid is the smallest amount a new bid must offer.
func (a Auction) MinimumNextBid() int64 {
	return a.CurrentBid + a.MinBidIncrement
}

// IsActive reports whether the auction accepts bids at now.
func (a Auction) IsActive(now time.Time) bool {
	return a.Status == AuctionActive && now.Before(a.EffectiveEndTime())
}

// Bid represents a user's bid on an auction
type Bid struct {
	BidID     string    `json:"bid_id" gorm:"primaryKey;size:36"`
	AuctionID string    `json:"auction_id" gorm:"size:36;not null;index:idx_bids_auction_user"`
	UserID    string    `json:"user_id" gorm:"size:64;not null;index:idx_bids_auction_user;index"`
	Amount    int64     `json:"amount" gorm:"not null"`
	IsWinning bool      `json:"is_winning" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
}

func (Bid) TableName() string { return "bids" }

// CloseOutcome describes how an auction ended.
type CloseOutcome string

const (
	OutcomeWon    CloseOutcome = "won"
	OutcomeNoBids CloseOutcome = "no_bids"
)

// CloseResult is the settled result of a closed auction. It is derived from the
// stored auction so repeated closes return the same value.
type CloseResult struct {
	AuctionID  string        `json:"auction_id"`
	ItemID     string        `json:"item_id"`
	Status     AuctionStatus `json:"status"`
	Outcome    CloseOutcome  `json:"outcome"`
	WinnerID   *string       `json:"winner_id,omitempty"`
	WinningBid *int64        `json:"winning_bid,omitempty"`
}

// ResultOf builds the close result of a closed auction.
func ResultOf(a Auction) CloseResult {
	result := CloseResult{
		AuctionID: a.AuctionID,
		ItemID:    a.ItemID,
		Status:    a.Status,
		Outcome:   OutcomeNoBids,
	}
	if a.Winner != nil {
		winner := *a.Winner
		amount := a.CurrentBid
		result.WinnerID = &winner
		result.WinningBid = &amount
		result.Outcome = OutcomeWon
	}
	return result
}

// AuctionView is the read model returned by status queries.
type AuctionView struct {
	Auction          Auction   `json:"auction"`
	TopBids          []Bid     `json:"top_bids"`
	EffectiveEndTime time.Time `json:"effective_end_time"`
	SecondsRemaining int64     `json:"seconds_remaining"`
}

// SettlementStage names the settlement step that failed.
type SettlementStage string

const (
	StageDebit     SettlementStage = "debit"
	StageInventory SettlementStage = "inventory"
	StagePersist   SettlementStage = "persist"
)

// SettlementFailure flags a settlement attempt that could not complete. There is
// at most one record per auction, stage and attempt; a repeated failure
// overwrites it. These records are kept for manual reconciliation.
type SettlementFailure struct {
	FailureID string          `json:"failure_id" gorm:"primaryKey;size:36"`
	AuctionID string          `json:"auction_id" gorm:"size:36;not null;index"`
	UserID    string          `json:"user_id" gorm:"size:64;not null"`
	Amount    int64           `json:"amount" gorm:"not null"`
	Attempt   int             `json:"attempt" gorm:"not null"`
	Stage     SettlementStage `json:"stage" gorm:"size:16;not null"`
	Reason    string          `json:"reason" gorm:"type:text"`
	Refunded  bool            `json:"refunded" gorm:"not null;default:false"`
	CreatedAt time.Time       `json:"created_at"`
}

func (SettlementFailure) TableName() string { return "settlement_failures" }

// TransactionKind is the direction of a ledger entry.
type TransactionKind string

const (
	TransactionEarn  TransactionKind = "earn"
	TransactionSpend TransactionKind = "spend"
)

// Balance is a user's besitos account.
type Balance struct {
	UserID          string    `json:"user_id" gorm:"primaryKey;size:64"`
	Besitos         int64     `json:"besitos" gorm:"not null;default:0"`
	LifetimeBesitos int64     `json:"lifetime_besitos" gorm:"not null;default:0"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Balance) TableName() string { return "user_balances" }

// Transaction is an append-only ledger entry. Amount is signed: positive for
// earn, negative for spend, so a balance equals the sum of its entries.
type Transaction struct {
	TransactionID string          `json:"transaction_id" gorm:"primaryKey;size:36"`
	UserID        string          `json:"user_id" gorm:"size:64;not null;index"`
	Amount        int64           `json:"amount" gorm:"not null"`
	Kind          TransactionKind `json:"kind" gorm:"size:8;not null"`
	Source        string          `json:"source" gorm:"size:64;not null"`
	Reference     *string         `json:"reference,omitempty" gorm:"size:128;uniqueIndex"`
	Metadata      map[string]any  `json:"metadata,omitempty" gorm:"serializer:json;type:text"`
	BalanceAfter  int64           `json:"balance_after" gorm:"not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null;index"`
}

func (Transaction) TableName() string { return "transactions" }

// InventoryGrant records items granted to a user. Reference makes a grant idempotent.
type InventoryGrant struct {
	GrantID   string    `json:"grant_id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"size:64;not null;index:idx_inventory_user_item"`
	ItemID    string    `json:"item_id" gorm:"size:64;not null;index:idx_inventory_user_item"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	Source    string    `json:"source" gorm:"size:64;not null"`
	Reference string    `json:"reference" gorm:"size:128;not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}

func (InventoryGrant) TableName() string { return "inventory_grants" }

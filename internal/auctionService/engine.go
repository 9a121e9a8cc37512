package auction

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/config"
	"auction-engine/internal/events"
	"auction-engine/internal/ledger"
	"auction-engine/internal/lock"
	"auction-engine/internal/metrics"
	"auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("auction-engine/internal/auctionService")

const (
	SourceSettlement = "auction_settlement"
	SourceRefund     = "auction_refund"
	SourceAuctionWin = "auction_win"

	defaultHistoryLimit = 10
)

// Ledger is the currency account system used for funds checks and settlement.
type Ledger interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	Grant(ctx context.Context, entry ledger.Entry) (models.Transaction, error)
	Spend(ctx context.Context, entry ledger.Entry) (models.Transaction, error)
	HasReference(ctx context.Context, reference string) (bool, error)
}

// Inventory grants the auctioned item to the winner.
type Inventory interface {
	GrantItem(ctx context.Context, userID, itemID, source, reference string) error
}

// OutbidNotifier tells a user they lost the lead on an auction.
type OutbidNotifier interface {
	NotifyOutbid(ctx context.Context, userID, auctionID string) error
}

// BidLockName is the lock serializing bids on one auction.
func BidLockName(auctionID string) string { return "auction_bid:" + auctionID }

// CloseLockName is the lock serializing closes of one auction.
func CloseLockName(auctionID string) string { return "auction_close:" + auctionID }

// Config holds the bidding rules and lock bounds.
type Config struct {
	BidLock            lock.Options
	CloseLock          lock.Options
	AntiSnipeWindow    time.Duration
	AntiSnipeExtension time.Duration
	// MaxExtensions caps anti-sniping extensions per auction. 0 means unlimited.
	MaxExtensions  int
	MinBidInterval time.Duration
	NotifyTimeout  time.Duration
	TopBids        int
}

func DefaultConfig() Config {
	return Config{
		BidLock:            lock.Options{TTL: 5 * time.Second, MaxRetries: 10, RetryDelay: 100 * time.Millisecond},
		CloseLock:          lock.Options{TTL: 10 * time.Second, MaxRetries: 10, RetryDelay: 100 * time.Millisecond},
		AntiSnipeWindow:    60 * time.Second,
		AntiSnipeExtension: 60 * time.Second,
		MinBidInterval:     5 * time.Second,
		NotifyTimeout:      3 * time.Second,
		TopBids:            5,
	}
}

// NewConfig builds the engine configuration from the application configuration.
func NewConfig(lockCfg config.LockConfig, auctionCfg config.AuctionConfig) Config {
	return Config{
		BidLock:            lock.Options(lockCfg.Bid),
		CloseLock:          lock.Options(lockCfg.Close),
		AntiSnipeWindow:    auctionCfg.AntiSnipeWindow,
		AntiSnipeExtension: auctionCfg.AntiSnipeExtension,
		MaxExtensions:      auctionCfg.MaxExtensions,
		MinBidInterval:     auctionCfg.MinBidInterval,
		NotifyTimeout:      auctionCfg.NotifyTimeout,
		TopBids:            auctionCfg.TopBids,
	}
}

// Dependencies are the collaborators of the engine. Notifier, Publisher and
// Metrics are optional. Ledger must not publish besitos events itself: the
// engine publishes them once the close lock is released.
type Dependencies struct {
	Repo      repository.AuctionDB
	Locker    lock.Locker
	Ledger    Ledger
	Inventory Inventory
	Notifier  OutbidNotifier
	Publisher events.Publisher
	Metrics   *metrics.Metrics
}

type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// CreateAuctionRequest describes a new auction.
type CreateAuctionRequest struct {
	ItemID          string
	StartPrice      int64
	DurationMinutes int
	Kind            models.AuctionKind
	MinIncrement    int64
}

// Engine owns the auction and bid lifecycle.
type Engine struct {
	repo      repository.AuctionDB
	locker    lock.Locker
	ledger    Ledger
	inventory Inventory
	notifier  OutbidNotifier
	publisher events.Publisher
	metrics   *metrics.Metrics
	cfg       Config
	now       func() time.Time

	// tracks outbid notifications still in flight
	wg sync.WaitGroup
}

// NewEngine creates a new Engine instance
func NewEngine(deps Dependencies, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		repo:      deps.Repo,
		locker:    deps.Locker,
		ledger:    deps.Ledger,
		inventory: deps.Inventory,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Wait blocks until in-flight outbid notifications have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// CreateAuction opens a new ACTIVE auction.
func (e *Engine) CreateAuction(ctx context.Context, req CreateAuctionRequest) (models.Auction, error) {
	if req.Kind == "" {
		req.Kind = models.KindStandard
	}
	if err := validateCreate(req); err != nil {
		return models.Auction{}, err
	}

	now := e.now()
	auction := models.Auction{
		AuctionID:       utils.GenerateID(),
		ItemID:          req.ItemID,
		Kind:            req.Kind,
		StartPrice:      req.StartPrice,
		CurrentBid:      req.StartPrice,
		Status:          models.AuctionActive,
		StartTime:       now,
		EndTime:         now.Add(time.Duration(req.DurationMinutes) * time.Minute),
		MinBidIncrement: req.MinIncrement,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.repo.CreateAuction(ctx, auction); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction for item %s: %w", req.ItemID, err)
	}

	utils.Info("auction created", map[string]any{
		"auction_id":  auction.AuctionID,
		"item_id":     auction.ItemID,
		"kind":        string(auction.Kind),
		"start_price": auction.StartPrice,
		"end_time":    auction.EndTime,
	})
	events.Emit(ctx, e.publisher, events.AuctionStarted(auction))
	return auction, nil
}

func validateCreate(req CreateAuctionRequest) error {
	if req.ItemID == "" {
		return fmt.Errorf("service: %w - missing item id", auctionerrors.ErrInvalidAuction)
	}
	if req.StartPrice < 0 {
		return fmt.Errorf("service: %w - negative start price", auctionerrors.ErrInvalidAuction)
	}
	if req.DurationMinutes <= 0 {
		return fmt.Errorf("service: %w - duration must be positive", auctionerrors.ErrInvalidAuction)
	}
	if req.MinIncrement <= 0 {
		return fmt.Errorf("service: %w - minimum increment must be positive", auctionerrors.ErrInvalidAuction)
	}
	if !req.Kind.Valid() {
		return fmt.Errorf("service: %w - unknown kind %q", auctionerrors.ErrInvalidAuction, req.Kind)
	}
	return nil
}

// PlaceBid validates and records a bid. Funds are checked but not reserved;
// the winner is debited only at settlement.
func (e *Engine) PlaceBid(ctx context.Context, userID, auctionID string, amount int64) (bid models.Bid, err error) {
	ctx, span := tracer.Start(ctx, "Engine.PlaceBid", trace.WithAttributes(
		attribute.String("auction.id", auctionID),
		attribute.String("auction.user_id", userID),
		attribute.Int64("auction.amount", amount),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			utils.Warn("bid rejected", map[string]any{
				"auction_id": auctionID,
				"user_id":    userID,
				"amount":     amount,
				"error":      err.Error(),
			})
			e.metrics.RecordBid(string(auctionerrors.KindOf(err)))
		} else {
			e.metrics.RecordBid("accepted")
		}
		span.End()
	}()

	if userID == "" || auctionID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - missing auctionID or userID", auctionerrors.ErrInvalidBid)
	}
	if amount <= 0 {
		return models.Bid{}, fmt.Errorf("service: %w - non-positive bid amount", auctionerrors.ErrInvalidBid)
	}

	// preconditions outside the lock
	auction, err := e.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}
	if err := e.checkBid(ctx, auction, userID, amount, e.now()); err != nil {
		return models.Bid{}, err
	}

	balance, err := e.ledger.GetBalance(ctx, userID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to read balance of user %s: %w", userID, err)
	}
	if balance < amount {
		return models.Bid{}, fmt.Errorf("service: %w - balance %d, bid %d", auctionerrors.ErrInsufficientFunds, balance, amount)
	}

	var (
		previousBidder *string
		extended       bool
	)
	err = lock.WithLock(ctx, e.locker, BidLockName(auctionID), e.cfg.BidLock, func(ctx context.Context) error {
		current, err := e.repo.GetAuction(ctx, auctionID)
		if err != nil {
			return fmt.Errorf("service: failed to reload auction %s: %w", auctionID, err)
		}
		now := e.now()
		// current_bid may have advanced since the first check
		if err := e.checkBid(ctx, current, userID, amount, now); err != nil {
			return err
		}

		bid = models.Bid{
			BidID:     utils.GenerateID(),
			AuctionID: auctionID,
			UserID:    userID,
			Amount:    amount,
			IsWinning: true,
			CreatedAt: now,
		}

		updated := current
		bidder := userID
		updated.CurrentBid = amount
		updated.CurrentBidder = &bidder
		updated.BidCount++
		updated.UpdatedAt = now
		if e.shouldExtend(current, now) {
			deadline := now.Add(e.cfg.AntiSnipeExtension)
			updated.ExtendedEndTime = &deadline
			updated.ExtensionCount++
			extended = true
		}

		if err := e.repo.RecordBid(ctx, bid, updated, current.Version); err != nil {
			return fmt.Errorf("service: failed to record bid on auction %s by user %s: %w", auctionID, userID, err)
		}
		previousBidder = current.CurrentBidder
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			e.metrics.RecordLockFailure("bid")
			return models.Bid{}, fmt.Errorf("service: %w - bid lock for auction %s", auctionerrors.ErrLockUnavailable, auctionID)
		}
		return models.Bid{}, err
	}

	span.SetAttributes(attribute.Bool("auction.extended", extended))
	utils.Info("bid placed", map[string]any{
		"auction_id": auctionID,
		"bid_id":     bid.BidID,
		"user_id":    userID,
		"amount":     amount,
		"extended":   extended,
	})
	events.Emit(ctx, e.publisher, events.BidPlaced(bid, amount))
	if previousBidder != nil && *previousBidder != userID {
		e.notifyOutbid(*previousBidder, auctionID)
	}
	return bid, nil
}

// checkBid applies the acceptance rules to a snapshot of the auction.
func (e *Engine) checkBid(ctx context.Context, auction models.Auction, userID string, amount int64, now time.Time) error {
	if auction.Status != models.AuctionActive {
		return fmt.Errorf("service: %w - auction %s is %s", auctionerrors.ErrAuctionNotActive, auction.AuctionID, auction.Status)
	}
	if !now.Before(auction.EffectiveEndTime()) {
		return fmt.Errorf("service: %w - auction %s ended at %s", auctionerrors.ErrAuctionNotActive,
			auction.AuctionID, auction.EffectiveEndTime().Format(time.RFC3339))
	}
	if minimum := auction.MinimumNextBid(); amount < minimum {
		return fmt.Errorf("service: %w - minimum bid is %d", auctionerrors.ErrBidTooLow, minimum)
	}
	return e.checkRateLimit(ctx, auction.AuctionID, userID, now)
}

func (e *Engine) checkRateLimit(ctx context.Context, auctionID, userID string, now time.Time) error {
	if e.cfg.MinBidInterval <= 0 {
		return nil
	}
	last, err := e.repo.GetLastUserBid(ctx, auctionID, userID)
	if errors.Is(err, auctionerrors.ErrNoBids) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("service: failed to check last bid of user %s: %w", userID, err)
	}
	if wait := e.cfg.MinBidInterval - now.Sub(last.CreatedAt); wait > 0 {
		return fmt.Errorf("service: %w - retry in %s", auctionerrors.ErrRateLimited, wait.Round(time.Millisecond))
	}
	return nil
}

func (e *Engine) shouldExtend(auction models.Auction, now time.Time) bool {
	if e.cfg.AntiSnipeExtension <= 0 {
		return false
	}
	if e.cfg.MaxExtensions > 0 && auction.ExtensionCount >= e.cfg.MaxExtensions {
		return false
	}
	return auction.EffectiveEndTime().Sub(now) <= e.cfg.AntiSnipeWindow
}

// notifyOutbid runs in the background, bounded by NotifyTimeout. Failures are logged only.
func (e *Engine) notifyOutbid(userID, auctionID string) {
	if e.notifier == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		timeout := e.cfg.NotifyTimeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := e.notifier.NotifyOutbid(ctx, userID, auctionID); err != nil {
			utils.Warn("outbid notification failed", map[string]any{
				"auction_id": auctionID,
				"user_id":    userID,
				"error":      err.Error(),
			})
		}
	}()
}

// CloseAuction settles an expired auction. Closing a closed auction returns
// the stored result without side effects.
func (e *Engine) CloseAuction(ctx context.Context, auctionID string) (result models.CloseResult, err error) {
	ctx, span := tracer.Start(ctx, "Engine.CloseAuction", trace.WithAttributes(
		attribute.String("auction.id", auctionID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if auctionID == "" {
		return models.CloseResult{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidAuction)
	}

	auction, err := e.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.CloseResult{}, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}
	if auction.Status == models.AuctionClosed {
		return models.ResultOf(auction), nil
	}
	if e.now().Before(auction.EffectiveEndTime()) {
		return models.CloseResult{}, fmt.Errorf("service: %w - auction %s ends at %s",
			auctionerrors.ErrAuctionStillActive, auctionID, auction.EffectiveEndTime().Format(time.RFC3339))
	}

	var (
		closed  models.Auction
		settled bool
		pending outbox
	)
	err = lock.WithLock(ctx, e.locker, CloseLockName(auctionID), e.cfg.CloseLock, func(ctx context.Context) error {
		snapshot, err := e.seal(ctx, auctionID)
		if err != nil {
			return err
		}
		if snapshot.Status == models.AuctionClosed {
			closed = snapshot
			return nil
		}
		closed, err = e.settle(ctx, snapshot, &pending)
		if err != nil {
			return err
		}
		settled = true
		return nil
	})
	// committed ledger writes are published even when settlement failed
	for _, event := range pending {
		events.Emit(ctx, e.publisher, event)
	}
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			e.metrics.RecordLockFailure("close")
			return models.CloseResult{}, fmt.Errorf("service: %w - close lock for auction %s", auctionerrors.ErrLockUnavailable, auctionID)
		}
		if errors.Is(err, auctionerrors.ErrSettlementFailed) {
			e.metrics.RecordSettlement("failed")
		}
		return models.CloseResult{}, err
	}

	result = models.ResultOf(closed)
	if !settled {
		return result, nil
	}

	e.metrics.RecordSettlement(string(result.Outcome))
	fields := map[string]any{"auction_id": auctionID, "outcome": string(result.Outcome)}
	if result.WinnerID != nil {
		fields["winner_id"] = *result.WinnerID
		fields["winning_bid"] = *result.WinningBid
		events.Emit(ctx, e.publisher, events.AuctionWon(closed))
	} else {
		events.Emit(ctx, e.publisher, events.AuctionNoBids(closed))
	}
	utils.Info("auction closed", fields)
	return result, nil
}

// seal reads the auction under its bid lock and confirms it has expired. Once
// expiry is observed under the bid lock no later bid can be accepted, so the
// snapshot is final.
func (e *Engine) seal(ctx context.Context, auctionID string) (models.Auction, error) {
	var snapshot models.Auction
	err := lock.WithLock(ctx, e.locker, BidLockName(auctionID), e.cfg.BidLock, func(ctx context.Context) error {
		current, err := e.repo.GetAuction(ctx, auctionID)
		if err != nil {
			return fmt.Errorf("service: failed to reload auction %s: %w", auctionID, err)
		}
		if current.Status == models.AuctionActive && e.now().Before(current.EffectiveEndTime()) {
			return fmt.Errorf("service: %w - auction %s was extended to %s", auctionerrors.ErrAuctionStillActive,
				auctionID, current.EffectiveEndTime().Format(time.RFC3339))
		}
		snapshot = current
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			e.metrics.RecordLockFailure("bid")
		}
		return models.Auction{}, err
	}
	return snapshot, nil
}

// outbox collects events of ledger writes made under the close lock.
type outbox []events.Event

func (o *outbox) add(event events.Event) { *o = append(*o, event) }

func settlementReference(auctionID string, attempt int) string {
	return SourceSettlement + ":" + auctionID + ":" + strconv.Itoa(attempt)
}

func refundReference(auctionID string, attempt int) string {
	return SourceRefund + ":" + auctionID + ":" + strconv.Itoa(attempt)
}

func failureID(auctionID string, stage models.SettlementStage, attempt int) string {
	return utils.StableID(auctionID, string(stage), strconv.Itoa(attempt))
}

// settlementAttempt returns the first attempt whose debit was never refunded.
// A debit that still stands is replayed by reference instead of charged again.
func (e *Engine) settlementAttempt(ctx context.Context, auctionID string) (int, error) {
	attempt := 0
	for {
		refunded, err := e.ledger.HasReference(ctx, refundReference(auctionID, attempt))
		if err != nil {
			return 0, err
		}
		if !refunded {
			return attempt, nil
		}
		attempt++
	}
}

// settle debits the winner, grants the item and stores the closed auction.
// An inventory failure refunds the debit, records a SettlementFailure and
// leaves the auction ACTIVE for a later attempt.
func (e *Engine) settle(ctx context.Context, snapshot models.Auction, pending *outbox) (models.Auction, error) {
	now := e.now()
	closed := snapshot
	closed.Status = models.AuctionClosed
	closed.ClosedAt = &now
	closed.UpdatedAt = now

	if snapshot.CurrentBidder == nil {
		if err := e.repo.CloseAuction(ctx, closed, snapshot.Version); err != nil {
			return e.resolvePersistConflict(ctx, snapshot, 0, err)
		}
		return closed, nil
	}

	winner := *snapshot.CurrentBidder
	amount := snapshot.CurrentBid
	closed.Winner = &winner

	attempt, err := e.settlementAttempt(ctx, snapshot.AuctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to number settlement of auction %s: %w", snapshot.AuctionID, err)
	}
	reference := settlementReference(snapshot.AuctionID, attempt)
	metadata := map[string]any{"auction_id": snapshot.AuctionID, "item_id": snapshot.ItemID, "attempt": attempt}

	debit, err := e.ledger.Spend(ctx, ledger.Entry{
		UserID:    winner,
		Amount:    amount,
		Source:    SourceSettlement,
		Reference: reference,
		Metadata:  metadata,
	})
	if err != nil {
		// one row per auction and attempt, however many sweeps retry it
		e.recordFailure(ctx, models.SettlementFailure{
			FailureID: failureID(snapshot.AuctionID, models.StageDebit, attempt),
			AuctionID: snapshot.AuctionID,
			UserID:    winner,
			Amount:    amount,
			Attempt:   attempt,
			Stage:     models.StageDebit,
			Reason:    err.Error(),
			CreatedAt: e.now(),
		})
		return models.Auction{}, fmt.Errorf("service: %w - debit of %s: %w", auctionerrors.ErrSettlementFailed, winner, err)
	}
	pending.add(events.BesitosSpent(debit))

	if err := e.inventory.GrantItem(ctx, winner, snapshot.ItemID, SourceAuctionWin, reference); err != nil {
		return models.Auction{}, e.compensate(ctx, snapshot, attempt, pending, err)
	}

	if err := e.repo.CloseAuction(ctx, closed, snapshot.Version); err != nil {
		return e.resolvePersistConflict(ctx, snapshot, attempt, err)
	}
	return closed, nil
}

// compensate credits the debited amount back and records the failure.
func (e *Engine) compensate(ctx context.Context, snapshot models.Auction, attempt int, pending *outbox, cause error) error {
	winner := *snapshot.CurrentBidder
	refund, refundErr := e.ledger.Grant(ctx, ledger.Entry{
		UserID:    winner,
		Amount:    snapshot.CurrentBid,
		Source:    SourceRefund,
		Reference: refundReference(snapshot.AuctionID, attempt),
		Metadata:  map[string]any{"auction_id": snapshot.AuctionID, "item_id": snapshot.ItemID, "attempt": attempt},
	})

	reason := cause.Error()
	if refundErr != nil {
		reason = fmt.Sprintf("%s; refund failed: %s", reason, refundErr.Error())
	} else {
		pending.add(events.BesitosEarned(refund))
	}
	failure := models.SettlementFailure{
		FailureID: failureID(snapshot.AuctionID, models.StageInventory, attempt),
		AuctionID: snapshot.AuctionID,
		UserID:    winner,
		Amount:    snapshot.CurrentBid,
		Attempt:   attempt,
		Stage:     models.StageInventory,
		Reason:    reason,
		Refunded:  refundErr == nil,
		CreatedAt: e.now(),
	}
	e.recordFailure(ctx, failure)

	return fmt.Errorf("service: %w - item grant for auction %s: %w", auctionerrors.ErrSettlementFailed, snapshot.AuctionID, cause)
}

// resolvePersistConflict handles a failed write of the closed auction. If
// another closer already stored the same outcome, that outcome is returned.
func (e *Engine) resolvePersistConflict(ctx context.Context, snapshot models.Auction, attempt int, cause error) (models.Auction, error) {
	stored, err := e.repo.GetAuction(ctx, snapshot.AuctionID)
	if err == nil && stored.Status == models.AuctionClosed && sameWinner(stored.Winner, snapshot.CurrentBidder) {
		return stored, nil
	}

	if snapshot.CurrentBidder != nil {
		// the debit and grant stand; the next attempt replays them by reference
		e.recordFailure(ctx, models.SettlementFailure{
			FailureID: failureID(snapshot.AuctionID, models.StagePersist, attempt),
			AuctionID: snapshot.AuctionID,
			UserID:    *snapshot.CurrentBidder,
			Amount:    snapshot.CurrentBid,
			Attempt:   attempt,
			Stage:     models.StagePersist,
			Reason:    cause.Error(),
			CreatedAt: e.now(),
		})
	}
	return models.Auction{}, fmt.Errorf("service: %w - persist auction %s: %w", auctionerrors.ErrSettlementFailed, snapshot.AuctionID, cause)
}

func (e *Engine) recordFailure(ctx context.Context, failure models.SettlementFailure) {
	fields := map[string]any{
		"auction_id": failure.AuctionID,
		"user_id":    failure.UserID,
		"amount":     failure.Amount,
		"stage":      string(failure.Stage),
		"attempt":    failure.Attempt,
		"refunded":   failure.Refunded,
		"reason":     failure.Reason,
	}
	if err := e.repo.RecordSettlementFailure(context.WithoutCancel(ctx), failure); err != nil {
		fields["record_error"] = err.Error()
	}
	utils.Error("auction settlement failed", fields)
}

func sameWinner(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// GetActiveAuctions returns auctions that still accept bids.
func (e *Engine) GetActiveAuctions(ctx context.Context) ([]models.Auction, error) {
	auctions, err := e.repo.ListAuctions(ctx, models.AuctionActive)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list active auctions: %w", err)
	}
	now := e.now()
	active := make([]models.Auction, 0, len(auctions))
	for _, a := range auctions {
		if a.IsActive(now) {
			active = append(active, a)
		}
	}
	return active, nil
}

// ListExpired returns ACTIVE auctions whose effective end time has passed.
func (e *Engine) ListExpired(ctx context.Context) ([]models.Auction, error) {
	auctions, err := e.repo.ListAuctions(ctx, models.AuctionActive)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list active auctions: %w", err)
	}
	now := e.now()
	expired := make([]models.Auction, 0)
	for _, a := range auctions {
		if !a.IsActive(now) {
			expired = append(expired, a)
		}
	}
	return expired, nil
}

// GetStatus returns the auction with its top bids and remaining time.
func (e *Engine) GetStatus(ctx context.Context, auctionID string) (models.AuctionView, error) {
	if auctionID == "" {
		return models.AuctionView{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidAuction)
	}

	auction, err := e.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.AuctionView{}, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}
	topBids, err := e.repo.GetTopBids(ctx, auctionID, e.cfg.TopBids)
	if err != nil {
		return models.AuctionView{}, fmt.Errorf("service: failed to load bids for auction %s: %w", auctionID, err)
	}

	view := models.AuctionView{
		Auction:          auction,
		TopBids:          topBids,
		EffectiveEndTime: auction.EffectiveEndTime(),
	}
	if auction.Status == models.AuctionActive {
		if remaining := auction.EffectiveEndTime().Sub(e.now()); remaining > 0 {
			view.SecondsRemaining = int64(remaining / time.Second)
		}
	}
	return view, nil
}

// GetUserBidHistory returns a user's most recent bids across auctions.
func (e *Engine) GetUserBidHistory(ctx context.Context, userID string, limit int) ([]models.Bid, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", auctionerrors.ErrInvalidBid)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	bids, err := e.repo.GetBidsByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for user %s: %w", userID, err)
	}
	return bids, nil
}

// ListSettlementFailures returns settlement failures awaiting reconciliation.
func (e *Engine) ListSettlementFailures(ctx context.Context, limit int) ([]models.SettlementFailure, error) {
	failures, err := e.repo.ListSettlementFailures(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list settlement failures: %w", err)
	}
	return failures, nil
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/events"
	"auction-engine/internal/metrics"
	"auction-engine/internal/models"
	"auction-engine/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("auction-engine/internal/ledger")

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// Entry describes a single grant or spend.
type Entry struct {
	UserID string
	Amount int64
	// Source is the earning source for grants and the purpose for spends.
	Source string
	// Reference, when set, makes the entry idempotent: replaying it returns
	// the stored transaction without touching the balance.
	Reference string
	Metadata  map[string]any
}

// Reconciliation compares a balance with the sum of its transaction log.
type Reconciliation struct {
	UserID     string `json:"user_id"`
	Besitos    int64  `json:"besitos"`
	LogTotal   int64  `json:"log_total"`
	Consistent bool   `json:"consistent"`
}

// Ledger is the only writer of balances and transactions.
type Ledger struct {
	db        *gorm.DB
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(db *gorm.DB, publisher events.Publisher, m *metrics.Metrics) *Ledger {
	return &Ledger{
		db:        db,
		publisher: publisher,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithoutEvents returns a Ledger over the same store that publishes nothing.
// Callers that hold a lock across ledger writes use it and emit the besitos
// events themselves once the lock is released.
func (l *Ledger) WithoutEvents() *Ledger {
	quiet := *l
	quiet.publisher = nil
	return &quiet
}

// Grant credits besitos and lifetime besitos and appends an earn transaction.
func (l *Ledger) Grant(ctx context.Context, e Entry) (models.Transaction, error) {
	return l.apply(ctx, models.TransactionEarn, e)
}

// Spend debits besitos and appends a spend transaction. The balance is compared
// only after the row lock is held; an insufficient balance changes nothing.
func (l *Ledger) Spend(ctx context.Context, e Entry) (models.Transaction, error) {
	return l.apply(ctx, models.TransactionSpend, e)
}

func (l *Ledger) apply(ctx context.Context, kind models.TransactionKind, e Entry) (models.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Ledger."+string(kind))
	defer span.End()
	span.SetAttributes(
		attribute.String("ledger.user_id", e.UserID),
		attribute.Int64("ledger.amount", e.Amount),
		attribute.String("ledger.source", e.Source),
	)

	if err := validate(e); err != nil {
		l.metrics.RecordLedgerOperation(string(kind), "invalid")
		return models.Transaction{}, err
	}

	var (
		txn      models.Transaction
		replayed bool
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := l.now()

		// make sure the row exists so it can be locked
		seed := models.Balance{UserID: e.UserID, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return fmt.Errorf("ledger: ensure balance: %w", err)
		}

		var balance models.Balance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", e.UserID).
			First(&balance).Error; err != nil {
			return fmt.Errorf("ledger: lock balance: %w", err)
		}

		if e.Reference != "" {
			existing, found, err := findByReference(tx, e.Reference)
			if err != nil {
				return err
			}
			if found {
				if existing.UserID != e.UserID || existing.Kind != kind || abs(existing.Amount) != e.Amount {
					return fmt.Errorf("ledger: %w - %s", auctionerrors.ErrReferenceConflict, e.Reference)
				}
				txn = existing
				replayed = true
				return nil
			}
		}

		delta := e.Amount
		updates := map[string]any{"updated_at": now}
		if kind == models.TransactionSpend {
			if balance.Besitos < e.Amount {
				return fmt.Errorf("ledger: %w - balance %d, requested %d",
					auctionerrors.ErrInsufficientFunds, balance.Besitos, e.Amount)
			}
			delta = -e.Amount
		} else {
			updates["lifetime_besitos"] = balance.LifetimeBesitos + e.Amount
		}
		updates["besitos"] = balance.Besitos + delta

		if err := tx.Model(&models.Balance{}).
			Where("user_id = ?", e.UserID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("ledger: update balance: %w", err)
		}

		txn = models.Transaction{
			TransactionID: utils.GenerateID(),
			UserID:        e.UserID,
			Amount:        delta,
			Kind:          kind,
			Source:        e.Source,
			Metadata:      e.Metadata,
			BalanceAfter:  balance.Besitos + delta,
			CreatedAt:     now,
		}
		if e.Reference != "" {
			ref := e.Reference
			txn.Reference = &ref
		}
		if err := tx.Create(&txn).Error; err != nil {
			return fmt.Errorf("ledger: append transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.metrics.RecordLedgerOperation(string(kind), string(auctionerrors.KindOf(err)))
		utils.Warn("ledger operation rejected", map[string]any{
			"user_id": e.UserID,
			"kind":    string(kind),
			"amount":  e.Amount,
			"source":  e.Source,
			"error":   err.Error(),
		})
		return models.Transaction{}, err
	}

	if replayed {
		span.SetAttributes(attribute.Bool("ledger.replayed", true))
		l.metrics.RecordLedgerOperation(string(kind), "replayed")
		return txn, nil
	}

	l.metrics.RecordLedgerOperation(string(kind), "ok")
	if kind == models.TransactionEarn {
		events.Emit(ctx, l.publisher, events.BesitosEarned(txn))
	} else {
		events.Emit(ctx, l.publisher, events.BesitosSpent(txn))
	}
	return txn, nil
}

// HasReference reports whether a transaction with reference exists.
func (l *Ledger) HasReference(ctx context.Context, reference string) (bool, error) {
	_, found, err := findByReference(l.db.WithContext(ctx), reference)
	return found, err
}

// GetBalance returns the spendable besitos of a user. Unknown users have 0.
func (l *Ledger) GetBalance(ctx context.Context, userID string) (int64, error) {
	account, err := l.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.Besitos, nil
}

// GetLifetime returns the total besitos a user has ever earned.
func (l *Ledger) GetLifetime(ctx context.Context, userID string) (int64, error) {
	account, err := l.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.LifetimeBesitos, nil
}

// GetAccount returns the balance row of a user, or a zero balance if none exists yet.
func (l *Ledger) GetAccount(ctx context.Context, userID string) (models.Balance, error) {
	var balance models.Balance
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Balance{UserID: userID}, nil
	}
	if err != nil {
		return models.Balance{}, fmt.Errorf("ledger: get balance: %w", err)
	}
	return balance, nil
}

// GetHistory returns the most recent transactions of a user, newest first.
func (l *Ledger) GetHistory(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var txns []models.Transaction
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("transaction_id DESC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("ledger: get history: %w", err)
	}
	return txns, nil
}

// Reconcile checks that the stored balance equals the sum of the user's transactions.
func (l *Ledger) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	account, err := l.GetAccount(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}

	var total int64
	err = l.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return Reconciliation{}, fmt.Errorf("ledger: sum transactions: %w", err)
	}

	result := Reconciliation{
		UserID:     userID,
		Besitos:    account.Besitos,
		LogTotal:   total,
		Consistent: account.Besitos == total,
	}
	if !result.Consistent {
		utils.Error("ledger balance does not match transaction log", map[string]any{
			"user_id":   userID,
			"besitos":   account.Besitos,
			"log_total": total,
		})
	}
	return result, nil
}

func validate(e Entry) error {
	if e.UserID == "" {
		return fmt.Errorf("ledger: %w - user id is required", auctionerrors.ErrInvalidEntry)
	}
	if e.Amount <= 0 {
		return fmt.Errorf("ledger: %w - amount must be positive, got %d", auctionerrors.ErrInvalidAmount, e.Amount)
	}
	if e.Source == "" {
		return fmt.Errorf("ledger: %w - source is required", auctionerrors.ErrInvalidEntry)
	}
	return nil
}

func findByReference(tx *gorm.DB, reference string) (models.Transaction, bool, error) {
	var existing models.Transaction
	err := tx.Where("reference = ?", reference).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Transaction{}, false, nil
	}
	if err != nil {
		return models.Transaction{}, false, fmt.Errorf("ledger: find reference: %w", err)
	}
	return existing, true, nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/models"
	"auction-engine/utils"

	"gorm.io/gorm"
)

// Store grants items to users. Each grant carries a reference that makes it
// idempotent, so a retried settlement never grants the same item twice.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// GrantItem gives one unit of itemID to userID. Replaying a reference is a no-op.
func (s *Store) GrantItem(ctx context.Context, userID, itemID, source, reference string) error {
	if userID == "" || itemID == "" || reference == "" {
		return fmt.Errorf("inventory: user, item and reference are required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.InventoryGrant
		err := tx.Where("reference = ?", reference).First(&existing).Error
		if err == nil {
			if existing.UserID != userID || existing.ItemID != itemID {
				return fmt.Errorf("inventory: reference %s already granted %s to %s", reference, existing.ItemID, existing.UserID)
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("inventory: find grant %s: %w", reference, err)
		}

		grant := models.InventoryGrant{
			GrantID:   utils.GenerateID(),
			UserID:    userID,
			ItemID:    itemID,
			Quantity:  1,
			Source:    source,
			Reference: reference,
			CreatedAt: s.now(),
		}
		if err := tx.Create(&grant).Error; err != nil {
			return fmt.Errorf("inventory: grant %s to %s: %w", itemID, userID, err)
		}

		utils.Info("item granted", map[string]any{
			"user_id":   userID,
			"item_id":   itemID,
			"source":    source,
			"reference": reference,
		})
		return nil
	})
}

// Quantity returns how many units of itemID userID holds.
func (s *Store) Quantity(ctx context.Context, userID, itemID string) (int, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.InventoryGrant{}).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("inventory: quantity of %s for %s: %w", itemID, userID, err)
	}
	return int(total), nil
}

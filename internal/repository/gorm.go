package repository

import (
	"context"
	"errors"
	"fmt"

	"auction-engine/internal/auctionerrors"
	model "auction-engine/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepo is the relational implementation of AuctionDB
type GormRepo struct {
	db *gorm.DB
}

// NewGormRepo creates a repository on an already migrated database
func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

func (r *GormRepo) CreateAuction(ctx context.Context, auction model.Auction) error {
	if err := r.db.WithContext(ctx).Create(&auction).Error; err != nil {
		return fmt.Errorf("create auction %s: %w", auction.AuctionID, err)
	}
	return nil
}

func (r *GormRepo) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	var auction model.Auction
	err := r.db.WithContext(ctx).Where("auction_id = ?", auctionID).First(&auction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

func (r *GormRepo) ListAuctions(ctx context.Context, status model.AuctionStatus) ([]model.Auction, error) {
	query := r.db.WithContext(ctx).Order("end_time ASC").Order("auction_id ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var auctions []model.Auction
	if err := query.Find(&auctions).Error; err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	return auctions, nil
}

func (r *GormRepo) RecordBid(ctx context.Context, bid model.Bid, updated model.Auction, expectedVersion int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casAuction(tx, updated, expectedVersion); err != nil {
			return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, err)
		}

		if err := tx.Model(&model.Bid{}).
			Where("auction_id = ? AND is_winning = ?", bid.AuctionID, true).
			Update("is_winning", false).Error; err != nil {
			return fmt.Errorf("record bid for auction %s: clear winning: %w", bid.AuctionID, err)
		}

		if err := tx.Create(&bid).Error; err != nil {
			return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, err)
		}
		return nil
	})
}

func (r *GormRepo) CloseAuction(ctx context.Context, updated model.Auction, expectedVersion int64) error {
	if err := casAuction(r.db.WithContext(ctx), updated, expectedVersion); err != nil {
		return fmt.Errorf("close auction %s: %w", updated.AuctionID, err)
	}
	return nil
}

// casAuction writes the mutable columns of updated only if the stored version matches.
func casAuction(db *gorm.DB, updated model.Auction, expectedVersion int64) error {
	result := db.Model(&model.Auction{}).
		Where("auction_id = ? AND version = ?", updated.AuctionID, expectedVersion).
		Updates(map[string]any{
			"current_bid":       updated.CurrentBid,
			"current_bidder":    updated.CurrentBidder,
			"winner":            updated.Winner,
			"status":            updated.Status,
			"extended_end_time": updated.ExtendedEndTime,
			"bid_count":         updated.BidCount,
			"extension_count":   updated.ExtensionCount,
			"closed_at":         updated.ClosedAt,
			"version":           expectedVersion + 1,
			"updated_at":        updated.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&model.Auction{}).Where("auction_id = ?", updated.AuctionID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return auctionerrors.ErrAuctionNotFound
		}
		return auctionerrors.ErrConcurrentModification
	}
	return nil
}

func (r *GormRepo) GetLastUserBid(ctx context.Context, auctionID, userID string) (model.Bid, error) {
	var bid model.Bid
	err := r.db.WithContext(ctx).
		Where("auction_id = ? AND user_id = ?", auctionID, userID).
		Order("created_at DESC").
		First(&bid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Bid{}, fmt.Errorf("get last bid of user %s on auction %s: %w", userID, auctionID, auctionerrors.ErrNoBids)
	}
	if err != nil {
		return model.Bid{}, fmt.Errorf("get last bid of user %s on auction %s: %w", userID, auctionID, err)
	}
	return bid, nil
}

func (r *GormRepo) GetTopBids(ctx context.Context, auctionID string, limit int) ([]model.Bid, error) {
	query := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("amount DESC").
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	bids := []model.Bid{}
	if err := query.Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("get top bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

func (r *GormRepo) GetBidsByUser(ctx context.Context, userID string, limit int) ([]model.Bid, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	bids := []model.Bid{}
	if err := query.Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("get bids for user %s: %w", userID, err)
	}
	return bids, nil
}

func (r *GormRepo) RecordSettlementFailure(ctx context.Context, failure model.SettlementFailure) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "failure_id"}}, UpdateAll: true}).
		Create(&failure).Error
	if err != nil {
		return fmt.Errorf("record settlement failure for auction %s: %w", failure.AuctionID, err)
	}
	return nil
}

func (r *GormRepo) ListSettlementFailures(ctx context.Context, limit int) ([]model.SettlementFailure, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	failures := []model.SettlementFailure{}
	if err := query.Find(&failures).Error; err != nil {
		return nil, fmt.Errorf("list settlement failures: %w", err)
	}
	return failures, nil
}

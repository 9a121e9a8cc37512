package handler

import (
	"context"
	"net/http"

	auction "auction-engine/internal/auctionService"
	model "auction-engine/internal/models"
	"auction-engine/services/auction/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

type AuctionServiceInterface interface {
	CreateAuction(ctx context.Context, req auction.CreateAuctionRequest) (model.Auction, error)
	GetActiveAuctions(ctx context.Context) ([]model.Auction, error)
	GetStatus(ctx context.Context, auctionID string) (model.AuctionView, error)
	PlaceBid(ctx context.Context, userID, auctionID string, amount int64) (model.Bid, error)
	CloseAuction(ctx context.Context, auctionID string) (model.CloseResult, error)
	GetUserBidHistory(ctx context.Context, userID string, limit int) ([]model.Bid, error)
	ListSettlementFailures(ctx context.Context, limit int) ([]model.SettlementFailure, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	a, err := h.service.CreateAuction(c.Request.Context(), auction.CreateAuctionRequest{
		ItemID:          req.ItemID,
		StartPrice:      req.StartPrice,
		DurationMinutes: req.DurationMinutes,
		Kind:            model.AuctionKind(req.Kind),
		MinIncrement:    req.MinIncrement,
	})
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", err, map[string]any{"item_id": req.ItemID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, a, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": a.AuctionID,
		"item_id":    a.ItemID,
	})
}

// GetActiveAuctionsHandler handles GET /auctions
func (h *AuctionHandler) GetActiveAuctionsHandler(c *gin.Context) {
	auctions, err := h.service.GetActiveAuctions(c.Request.Context())
	if err != nil {
		helpers.RespondError(c, "GetActiveAuctionsHandler", err, nil)
		return
	}
	if auctions == nil {
		auctions = []model.Auction{}
	}

	utils.JSONResponse(c, http.StatusOK, auctions, "active auctions retrieved successfully")
	helpers.LogSuccess("GetActiveAuctionsHandler", "active auctions retrieved successfully", map[string]any{
		"count": len(auctions),
	})
}

// GetAuctionStatusHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionStatusHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	view, err := h.service.GetStatus(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionStatusHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, gin.H{
		"auction":            view.Auction,
		"top_bids":           helpers.ToBidResponses(view.TopBids),
		"effective_end_time": view.EffectiveEndTime,
		"seconds_remaining":  view.SecondsRemaining,
	}, "auction retrieved successfully")
}

// PlaceBidHandler handles POST /auctions/:auction_id/bids
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	bid, err := h.service.PlaceBid(c.Request.Context(), req.UserID, auctionID, req.Amount)
	if err != nil {
		helpers.RespondError(c, "PlaceBidHandler", err, map[string]any{
			"auction_id": auctionID,
			"user_id":    req.UserID,
			"amount":     req.Amount,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.ToBidResponse(bid), "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": auctionID,
		"user_id":    req.UserID,
		"amount":     bid.Amount,
	})
}

// CloseAuctionHandler handles POST /auctions/:auction_id/close
func (h *AuctionHandler) CloseAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	result, err := h.service.CloseAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "CloseAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, result, "auction closed successfully")
	helpers.LogSuccess("CloseAuctionHandler", "auction closed successfully", map[string]any{
		"auction_id": auctionID,
		"outcome":    string(result.Outcome),
	})
}

// GetUserBidsHandler handles GET /users/:user_id/bids
func (h *AuctionHandler) GetUserBidsHandler(c *gin.Context) {
	userID := c.Param("user_id")
	limit, err := helpers.ParseLimit(c)
	if err != nil {
		helpers.HandleBindError(c, "GetUserBidsHandler", err)
		return
	}

	bids, err := h.service.GetUserBidHistory(c.Request.Context(), userID, limit)
	if err != nil {
		helpers.RespondError(c, "GetUserBidsHandler", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetUserBidsHandler", "bids retrieved successfully", map[string]any{
		"user_id": userID,
		"count":   len(bids),
	})
}

// ListSettlementFailuresHandler handles GET /admin/settlement-failures
func (h *AuctionHandler) ListSettlementFailuresHandler(c *gin.Context) {
	limit, err := helpers.ParseLimit(c)
	if err != nil {
		helpers.HandleBindError(c, "ListSettlementFailuresHandler", err)
		return
	}

	failures, err := h.service.ListSettlementFailures(c.Request.Context(), limit)
	if err != nil {
		helpers.RespondError(c, "ListSettlementFailuresHandler", err, nil)
		return
	}
	if failures == nil {
		failures = []model.SettlementFailure{}
	}

	utils.JSONResponse(c, http.StatusOK, failures, "settlement failures retrieved successfully")
}

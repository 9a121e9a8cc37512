package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auction-engine/internal/auctionerrors"
	auction "auction-engine/internal/auctionService"
	model "auction-engine/internal/models"
	"auction-engine/services/auction/helpers"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// performRequest sends body (a raw string or a value to marshal) and decodes the envelope
func performRequest(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func newAuctionRouter(service AuctionServiceInterface) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuctionHandler(service)
	router := gin.New()
	router.POST("/auctions", h.CreateAuctionHandler)
	router.GET("/auctions", h.GetActiveAuctionsHandler)
	router.GET("/auctions/:auction_id", h.GetAuctionStatusHandler)
	router.POST("/auctions/:auction_id/bids", h.PlaceBidHandler)
	router.POST("/auctions/:auction_id/close", h.CloseAuctionHandler)
	router.GET("/users/:user_id/bids", h.GetUserBidsHandler)
	router.GET("/admin/settlement-failures", h.ListSettlementFailuresHandler)
	return router
}

// Test PlaceBidHandler
func TestPlaceBidHandler(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func(m *MockAuctionServiceInterface)
		expectedStatus int
		expectedMsg    string
		validateData   func(t *testing.T, data map[string]any)
	}{
		{
			name:        "success_valid_bid",
			requestBody: helpers.PlaceBidRequest{UserID: "user1", Amount: 110},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().
					PlaceBid(gomock.Any(), "user1", "a1", int64(110)).
					Return(model.Bid{
						BidID:     uuid.NewString(),
						AuctionID: "a1",
						UserID:    "user1",
						Amount:    110,
						IsWinning: true,
						CreatedAt: now,
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid placed successfully",
			validateData: func(t *testing.T, data map[string]any) {
				_, parseErr := uuid.Parse(data["bid_id"].(string))
				require.NoError(t, parseErr, "BidID should be a valid UUID")
				require.Equal(t, "a1", data["auction_id"])
				require.Equal(t, "user1", data["user_id"])
				require.Equal(t, 110.0, data["amount"])
				require.Equal(t, true, data["is_winning"])
				require.Equal(t, now.Format(time.RFC3339), data["created_at"])
			},
		},
		{
			name:           "invalid_json",
			requestBody:    `{invalid json}`,
			mockSetup:      func(m *MockAuctionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "missing_user_id",
			requestBody:    helpers.PlaceBidRequest{Amount: 110},
			mockSetup:      func(m *MockAuctionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "zero_amount",
			requestBody:    helpers.PlaceBidRequest{UserID: "user1"},
			mockSetup:      func(m *MockAuctionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "negative_amount",
			requestBody:    helpers.PlaceBidRequest{UserID: "user1", Amount: -10},
			mockSetup:      func(m *MockAuctionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:        "service_bid_too_low",
			requestBody: helpers.PlaceBidRequest{UserID: "user1", Amount: 105},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().
					PlaceBid(gomock.Any(), "user1", "a1", int64(105)).
					Return(model.Bid{}, fmt.Errorf("service: %w - minimum bid is 110", auctionerrors.ErrBidTooLow))
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "bid amount too low",
		},
		{
			name:        "service_insufficient_funds",
			requestBody: helpers.PlaceBidRequest{UserID: "user1", Amount: 110},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().
					PlaceBid(gomock.Any(), "user1", "a1", int64(110)).
					Return(model.Bid{}, auctionerrors.ErrInsufficientFunds)
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedMsg:    "insufficient besitos",
		},
		{
			name:        "service_rate_limited",
			requestBody: helpers.PlaceBidRequest{UserID: "user1", Amount: 110},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().
					PlaceBid(gomock.Any(), "user1", "a1", int64(110)).
					Return(model.Bid{}, auctionerrors.ErrRateLimited)
			},
			expectedStatus: http.StatusTooManyRequests,
			expectedMsg:    "bidding too fast",
		},
		{
			name:        "service_lock_unavailable",
			requestBody: helpers.PlaceBidRequest{UserID: "user1", Amount: 110},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().
					PlaceBid(gomock.Any(), "user1", "a1", int64(110)).
					Return(model.Bid{}, auctionerrors.ErrLockUnavailable)
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedMsg:    "auction busy, please retry",
		},
		{
			name:        "service_not_active",
			requestBody: helpers.PlaceBidRequest{UserID: "user1", Amount: 110},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().
					PlaceBid(gomock.Any(), "user1", "a1", int64(110)).
					Return(model.Bid{}, auctionerrors.ErrAuctionNotActive)
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "auction is not active",
		},
		{
			name:        "service_generic_error",
			requestBody: helpers.PlaceBidRequest{UserID: "user1", Amount: 110},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().
					PlaceBid(gomock.Any(), "user1", "a1", int64(110)).
					Return(model.Bid{}, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockService := NewMockAuctionServiceInterface(ctrl)
			tc.mockSetup(mockService)

			w, resp := performRequest(t, newAuctionRouter(mockService), http.MethodPost, "/auctions/a1/bids", tc.requestBody)
			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if tc.validateData != nil {
				tc.validateData(t, resp["data"].(map[string]any))
			}
		})
	}
}

// Test CreateAuctionHandler
func TestCreateAuctionHandler(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func(m *MockAuctionServiceInterface)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name: "success",
			requestBody: helpers.CreateAuctionRequest{
				ItemID: "sword", StartPrice: 100, DurationMinutes: 30, MinIncrement: 10,
			},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().
					CreateAuction(gomock.Any(), auction.CreateAuctionRequest{
						ItemID: "sword", StartPrice: 100, DurationMinutes: 30, MinIncrement: 10,
					}).
					Return(model.Auction{
						AuctionID:  "a1",
						ItemID:     "sword",
						Kind:       model.KindStandard,
						StartPrice: 100,
						CurrentBid: 100,
						Status:     model.AuctionActive,
						EndTime:    now.Add(30 * time.Minute),
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "auction created successfully",
		},
		{
			name: "free_start_price",
			requestBody: helpers.CreateAuctionRequest{
				ItemID: "shield", DurationMinutes: 5, MinIncrement: 1, Kind: "silent",
			},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().
					CreateAuction(gomock.Any(), auction.CreateAuctionRequest{
						ItemID: "shield", DurationMinutes: 5, MinIncrement: 1, Kind: model.KindSilent,
					}).
					Return(model.Auction{AuctionID: "a2", ItemID: "shield"}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "auction created successfully",
		},
		{
			name:           "missing_item",
			requestBody:    helpers.CreateAuctionRequest{StartPrice: 100, DurationMinutes: 30, MinIncrement: 10},
			mockSetup:      func(m *MockAuctionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "unknown_kind",
			requestBody:    helpers.CreateAuctionRequest{ItemID: "sword", DurationMinutes: 30, MinIncrement: 10, Kind: "lottery"},
			mockSetup:      func(m *MockAuctionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "zero_duration",
			requestBody:    helpers.CreateAuctionRequest{ItemID: "sword", MinIncrement: 10},
			mockSetup:      func(m *MockAuctionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name: "service_error",
			requestBody: helpers.CreateAuctionRequest{
				ItemID: "sword", StartPrice: 100, DurationMinutes: 30, MinIncrement: 10,
			},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().CreateAuction(gomock.Any(), gomock.Any()).Return(model.Auction{}, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockService := NewMockAuctionServiceInterface(ctrl)
			tc.mockSetup(mockService)

			w, resp := performRequest(t, newAuctionRouter(mockService), http.MethodPost, "/auctions", tc.requestBody)
			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)
		})
	}
}

// Test CloseAuctionHandler
func TestCloseAuctionHandler(t *testing.T) {
	t.Parallel()
	winner := "user2"
	amount := int64(120)

	tests := []struct {
		name           string
		mockSetup      func(m *MockAuctionServiceInterface)
		expectedStatus int
		expectedMsg    string
		validateData   func(t *testing.T, data map[string]any)
	}{
		{
			name: "won",
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().CloseAuction(gomock.Any(), "a1").Return(model.CloseResult{
					AuctionID:  "a1",
					ItemID:     "sword",
					Status:     model.AuctionClosed,
					Outcome:    model.OutcomeWon,
					WinnerID:   &winner,
					WinningBid: &amount,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "auction closed successfully",
			validateData: func(t *testing.T, data map[string]any) {
				require.Equal(t, "won", data["outcome"])
				require.Equal(t, "user2", data["winner_id"])
				require.Equal(t, 120.0, data["winning_bid"])
			},
		},
		{
			name: "no_bids",
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().CloseAuction(gomock.Any(), "a1").Return(model.CloseResult{
					AuctionID: "a1",
					Status:    model.AuctionClosed,
					Outcome:   model.OutcomeNoBids,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "auction closed successfully",
			validateData: func(t *testing.T, data map[string]any) {
				require.Equal(t, "no_bids", data["outcome"])
				require.NotContains(t, data, "winner_id")
			},
		},
		{
			name: "still_active",
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().CloseAuction(gomock.Any(), "a1").Return(model.CloseResult{}, auctionerrors.ErrAuctionStillActive)
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "auction has not ended yet",
		},
		{
			name: "not_found",
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().CloseAuction(gomock.Any(), "a1").Return(model.CloseResult{}, auctionerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
		},
		{
			name: "settlement_failed",
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().CloseAuction(gomock.Any(), "a1").Return(model.CloseResult{},
					fmt.Errorf("service: %w - item grant: %w", auctionerrors.ErrSettlementFailed, errors.New("inventory down")))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "auction settlement failed",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockService := NewMockAuctionServiceInterface(ctrl)
			tc.mockSetup(mockService)

			w, resp := performRequest(t, newAuctionRouter(mockService), http.MethodPost, "/auctions/a1/close", nil)
			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)
			if tc.validateData != nil {
				tc.validateData(t, resp["data"].(map[string]any))
			}
		})
	}
}

// Test GetAuctionStatusHandler and GetActiveAuctionsHandler
func TestAuctionQueries(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Now().UTC()
	mockService := NewMockAuctionServiceInterface(ctrl)
	router := newAuctionRouter(mockService)

	mockService.EXPECT().GetStatus(gomock.Any(), "a1").Return(model.AuctionView{
		Auction:          model.Auction{AuctionID: "a1", CurrentBid: 120, Status: model.AuctionActive},
		TopBids:          []model.Bid{{BidID: "b2", AuctionID: "a1", UserID: "user2", Amount: 120, IsWinning: true, CreatedAt: now}},
		EffectiveEndTime: now.Add(time.Minute),
		SecondsRemaining: 60,
	}, nil)
	w, resp := performRequest(t, router, http.MethodGet, "/auctions/a1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	require.Equal(t, 60.0, data["seconds_remaining"])
	require.Len(t, data["top_bids"], 1)

	mockService.EXPECT().GetStatus(gomock.Any(), "missing").Return(model.AuctionView{}, auctionerrors.ErrAuctionNotFound)
	w, _ = performRequest(t, router, http.MethodGet, "/auctions/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	mockService.EXPECT().GetActiveAuctions(gomock.Any()).Return(nil, nil)
	w, resp = performRequest(t, router, http.MethodGet, "/auctions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, resp["data"])
	require.NotNil(t, resp["data"])
}

// Test GetUserBidsHandler
func TestGetUserBidsHandler(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockAuctionServiceInterface(ctrl)
	router := newAuctionRouter(mockService)
	now := time.Now().UTC()

	mockService.EXPECT().GetUserBidHistory(gomock.Any(), "user1", 2).Return([]model.Bid{
		{BidID: "b3", AuctionID: "a1", UserID: "user1", Amount: 130, CreatedAt: now},
		{BidID: "b1", AuctionID: "a1", UserID: "user1", Amount: 110, CreatedAt: now.Add(-time.Minute)},
	}, nil)
	w, resp := performRequest(t, router, http.MethodGet, "/users/user1/bids?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"], 2)

	w, resp = performRequest(t, router, http.MethodGet, "/users/user1/bids?limit=-1", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, resp["message"], "invalid request payload")

	mockService.EXPECT().GetUserBidHistory(gomock.Any(), "user1", helpers.DefaultLimit).Return([]model.Bid{}, nil)
	w, _ = performRequest(t, router, http.MethodGet, "/users/user1/bids", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

// Test ListSettlementFailuresHandler
func TestListSettlementFailuresHandler(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockAuctionServiceInterface(ctrl)
	router := newAuctionRouter(mockService)

	mockService.EXPECT().ListSettlementFailures(gomock.Any(), helpers.DefaultLimit).Return([]model.SettlementFailure{
		{FailureID: "f1", AuctionID: "a1", UserID: "user2", Amount: 120, Stage: model.StageInventory, Refunded: true},
	}, nil)
	w, resp := performRequest(t, router, http.MethodGet, "/admin/settlement-failures", nil)
	require.Equal(t, http.StatusOK, w.Code)
	failures := resp["data"].([]any)
	require.Len(t, failures, 1)
	require.Equal(t, "inventory", failures[0].(map[string]any)["stage"])
}

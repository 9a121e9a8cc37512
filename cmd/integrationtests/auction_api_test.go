package integrationtests

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"auction-engine/services/auction/helpers"

	"github.com/stretchr/testify/require"
)

func grant(t *testing.T, env *TestEnv, userID string, amount int64) {
	t.Helper()
	_, w := ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/users/"+userID+"/grant",
		helpers.LedgerEntryRequest{Amount: amount, Source: "test_funding"})
	require.Equal(t, http.StatusCreated, w.Code)
}

func createAuction(t *testing.T, env *TestEnv, req helpers.CreateAuctionRequest) string {
	t.Helper()
	resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions", req)
	require.Equal(t, http.StatusCreated, w.Code)
	return resp["data"].(map[string]any)["auction_id"].(string)
}

func balance(t *testing.T, env *TestEnv, userID string) float64 {
	t.Helper()
	resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/users/"+userID+"/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	return resp["data"].(map[string]any)["besitos"].(float64)
}

// Full auction lifecycle over HTTP
func TestAuctionLifecycle(t *testing.T) {
	env := SetupTestRouter(t)
	grant(t, env, "userA", 500)
	grant(t, env, "userB", 500)

	auctionID := createAuction(t, env, helpers.CreateAuctionRequest{
		ItemID: "sword", StartPrice: 100, DurationMinutes: 60, MinIncrement: 10,
	})
	bidsURL := fmt.Sprintf("/auctions/%s/bids", auctionID)

	bids := []struct {
		name       string
		request    helpers.PlaceBidRequest
		wantStatus int
	}{
		{name: "A_opens", request: helpers.PlaceBidRequest{UserID: "userA", Amount: 110}, wantStatus: http.StatusCreated},
		{name: "B_below_increment", request: helpers.PlaceBidRequest{UserID: "userB", Amount: 115}, wantStatus: http.StatusConflict},
		{name: "B_outbids", request: helpers.PlaceBidRequest{UserID: "userB", Amount: 120}, wantStatus: http.StatusCreated},
		{name: "C_without_funds", request: helpers.PlaceBidRequest{UserID: "userC", Amount: 200}, wantStatus: http.StatusPaymentRequired},
		{name: "B_too_soon", request: helpers.PlaceBidRequest{UserID: "userB", Amount: 150}, wantStatus: http.StatusTooManyRequests},
	}
	for _, tt := range bids {
		_, w := ExecuteRequestAndParse(t, env.Router, http.MethodPost, bidsURL, tt.request)
		require.Equal(t, tt.wantStatus, w.Code, tt.name)
	}

	resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions/"+auctionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := resp["data"].(map[string]any)
	require.Equal(t, 120.0, status["auction"].(map[string]any)["current_bid"])
	require.Equal(t, "userB", status["auction"].(map[string]any)["current_bidder"])
	require.Len(t, status["top_bids"], 2)

	_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/close", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	env.Clock.Advance(61 * time.Minute)

	resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/close", nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := resp["data"].(map[string]any)
	require.Equal(t, "won", result["outcome"])
	require.Equal(t, "userB", result["winner_id"])
	require.Equal(t, 120.0, result["winning_bid"])

	// closing again returns the same outcome without charging twice
	resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/close", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "userB", resp["data"].(map[string]any)["winner_id"])

	require.Equal(t, 380.0, balance(t, env, "userB"))
	require.Equal(t, 500.0, balance(t, env, "userA"))

	qty, err := env.Inventory.Quantity(context.Background(), "userB", "sword")
	require.NoError(t, err)
	require.Equal(t, 1, qty)

	resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/users/userB/transactions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"], 2)

	_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, bidsURL, helpers.PlaceBidRequest{UserID: "userA", Amount: 300})
	require.Equal(t, http.StatusConflict, w.Code)

	resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, resp["data"])

	resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/admin/settlement-failures", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, resp["data"])
}

// Ledger endpoints
func TestLedgerAPI(t *testing.T) {
	env := SetupTestRouter(t)

	tests := []struct {
		name       string
		path       string
		request    any
		wantStatus int
	}{
		{name: "grant", path: "/users/u1/grant", request: helpers.LedgerEntryRequest{Amount: 100, Source: "daily_login", Reference: "login:1"}, wantStatus: http.StatusCreated},
		{name: "grant_replay", path: "/users/u1/grant", request: helpers.LedgerEntryRequest{Amount: 100, Source: "daily_login", Reference: "login:1"}, wantStatus: http.StatusCreated},
		{name: "grant_reference_reused", path: "/users/u1/grant", request: helpers.LedgerEntryRequest{Amount: 5, Source: "daily_login", Reference: "login:1"}, wantStatus: http.StatusConflict},
		{name: "spend", path: "/users/u1/spend", request: helpers.LedgerEntryRequest{Amount: 40, Source: "shop"}, wantStatus: http.StatusCreated},
		{name: "overspend", path: "/users/u1/spend", request: helpers.LedgerEntryRequest{Amount: 61, Source: "shop"}, wantStatus: http.StatusPaymentRequired},
		{name: "invalid_json", path: "/users/u1/spend", request: []byte(`{amount: }`), wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		_, w := ExecuteRequestAndParse(t, env.Router, http.MethodPost, tt.path, tt.request)
		require.Equal(t, tt.wantStatus, w.Code, tt.name)
	}

	resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/users/u1/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	account := resp["data"].(map[string]any)
	require.Equal(t, 60.0, account["besitos"])
	require.Equal(t, 100.0, account["lifetime_besitos"])

	resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/users/u1/transactions?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"], 1)
}

// Concurrent bids over HTTP keep the auction consistent
func TestConcurrentBidsAPI(t *testing.T) {
	env := SetupTestRouter(t)

	const bidders = 10
	for i := 0; i < bidders; i++ {
		grant(t, env, fmt.Sprintf("user%d", i), 10_000)
	}
	auctionID := createAuction(t, env, helpers.CreateAuctionRequest{
		ItemID: "shield", StartPrice: 100, DurationMinutes: 30, MinIncrement: 10,
	})

	var wg sync.WaitGroup
	codes := make([]int, bidders)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, w := ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/bids",
				helpers.PlaceBidRequest{UserID: fmt.Sprintf("user%d", i), Amount: int64(110 + i*10)})
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, code := range codes {
		if code == http.StatusCreated {
			accepted++
		} else {
			require.Equal(t, http.StatusConflict, code)
		}
	}

	resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions/"+auctionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	a := resp["data"].(map[string]any)["auction"].(map[string]any)
	require.Equal(t, float64(accepted), a["bid_count"])

	winning := 0
	for _, b := range resp["data"].(map[string]any)["top_bids"].([]any) {
		if b.(map[string]any)["is_winning"].(bool) {
			winning++
			require.Equal(t, a["current_bid"], b.(map[string]any)["amount"])
		}
	}
	require.Equal(t, 1, winning)
}

func TestHealthAndMetrics(t *testing.T) {
	env := SetupTestRouter(t)

	_, w := ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "auction not found", resp["message"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `route="/auctions/:auction_id",status="404"`)
}

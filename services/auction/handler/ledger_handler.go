package handler

import (
	"context"
	"net/http"

	"auction-engine/internal/ledger"
	model "auction-engine/internal/models"
	"auction-engine/services/auction/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

type LedgerServiceInterface interface {
	GetAccount(ctx context.Context, userID string) (model.Balance, error)
	GetHistory(ctx context.Context, userID string, limit int) ([]model.Transaction, error)
	Grant(ctx context.Context, entry ledger.Entry) (model.Transaction, error)
	Spend(ctx context.Context, entry ledger.Entry) (model.Transaction, error)
}

type LedgerHandler struct {
	service LedgerServiceInterface
}

func NewLedgerHandler(service LedgerServiceInterface) *LedgerHandler {
	return &LedgerHandler{service: service}
}

// GetBalanceHandler handles GET /users/:user_id/balance
func (h *LedgerHandler) GetBalanceHandler(c *gin.Context) {
	userID := c.Param("user_id")
	account, err := h.service.GetAccount(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetBalanceHandler", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.BalanceResponse{
		UserID:          userID,
		Besitos:         account.Besitos,
		LifetimeBesitos: account.LifetimeBesitos,
	}, "balance retrieved successfully")
}

// GetTransactionsHandler handles GET /users/:user_id/transactions
func (h *LedgerHandler) GetTransactionsHandler(c *gin.Context) {
	userID := c.Param("user_id")
	limit, err := helpers.ParseLimit(c)
	if err != nil {
		helpers.HandleBindError(c, "GetTransactionsHandler", err)
		return
	}

	history, err := h.service.GetHistory(c.Request.Context(), userID, limit)
	if err != nil {
		helpers.RespondError(c, "GetTransactionsHandler", err, map[string]any{"user_id": userID})
		return
	}
	if history == nil {
		history = []model.Transaction{}
	}

	utils.JSONResponse(c, http.StatusOK, history, "transactions retrieved successfully")
	helpers.LogSuccess("GetTransactionsHandler", "transactions retrieved successfully", map[string]any{
		"user_id": userID,
		"count":   len(history),
	})
}

// GrantHandler handles POST /users/:user_id/grant
func (h *LedgerHandler) GrantHandler(c *gin.Context) {
	h.applyEntry(c, "GrantHandler", h.service.Grant)
}

// SpendHandler handles POST /users/:user_id/spend
func (h *LedgerHandler) SpendHandler(c *gin.Context) {
	h.applyEntry(c, "SpendHandler", h.service.Spend)
}

func (h *LedgerHandler) applyEntry(c *gin.Context, handlerName string,
	apply func(ctx context.Context, entry ledger.Entry) (model.Transaction, error)) {
	userID := c.Param("user_id")
	var req helpers.LedgerEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, handlerName, err)
		return
	}

	txn, err := apply(c.Request.Context(), ledger.Entry{
		UserID:    userID,
		Amount:    req.Amount,
		Source:    req.Source,
		Reference: req.Reference,
		Metadata:  req.Metadata,
	})
	if err != nil {
		helpers.RespondError(c, handlerName, err, map[string]any{
			"user_id": userID,
			"amount":  req.Amount,
			"source":  req.Source,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, txn, "transaction recorded successfully")
	helpers.LogSuccess(handlerName, "transaction recorded successfully", map[string]any{
		"transaction_id": txn.TransactionID,
		"user_id":        userID,
		"amount":         txn.Amount,
		"balance_after":  txn.BalanceAfter,
	})
}

package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"auction-engine/internal/auctionerrors"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// MapErrorToHTTP maps service errors to an HTTP status and a client message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, auctionerrors.ErrSettlementFailed):
		return http.StatusInternalServerError, "auction settlement failed"
	case errors.Is(err, auctionerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, auctionerrors.ErrInvalidAuction):
		return http.StatusBadRequest, "invalid auction details"
	case errors.Is(err, auctionerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, auctionerrors.ErrInvalidAmount), errors.Is(err, auctionerrors.ErrInvalidEntry):
		return http.StatusBadRequest, "invalid ledger entry"
	case errors.Is(err, auctionerrors.ErrAuctionNotActive):
		return http.StatusConflict, "auction is not active"
	case errors.Is(err, auctionerrors.ErrAuctionStillActive):
		return http.StatusConflict, "auction has not ended yet"
	case errors.Is(err, auctionerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, auctionerrors.ErrReferenceConflict):
		return http.StatusConflict, "reference already used"
	case errors.Is(err, auctionerrors.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient besitos"
	case errors.Is(err, auctionerrors.ErrRateLimited):
		return http.StatusTooManyRequests, "bidding too fast"
	case auctionerrors.IsRetryable(err):
		return http.StatusServiceUnavailable, "auction busy, please retry"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondError writes the mapped error response and logs it
func RespondError(c *gin.Context, handlerName string, err error, fields map[string]any) {
	status, message := MapErrorToHTTP(err)
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)

	if fields == nil {
		fields = map[string]any{}
	}
	fields["handler"] = handlerName
	fields["status"] = status
	fields["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": request failed", fields)
	} else {
		utils.Warn(handlerName+": request rejected", fields)
	}
}

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// ParseLimit reads the optional ?limit= query parameter
func ParseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return DefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit, nil
}

// LogSuccess logs a successful handler outcome
func LogSuccess(handlerName, message string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["handler"] = handlerName
	utils.Info(handlerName+": "+message, fields)
}

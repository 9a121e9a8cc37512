package utils

import (
	"errors"

	"auction-engine/internal/auctionerrors"

	"github.com/gin-gonic/gin"
)

// JSONResponse sends a structured JSON response
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONError sends a structured error response. Tagged service errors also
// report their kind so clients can tell retryable failures apart.
func JSONError(c *gin.Context, status int, err error, message string) {
	body := gin.H{
		"status":  status,
		"message": message,
		"error":   err.Error(),
	}
	var tagged *auctionerrors.Error
	if errors.As(err, &tagged) {
		body["kind"] = tagged.Kind()
		body["retryable"] = auctionerrors.IsRetryable(err)
	}
	c.JSON(status, body)
}

package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

type componentHealth struct {
	Status   string `json:"status"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// HealthHandler runs every check and answers 503 if any of them fails.
func HealthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]componentHealth, len(names))
		for _, name := range names {
			start := time.Now()
			result := componentHealth{Status: "healthy"}
			if err := checks[name](ctx); err != nil {
				result.Status = "unhealthy"
				result.Error = err.Error()
				status = http.StatusServiceUnavailable
				utils.Warn("health check failed", map[string]any{"component": name, "error": err.Error()})
			}
			result.Duration = time.Since(start).String()
			components[name] = result
		}

		message := "healthy"
		if status != http.StatusOK {
			message = "unhealthy"
		}
		utils.JSONResponse(c, status, gin.H{
			"timestamp":  time.Now().UTC(),
			"components": components,
		}, message)
	}
}

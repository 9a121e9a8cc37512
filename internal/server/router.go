package server

import (
	"auction-engine/internal/config"
	"auction-engine/internal/metrics"
	handler "auction-engine/services/auction/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the services and operational hooks exposed over HTTP
type Dependencies struct {
	Auctions handler.AuctionServiceInterface
	Ledger   handler.LedgerServiceInterface
	Metrics  *metrics.Metrics
	// Gatherer serves /metrics when metrics are enabled
	Gatherer     prometheus.Gatherer
	HealthChecks map[string]HealthCheck
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(cfg config.Config, deps Dependencies) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging
	router.Use(TracingMiddleware)
	router.Use(MetricsMiddleware(deps.Metrics))

	router.GET(cfg.Monitoring.HealthCheckPath, HealthHandler(deps.HealthChecks))
	if cfg.Monitoring.EnableMetrics && deps.Gatherer != nil {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("")
	if cfg.Server.RateLimitRPS > 0 {
		api.Use(NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst).Middleware())
	}

	auctionHandler := handler.NewAuctionHandler(deps.Auctions)
	ledgerHandler := handler.NewLedgerHandler(deps.Ledger)

	auctions := api.Group("/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("", auctionHandler.GetActiveAuctionsHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionStatusHandler)
		auctions.POST("/:auction_id/bids", auctionHandler.PlaceBidHandler)
		auctions.POST("/:auction_id/close", auctionHandler.CloseAuctionHandler)
	}

	users := api.Group("/users")
	{
		users.GET("/:user_id/bids", auctionHandler.GetUserBidsHandler)
		users.GET("/:user_id/balance", ledgerHandler.GetBalanceHandler)
		users.GET("/:user_id/transactions", ledgerHandler.GetTransactionsHandler)
		users.POST("/:user_id/grant", ledgerHandler.GrantHandler)
		users.POST("/:user_id/spend", ledgerHandler.SpendHandler)
	}

	admin := api.Group("/admin")
	{
		admin.GET("/settlement-failures", auctionHandler.ListSettlementFailuresHandler)
	}

	return router
}

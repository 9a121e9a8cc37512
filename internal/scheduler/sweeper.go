package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/config"
	"auction-engine/internal/metrics"
	"auction-engine/internal/models"
	"auction-engine/utils"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// AuctionCloser finds and settles expired auctions.
type AuctionCloser interface {
	ListExpired(ctx context.Context) ([]models.Auction, error)
	CloseAuction(ctx context.Context, auctionID string) (models.CloseResult, error)
}

// Sweeper periodically closes ACTIVE auctions whose effective end time has passed.
type Sweeper struct {
	closer      AuctionCloser
	metrics     *metrics.Metrics
	spec        string
	concurrency int
	timeout     time.Duration

	mu   sync.Mutex
	cron *cron.Cron
}

// NewSweeper creates a sweeper from the scheduler configuration.
func NewSweeper(closer AuctionCloser, cfg config.SchedulerConfig, m *metrics.Metrics) *Sweeper {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Sweeper{
		closer:      closer,
		metrics:     m,
		spec:        cfg.Spec,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// Sweep closes every expired auction once, at most concurrency at a time.
// Failures of single auctions are logged and left for the next run; only a
// failure to list auctions is returned.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	expired, err := s.closer.ListExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("scheduler: failed to list expired auctions: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	var closed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, auction := range expired {
		auctionID := auction.AuctionID
		g.Go(func() error {
			result, err := s.closer.CloseAuction(ctx, auctionID)
			switch {
			case err == nil:
				closed.Add(1)
				utils.Debug("sweeper closed auction", map[string]any{
					"auction_id": auctionID,
					"outcome":    string(result.Outcome),
				})
			case errors.Is(err, auctionerrors.ErrAuctionStillActive):
				// extended by a late bid after the listing
			default:
				utils.Warn("sweeper failed to close auction", map[string]any{
					"auction_id": auctionID,
					"error":      err.Error(),
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(closed.Load())
	s.metrics.RecordSweepClosed(n)
	utils.Info("sweep finished", map[string]any{"expired": len(expired), "closed": n})
	return n, nil
}

// Start schedules Sweep on the cron spec. Overlapping runs are skipped.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler: already started")
	}

	logger := cronLogger{}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(s.spec, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			utils.Error("sweep failed", map[string]any{"error": err.Error()})
		}
	}); err != nil {
		return fmt.Errorf("scheduler: invalid spec %q: %w", s.spec, err)
	}
	c.Start()
	s.cron = c

	utils.Info("sweeper started", map[string]any{"spec": s.spec, "concurrency": s.concurrency})
	return nil
}

// Stop unschedules the sweeper and waits for a running sweep until ctx is done.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}
}

// cronLogger routes cron's internal logging to the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	utils.Debug("cron: "+msg, pairs(keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := pairs(keysAndValues)
	fields["error"] = err.Error()
	utils.Error("cron: "+msg, fields)
}

func pairs(keysAndValues []interface{}) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	auction "auction-engine/internal/auctionService"
	"auction-engine/internal/config"
	"auction-engine/internal/database"
	"auction-engine/internal/events"
	"auction-engine/internal/inventory"
	"auction-engine/internal/ledger"
	"auction-engine/internal/lock"
	"auction-engine/internal/metrics"
	"auction-engine/internal/notify"
	"auction-engine/internal/repository"
	"auction-engine/internal/scheduler"
	"auction-engine/internal/server"
	"auction-engine/internal/telemetry"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "auction-engine",
		Short:         "Auction engine with a besitos ledger and distributed locking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the expired auction sweeper",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), configFile)
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Close every expired auction once and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSweep(cmd.Context(), configFile)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(configFile)
				if err != nil {
					return err
				}
				cfg.Database.AutoMigrate = true
				db, err := database.Open(cfg.Database)
				if err != nil {
					return err
				}
				closeDB(db)
				utils.Info("schema migrated", map[string]any{"driver": cfg.Database.Driver})
				return nil
			},
		},
	)
	return root
}

func loadConfig(configFile string) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	utils.InitLogger(cfg.Logging)
	return cfg, nil
}

// app holds the wired components of one process
type app struct {
	cfg       *config.Config
	db        *gorm.DB
	redis     *redis.Client
	publisher events.Publisher
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	ledger    *ledger.Ledger
	engine    *auction.Engine
	sweeper   *scheduler.Sweeper
	shutdown  telemetry.ShutdownFunc
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	shutdown, err := telemetry.InitTracing(cfg.Monitoring)
	if err != nil {
		return nil, err
	}
	a.shutdown = shutdown

	a.registry = metrics.NewRegistry()
	a.metrics = metrics.New(a.registry)

	if a.db, err = database.Open(cfg.Database); err != nil {
		a.Close()
		return nil, err
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	if a.publisher, err = newPublisher(cfg.Events); err != nil {
		a.Close()
		return nil, err
	}

	a.ledger = ledger.New(a.db, a.publisher, a.metrics)
	a.engine = auction.NewEngine(auction.Dependencies{
		Repo:      repository.NewGormRepo(a.db),
		Locker:    lock.NewRedisLock(a.redis, cfg.Lock.Prefix),
		Ledger:    a.ledger.WithoutEvents(),
		Inventory: inventory.NewStore(a.db),
		Notifier:  notify.NewRedisNotifier(a.redis, cfg.Auction.NotificationTTL),
		Publisher: a.publisher,
		Metrics:   a.metrics,
	}, auction.NewConfig(cfg.Lock, cfg.Auction))
	a.sweeper = scheduler.NewSweeper(a.engine, cfg.Scheduler, a.metrics)

	return a, nil
}

func newPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Transport {
	case "nats":
		p, err := events.DialNATS(cfg.NATSURL, cfg.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "amqp":
		p, err := events.DialAMQP(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return events.NewLogPublisher(), nil
	}
}

func (a *app) healthChecks() map[string]server.HealthCheck {
	return map[string]server.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		},
	}
}

// Close waits for background notifications and releases every connection.
func (a *app) Close() {
	if a.engine != nil {
		a.engine.Wait()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			utils.Warn("failed to close event publisher", map[string]any{"error": err.Error()})
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			utils.Warn("failed to close redis client", map[string]any{"error": err.Error()})
		}
	}
	if a.db != nil {
		closeDB(a.db)
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			utils.Warn("failed to flush traces", map[string]any{"error": err.Error()})
		}
	}
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		utils.Warn("failed to close database", map[string]any{"error": err.Error()})
	}
}

func runServe(ctx context.Context, configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	router := server.SetupRouter(*cfg, server.Dependencies{
		Auctions:     a.engine,
		Ledger:       a.ledger,
		Metrics:      a.metrics,
		Gatherer:     a.registry,
		HealthChecks: a.healthChecks(),
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Scheduler.Enabled {
		if err := a.sweeper.Start(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Info("starting auction server", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		utils.Info("shutting down", map[string]any{"timeout": cfg.Server.GracefulTimeout.String()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("graceful shutdown failed", map[string]any{"error": err.Error()})
	}
	if err := a.sweeper.Stop(shutdownCtx); err != nil {
		utils.Warn("sweeper did not stop in time", map[string]any{"error": err.Error()})
	}
	return nil
}

func runSweep(ctx context.Context, configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	closed, err := a.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	utils.Info("sweep complete", map[string]any{"closed": closed})
	return nil
}

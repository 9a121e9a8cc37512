package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
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
	"auction-engine/internal/server"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// testClock is a settable clock shared by the engine under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestEnv is a fully wired application on SQLite and miniredis.
type TestEnv struct {
	Router    *gin.Engine
	Engine    *auction.Engine
	Inventory *inventory.Store
	Clock     *testClock
}

// SetupTestRouter initializes the router with in-memory stores for integration testing.
func SetupTestRouter(t *testing.T) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	publisher := events.NewLogPublisher()
	clock := &testClock{now: time.Now().UTC()}

	cfg := auction.DefaultConfig()
	cfg.BidLock.RetryDelay = 5 * time.Millisecond
	cfg.BidLock.MaxRetries = 200
	cfg.CloseLock = cfg.BidLock

	led := ledger.New(db, publisher, m)
	inv := inventory.NewStore(db)
	engine := auction.NewEngine(auction.Dependencies{
		Repo:      repository.NewGormRepo(db),
		Locker:    lock.NewRedisLock(client, ""),
		Ledger:    led.WithoutEvents(),
		Inventory: inv,
		Notifier:  notify.NewRedisNotifier(client, time.Hour),
		Publisher: publisher,
		Metrics:   m,
	}, cfg, auction.WithClock(clock.Now))
	t.Cleanup(engine.Wait)

	appCfg := config.Config{
		Monitoring: config.MonitoringConfig{EnableMetrics: true, MetricsPath: "/metrics", HealthCheckPath: "/health"},
	}
	router := server.SetupRouter(appCfg, server.Dependencies{
		Auctions: engine,
		Ledger:   led,
		Metrics:  m,
		Gatherer: reg,
	})

	return &TestEnv{Router: router, Engine: engine, Inventory: inv, Clock: clock}
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}

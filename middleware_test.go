package throttlego

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// helper to create a test router with the middleware applied
func setupTestRouter(t *testing.T, store *MemoryStore, config MiddlewareConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimiterMiddleware(store, config))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.POST("/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "login successful"})
	})
	return router
}

func newTestStore(t *testing.T, clock Clock, config Config, policies map[string]Config) *MemoryStore {
	t.Helper()
	store, err := NewMemoryStore(config, policies, WithClock(clock))
	require.NoError(t, err)
	return store
}

// helper to make a request and return the response
func makeRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []RateLimitEvent
}

func (p *recordingPublisher) Publish(event RateLimitEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

/*
Sliding window with 2 requests per 10 seconds
First 2 requests should pass, the 3rd gets 429 with a Retry-After header
*/
func TestMiddlewareSlidingWindow(t *testing.T) {
	clock := NewManualClock(epoch)
	store := newTestStore(t, clock, Config{Algorithm: AlgorithmSlidingWindow, WindowSize: 10 * time.Second, MaxRequests: 2}, nil)
	router := setupTestRouter(t, store, MiddlewareConfig{Clock: clock})

	for i := 0; i < 2; i++ {
		w := makeRequest(router, http.MethodGet, "/ping")
		require.Equalf(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	clock.Advance(3500 * time.Millisecond)
	w := makeRequest(router, http.MethodGet, "/ping")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "7", w.Header().Get("Retry-After"))
	require.JSONEq(t, `{"error":"Too many requests. Please try again later.","retry_after":6.5}`, w.Body.String())

	clock.Advance(6500 * time.Millisecond)
	w = makeRequest(router, http.MethodGet, "/ping")
	require.Equal(t, http.StatusOK, w.Code)
}

/*
Interval policy: one request per 5 seconds per client
*/
func TestMiddlewareInterval(t *testing.T) {
	clock := NewManualClock(epoch)
	store := newTestStore(t, clock, Config{Algorithm: AlgorithmInterval, MinInterval: 5 * time.Second}, nil)
	router := setupTestRouter(t, store, MiddlewareConfig{Clock: clock})

	require.Equal(t, http.StatusOK, makeRequest(router, http.MethodGet, "/ping").Code)
	clock.Advance(4 * time.Second)
	w := makeRequest(router, http.MethodGet, "/ping")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))
	clock.Advance(time.Second)
	require.Equal(t, http.StatusOK, makeRequest(router, http.MethodGet, "/ping").Code)
}

/*
Endpoint override for POST /login is counted separately from the default policy
*/
func TestMiddlewareEndpointPolicies(t *testing.T) {
	clock := NewManualClock(epoch)
	store := newTestStore(t, clock,
		Config{Algorithm: AlgorithmSlidingWindow, WindowSize: time.Minute, MaxRequests: 100},
		map[string]Config{"POST /login": {Algorithm: AlgorithmInterval, MinInterval: time.Minute}},
	)
	router := setupTestRouter(t, store, MiddlewareConfig{Clock: clock})

	require.Equal(t, http.StatusOK, makeRequest(router, http.MethodPost, "/login").Code)
	require.Equal(t, http.StatusTooManyRequests, makeRequest(router, http.MethodPost, "/login").Code)

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, makeRequest(router, http.MethodGet, "/ping").Code)
	}
}

func TestMiddlewareCustomKeyFunc(t *testing.T) {
	clock := NewManualClock(epoch)
	store := newTestStore(t, clock, Config{Algorithm: AlgorithmInterval, MinInterval: time.Minute}, nil)
	router := setupTestRouter(t, store, MiddlewareConfig{
		Clock:   clock,
		KeyFunc: func(c *gin.Context) string { return c.Query("user") },
	})

	require.Equal(t, http.StatusOK, makeRequest(router, http.MethodGet, "/ping?user=1").Code)
	require.Equal(t, http.StatusOK, makeRequest(router, http.MethodGet, "/ping?user=2").Code)
	require.Equal(t, http.StatusTooManyRequests, makeRequest(router, http.MethodGet, "/ping?user=1").Code)
}

func TestMiddlewarePublishesEvents(t *testing.T) {
	clock := NewManualClock(epoch)
	store := newTestStore(t, clock, Config{Algorithm: AlgorithmSlidingWindow, WindowSize: 10 * time.Second, MaxRequests: 1}, nil)
	publisher := &recordingPublisher{}
	router := setupTestRouter(t, store, MiddlewareConfig{Clock: clock, EventPublisher: publisher, PublishAllowed: true})

	makeRequest(router, http.MethodGet, "/ping")
	clock.Advance(4 * time.Second)
	makeRequest(router, http.MethodGet, "/ping")

	require.Len(t, publisher.events, 2)
	require.Equal(t, ActionAllowed, publisher.events[0].Action)
	require.Equal(t, http.StatusOK, publisher.events[0].StatusCode)

	denied := publisher.events[1]
	require.Equal(t, ActionDenied, denied.Action)
	require.Equal(t, "GET /ping", denied.Endpoint)
	require.Equal(t, "default", denied.Policy)
	require.Equal(t, http.StatusTooManyRequests, denied.StatusCode)
	require.InDelta(t, 6.0, denied.WaitSeconds, 1e-9)
	require.Equal(t, clock.Now().UnixNano(), denied.Timestamp)
}

func TestMiddlewareMetrics(t *testing.T) {
	clock := NewManualClock(epoch)
	store := newTestStore(t, clock, Config{Algorithm: AlgorithmSlidingWindow, WindowSize: 10 * time.Second, MaxRequests: 2}, nil)
	metrics := NewMetricsCollector("throttlego")
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)
	router := setupTestRouter(t, store, MiddlewareConfig{Clock: clock, Metrics: metrics})

	for i := 0; i < 5; i++ {
		makeRequest(router, http.MethodGet, "/ping")
	}

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.Decisions.WithLabelValues("default", metricsValAllowed)))
	require.Equal(t, 3.0, testutil.ToFloat64(metrics.Decisions.WithLabelValues("default", metricsValDenied)))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.WaitSeconds))
}

// mock ScoreReader for testing enforcement tiers
type mockScoreReader struct {
	scores map[string]int64
}

func (m *mockScoreReader) GetScore(key string) int64 {
	return m.scores[key]
}

/*
Testing that a key with a risk score at or above DenyScore gets 403 Forbidden
before the limiter is consulted
*/
func TestMiddlewareRiskDenyAll(t *testing.T) {
	clock := NewManualClock(epoch)
	store := newTestStore(t, clock, DefaultConfig(), nil)
	router := setupTestRouter(t, store, MiddlewareConfig{
		Clock:       clock,
		KeyFunc:     func(c *gin.Context) string { return "bad" },
		ScoreReader: &mockScoreReader{scores: map[string]int64{"bad": 10}},
		DenyScore:   10,
	})

	w := makeRequest(router, http.MethodGet, "/ping")
	require.Equal(t, http.StatusForbidden, w.Code)

	limiter, _ := store.Limiter("GET /ping")
	require.True(t, limiter.CanSendMessage("bad"))
}

/*
Score below DenyScore leaves the normal limits in place
*/
func TestMiddlewareRiskBelowThreshold(t *testing.T) {
	clock := NewManualClock(epoch)
	store := newTestStore(t, clock, DefaultConfig(), nil)
	router := setupTestRouter(t, store, MiddlewareConfig{
		Clock:       clock,
		KeyFunc:     func(c *gin.Context) string { return "meh" },
		ScoreReader: &mockScoreReader{scores: map[string]int64{"meh": 9}},
		DenyScore:   10,
	})

	require.Equal(t, http.StatusOK, makeRequest(router, http.MethodGet, "/ping").Code)
	require.Equal(t, http.StatusTooManyRequests, makeRequest(router, http.MethodGet, "/ping").Code)
}

/*
Denials fed into the risk engine in process eventually lock the key out
*/
func TestMiddlewareWithRiskEngine(t *testing.T) {
	clock := NewManualClock(epoch)
	store := newTestStore(t, clock, Config{Algorithm: AlgorithmInterval, MinInterval: time.Minute}, nil)
	engine := NewRiskEngine(nil, 3, time.Hour, nil, WithClock(clock))
	router := setupTestRouter(t, store, MiddlewareConfig{
		Clock:          clock,
		EventPublisher: engine,
		ScoreReader:    engine,
		DenyScore:      3,
	})

	require.Equal(t, http.StatusOK, makeRequest(router, http.MethodGet, "/ping").Code)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusTooManyRequests, makeRequest(router, http.MethodGet, "/ping").Code)
	}
	require.Equal(t, http.StatusForbidden, makeRequest(router, http.MethodGet, "/ping").Code)

	clock.Advance(2 * time.Hour)
	require.Equal(t, http.StatusOK, makeRequest(router, http.MethodGet, "/ping").Code)
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	require.Equal(t, "0", retryAfterSeconds(0))
	require.Equal(t, "1", retryAfterSeconds(time.Millisecond))
	require.Equal(t, "5", retryAfterSeconds(5*time.Second))
	require.Equal(t, "6", retryAfterSeconds(5*time.Second+time.Nanosecond))
}

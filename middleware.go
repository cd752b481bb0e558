package throttlego

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ssgreg/logf"
)

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(c *gin.Context) string

type MiddlewareConfig struct {
	// KeyFunc defaults to the client IP.
	KeyFunc KeyFunc
	// PublishAllowed also emits ALLOWED events, not only denials.
	PublishAllowed bool
	EventPublisher EventPublisher
	Metrics        *MetricsCollector
	Logger         *logf.Logger
	Clock          Clock
	// risk scoring: a key whose score reaches DenyScore gets 403 (0 = disabled)
	ScoreReader ScoreReader
	DenyScore   int64
}

// RateLimiterMiddleware returns a gin middleware that rate limits per key.
// Requests for an endpoint with an override in store are counted separately
// from the default policy.
func RateLimiterMiddleware(store *MemoryStore, config MiddlewareConfig) gin.HandlerFunc {
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	clock := config.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := loggerOrDisabled(config.Logger)

	return func(c *gin.Context) {
		key := keyFunc(c)

		// Build endpoint from method + path: "POST /login", "GET /search"
		endpoint := c.Request.Method + " " + c.FullPath()
		limiter, override := store.Limiter(endpoint)
		policy := "default"
		if override {
			policy = endpoint
		}

		event := RateLimitEvent{
			Key:       key,
			Endpoint:  endpoint,
			Policy:    policy,
			UserAgent: c.Request.UserAgent(),
		}
		publish := func(action string, status int, wait time.Duration) {
			if config.EventPublisher == nil {
				return
			}
			event.Action = action
			event.StatusCode = status
			event.WaitSeconds = wait.Seconds()
			event.Timestamp = clock.Now().UnixNano()
			config.EventPublisher.Publish(event)
		}

		if config.ScoreReader != nil && config.DenyScore > 0 {
			if score := config.ScoreReader.GetScore(key); score >= config.DenyScore {
				logger.Info("request denied by risk score",
					logf.String("key", key), logf.String("endpoint", endpoint), logf.Int64("score", score))
				publish(ActionDeniedRisk, http.StatusForbidden, 0)
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "Access temporarily restricted due to suspicious activity.",
				})
				return
			}
		}

		// Store keys include the endpoint for overrides so counters stay separate.
		storeKey := key
		if override {
			storeKey = key + ":" + endpoint
		}

		if !limiter.RecordMessage(storeKey) {
			wait := limiter.TimeUntilNextAllowed(storeKey)
			config.Metrics.observe(policy, false, wait.Seconds())
			logger.Debug("request rate limited",
				logf.String("key", key), logf.String("policy", policy), logf.Duration("wait", wait))
			publish(ActionDenied, http.StatusTooManyRequests, wait)

			c.Header("Retry-After", retryAfterSeconds(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"retry_after": wait.Seconds(),
			})
			return
		}

		config.Metrics.observe(policy, true, 0)
		if config.PublishAllowed {
			publish(ActionAllowed, http.StatusOK, 0)
		}
		c.Next()
	}
}

// retryAfterSeconds rounds up so clients never retry too early.
func retryAfterSeconds(wait time.Duration) string {
	return strconv.FormatInt(int64(math.Ceil(wait.Seconds())), 10)
}

package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dalfonso89/currency-converter/internal/config"
	"github.com/dalfonso89/currency-converter/internal/logger"
	"github.com/dalfonso89/currency-converter/internal/models"
)

// idleBucketTTL is how long a client's bucket survives without requests.
const idleBucketTTL = 24 * time.Hour

// Limiter is a per-client token bucket limiter. Every request to the
// converter may cost a provider call, so the quota is enforced per client IP.
type Limiter struct {
	Configuration *config.Config
	logger        *logger.Logger

	clientBuckets map[string]*TokenBucket
	bucketsMutex  sync.Mutex

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// TokenBucket holds up to capacity tokens and refills refillRate tokens every refillPeriod.
type TokenBucket struct {
	capacity     int
	tokens       int
	lastRefill   time.Time
	lastSeen     time.Time
	refillRate   int
	refillPeriod time.Duration
	mu           sync.Mutex
}

// NewLimiter creates a limiter and starts its bucket cleanup goroutine.
func NewLimiter(configuration *config.Config, logger *logger.Logger) *Limiter {
	rateLimiter := &Limiter{
		Configuration: configuration,
		logger:        logger,
		clientBuckets: make(map[string]*TokenBucket),
		cleanupTicker: time.NewTicker(5 * time.Minute),
		stopCleanup:   make(chan struct{}),
	}

	go rateLimiter.cleanup()

	return rateLimiter
}

// Allow reports whether a request from clientKey may proceed.
func (rateLimiter *Limiter) Allow(clientKey string) bool {
	if !rateLimiter.Configuration.RateLimitEnabled {
		return true
	}

	rateLimiter.bucketsMutex.Lock()
	tokenBucket, bucketExists := rateLimiter.clientBuckets[clientKey]
	if !bucketExists {
		tokenBucket = newTokenBucket(
			rateLimiter.Configuration.RateLimitBurst,
			rateLimiter.Configuration.RateLimitRequests,
			rateLimiter.Configuration.RateLimitWindow,
		)
		rateLimiter.clientBuckets[clientKey] = tokenBucket
	}
	rateLimiter.bucketsMutex.Unlock()

	return tokenBucket.Allow(time.Now())
}

// Middleware rejects requests over the limit with 429 and X-RateLimit headers.
func (rateLimiter *Limiter) Middleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		clientIP := context.ClientIP()

		if !rateLimiter.Allow(clientIP) {
			rateLimiter.logger.WithField("client_ip", clientIP).Warn("Rate limit exceeded")
			context.Header("X-RateLimit-Limit", strconv.Itoa(rateLimiter.Configuration.RateLimitRequests))
			context.Header("X-RateLimit-Remaining", "0")
			context.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(rateLimiter.Configuration.RateLimitWindow).Unix(), 10))
			context.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "rate limit exceeded",
				Message: "too many requests, retry later",
				Code:    http.StatusTooManyRequests,
			})
			return
		}

		context.Next()
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rateLimiter *Limiter) Stop() {
	rateLimiter.stopOnce.Do(func() { close(rateLimiter.stopCleanup) })
}

func (rateLimiter *Limiter) cleanup() {
	for {
		select {
		case <-rateLimiter.cleanupTicker.C:
			rateLimiter.evictIdle(time.Now())
		case <-rateLimiter.stopCleanup:
			rateLimiter.cleanupTicker.Stop()
			return
		}
	}
}

// evictIdle drops buckets that have not been used for idleBucketTTL.
func (rateLimiter *Limiter) evictIdle(now time.Time) int {
	rateLimiter.bucketsMutex.Lock()
	defer rateLimiter.bucketsMutex.Unlock()

	evicted := 0
	for clientKey, tokenBucket := range rateLimiter.clientBuckets {
		tokenBucket.mu.Lock()
		idle := now.Sub(tokenBucket.lastSeen) > idleBucketTTL
		tokenBucket.mu.Unlock()
		if idle {
			delete(rateLimiter.clientBuckets, clientKey)
			evicted++
		}
	}
	return evicted
}

func newTokenBucket(capacity, refillRate int, refillPeriod time.Duration) *TokenBucket {
	now := time.Now()
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		lastRefill:   now,
		lastSeen:     now,
		refillRate:   refillRate,
		refillPeriod: refillPeriod,
	}
}

// Allow takes a token if one is available at now.
func (tokenBucket *TokenBucket) Allow(now time.Time) bool {
	tokenBucket.mu.Lock()
	defer tokenBucket.mu.Unlock()

	tokenBucket.lastSeen = now
	if now.After(tokenBucket.lastRefill) && tokenBucket.refillPeriod > 0 {
		elapsed := now.Sub(tokenBucket.lastRefill)
		tokensToAdd := int(elapsed.Seconds() / tokenBucket.refillPeriod.Seconds() * float64(tokenBucket.refillRate))
		if tokensToAdd > 0 {
			tokenBucket.tokens = min(tokenBucket.capacity, tokenBucket.tokens+tokensToAdd)
			tokenBucket.lastRefill = now
		}
	}

	if tokenBucket.tokens > 0 {
		tokenBucket.tokens--
		return true
	}
	return false
}

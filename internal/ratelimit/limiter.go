package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/config"
	"github.com/dalfonso89/rate-ingestion-service/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const idleBucketTTL = 24 * time.Hour

// Limiter implements a token bucket rate limiter per client IP
type Limiter struct {
	Configuration *config.Config
	logger        *logrus.Logger
	now           func() time.Time

	clientBuckets map[string]*TokenBucket
	bucketsMutex  sync.Mutex

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// TokenBucket holds the tokens of one client
type TokenBucket struct {
	capacity     int
	tokens       int
	lastRefill   time.Time
	lastSeen     time.Time
	refillRate   int
	refillPeriod time.Duration
	mu           sync.Mutex
}

// NewLimiter creates a limiter and starts its idle-bucket cleanup
func NewLimiter(configuration *config.Config, logger *logrus.Logger) *Limiter {
	rateLimiter := &Limiter{
		Configuration: configuration,
		logger:        logger,
		now:           time.Now,
		clientBuckets: make(map[string]*TokenBucket),
		cleanupTicker: time.NewTicker(5 * time.Minute),
		stopCleanup:   make(chan struct{}),
	}

	go rateLimiter.cleanup()

	return rateLimiter
}

// Allow checks if a request from clientIP may proceed
func (rateLimiter *Limiter) Allow(clientIP string) bool {
	if !rateLimiter.Configuration.RateLimitEnabled {
		return true
	}

	now := rateLimiter.now()
	rateLimiter.bucketsMutex.Lock()
	tokenBucket, bucketExists := rateLimiter.clientBuckets[clientIP]
	if !bucketExists {
		tokenBucket = &TokenBucket{
			capacity:     rateLimiter.Configuration.RateLimitBurst,
			tokens:       rateLimiter.Configuration.RateLimitBurst,
			lastRefill:   now,
			refillRate:   rateLimiter.Configuration.RateLimitRequests,
			refillPeriod: rateLimiter.Configuration.RateLimitWindow,
		}
		rateLimiter.clientBuckets[clientIP] = tokenBucket
	}
	rateLimiter.bucketsMutex.Unlock()

	return tokenBucket.take(now)
}

// Middleware rejects requests over the limit with 429
func (rateLimiter *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := rateLimiter.GetClientIP(c.Request)

		if !rateLimiter.Allow(clientIP) {
			rateLimiter.logger.WithFields(logrus.Fields{
				"client_ip": clientIP,
				"path":      c.FullPath(),
			}).Warn("Rate limit exceeded")
			c.Header("X-RateLimit-Limit", strconv.Itoa(rateLimiter.Configuration.RateLimitRequests))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(rateLimiter.now().Add(rateLimiter.Configuration.RateLimitWindow).Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error: "rate limit exceeded",
				Code:  http.StatusTooManyRequests,
			})
			return
		}

		c.Next()
	}
}

// GetClientIP extracts the client IP, preferring proxy headers
func (rateLimiter *Limiter) GetClientIP(request *http.Request) string {
	if xForwardedFor := request.Header.Get("X-Forwarded-For"); xForwardedFor != "" {
		// First hop is the original client
		first := strings.TrimSpace(strings.Split(xForwardedFor, ",")[0])
		if clientIP := parseIP(first); clientIP != "" {
			return clientIP
		}
	}

	if xRealIP := request.Header.Get("X-Real-IP"); xRealIP != "" {
		if clientIP := parseIP(strings.TrimSpace(xRealIP)); clientIP != "" {
			return clientIP
		}
	}

	clientIP, _, parseError := net.SplitHostPort(request.RemoteAddr)
	if parseError != nil {
		return request.RemoteAddr
	}
	return clientIP
}

func parseIP(value string) string {
	if ip := net.ParseIP(value); ip != nil {
		return ip.String()
	}
	if host, _, err := net.SplitHostPort(value); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip.String()
		}
	}
	return ""
}

func (rateLimiter *Limiter) cleanup() {
	for {
		select {
		case <-rateLimiter.cleanupTicker.C:
			rateLimiter.evictIdle()
		case <-rateLimiter.stopCleanup:
			rateLimiter.cleanupTicker.Stop()
			return
		}
	}
}

// evictIdle drops buckets of clients not seen within idleBucketTTL
func (rateLimiter *Limiter) evictIdle() int {
	now := rateLimiter.now()
	evicted := 0

	rateLimiter.bucketsMutex.Lock()
	defer rateLimiter.bucketsMutex.Unlock()
	for clientIP, tokenBucket := range rateLimiter.clientBuckets {
		tokenBucket.mu.Lock()
		idle := now.Sub(tokenBucket.lastSeen) > idleBucketTTL
		tokenBucket.mu.Unlock()
		if idle {
			delete(rateLimiter.clientBuckets, clientIP)
			evicted++
		}
	}
	if evicted > 0 {
		rateLimiter.logger.WithField("evicted", evicted).Debug("Evicted idle rate limit buckets")
	}
	return evicted
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rateLimiter *Limiter) Stop() {
	rateLimiter.stopOnce.Do(func() {
		close(rateLimiter.stopCleanup)
	})
}

// Allow takes one token if available
func (tokenBucket *TokenBucket) Allow() bool {
	return tokenBucket.take(time.Now())
}

func (tokenBucket *TokenBucket) take(now time.Time) bool {
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

package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore keeps one token bucket per caller key
type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	perMin    int
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterStore(perMin int) *limiterStore {
	return &limiterStore{
		limiters: make(map[string]*limiterEntry),
		perMin:   perMin,
		now:      time.Now,
	}
}

func (s *limiterStore) allow(key string) bool {
	if s.perMin <= 0 {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > limiterIdleTTL {
		for k, e := range s.limiters {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.perMin)), s.perMin)}
		s.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func clientIP(c *gin.Context) string {
	return c.ClientIP()
}

// whatsAppSender keys on the phone number; every webhook arrives from the
// provider's addresses, so the IP says nothing about the user.
func whatsAppSender(c *gin.Context) string {
	if from := c.PostForm("From"); from != "" {
		return from
	}
	return c.ClientIP()
}

func rateLimit(store *limiterStore, logger *zap.Logger, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := key(c)
		if !store.allow(k) {
			logger.Warn("rate limit exceeded", zap.String("key", k), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Message: "Rate limit exceeded. Try again later."})
			return
		}
		c.Next()
	}
}

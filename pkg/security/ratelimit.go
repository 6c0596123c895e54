package security

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ByClientIP buckets requests by the resolved client address.
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const sweepInterval = time.Minute

type limiterStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	every     rate.Limit
	burst     int
	expiry    time.Duration
	lastSweep time.Time
}

func newLimiterStore(maxRequests int, window time.Duration) *limiterStore {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	expiry := window * 3
	if expiry < sweepInterval {
		expiry = sweepInterval
	}
	return &limiterStore{
		visitors:  make(map[string]*visitor),
		every:     rate.Every(window / time.Duration(maxRequests)),
		burst:     maxRequests,
		expiry:    expiry,
		lastSweep: time.Now(),
	}
}

// allow charges key one token. Idle keys are dropped on the request path, at
// most once per sweepInterval.
func (s *limiterStore) allow(key string, now time.Time) bool {
	s.mu.Lock()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweepLocked(s.expiry, now)
	}
	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.every, s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	s.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

func (s *limiterStore) sweep(expiry time.Duration, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(expiry, now)
}

func (s *limiterStore) sweepLocked(expiry time.Duration, now time.Time) {
	for k, v := range s.visitors {
		if now.Sub(v.lastSeen) > expiry {
			delete(s.visitors, k)
		}
	}
	s.lastSweep = now
}

// RateLimiter 令牌桶限流；过期 key 在请求路径上每分钟最多清理一次
func RateLimiter(maxRequests int, window time.Duration, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ByClientIP
	}
	store := newLimiterStore(maxRequests, window)

	return func(c *gin.Context) {
		if !store.allow(key(c), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}

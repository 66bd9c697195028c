package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/turtacn/molcore/pkg/errors"
)

// DefaultMaxClients bounds the number of client buckets kept in memory.
const DefaultMaxClients = 10000

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client.
	RequestsPerSecond float64
	// Burst is the bucket size.
	Burst int
	// MaxClients bounds the tracked clients; the least recently seen client
	// is forgotten first.
	MaxClients int
	// KeyFunc extracts the client key. Defaults to the remote IP.
	KeyFunc func(r *http.Request) string
}

type tokenBucket struct {
	tokens float64
	last   time.Time
}

// RateLimiter is a per-client token bucket limiter. Buckets live in a
// bounded LRU so a scan from many addresses cannot grow memory without
// limit.
type RateLimiter struct {
	rate    float64
	burst   int
	keyFunc func(r *http.Request) string
	now     func() time.Time

	mu      sync.Mutex
	buckets *lru.Cache[string, *tokenBucket]
}

// NewRateLimiter validates cfg and creates the limiter.
func NewRateLimiter(cfg RateLimitConfig) (*RateLimiter, error) {
	if cfg.RequestsPerSecond <= 0 || cfg.Burst < 1 {
		return nil, errors.InvalidParam("rate limit needs a positive rate and burst").
			WithDetail("rate=" + strconv.FormatFloat(cfg.RequestsPerSecond, 'g', -1, 64) + " burst=" + strconv.Itoa(cfg.Burst))
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = DefaultMaxClients
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	buckets, err := lru.New[string, *tokenBucket](cfg.MaxClients)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create rate limit buckets")
	}
	return &RateLimiter{
		rate:    cfg.RequestsPerSecond,
		burst:   cfg.Burst,
		keyFunc: cfg.KeyFunc,
		now:     time.Now,
		buckets: buckets,
	}, nil
}

// Allow takes one token from key's bucket. When the bucket is empty it
// returns false and the wait until the next token.
func (l *RateLimiter) Allow(key string) (allowed bool, remaining int, retryAfter time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets.Get(key)
	if !ok {
		b = &tokenBucket{tokens: float64(l.burst), last: now}
		l.buckets.Add(key, b)
	}
	b.tokens = math.Min(float64(l.burst), b.tokens+now.Sub(b.last).Seconds()*l.rate)
	b.last = now

	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
		return false, 0, wait
	}
	b.tokens--
	return true, int(b.tokens), 0
}

// Handler rejects requests over the limit with 429 and a Retry-After
// header.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, remaining, wait := l.Allow(l.keyFunc(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		secs := int(math.Ceil(wait.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    string(errors.ErrCodeTooManyRequests),
			"message": errors.DefaultMessageForCode(errors.ErrCodeTooManyRequests),
		})
	})
}

// Clients returns the number of tracked clients.
func (l *RateLimiter) Clients() int { return l.buckets.Len() }

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

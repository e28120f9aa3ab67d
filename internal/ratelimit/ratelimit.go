// Package ratelimit implements the per-IP token bucket limiter described
// in spec C3: refill rate R tokens/sec up to burst B, admitting a request
// when at least one token is available.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Mirror is an optional cross-process counter of requests per IP; it is
// never consulted for admission. A nil Mirror (the default) keeps the
// limiter fully in-memory.
type Mirror interface {
	IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type bucket struct {
	ts     time.Time
	tokens float64
}

// Limiter is a per-IP token bucket. Zero value is not usable; construct
// with New.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	rps   float64
	burst float64
	now   func() time.Time

	mirror       Mirror
	mirrorPrefix string
}

type Option func(*Limiter)

// WithMirror attaches a best-effort Redis-backed mirror of request counts
// (admitted and rejected alike), keyed per IP, for cross-process
// observability only. A mirror failure never affects admission decisions.
func WithMirror(m Mirror, prefix string) Option {
	return func(l *Limiter) {
		l.mirror = m
		l.mirrorPrefix = prefix
	}
}

func New(rps, burst int, opts ...Option) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		rps:     float64(rps),
		burst:   float64(burst),
		now:     time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Allow consumes one token for ip if available, applying refill since the
// bucket's last touch. Returns false (reject) when the bucket is empty.
func (l *Limiter) Allow(ip string) bool {
	now := l.now()
	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{ts: now, tokens: l.burst}
		l.buckets[ip] = b
	}
	dt := now.Sub(b.ts).Seconds()
	if dt < 0 {
		dt = 0
	}
	b.ts = now
	b.tokens = min(l.burst, b.tokens+dt*l.rps)
	admit := b.tokens >= 1.0
	if admit {
		b.tokens -= 1.0
	}
	l.mu.Unlock()

	if l.mirror != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			_, _ = l.mirror.IncrWithExpire(ctx, l.mirrorPrefix+"rl:"+ip, 10*time.Second)
		}()
	}

	return admit
}

// ClientIP extracts the rate-limit key from X-Forwarded-For (first token)
// when present, else falls back to the caller-supplied socket peer.
func ClientIP(xff, remoteAddr string) string {
	if xff != "" {
		if i := indexComma(xff); i >= 0 {
			xff = xff[:i]
		}
		xff = trimSpace(xff)
		if xff != "" {
			return xff
		}
	}
	if remoteAddr != "" {
		return remoteAddr
	}
	return "0.0.0.0"
}

func indexComma(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			return i
		}
	}
	return -1
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

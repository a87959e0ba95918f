package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	initialPause = 500 * time.Millisecond
	maxPause     = 2 * time.Minute
)

// Limiter paces requests to one bar source. After the source reports
// throttling every caller pauses; the throttled request itself is not retried.
type Limiter struct {
	limiter *rate.Limiter
	name    string

	mu          sync.Mutex
	pause       time.Duration
	pausedUntil time.Time
	now         func() time.Time
}

// NewLimiter creates a limiter allowing perMinute requests per minute.
// perMinute <= 0 disables pacing.
func NewLimiter(name string, perMinute int) *Limiter {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
		burst = min(max(perMinute/10, 1), 5)
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		name:    name,
		pause:   initialPause,
		now:     time.Now,
	}
}

// Wait blocks until the pause is over and a token is available, or ctx ends
func (l *Limiter) Wait(ctx context.Context) error {
	if d := l.Paused(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may go out right now
func (l *Limiter) Allow() bool {
	if l.Paused() > 0 {
		return false
	}
	return l.limiter.Allow()
}

// Throttled pauses the limiter. Consecutive calls double the pause up to two minutes.
func (l *Limiter) Throttled() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pausedUntil = l.now().Add(l.pause)
	l.pause = min(l.pause*2, maxPause)
}

// Succeeded resets the pause length after a good response
func (l *Limiter) Succeeded() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pause = initialPause
}

// Paused returns the remaining pause
func (l *Limiter) Paused() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d := l.pausedUntil.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// Name returns the limiter name
func (l *Limiter) Name() string {
	return l.name
}

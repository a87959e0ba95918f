package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"bondsignal/internal/cache"
	"bondsignal/pkg/model"
)

// CachingProvider wraps a Provider with a TTL cache. It always fetches
// maxDays so requests for shorter histories share one entry.
type CachingProvider struct {
	inner   Provider
	store   cache.Store
	ttl     time.Duration
	maxDays int
	log     zerolog.Logger
}

// NewCachingProvider creates a caching wrapper
func NewCachingProvider(inner Provider, store cache.Store, ttl time.Duration, maxDays int, log zerolog.Logger) *CachingProvider {
	return &CachingProvider{
		inner:   inner,
		store:   store,
		ttl:     ttl,
		maxDays: maxDays,
		log:     log.With().Str("component", "cache").Logger(),
	}
}

func (p *CachingProvider) Name() string { return p.inner.Name() }

func (p *CachingProvider) key(code string) string {
	return "bars:" + p.inner.Name() + ":" + code
}

func (p *CachingProvider) GetDailyBars(ctx context.Context, code string, days int) ([]model.Bar, error) {
	var cached []model.Bar
	err := p.store.Get(ctx, p.key(code), &cached)
	if err == nil && p.covers(days, len(cached)) {
		return tail(cached, days), nil
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		// a broken cache must not stop analysis
		p.log.Warn().Err(err).Str("bond", code).Msg("cache read failed")
	}

	fetchDays := p.maxDays
	if days <= 0 || days > fetchDays {
		fetchDays = days
	}

	bars, err := p.inner.GetDailyBars(ctx, code, fetchDays)
	if err != nil {
		return nil, err
	}

	if err := p.store.Set(ctx, p.key(code), bars, p.ttl); err != nil {
		p.log.Warn().Err(err).Str("bond", code).Msg("cache write failed")
	}
	return tail(bars, days), nil
}

// covers reports whether a cached entry of n bars answers a request for days.
// Entries are fetched with at least maxDays, so a shorter entry is the whole history.
func (p *CachingProvider) covers(days, n int) bool {
	if days <= 0 {
		return p.maxDays <= 0
	}
	return days <= n || days <= p.maxDays
}

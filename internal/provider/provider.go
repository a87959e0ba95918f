package provider

import (
	"context"
	"errors"
	"fmt"

	"bondsignal/pkg/model"
)

// ErrNotFound is returned when a source has no bars for a bond
var ErrNotFound = errors.New("bond not found")

// Provider is a source of daily bars
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetDailyBars returns up to days chronological daily bars for a bond code.
	// days <= 0 returns everything the source has.
	GetDailyBars(ctx context.Context, code string, days int) ([]model.Bar, error)
}

// ProviderError represents a provider-specific error
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// FallbackProvider tries multiple providers in order
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a new fallback provider, skipping nil entries
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			available = append(available, p)
		}
	}
	return &FallbackProvider{providers: available}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetDailyBars tries each provider in order until one returns bars
func (f *FallbackProvider) GetDailyBars(ctx context.Context, code string, days int) ([]model.Bar, error) {
	if len(f.providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	var errs []error
	for _, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := p.GetDailyBars(ctx, code, days)
		if err == nil && len(bars) > 0 {
			return bars, nil
		}
		if err == nil {
			err = &ProviderError{Provider: p.Name(), Err: ErrNotFound}
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// Providers returns the list of underlying providers
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}

// tail returns the last days bars
func tail(bars []model.Bar, days int) []model.Bar {
	if days > 0 && len(bars) > days {
		return bars[len(bars)-days:]
	}
	return bars
}

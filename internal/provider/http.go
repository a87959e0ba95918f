package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"bondsignal/internal/ratelimit"
	"bondsignal/pkg/model"
)

// HTTPProvider fetches bars from a JSON endpoint at <base>/bars/<code>?days=N.
// Each call makes a single attempt.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	limiter *ratelimit.Limiter
}

// NewHTTPProvider creates a new HTTP bar source limited to perMinute requests
func NewHTTPProvider(baseURL string, perMinute int, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: ratelimit.NewLimiter("http", perMinute),
	}
}

func (p *HTTPProvider) Name() string { return "http" }

func (p *HTTPProvider) GetDailyBars(ctx context.Context, code string, days int) ([]model.Bar, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/bars/%s", p.baseURL, url.PathEscape(code))
	if days > 0 {
		u += "?days=" + strconv.Itoa(days)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s: %w", code, ErrNotFound)}
	case http.StatusTooManyRequests:
		p.limiter.Throttled()
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited")}
	default:
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	p.limiter.Succeeded()

	var bars []model.Bar
	if err := json.NewDecoder(resp.Body).Decode(&bars); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decoding response: %w", err)}
	}
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})
	return tail(bars, days), nil
}

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"bondsignal/internal/config"
	"bondsignal/internal/engine"
	"bondsignal/internal/metrics"
	"bondsignal/internal/provider"
	"bondsignal/internal/reference"
	"bondsignal/internal/scanner"
	"bondsignal/pkg/model"
)

func makeBars(n int) []model.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		c := 112 + 5*math.Sin(float64(i)/6)
		bars[i] = model.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000 + float64(i%4)*100}
	}
	return bars
}

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) GetDailyBars(ctx context.Context, code string, days int) ([]model.Bar, error) {
	if code == "missing" {
		return nil, &provider.ProviderError{Provider: "stub", Err: provider.ErrNotFound}
	}
	return makeBars(days), nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	refs, err := reference.New([]reference.Record{{
		Bond:      model.Bond{Code: "113001", Name: "Alpha"},
		Reference: model.Reference{PremiumRate: model.Float(15)},
	}})
	if err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	a := engine.New(engine.DefaultConfig(), zerolog.Nop())
	scan := scanner.NewScanner(stubProvider{}, a, refs, scanner.Config{Workers: 2, BondTimeout: 5 * time.Second, Days: 120}, rec, zerolog.Nop())

	cfg := config.DefaultConfig().Server
	return NewServer(cfg, Deps{
		Analyzer: a,
		Provider: stubProvider{},
		Universe: refs,
		Scanner:  scan,
		Gatherer: reg,
		Log:      zerolog.Nop(),
	})
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/analyze", AnalyzeRequest{
		Bond: model.Bond{Code: "113001"},
		Bars: makeBars(100),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res engine.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("Decoding result: %v", err)
	}
	if res.Bars != 100 || res.Decision.Signal == "" {
		t.Errorf("Unexpected result: bars=%d signal=%q", res.Bars, res.Decision.Signal)
	}

	rec = do(t, s, http.MethodPost, "/api/analyze", AnalyzeRequest{Bond: model.Bond{Code: "113001"}})
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "validation failed") {
		t.Errorf("Expected validation error, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAnalyzeOrdersBars(t *testing.T) {
	s := newTestServer(t)
	bars := makeBars(100)
	latest := bars[len(bars)-1]

	reversed := make([]model.Bar, len(bars))
	for i, b := range bars {
		reversed[len(bars)-1-i] = b
	}

	rec := do(t, s, http.MethodPost, "/api/analyze", AnalyzeRequest{Bond: model.Bond{Code: "113001"}, Bars: reversed})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res engine.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("Decoding result: %v", err)
	}
	if !res.AsOf.Equal(latest.Time) {
		t.Errorf("Expected as_of %s, got %s", latest.Time, res.AsOf)
	}
	if math.Abs(res.Price-latest.Close) > 1e-9 {
		t.Errorf("Expected price %.4f, got %.4f", latest.Close, res.Price)
	}
}

func TestBond(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/bonds/113001?days=90", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res engine.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Bond.Name != "Alpha" || res.Reference == nil || res.Bars != 90 {
		t.Errorf("Expected reference-enriched result over 90 bars, got %+v", res.Bond)
	}

	if rec := do(t, s, http.MethodGet, "/api/bonds/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/bonds/113001?days=abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestBonds(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/api/bonds", nil)
	var bonds []model.Bond
	if err := json.Unmarshal(rec.Body.Bytes(), &bonds); err != nil || len(bonds) != 1 {
		t.Errorf("Expected one bond, got %s", rec.Body.String())
	}
}

func TestRisk(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/risk", RiskRequest{
		Entry:  100,
		ATR:    2,
		Prices: []float64{101, 103, 101.9},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp RiskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.FixedStop != 96 || len(resp.Updates) != 3 {
		t.Errorf("Unexpected plan: fixed %.2f, %d updates", resp.FixedStop, len(resp.Updates))
	}
	if resp.StoppedAt != 2 {
		t.Errorf("Expected stop at index 2, got %d", resp.StoppedAt)
	}
	if resp.Ladder[0].Reached {
		t.Error("Opening ladder should be unreached")
	}

	if rec := do(t, s, http.MethodPost, "/api/risk", RiskRequest{Entry: -1}); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a negative entry, got %d", rec.Code)
	}
}

func TestScan(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/scan", ScanRequest{Codes: []string{"113001", "113002", "missing"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ScanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Scanned != 3 || len(resp.Results) != 2 || len(resp.Failures) != 1 {
		t.Errorf("Unexpected scan: scanned %d results %d failures %d", resp.Scanned, len(resp.Results), len(resp.Failures))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/scan", ScanRequest{Codes: []string{"113001"}})

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "bondsignal_scans_total 1") {
		t.Errorf("Expected scan counter in metrics, got %d", rec.Code)
	}
}

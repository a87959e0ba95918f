package scanner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"bondsignal/internal/engine"
	"bondsignal/internal/metrics"
	"bondsignal/internal/provider"
	"bondsignal/internal/reference"
	"bondsignal/pkg/model"
)

type fakeProvider struct {
	delay    time.Duration
	inFlight int32
	maxSeen  int32
	calls    int32
	onCall   func()
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) GetDailyBars(ctx context.Context, code string, days int) ([]model.Bar, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	if f.onCall != nil {
		f.onCall()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if code == "missing" {
		return nil, &provider.ProviderError{Provider: "fake", Err: provider.ErrNotFound}
	}

	// the phase differs per code so scores differ
	var phase float64
	for _, c := range code {
		phase += float64(c)
	}
	bars := make([]model.Bar, 120)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := 110 + 6*math.Sin((float64(i)+phase)/6)
		bars[i] = model.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000 + float64(i%7)*100}
	}
	return bars, nil
}

func newScanner(p provider.Provider, workers int, refs References) *Scanner {
	a := engine.New(engine.DefaultConfig(), zerolog.Nop())
	cfg := Config{Workers: workers, BondTimeout: 5 * time.Second, Days: 120}
	return NewScanner(p, a, refs, cfg, metrics.New(prometheus.NewRegistry()), zerolog.Nop())
}

func codes(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("1130%02d", i)
	}
	return out
}

func TestScanEmpty(t *testing.T) {
	res, err := newScanner(&fakeProvider{}, 2, nil).Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Total != 0 || len(res.Results) != 0 || res.ID == "" {
		t.Errorf("Unexpected result: %+v", res)
	}
}

func TestScanSortsAndReportsFailures(t *testing.T) {
	p := &fakeProvider{}
	s := newScanner(p, 4, nil)

	var mu sync.Mutex
	var progress []int
	s.SetProgressCallback(func(scanned, total int) {
		mu.Lock()
		progress = append(progress, scanned)
		mu.Unlock()
		if total != 9 {
			t.Errorf("Expected total 9, got %d", total)
		}
	})

	res, err := s.ScanCodes(context.Background(), append(codes(8), "missing"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Scanned != 9 || len(res.Results) != 8 {
		t.Errorf("Expected 9 scanned and 8 results, got %d and %d", res.Scanned, len(res.Results))
	}
	if len(res.Failures) != 1 || res.Failures[0].Code != "missing" || res.Failures[0].Stage != "fetch" {
		t.Errorf("Expected one fetch failure, got %+v", res.Failures)
	}
	for i := 1; i < len(res.Results); i++ {
		if res.Results[i].Score() > res.Results[i-1].Score() {
			t.Errorf("Results not sorted at %d: %.2f > %.2f", i, res.Results[i].Score(), res.Results[i-1].Score())
		}
	}
	if len(progress) != 9 {
		t.Errorf("Expected 9 progress updates, got %d", len(progress))
	}
}

func TestScanBoundsConcurrency(t *testing.T) {
	p := &fakeProvider{delay: 20 * time.Millisecond}
	if _, err := newScanner(p, 3, nil).ScanCodes(context.Background(), codes(12)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if peak := atomic.LoadInt32(&p.maxSeen); peak > 3 || peak < 1 {
		t.Errorf("Expected at most 3 concurrent fetches, saw %d", peak)
	}
}

func TestScanCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &fakeProvider{}
	p.onCall = cancel
	res, err := newScanner(p, 1, nil).ScanCodes(ctx, codes(5))

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls := atomic.LoadInt32(&p.calls); calls != 1 {
		t.Errorf("Expected the scan to stop after the first bond, got %d fetches", calls)
	}
	if res == nil || res.Scanned != 1 {
		t.Errorf("Expected the finished bond in the partial result, got %+v", res)
	}
}

func TestScanUsesReferences(t *testing.T) {
	refs, err := reference.New([]reference.Record{{
		Bond:      model.Bond{Code: "113000", Name: "Alpha"},
		Reference: model.Reference{CallRiskDistance: model.Float(1)},
	}})
	if err != nil {
		t.Fatal(err)
	}

	res, err := newScanner(&fakeProvider{}, 2, refs).ScanCodes(context.Background(), []string{"113000", "113001"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, r := range res.Results {
		switch r.Bond.Code {
		case "113000":
			if r.Bond.Name != "Alpha" || !r.Buy.Invalidated {
				t.Errorf("Expected named, invalidated result, got %s invalidated=%v", r.Bond.Name, r.Buy.Invalidated)
			}
		case "113001":
			if r.Reference != nil {
				t.Error("Unknown bonds should be analyzed without a reference")
			}
		}
	}
}

func TestFilter(t *testing.T) {
	r := &ScanResult{Results: []*engine.Result{{}, {}}}
	r.Results[0].Buy.Value = 70
	r.Results[1].Buy.Value = 20
	if got := r.Filter(50); len(got) != 1 {
		t.Errorf("Expected 1 result above 50, got %d", len(got))
	}
}

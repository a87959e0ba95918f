package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bondsignal/internal/engine"
	"bondsignal/internal/metrics"
	"bondsignal/internal/provider"
	"bondsignal/internal/reference"
	"bondsignal/pkg/model"
)

// ProgressCallback is called with progress updates
type ProgressCallback func(scanned, total int)

// References looks up reference records. A missing record is not an error.
type References interface {
	Get(code string) (model.Bond, *model.Reference, error)
}

// Config holds scanner settings
type Config struct {
	Workers     int           `yaml:"workers" default:"8" validate:"gte=1,lte=64"`
	BondTimeout time.Duration `yaml:"bond_timeout" default:"30s" validate:"gt=0"`
	Days        int           `yaml:"days" default:"250" validate:"gte=30"`
}

// Failure records a bond that could not be analyzed
type Failure struct {
	Code  string `json:"code"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// ScanResult holds the outcome of one scan
type ScanResult struct {
	ID       string           `json:"id"`
	Total    int              `json:"total"`
	Scanned  int              `json:"scanned"`
	Results  []*engine.Result `json:"results"`
	Failures []Failure        `json:"failures,omitempty"`
	ScanTime time.Duration    `json:"scan_time"`
}

// Scanner analyzes many bonds in parallel
type Scanner struct {
	provider     provider.Provider
	analyzer     *engine.Analyzer
	refs         References
	config       Config
	metrics      *metrics.Recorder
	log          zerolog.Logger
	progressFunc ProgressCallback
}

// NewScanner creates a new scanner. refs and rec may be nil.
func NewScanner(p provider.Provider, a *engine.Analyzer, refs References, cfg Config, rec *metrics.Recorder, log zerolog.Logger) *Scanner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Scanner{
		provider: p,
		analyzer: a,
		refs:     refs,
		config:   cfg,
		metrics:  rec,
		log:      log.With().Str("component", "scanner").Logger(),
	}
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(fn ProgressCallback) {
	s.progressFunc = fn
}

type outcome struct {
	result  *engine.Result
	failure *Failure
}

// Scan analyzes bonds with a bounded worker pool and returns the results
// sorted by buy score, best first. Cancellation is checked between bonds;
// a cancelled scan returns what finished along with the context error.
func (s *Scanner) Scan(ctx context.Context, bonds []model.Bond) (*ScanResult, error) {
	startTime := time.Now()
	scan := &ScanResult{
		ID:      uuid.NewString(),
		Total:   len(bonds),
		Results: []*engine.Result{},
	}
	log := s.log.With().Str("scan", scan.ID).Logger()

	if len(bonds) == 0 {
		return scan, nil
	}

	jobChan := make(chan model.Bond, len(bonds))
	outChan := make(chan outcome, len(bonds))
	for _, bond := range bonds {
		jobChan <- bond
	}
	close(jobChan)

	var scannedCount int64
	workers := min(s.config.Workers, len(bonds))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for bond := range jobChan {
				if ctx.Err() != nil {
					return
				}
				outChan <- s.scanOne(ctx, bond)

				count := atomic.AddInt64(&scannedCount, 1)
				if s.progressFunc != nil {
					s.progressFunc(int(count), len(bonds))
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(outChan)
	}()

	for out := range outChan {
		scan.Scanned++
		if out.failure != nil {
			log.Warn().Str("bond", out.failure.Code).Str("stage", out.failure.Stage).Msg(out.failure.Error)
			scan.Failures = append(scan.Failures, *out.failure)
			continue
		}
		scan.Results = append(scan.Results, out.result)
	}

	sort.SliceStable(scan.Results, func(i, j int) bool {
		return scan.Results[i].Score() > scan.Results[j].Score()
	})
	sort.Slice(scan.Failures, func(i, j int) bool {
		return scan.Failures[i].Code < scan.Failures[j].Code
	})
	scan.ScanTime = time.Since(startTime)
	s.metrics.RecordScan()

	log.Info().
		Int("total", scan.Total).
		Int("scanned", scan.Scanned).
		Int("results", len(scan.Results)).
		Int("failures", len(scan.Failures)).
		Dur("took", scan.ScanTime).
		Msg("scan finished")

	if err := ctx.Err(); err != nil {
		return scan, fmt.Errorf("scan interrupted: %w", err)
	}
	return scan, nil
}

func (s *Scanner) scanOne(ctx context.Context, bond model.Bond) outcome {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.config.BondTimeout)
	defer cancel()

	fail := func(stage string, err error) outcome {
		if errors.Is(err, context.DeadlineExceeded) {
			stage = "timeout"
		}
		s.metrics.RecordError(stage)
		return outcome{failure: &Failure{Code: bond.Code, Stage: stage, Error: err.Error()}}
	}

	var ref *model.Reference
	if s.refs != nil {
		b, r, err := s.refs.Get(bond.Code)
		switch {
		case err == nil:
			ref = r
			if bond.Name == "" {
				bond = b
			}
		case !errors.Is(err, reference.ErrUnknownBond):
			return fail("reference", err)
		}
	}

	bars, err := s.provider.GetDailyBars(ctx, bond.Code, s.config.Days)
	if err != nil {
		return fail("fetch", err)
	}

	res, err := s.analyzer.Analyze(bond, bars, ref)
	if err != nil {
		return fail("analyze", err)
	}
	s.metrics.RecordAnalysis(string(res.Signal()), res.Buy.Value, res.Sell.Value, time.Since(start))
	return outcome{result: res}
}

// ScanCodes scans bonds by code
func (s *Scanner) ScanCodes(ctx context.Context, codes []string) (*ScanResult, error) {
	bonds := make([]model.Bond, len(codes))
	for i, code := range codes {
		bonds[i] = model.Bond{Code: code}
	}
	return s.Scan(ctx, bonds)
}

// Filter keeps results at or above minScore
func (r *ScanResult) Filter(minScore float64) []*engine.Result {
	var out []*engine.Result
	for _, res := range r.Results {
		if res.Score() >= minScore {
			out = append(out, res)
		}
	}
	return out
}

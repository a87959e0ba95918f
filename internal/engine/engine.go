package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bondsignal/internal/analyzer"
	"bondsignal/internal/indicator"
	"bondsignal/internal/rating"
	"bondsignal/internal/risk"
	"bondsignal/internal/scoring"
	"bondsignal/internal/strategy"
	"bondsignal/pkg/model"
)

// ErrNoBars is returned when there is nothing to analyze
var ErrNoBars = errors.New("no bars to analyze")

// Config bundles the settings of every pipeline stage
type Config struct {
	MinBars  int `yaml:"min_bars" validate:"gte=2"`
	FullBars int `yaml:"full_bars" validate:"gtefield=MinBars"` // below this the result carries a warning

	Indicator indicator.Config      `yaml:"indicator"`
	Swing     analyzer.SwingConfig  `yaml:"swing"`
	Regime    analyzer.RegimeConfig `yaml:"regime"`
	Signals   strategy.Config       `yaml:"signals"`
	Scoring   scoring.Config        `yaml:"scoring"`
	Rating    rating.Config         `yaml:"rating"`
	Risk      risk.Config           `yaml:"risk"`
}

// DefaultConfig returns the default pipeline settings
func DefaultConfig() Config {
	return Config{
		MinBars:   30,
		FullBars:  60,
		Indicator: indicator.DefaultConfig(),
		Swing:     analyzer.DefaultSwingConfig(),
		Regime:    analyzer.DefaultRegimeConfig(),
		Signals:   strategy.DefaultConfig(),
		Scoring:   scoring.DefaultConfig(),
		Rating:    rating.DefaultConfig(),
		Risk:      risk.DefaultConfig(),
	}
}

// Prerequisites reports whether the data is good enough to act on
type Prerequisites struct {
	Passed   bool     `json:"passed"`
	Messages []string `json:"messages,omitempty"`
}

// Result is the full analysis of one bond
type Result struct {
	Bond          model.Bond           `json:"bond"`
	AsOf          time.Time            `json:"as_of"`
	Price         float64              `json:"price"`
	Bars          int                  `json:"bars"`
	Prerequisites Prerequisites        `json:"prerequisites"`
	Regime        analyzer.RegimeState `json:"regime"`
	Latest        indicator.Frame      `json:"latest"`
	Defaulted     []string             `json:"defaulted,omitempty"`
	Swing         *analyzer.Swing      `json:"swing,omitempty"`
	Swings        []analyzer.Swing     `json:"swings,omitempty"`
	BuySignals    []strategy.Signal    `json:"buy_signals"`
	SellSignals   []strategy.Signal    `json:"sell_signals"`
	Buy           scoring.Composite    `json:"buy"`
	Sell          scoring.Composite    `json:"sell"`
	Decision      scoring.Decision     `json:"decision"`
	Rating        rating.Rating        `json:"rating"`
	Reference     *model.Reference     `json:"reference,omitempty"`
	Risk          *risk.State          `json:"risk,omitempty"`
}

// Score is the buy-side composite used for ranking
func (r *Result) Score() float64 {
	return r.Buy.Value
}

// Signal is the overall technical signal
func (r *Result) Signal() scoring.Overall {
	return r.Decision.Signal
}

// Analyzer runs the single-bond pipeline. It holds no per-call state and is
// safe for concurrent use.
type Analyzer struct {
	config     Config
	detector   *analyzer.SwingDetector
	classifier *analyzer.RegimeClassifier
	generator  *strategy.Generator
	scorer     *scoring.Scorer
	rater      *rating.Engine
	risk       *risk.Manager
	log        zerolog.Logger
}

// New creates an analyzer
func New(cfg Config, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		config:     cfg,
		detector:   analyzer.NewSwingDetector(cfg.Swing),
		classifier: analyzer.NewRegimeClassifier(cfg.Regime),
		generator:  strategy.NewGenerator(cfg.Signals),
		scorer:     scoring.NewScorer(cfg.Scoring),
		rater:      rating.NewEngine(cfg.Rating),
		risk:       risk.NewManager(cfg.Risk),
		log:        log.With().Str("component", "engine").Logger(),
	}
}

// Analyze runs indicators, swing detection, regime classification, signal
// generation, scoring and rating over bars. ref may be nil.
func (a *Analyzer) Analyze(bond model.Bond, bars []model.Bar, ref *model.Reference) (*Result, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", bond.Code, ErrNoBars)
	}

	series := indicator.Compute(bars, a.config.Indicator)
	latest, _ := series.Latest()
	previous, hasPrevious := series.Previous()

	regime := a.classifier.Classify(series)
	swings := a.detector.Detect(bars)

	result := &Result{
		Bond:      bond,
		AsOf:      latest.Time,
		Price:     latest.Close,
		Bars:      len(bars),
		Regime:    regime,
		Latest:    latest,
		Defaulted: series.Defaulted,
		Swings:    swings,
		Reference: ref,
	}

	in := strategy.Input{
		Latest:      latest,
		Previous:    previous,
		HasPrevious: hasPrevious,
		Regime:      regime,
		Reference:   ref,
	}
	if sw, ok := analyzer.LatestSwing(swings); ok {
		result.Swing = &sw
		// swings smaller than the regime minimum are context only
		if sw.AmplitudePct >= regime.Params.MinSwingPct {
			in.Swing = &sw
		}
	}

	signals := a.generator.Generate(in)
	result.BuySignals = strategy.Filter(signals, strategy.SideBuy)
	result.SellSignals = strategy.Filter(signals, strategy.SideSell)
	result.Buy = a.scorer.Score(signals, strategy.SideBuy)
	result.Sell = a.scorer.Score(signals, strategy.SideSell)

	result.Prerequisites = a.checkPrerequisites(series, ref)
	result.Decision = a.scorer.Decide(scoring.DecisionInput{
		Buy:                 result.Buy,
		Sell:                result.Sell,
		Regime:              regime.Regime,
		PrerequisitesPassed: result.Prerequisites.Passed,
		Signals:             signals,
	})
	result.Rating = a.rater.Evaluate(rating.Input{
		Price:     latest.Close,
		Reference: ref,
		Composite: result.Buy,
		Signal:    result.Decision.Signal,
	})

	if latest.Close > 0 {
		result.Risk = a.RiskPlan(series, regime, latest.Close)
	}

	a.log.Debug().
		Str("bond", bond.Code).
		Int("bars", len(bars)).
		Str("regime", string(regime.Regime)).
		Float64("buy", result.Buy.Value).
		Float64("sell", result.Sell.Value).
		Str("signal", string(result.Decision.Signal)).
		Str("rating", string(result.Rating.Label)).
		Msg("analysis complete")

	return result, nil
}

// RiskPlan opens a risk state at entry using the latest ATR, the close
// history and the regime stop-loss.
func (a *Analyzer) RiskPlan(series indicator.Series, regime analyzer.RegimeState, entry float64) *risk.State {
	opts := risk.OpenOptions{StopLossPct: regime.Params.StopLossPct}
	if latest, ok := series.Latest(); ok && !series.IsDefaulted(indicator.NameATR) {
		opts.ATR = latest.ATR
	}
	opts.History = model.Closes(series.Bars())
	return a.risk.Open(entry, opts)
}

// RiskManager returns the manager risk plans are opened with
func (a *Analyzer) RiskManager() *risk.Manager {
	return a.risk
}

// OpenRisk computes indicators over bars and opens a risk state at entry
func (a *Analyzer) OpenRisk(bars []model.Bar, entry float64) (*risk.State, error) {
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	series := indicator.Compute(bars, a.config.Indicator)
	return a.RiskPlan(series, a.classifier.Classify(series), entry), nil
}

func (a *Analyzer) checkPrerequisites(series indicator.Series, ref *model.Reference) Prerequisites {
	p := Prerequisites{Passed: true}
	latest, _ := series.Latest()

	if n := series.Len(); n < a.config.MinBars {
		p.Passed = false
		p.Messages = append(p.Messages, fmt.Sprintf("only %d bars, need at least %d", n, a.config.MinBars))
	} else if n < a.config.FullBars {
		p.Messages = append(p.Messages, fmt.Sprintf("only %d bars, long-window indicators are approximate", n))
	}
	if latest.Close <= 0 {
		p.Passed = false
		p.Messages = append(p.Messages, "last close is not positive")
	}
	if len(series.Defaulted) > 0 {
		p.Messages = append(p.Messages, fmt.Sprintf("defaulted indicators: %v", series.Defaulted))
	}
	if latest.Volume == 0 {
		p.Messages = append(p.Messages, "no volume on the last bar")
	}
	if ref == nil {
		p.Messages = append(p.Messages, "no reference record, fundamentals not checked")
	}
	return p
}

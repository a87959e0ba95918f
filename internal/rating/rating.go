package rating

import (
	"fmt"
	"strings"

	"bondsignal/internal/scoring"
	"bondsignal/pkg/model"
)

// Label is the rating assigned to a bond
type Label string

const (
	Avoid       Label = "avoid"
	Conflicting Label = "conflicting"
	Excellent   Label = "excellent"
	Good        Label = "good"
	Medium      Label = "medium"
	Marginal    Label = "marginal"
	Poor        Label = "poor"
)

// Config holds the hard-constraint and band thresholds
type Config struct {
	PremiumExtreme   float64 `yaml:"premium_extreme" validate:"gtfield=PremiumNear"` // percent
	PremiumNear      float64 `yaml:"premium_near" validate:"gte=0"`
	PriceExtreme     float64 `yaml:"price_extreme" validate:"gtfield=PriceNear"`
	PriceNear        float64 `yaml:"price_near" validate:"gt=0"`
	FairValueExtreme float64 `yaml:"fair_value_extreme" validate:"gtfield=FairValueNear"` // price / fair value
	FairValueNear    float64 `yaml:"fair_value_near" validate:"gt=0"`

	Excellent float64 `yaml:"excellent" validate:"gtfield=Good"`
	Good      float64 `yaml:"good" validate:"gtfield=Medium"`
	Medium    float64 `yaml:"medium" validate:"gtfield=Marginal"`
	Marginal  float64 `yaml:"marginal" validate:"gte=0"`
}

// DefaultConfig returns default rating thresholds
func DefaultConfig() Config {
	return Config{
		PremiumExtreme:   50,
		PremiumNear:      35,
		PriceExtreme:     150,
		PriceNear:        130,
		FairValueExtreme: 1.3,
		FairValueNear:    1.2,
		Excellent:        75,
		Good:             60,
		Medium:           45,
		Marginal:         30,
	}
}

// Input is what a bond is rated on
type Input struct {
	Price     float64
	Reference *model.Reference
	Composite scoring.Composite // buy side
	Signal    scoring.Overall
}

// Rating is the engine's verdict
type Rating struct {
	Label   Label    `json:"label"`
	Rule    string   `json:"rule"`
	Advice  string   `json:"advice"`
	Reasons []string `json:"reasons,omitempty"`
}

// Rule is one predicate -> outcome entry of the rule list
type Rule struct {
	Name  string
	Apply func(cfg Config, in Input) (Rating, bool)
}

// Engine evaluates an ordered rule list; the first matching rule wins
type Engine struct {
	config Config
	rules  []Rule
}

// NewEngine creates an engine with the default rule order
func NewEngine(cfg Config) *Engine {
	return &Engine{config: cfg, rules: DefaultRules()}
}

// Rules returns the rules in evaluation order
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Evaluate runs the rules top to bottom
func (e *Engine) Evaluate(in Input) Rating {
	for _, r := range e.rules {
		if rating, ok := r.Apply(e.config, in); ok {
			rating.Rule = r.Name
			return rating
		}
	}
	return Rating{Label: Poor, Rule: "fallthrough", Advice: "No rule matched; stay out"}
}

// DefaultRules returns the rule list. Fundamental breaches come first so a
// technical signal can never override them.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "premium_extreme", Apply: premiumExtreme},
		{Name: "price_extreme", Apply: priceExtreme},
		{Name: "invalidated", Apply: invalidated},
		{Name: "conflicting", Apply: conflicting},
		{Name: "score_band", Apply: scoreBand},
	}
}

func premiumExtreme(cfg Config, in Input) (Rating, bool) {
	if in.Reference == nil || in.Reference.PremiumRate == nil || *in.Reference.PremiumRate <= cfg.PremiumExtreme {
		return Rating{}, false
	}
	return Rating{
		Label:   Avoid,
		Advice:  "Conversion premium too high; the bond trades on its own and ignores the stock",
		Reasons: []string{fmt.Sprintf("premium %.1f%% above %.0f%%", *in.Reference.PremiumRate, cfg.PremiumExtreme)},
	}, true
}

func priceExtreme(cfg Config, in Input) (Rating, bool) {
	var reasons []string
	if in.Price > cfg.PriceExtreme {
		reasons = append(reasons, fmt.Sprintf("price %.2f above %.0f", in.Price, cfg.PriceExtreme))
	}
	if fv := fairValue(in); fv > 0 && in.Price > fv*cfg.FairValueExtreme {
		reasons = append(reasons, fmt.Sprintf("price %.2f above %.1fx fair value %.2f", in.Price, cfg.FairValueExtreme, fv))
	}
	if len(reasons) == 0 {
		return Rating{}, false
	}
	return Rating{
		Label:   Avoid,
		Advice:  "Price too far above value; downside protection is gone",
		Reasons: reasons,
	}, true
}

func invalidated(cfg Config, in Input) (Rating, bool) {
	if !in.Composite.Invalidated {
		return Rating{}, false
	}
	return Rating{
		Label:   Avoid,
		Advice:  "Hard risk present: " + strings.Join(in.Composite.Invalidations, "; "),
		Reasons: in.Composite.Invalidations,
	}, true
}

func conflicting(cfg Config, in Input) (Rating, bool) {
	if in.Signal != scoring.StrongBuy && in.Signal != scoring.Buy {
		return Rating{}, false
	}

	var reasons []string
	if in.Reference != nil && in.Reference.PremiumRate != nil && *in.Reference.PremiumRate > cfg.PremiumNear {
		reasons = append(reasons, fmt.Sprintf("premium %.1f%% close to the %.0f%% limit", *in.Reference.PremiumRate, cfg.PremiumExtreme))
	}
	if in.Price > cfg.PriceNear {
		reasons = append(reasons, fmt.Sprintf("price %.2f close to the %.0f limit", in.Price, cfg.PriceExtreme))
	}
	if fv := fairValue(in); fv > 0 && in.Price > fv*cfg.FairValueNear {
		reasons = append(reasons, fmt.Sprintf("price %.2f is %.2fx fair value", in.Price, in.Price/fv))
	}
	if len(reasons) == 0 {
		return Rating{}, false
	}
	return Rating{
		Label:   Conflicting,
		Advice:  "Technicals say buy but fundamentals are stretched; small size only, honour the stop",
		Reasons: reasons,
	}, true
}

func scoreBand(cfg Config, in Input) (Rating, bool) {
	score := in.Composite.Value
	var r Rating
	switch {
	case score >= cfg.Excellent:
		r = Rating{Label: Excellent, Advice: "Multiple independent factors agree"}
	case score >= cfg.Good:
		r = Rating{Label: Good, Advice: "Solid setup"}
	case score >= cfg.Medium:
		r = Rating{Label: Medium, Advice: "Mixed evidence"}
	case score >= cfg.Marginal:
		r = Rating{Label: Marginal, Advice: "Weak evidence"}
	default:
		r = Rating{Label: Poor, Advice: "No edge"}
	}
	r.Reasons = []string{fmt.Sprintf("composite score %.1f", score)}

	switch in.Signal {
	case scoring.StrongBuy:
		r.Advice += "; strong technical entry, scale in"
	case scoring.Buy, scoring.SwingBuy:
		r.Advice += "; technical entry confirmed"
	case scoring.CautiousBuy:
		r.Advice += "; a starter position at most"
	case scoring.Sell:
		r.Advice += "; technicals point down, reduce exposure"
	default:
		r.Advice += "; wait for a technical trigger"
	}
	return r, true
}

func fairValue(in Input) float64 {
	if in.Reference == nil || in.Reference.FairValue == nil {
		return 0
	}
	return *in.Reference.FairValue
}

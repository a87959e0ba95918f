package model

import "time"

// Bar represents a single daily OHLCV bar
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Bond identifies a convertible bond and its underlying stock
type Bond struct {
	Code      string `json:"code" yaml:"code"`
	Name      string `json:"name" yaml:"name"`
	StockCode string `json:"stock_code,omitempty" yaml:"stock_code"`
}

// EventRisk is an externally assessed event-risk level
type EventRisk string

const (
	EventRiskUnknown EventRisk = ""
	EventRiskNone    EventRisk = "none"
	EventRiskLow     EventRisk = "low"
	EventRiskMedium  EventRisk = "medium"
	EventRiskHigh    EventRisk = "high"
)

// Reference is the read-only reference record supplied alongside the bars.
// Every field is optional; nil means "not known".
type Reference struct {
	PremiumRate      *float64  `json:"premium_rate,omitempty" yaml:"premium_rate"`             // conversion premium, percent
	CallRiskDistance *float64  `json:"call_risk_distance,omitempty" yaml:"call_risk_distance"` // trading days until forced call
	RemainingSize    *float64  `json:"remaining_size,omitempty" yaml:"remaining_size"`         // outstanding size, 100M
	FairValue        *float64  `json:"fair_value,omitempty" yaml:"fair_value"`
	DriverScore      *float64  `json:"driver_score,omitempty" yaml:"driver_score"` // 0-100
	EventRisk        EventRisk `json:"event_risk,omitempty" yaml:"event_risk"`
}

// Float returns a pointer to v. Handy for building Reference literals.
func Float(v float64) *float64 {
	return &v
}

// Closes extracts the close prices of bars
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

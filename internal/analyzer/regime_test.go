package analyzer

import (
	"testing"

	"bondsignal/internal/indicator"
)

func TestRegimeClassifier(t *testing.T) {
	c := NewRegimeClassifier(DefaultRegimeConfig())

	tests := []struct {
		name         string
		adx          float64
		available    bool
		ma5, ma10    float64
		ma20         float64
		wantRegime   Regime
		wantOversold float64
	}{
		{"strong trend", 30, true, 105, 103, 101, RegimeTrend, 30},
		{"ranging", 10, true, 100, 102, 101, RegimeSwing, 35},
		{"at threshold", 20, true, 100, 100, 100, RegimeTrend, 30},
		{"no adx", 0, false, 100, 100, 100, RegimeUnknown, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := indicator.Frame{ADX: tt.adx, MA5: tt.ma5, MA10: tt.ma10, MA20: tt.ma20}
			st := c.ClassifyFrame(f, tt.available)
			if st.Regime != tt.wantRegime {
				t.Errorf("Expected regime %s, got %s", tt.wantRegime, st.Regime)
			}
			if st.Params.RSIOversold != tt.wantOversold {
				t.Errorf("Expected RSI oversold %.0f, got %.0f", tt.wantOversold, st.Params.RSIOversold)
			}
			if st.Confidence < 0 || st.Confidence > 100 {
				t.Errorf("Confidence out of range: %.2f", st.Confidence)
			}
		})
	}
}

func TestRegimeConfidence(t *testing.T) {
	c := NewRegimeClassifier(DefaultRegimeConfig())

	aligned := indicator.Frame{ADX: 30, MA5: 105, MA10: 103, MA20: 101}
	tangled := indicator.Frame{ADX: 30, MA5: 101, MA10: 105, MA20: 103}

	a := c.ClassifyFrame(aligned, true)
	b := c.ClassifyFrame(tangled, true)
	if a.Confidence <= b.Confidence {
		t.Errorf("Expected aligned MAs to raise trend confidence: %.1f vs %.1f", a.Confidence, b.Confidence)
	}
	// 50 + 10*2.5 + 10
	if a.Confidence != 85 {
		t.Errorf("Expected confidence 85, got %.1f", a.Confidence)
	}

	extreme := c.ClassifyFrame(indicator.Frame{ADX: 80, MA5: 105, MA10: 103, MA20: 101}, true)
	if extreme.Confidence != 100 {
		t.Errorf("Expected confidence clamped to 100, got %.1f", extreme.Confidence)
	}
}

func TestRegimeClassifySeries(t *testing.T) {
	c := NewRegimeClassifier(DefaultRegimeConfig())
	if st := c.Classify(indicator.Series{}); st.Regime != RegimeUnknown {
		t.Errorf("Expected unknown for empty series, got %s", st.Regime)
	}

	series := indicator.Series{
		Frames:    []indicator.Frame{{ADX: 40}},
		Defaulted: []string{indicator.NameADX},
	}
	if st := c.Classify(series); st.Regime != RegimeUnknown {
		t.Errorf("Expected unknown when ADX is defaulted, got %s", st.Regime)
	}
}

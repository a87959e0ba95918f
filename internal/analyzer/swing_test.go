package analyzer

import (
	"math"
	"testing"
	"time"

	"bondsignal/pkg/model"
)

// vShape builds a rise 110->130 over bars 0-24, a fall to 100 at bar 50 and a
// small bounce to 101.8 at bar 55.
func vShape() []model.Bar {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, 56)
	for i := range bars {
		var c float64
		switch {
		case i <= 24:
			c = 110 + 20*float64(i)/24
		case i <= 50:
			c = 130 - 30*float64(i-24)/26
		default:
			c = 100 + 1.8*float64(i-50)/5
		}
		bars[i] = model.Bar{
			Time:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c + 0.1,
			Low:    c - 0.1,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func TestFibonacciLevelsDownSwing(t *testing.T) {
	levels := FibonacciLevels(130, 100, Down)

	var golden FibLevel
	for _, l := range levels {
		if l.Label == "61.8%" {
			golden = l
		}
	}
	if math.Abs(golden.Price-111.46) > 1e-9 {
		t.Errorf("Expected 61.8%% level at 111.46, got %.4f", golden.Price)
	}
	if golden.Role != Support {
		t.Errorf("Expected 61.8%% level to be support, got %s", golden.Role)
	}

	prev := math.Inf(1)
	for _, l := range levels {
		if l.Extension {
			if l.Price >= 100 {
				t.Errorf("Extension %s at %.2f should be below the low", l.Label, l.Price)
			}
			if l.Role != Resistance {
				t.Errorf("Extension %s should be resistance, got %s", l.Label, l.Role)
			}
			continue
		}
		if l.Price > 130 || l.Price < 100 {
			t.Errorf("Retracement %s at %.2f outside swing range", l.Label, l.Price)
		}
		if l.Price >= prev {
			t.Errorf("Retracement %s at %.2f not strictly decreasing", l.Label, l.Price)
		}
		prev = l.Price
	}
}

func TestFibonacciLevelsUpSwing(t *testing.T) {
	levels := FibonacciLevels(130, 100, Up)
	for _, l := range levels {
		if l.Extension {
			if l.Price <= 130 {
				t.Errorf("Extension %s at %.2f should be above the high", l.Label, l.Price)
			}
			if l.Role != Support {
				t.Errorf("Extension %s should be support, got %s", l.Label, l.Role)
			}
		} else if l.Role != Resistance {
			t.Errorf("Retracement %s should be resistance, got %s", l.Label, l.Role)
		}
	}
}

func TestSwingDetectorExtrema(t *testing.T) {
	d := NewSwingDetector(DefaultSwingConfig())
	points := d.Extrema(vShape())

	expected := []struct {
		index int
		kind  PointKind
	}{
		{0, Trough},
		{24, Peak},
		{50, Trough},
	}
	if len(points) != len(expected) {
		t.Fatalf("Expected %d extrema, got %d: %+v", len(expected), len(points), points)
	}
	for i, e := range expected {
		if points[i].Index != e.index || points[i].Kind != e.kind {
			t.Errorf("point %d: expected %s at %d, got %s at %d", i, e.kind, e.index, points[i].Kind, points[i].Index)
		}
	}
}

func TestSwingDetectorDetect(t *testing.T) {
	d := NewSwingDetector(DefaultSwingConfig())
	swings := d.Detect(vShape())

	if len(swings) != 2 {
		t.Fatalf("Expected 2 swings, got %d", len(swings))
	}
	if swings[0].Direction != Up {
		t.Errorf("Expected first swing up, got %s", swings[0].Direction)
	}

	latest, ok := LatestSwing(swings)
	if !ok {
		t.Fatal("Expected a latest swing")
	}
	if latest.Direction != Down {
		t.Errorf("Expected latest swing down, got %s", latest.Direction)
	}
	if math.Abs(latest.High()-130.1) > 1e-9 || math.Abs(latest.Low()-99.9) > 1e-9 {
		t.Errorf("Expected range 130.1-99.9, got %.2f-%.2f", latest.High(), latest.Low())
	}
	if latest.AmplitudePct < 30 || latest.AmplitudePct > 31 {
		t.Errorf("Expected amplitude near 30.2%%, got %.2f", latest.AmplitudePct)
	}
	if _, ok := latest.Level("61.8%"); !ok {
		t.Error("Expected 61.8% level lookup to succeed")
	}
}

func TestSwingDetectorRequiresConfirmation(t *testing.T) {
	bars := vShape()[:52] // trough at 50 has a single bar after it
	d := NewSwingDetector(DefaultSwingConfig())

	for _, p := range d.Extrema(bars) {
		if p.Index == 50 {
			t.Error("Trough without enough confirming bars should not be reported")
		}
	}
}

func TestSwingDetectorSkipsSameKind(t *testing.T) {
	cfg := SwingConfig{Lookback: 2, ConfirmBars: 1, MaxSwings: 5}
	d := NewSwingDetector(cfg)

	// two troughs in a row (indexes 2 and 6) followed by a peak at 9
	closes := []float64{10, 9, 5, 8, 7, 8, 4, 7, 9, 12, 11, 10}
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{High: c, Low: c, Close: c}
	}

	swings := d.Detect(bars)
	for _, s := range swings {
		if s.Start.Kind == s.End.Kind {
			t.Errorf("Swing between two %ss should have been skipped", s.Start.Kind)
		}
	}
	if len(swings) == 0 {
		t.Fatal("Expected at least one swing")
	}
	last, _ := LatestSwing(swings)
	if last.Start.Index != 6 || last.End.Index != 9 {
		t.Errorf("Expected latest swing 6->9, got %d->%d", last.Start.Index, last.End.Index)
	}
}

func TestSwingPosition(t *testing.T) {
	s := Swing{
		Start:     SwingPoint{Price: 130, Kind: Peak},
		End:       SwingPoint{Price: 100, Kind: Trough},
		Direction: Down,
	}
	if got := s.Position(115); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Expected 0.5, got %.2f", got)
	}
	if got := s.Position(90); got != 0 {
		t.Errorf("Expected 0 below the low, got %.2f", got)
	}
}

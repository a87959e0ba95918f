package reference

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bondsignal/pkg/model"
)

const sample = `
bonds:
  - code: "113001"
    name: Alpha Convertible
    stock_code: "600001"
    premium_rate: 18.5
    driver_score: 72
    event_risk: none
  - code: "127002"
    name: Beta Convertible
    call_risk_distance: 2
    event_risk: high
  - code: "110003"
    name: Gamma Convertible
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Expected 3 bonds, got %d", s.Len())
	}

	bond, ref, err := s.Get("113001")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if bond.Name != "Alpha Convertible" || bond.StockCode != "600001" {
		t.Errorf("Unexpected bond: %+v", bond)
	}
	if ref.PremiumRate == nil || *ref.PremiumRate != 18.5 {
		t.Errorf("Expected premium 18.5, got %v", ref.PremiumRate)
	}
	if ref.EventRisk != model.EventRiskNone {
		t.Errorf("Expected event risk none, got %q", ref.EventRisk)
	}
	if ref.CallRiskDistance != nil {
		t.Error("Absent fields should stay nil")
	}

	_, ref, _ = s.Get("110003")
	if ref.PremiumRate != nil || ref.EventRisk != model.EventRiskUnknown {
		t.Errorf("Expected empty reference, got %+v", ref)
	}

	bonds := s.Bonds()
	if bonds[0].Code != "113001" || bonds[2].Code != "110003" {
		t.Errorf("Expected file order, got %v", bonds)
	}
	if codes := s.Codes(); codes[0] != "110003" {
		t.Errorf("Expected sorted codes, got %v", codes)
	}
}

func TestGetUnknown(t *testing.T) {
	s, _ := Parse([]byte(sample))
	bond, ref, err := s.Get("999999")
	if !errors.Is(err, ErrUnknownBond) {
		t.Errorf("Expected ErrUnknownBond, got %v", err)
	}
	if bond.Code != "999999" || ref != nil {
		t.Errorf("Expected bare bond and nil reference, got %+v %v", bond, ref)
	}
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"duplicate":  "bonds:\n  - code: a\n  - code: a\n",
		"missing":    "bonds:\n  - name: x\n",
		"event risk": "bonds:\n  - code: a\n    event_risk: extreme\n",
		"not yaml":   "bonds: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(data)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bonds.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil || s.Len() != 3 {
		t.Fatalf("Expected 3 bonds, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

package reference

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"bondsignal/pkg/model"
)

// ErrUnknownBond is returned for codes missing from the store
var ErrUnknownBond = errors.New("unknown bond")

// Record is one bond entry of the reference file
type Record struct {
	model.Bond      `yaml:",inline"`
	model.Reference `yaml:",inline"`
}

type file struct {
	Bonds []Record `yaml:"bonds"`
}

// Store is the read-only bond universe with reference records.
// It is never mutated after loading and may be shared between goroutines.
type Store struct {
	records map[string]Record
	order   []string
}

// Load reads a YAML reference file
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reference file: %w", err)
	}
	return Parse(data)
}

// Parse builds a store from YAML
func Parse(data []byte) (*Store, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing reference file: %w", err)
	}
	return New(f.Bonds)
}

// New builds a store from records. Codes must be unique and non-empty.
func New(records []Record) (*Store, error) {
	s := &Store{records: make(map[string]Record, len(records))}
	for i, r := range records {
		if r.Code == "" {
			return nil, fmt.Errorf("bond %d: missing code", i)
		}
		if _, dup := s.records[r.Code]; dup {
			return nil, fmt.Errorf("bond %s: duplicate code", r.Code)
		}
		if r.EventRisk != model.EventRiskUnknown && !validEventRisk(r.EventRisk) {
			return nil, fmt.Errorf("bond %s: invalid event_risk %q", r.Code, r.EventRisk)
		}
		s.records[r.Code] = r
		s.order = append(s.order, r.Code)
	}
	return s, nil
}

// Get returns the bond and a copy of its reference record
func (s *Store) Get(code string) (model.Bond, *model.Reference, error) {
	r, ok := s.records[code]
	if !ok {
		return model.Bond{Code: code}, nil, fmt.Errorf("%s: %w", code, ErrUnknownBond)
	}
	ref := r.Reference
	return r.Bond, &ref, nil
}

// Bonds returns the universe in file order
func (s *Store) Bonds() []model.Bond {
	out := make([]model.Bond, 0, len(s.order))
	for _, code := range s.order {
		out = append(out, s.records[code].Bond)
	}
	return out
}

// Codes returns the sorted bond codes
func (s *Store) Codes() []string {
	codes := append([]string(nil), s.order...)
	sort.Strings(codes)
	return codes
}

// Len returns the number of bonds
func (s *Store) Len() int {
	return len(s.order)
}

func validEventRisk(e model.EventRisk) bool {
	switch e {
	case model.EventRiskNone, model.EventRiskLow, model.EventRiskMedium, model.EventRiskHigh:
		return true
	}
	return false
}

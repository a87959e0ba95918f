package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"bondsignal/pkg/model"
)

var csvTimeLayouts = []string{"2006-01-02", "2006/01/02", "20060102", time.RFC3339}

// CSVProvider reads <dir>/<code>.csv files with a
// date,open,high,low,close,volume header (any column order)
type CSVProvider struct {
	dir string
}

// NewCSVProvider creates a provider over a directory of CSV files
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir}
}

func (p *CSVProvider) Name() string { return "csv" }

func (p *CSVProvider) GetDailyBars(ctx context.Context, code string, days int) ([]model.Bar, error) {
	if strings.ContainsAny(code, `/\`) || code == "" || code == "." || code == ".." {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("invalid bond code %q", code)}
	}
	f, err := os.Open(filepath.Join(p.dir, code+".csv"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s: %w", code, ErrNotFound)}
		}
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	defer f.Close()

	bars, err := ParseCSV(f)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s: %w", code, err)}
	}
	return tail(bars, days), nil
}

// ParseCSV reads bars from CSV with a header row and sorts them by time
func ParseCSV(r io.Reader) ([]model.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int)
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range []string{"date", "open", "high", "low", "close", "volume"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var bars []model.Bar
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		t, err := parseTime(rec[cols["date"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var vals [5]float64
		for i, name := range []string{"open", "high", "low", "close", "volume"} {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[cols[name]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
			vals[i] = v
		}
		bars = append(bars, model.Bar{
			Time:   t,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})
	return bars, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

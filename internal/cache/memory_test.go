package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type payload struct {
	Code   string    `json:"code"`
	Closes []float64 `json:"closes"`
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	in := payload{Code: "113001", Closes: []float64{100, 101.5}}
	if err := m.Set(ctx, "bars:113001", in, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// mutating the original must not leak into the cache
	in.Closes[0] = 0

	var out payload
	if err := m.Get(ctx, "bars:113001", &out); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.Code != "113001" || out.Closes[0] != 100 {
		t.Errorf("Unexpected value: %+v", out)
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	if err := m.Set(ctx, "k", 1, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Set(ctx, "forever", 2, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var v int
	if err := m.Get(ctx, "k", &v); err != nil || v != 1 {
		t.Errorf("Expected 1 before expiry, got %d (%v)", v, err)
	}

	now = now.Add(time.Minute)
	if err := m.Get(ctx, "k", &v); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss after expiry, got %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("Expired entry should be evicted on read, have %d entries", m.Len())
	}
	if err := m.Get(ctx, "forever", &v); err != nil || v != 2 {
		t.Errorf("Entry without TTL should not expire, got %d (%v)", v, err)
	}
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Set(ctx, "k", "v", time.Minute)
	_ = m.Delete(ctx, "k")

	var s string
	if err := m.Get(ctx, "k", &s); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss after delete, got %v", err)
	}
}

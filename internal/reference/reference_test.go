package reference

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name     string
		year     int
		existing []string
		want     string
	}{
		{"continues the year", 2025, []string{"RES-2025-001", "RES-2025-002"}, "RES-2025-003"},
		{"empty year starts at one", 2026, nil, "RES-2026-001"},
		{"other years ignored", 2026, []string{"RES-2025-041"}, "RES-2026-001"},
		{"unordered input", 2025, []string{"RES-2025-010", "RES-2025-002"}, "RES-2025-011"},
		{"garbage skipped", 2025, []string{"N/A", "RES-2025-", "RES-2025-abc", "RES-2025-004"}, "RES-2025-005"},
		{"past three digits", 2025, []string{"RES-2025-999"}, "RES-2025-1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Next(tt.year, tt.existing); got != tt.want {
				t.Errorf("Next() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFallback(t *testing.T) {
	now := time.UnixMilli(1718000123456)
	got := Fallback(now)
	want := "RES-" + now.Format("2006") + "-123456"
	if got != want {
		t.Errorf("Fallback() = %q, want %q", got, want)
	}
}

type counter struct {
	mu  sync.Mutex
	seq map[int]int
	err error
}

func (c *counter) NextSeq(_ context.Context, year int) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq == nil {
		c.seq = map[int]int{}
	}
	c.seq[year]++
	return c.seq[year], nil
}

func TestAllocatorUsesSequence(t *testing.T) {
	a := NewAllocator(&counter{seq: map[int]int{2025: 2}}, nil)
	a.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

	got, err := a.Allocate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "RES-2025-003" {
		t.Errorf("Allocate() = %q, want RES-2025-003", got)
	}
}

func TestAllocatorYearFollowsParis(t *testing.T) {
	a := NewAllocator(&counter{}, nil)
	// 00:30 on 1 January in Paris, still 31 December in UTC
	a.now = func() time.Time { return time.Date(2025, 12, 31, 23, 30, 0, 0, time.UTC) }

	got, err := a.Allocate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "RES-2026-001" {
		t.Errorf("Allocate() = %q, want RES-2026-001", got)
	}
}

func TestAllocatorConcurrentUnique(t *testing.T) {
	a := NewAllocator(&counter{}, nil)
	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := a.Allocate(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[ref] {
				t.Errorf("duplicate reference %q", ref)
			}
			seen[ref] = true
		}()
	}
	wg.Wait()
	if len(seen) != 50 {
		t.Errorf("allocated %d distinct refs, want 50", len(seen))
	}
}

func TestAllocatorFallsBackOnSequenceError(t *testing.T) {
	a := NewAllocator(&counter{err: errors.New("down")}, nil)
	a.now = func() time.Time { return time.UnixMilli(1718000123456) }

	got, err := a.Allocate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(got, "-123456") {
		t.Errorf("Allocate() = %q, want clock fallback", got)
	}
}

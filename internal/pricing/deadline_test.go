package pricing

import (
	"testing"
	"time"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

func TestDeadlineIsSeventyTwoHoursEarlier(t *testing.T) {
	event := time.Date(2025, 6, 10, 0, 0, 0, 0, Paris)
	want := time.Date(2025, 6, 7, 0, 0, 0, 0, Paris)
	if got := Deadline(event); !got.Equal(want) {
		t.Errorf("Deadline() = %v, want %v", got, want)
	}
}

func TestDeadlineFor(t *testing.T) {
	if got := DeadlineFor(nil); got != nil {
		t.Errorf("DeadlineFor(nil) = %v, want nil", got)
	}
	day, err := model.ParseDate("2025-06-10")
	if err != nil {
		t.Fatal(err)
	}
	got := DeadlineFor(&day)
	if got == nil {
		t.Fatal("DeadlineFor() = nil")
	}
	want := time.Date(2025, 6, 7, 0, 0, 0, 0, Paris)
	if !got.Equal(want) {
		t.Errorf("DeadlineFor() = %v, want %v", got, want)
	}
}

func TestDeadlineNear(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, Paris)
	tests := []struct {
		deadline time.Time
		want     bool
	}{
		{now.Add(24 * time.Hour), true},
		{now.Add(72 * time.Hour), true},
		{now.Add(73 * time.Hour), false},
		{now.Add(-time.Hour), true},
	}
	for _, tt := range tests {
		if got := DeadlineNear(tt.deadline, now); got != tt.want {
			t.Errorf("DeadlineNear(%v) = %v, want %v", tt.deadline, got, tt.want)
		}
	}
}

package types_test

import (
	"testing"
	"time"

	"github.com/xraph/perk/types"
)

func TestParseUserID(t *testing.T) {
	tests := []struct {
		in      string
		want    types.UserID
		wantErr bool
	}{
		{"555", 555, false},
		{" 42 ", 42, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-5", 0, true},
		{"+5", 0, true},
		{"12a", 0, true},
		{"99999999999999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := types.ParseUserID(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestUserIDString(t *testing.T) {
	if got := types.UserID(123).String(); got != "123" {
		t.Errorf("expected %q, got %q", "123", got)
	}
	if types.UserID(0).Valid() {
		t.Error("zero user id should be invalid")
	}
}

func TestDayOf(t *testing.T) {
	// 23:30 at UTC-5 is already the next day in UTC.
	loc := time.FixedZone("EST", -5*3600)
	got := types.DayOf(time.Date(2024, 3, 1, 23, 30, 0, 0, loc))
	if got != "20240302" {
		t.Errorf("expected 20240302, got %s", got)
	}
	if got.ISO() != "2024-03-02" {
		t.Errorf("expected 2024-03-02, got %s", got.ISO())
	}
}

func TestParseDay(t *testing.T) {
	if _, err := types.ParseDay("20240230"); err == nil {
		t.Error("expected error for impossible date")
	}
	d, err := types.ParseDay("20240229")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !d.Time().Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected time %v", d.Time())
	}
}

func TestLastDays(t *testing.T) {
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	got := types.LastDays(now, 3)
	want := []types.Day{"20240229", "20240301", "20240302"}
	if len(got) != len(want) {
		t.Fatalf("expected %d days, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("day %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if types.LastDays(now, 0) != nil {
		t.Error("expected nil for n=0")
	}
}

func TestUntilMidnight(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"noon", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), 12 * time.Hour},
		{"just after midnight", time.Date(2024, 3, 1, 0, 0, 1, 0, time.UTC), 24*time.Hour - time.Second},
		{"floor", time.Date(2024, 3, 1, 23, 59, 30, 0, time.UTC), time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := types.UntilMidnight(tt.now); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

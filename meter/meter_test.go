package meter_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/perk/meter"
	"github.com/xraph/perk/store"
	"github.com/xraph/perk/store/memory"
	"github.com/xraph/perk/store/storetest"
	"github.com/xraph/perk/types"
)

var start = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

func newAggregator(t *testing.T) (*meter.Aggregator, *memory.Store, *storetest.Clock) {
	t.Helper()
	clock := storetest.NewClock(start)
	s := memory.New(memory.WithClock(clock.Now))
	return meter.New(s, meter.WithClock(clock.Now)), s, clock
}

func TestBump(t *testing.T) {
	a, _, _ := newAggregator(t)
	ctx := context.Background()

	for range 3 {
		if _, err := a.Bump(ctx, "x", 1); err != nil {
			t.Fatalf("bump: %v", err)
		}
	}
	if got := a.GetToday(ctx, "x"); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if got := a.GetForDay(ctx, "x", "20240309"); got != 0 {
		t.Errorf("expected yesterday untouched, got %d", got)
	}
	if got := a.GetToday(ctx, "never"); got != 0 {
		t.Errorf("expected 0 for unknown counter, got %d", got)
	}
}

func TestRetentionFixedAtFirstWrite(t *testing.T) {
	a, s, clock := newAggregator(t)
	ctx := context.Background()
	key := meter.CounterKey("x", "20240310")

	_, _ = a.Bump(ctx, "x", 1)
	ttl, _ := s.TTL(ctx, key)
	if ttl != meter.DefaultRetention {
		t.Fatalf("expected retention %v, got %v", meter.DefaultRetention, ttl)
	}

	clock.Advance(time.Hour)
	_, _ = a.Bump(ctx, "x", 1)
	ttl, _ = s.TTL(ctx, key)
	if ttl != meter.DefaultRetention-time.Hour {
		t.Errorf("expected later writes to keep the first expiry, got %v", ttl)
	}
}

func TestRetentionCoversReports(t *testing.T) {
	a, _, clock := newAggregator(t)
	ctx := context.Background()

	_, _ = a.Bump(ctx, "x", 5)
	clock.Advance(29 * 24 * time.Hour)

	if got := a.GetForDay(ctx, "x", "20240310"); got != 5 {
		t.Errorf("expected value to survive 30-day window, got %d", got)
	}
}

func TestDAU(t *testing.T) {
	a, _, clock := newAggregator(t)
	ctx := context.Background()

	for _, u := range []types.UserID{1, 2, 2, 3} {
		if _, err := a.MarkUserSeenToday(ctx, u); err != nil {
			t.Fatalf("mark: %v", err)
		}
	}
	if got := a.DAUToday(ctx); got != 3 {
		t.Errorf("expected 3 distinct users, got %d", got)
	}

	clock.Advance(24 * time.Hour)
	fresh, _ := a.MarkUserSeenToday(ctx, 1)
	if !fresh {
		t.Error("expected user to be new on a new day")
	}
	if got := a.DAUToday(ctx); got != 1 {
		t.Errorf("expected 1 user today, got %d", got)
	}
	if got := a.DAUForDay(ctx, "20240310"); got != 3 {
		t.Errorf("expected 3 users yesterday, got %d", got)
	}
}

func TestRefLeaderboard(t *testing.T) {
	a, _, _ := newAggregator(t)
	ctx := context.Background()

	for range 3 {
		_, _ = a.RefHit(ctx, "555")
	}
	_, _ = a.RefHit(ctx, "777")
	if _, err := a.RefHit(ctx, ""); err == nil {
		t.Error("expected error for empty code")
	}

	top := a.TopRefs(ctx, 5)
	if len(top) != 2 {
		t.Fatalf("expected 2 codes, got %v", top)
	}
	if top[0] != (store.ScoredMember{Member: "555", Score: 3}) {
		t.Errorf("expected 555 first with 3 hits, got %v", top[0])
	}
	if got := a.RefHitsToday(ctx, "555"); got != 3 {
		t.Errorf("expected 3 hits, got %v", got)
	}
	if got := a.RefHitsToday(ctx, "nope"); got != 0 {
		t.Errorf("expected 0 hits, got %v", got)
	}
	if got := a.TopRefs(ctx, 1); len(got) != 1 || got[0].Member != "555" {
		t.Errorf("expected top-1 to be 555, got %v", got)
	}
}

func TestLastDays(t *testing.T) {
	a, _, _ := newAggregator(t)
	days := a.LastDays(7)
	if len(days) != 7 || days[0] != "20240304" || days[6] != "20240310" {
		t.Errorf("unexpected days %v", days)
	}
}

func TestDailyReport(t *testing.T) {
	a, _, clock := newAggregator(t)
	ctx := context.Background()

	_, _ = a.MarkUserSeenToday(ctx, 1)
	_, _ = a.Bump(ctx, "writing_scored", 2)
	clock.Advance(24 * time.Hour)
	_, _ = a.MarkUserSeenToday(ctx, 1)
	_, _ = a.MarkUserSeenToday(ctx, 2)
	_, _ = a.Bump(ctx, "speaking_scored", 1)

	rows := a.DailyReport(ctx, 3, "writing_scored", "speaking_scored")
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	tests := []struct {
		day      types.Day
		dau      int64
		writing  int64
		speaking int64
	}{
		{"20240309", 0, 0, 0},
		{"20240310", 1, 2, 0},
		{"20240311", 2, 0, 1},
	}
	for i, tt := range tests {
		r := rows[i]
		if r.Day != tt.day || r.DAU != tt.dau ||
			r.Counters["writing_scored"] != tt.writing || r.Counters["speaking_scored"] != tt.speaking {
			t.Errorf("row %d: expected %+v, got %+v", i, tt, r)
		}
	}
}

func TestReferralReport(t *testing.T) {
	a, _, clock := newAggregator(t)
	ctx := context.Background()

	_, _ = a.RefHit(ctx, "a")
	clock.Advance(24 * time.Hour)
	_, _ = a.RefHit(ctx, "b")
	_, _ = a.RefHit(ctx, "b")
	_, _ = a.RefHit(ctx, "c")

	rows := a.ReferralReport(ctx, 7)
	want := []meter.RefRow{
		{Day: "20240310", Code: "a", Hits: 1},
		{Day: "20240311", Code: "b", Hits: 2},
		{Day: "20240311", Code: "c", Hits: 1},
	}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %v", len(want), rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d: expected %+v, got %+v", i, want[i], rows[i])
		}
	}
}

func TestStoreDown(t *testing.T) {
	a := meter.New(storetest.Down{})
	ctx := context.Background()

	if _, err := a.Bump(ctx, "x", 1); err == nil {
		t.Error("expected bump to fail")
	}
	if got := a.GetToday(ctx, "x"); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := a.DAUToday(ctx); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := a.TopRefs(ctx, 5); len(got) != 0 {
		t.Errorf("expected empty leaderboard, got %v", got)
	}
}

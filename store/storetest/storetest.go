// Package storetest holds the behavioral suite every store.Store variant
// must pass. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/perk/store"
)

// Harness builds a fresh, empty store and a way to move its clock forward.
type Harness struct {
	Store   store.Store
	Advance func(d time.Duration)
}

// Run executes the suite. newHarness is called once per subtest.
func Run(t *testing.T, newHarness func(t *testing.T) Harness) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, h Harness)
	}{
		{"GetMissing", testGetMissing},
		{"SetGet", testSetGet},
		{"SetWithTTLExpires", testSetWithTTLExpires},
		{"SetNX", testSetNX},
		{"SetNXConcurrent", testSetNXConcurrent},
		{"Del", testDel},
		{"IncrBy", testIncrBy},
		{"IncrByConcurrent", testIncrByConcurrent},
		{"IncrByNotInteger", testIncrByNotInteger},
		{"ExpireAndTTL", testExpireAndTTL},
		{"Extend", testExtend},
		{"Sets", testSets},
		{"SortedSets", testSortedSets},
		{"WrongType", testWrongType},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newHarness(t))
		})
	}
}

func testGetMissing(t *testing.T, h Harness) {
	_, err := h.Store.Get(context.Background(), "missing")
	if !errors.Is(err, store.ErrNil) {
		t.Fatalf("expected ErrNil, got %v", err)
	}
}

func testSetGet(t *testing.T, h Harness) {
	ctx := context.Background()
	if err := h.Store.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := h.Store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "v" {
		t.Errorf("expected %q, got %q", "v", got)
	}

	ttl, err := h.Store.TTL(ctx, "k")
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl != store.NoExpiry {
		t.Errorf("expected NoExpiry, got %v", ttl)
	}
}

func testSetWithTTLExpires(t *testing.T, h Harness) {
	ctx := context.Background()
	if err := h.Store.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	h.Advance(59 * time.Second)
	if _, err := h.Store.Get(ctx, "k"); err != nil {
		t.Fatalf("expected key alive after 59s, got %v", err)
	}
	h.Advance(2 * time.Second)
	if _, err := h.Store.Get(ctx, "k"); !errors.Is(err, store.ErrNil) {
		t.Fatalf("expected ErrNil after expiry, got %v", err)
	}
	if _, err := h.Store.TTL(ctx, "k"); !errors.Is(err, store.ErrNil) {
		t.Fatalf("expected TTL ErrNil after expiry, got %v", err)
	}
}

func testSetNX(t *testing.T, h Harness) {
	ctx := context.Background()
	ok, err := h.Store.SetNX(ctx, "k", "first", 0)
	if err != nil || !ok {
		t.Fatalf("first SetNX: ok=%v err=%v", ok, err)
	}
	ok, err = h.Store.SetNX(ctx, "k", "second", 0)
	if err != nil || ok {
		t.Fatalf("second SetNX: ok=%v err=%v", ok, err)
	}
	got, _ := h.Store.Get(ctx, "k")
	if got != "first" {
		t.Errorf("expected %q, got %q", "first", got)
	}
}

func testSetNXConcurrent(t *testing.T, h Harness) {
	ctx := context.Background()
	const workers = 16

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := h.Store.SetNX(ctx, "once", "1", 0)
			if err != nil {
				t.Errorf("SetNX: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins)
	}
}

func testDel(t *testing.T, h Harness) {
	ctx := context.Background()
	_ = h.Store.Set(ctx, "a", "1", 0)
	_ = h.Store.Set(ctx, "b", "2", 0)

	n, err := h.Store.Del(ctx, "a", "b", "c")
	if err != nil {
		t.Fatalf("del: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
	n, _ = h.Store.Del(ctx, "a")
	if n != 0 {
		t.Errorf("expected 0 removed on second delete, got %d", n)
	}
}

func testIncrBy(t *testing.T, h Harness) {
	ctx := context.Background()
	for i, want := range []int64{1, 2, 3} {
		got, err := h.Store.IncrBy(ctx, "c", 1)
		if err != nil {
			t.Fatalf("incr %d: %v", i, err)
		}
		if got != want {
			t.Errorf("incr %d: expected %d, got %d", i, want, got)
		}
	}
	got, _ := h.Store.IncrBy(ctx, "c", 5)
	if got != 8 {
		t.Errorf("expected 8, got %d", got)
	}
}

func testIncrByConcurrent(t *testing.T, h Harness) {
	ctx := context.Background()
	const workers, each = 8, 25

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				if _, err := h.Store.IncrBy(ctx, "c", 1); err != nil {
					t.Errorf("incr: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, _ := h.Store.Get(ctx, "c")
	if got != "200" {
		t.Errorf("expected 200, got %q", got)
	}
}

func testIncrByNotInteger(t *testing.T, h Harness) {
	ctx := context.Background()
	_ = h.Store.Set(ctx, "k", "abc", 0)
	if _, err := h.Store.IncrBy(ctx, "k", 1); !errors.Is(err, store.ErrNotInteger) {
		t.Fatalf("expected ErrNotInteger, got %v", err)
	}
}

func testExpireAndTTL(t *testing.T, h Harness) {
	ctx := context.Background()

	ok, err := h.Store.Expire(ctx, "missing", time.Minute)
	if err != nil || ok {
		t.Fatalf("expire missing: ok=%v err=%v", ok, err)
	}

	_, _ = h.Store.IncrBy(ctx, "c", 1)
	ok, err = h.Store.Expire(ctx, "c", time.Hour)
	if err != nil || !ok {
		t.Fatalf("expire: ok=%v err=%v", ok, err)
	}
	ttl, err := h.Store.TTL(ctx, "c")
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 59*time.Minute || ttl > time.Hour {
		t.Errorf("expected ttl close to 1h, got %v", ttl)
	}

	h.Advance(30 * time.Minute)
	ttl, _ = h.Store.TTL(ctx, "c")
	if ttl <= 29*time.Minute || ttl > 30*time.Minute {
		t.Errorf("expected ttl close to 30m, got %v", ttl)
	}
}

func testExtend(t *testing.T, h Harness) {
	ctx := context.Background()
	day := 24 * time.Hour

	ttl, err := h.Store.Extend(ctx, "pro", "1", 7*day)
	if err != nil {
		t.Fatalf("extend missing: %v", err)
	}
	if ttl <= 7*day-time.Second || ttl > 7*day {
		t.Errorf("expected ~7d on missing key, got %v", ttl)
	}

	h.Advance(day)
	ttl, err = h.Store.Extend(ctx, "pro", "1", 7*day)
	if err != nil {
		t.Fatalf("extend live: %v", err)
	}
	if ttl <= 13*day-time.Second || ttl > 13*day {
		t.Errorf("expected ~13d after extending live key, got %v", ttl)
	}

	// A key without expiry counts as zero remaining.
	_ = h.Store.Set(ctx, "forever", "1", 0)
	ttl, _ = h.Store.Extend(ctx, "forever", "1", day)
	if ttl <= day-time.Second || ttl > day {
		t.Errorf("expected ~1d on non-expiring key, got %v", ttl)
	}

	got, err := h.Store.Get(ctx, "pro")
	if err != nil || got != "1" {
		t.Errorf("expected value 1, got %q (%v)", got, err)
	}
}

func testSets(t *testing.T, h Harness) {
	ctx := context.Background()

	n, err := h.Store.SCard(ctx, "s")
	if err != nil || n != 0 {
		t.Fatalf("scard empty: n=%d err=%v", n, err)
	}
	added, err := h.Store.SAdd(ctx, "s", "1", "2", "2")
	if err != nil {
		t.Fatalf("sadd: %v", err)
	}
	if added != 2 {
		t.Errorf("expected 2 added, got %d", added)
	}
	added, _ = h.Store.SAdd(ctx, "s", "1")
	if added != 0 {
		t.Errorf("expected 0 added for duplicate, got %d", added)
	}
	n, _ = h.Store.SCard(ctx, "s")
	if n != 2 {
		t.Errorf("expected cardinality 2, got %d", n)
	}
}

func testSortedSets(t *testing.T, h Harness) {
	ctx := context.Background()

	all, err := h.Store.ZAll(ctx, "z")
	if err != nil || len(all) != 0 {
		t.Fatalf("zall empty: %v %v", all, err)
	}
	if _, err := h.Store.ZScore(ctx, "z", "a"); !errors.Is(err, store.ErrNil) {
		t.Fatalf("expected ErrNil for missing member, got %v", err)
	}

	for _, m := range []string{"a", "b", "b", "c", "c", "c"} {
		if _, err := h.Store.ZIncrBy(ctx, "z", m, 1); err != nil {
			t.Fatalf("zincrby: %v", err)
		}
	}
	score, err := h.Store.ZIncrBy(ctx, "z", "a", 2)
	if err != nil || score != 3 {
		t.Fatalf("expected a=3, got %v (%v)", score, err)
	}

	top, err := h.Store.ZTop(ctx, "z", 2)
	if err != nil {
		t.Fatalf("ztop: %v", err)
	}
	want := []store.ScoredMember{{Member: "c", Score: 3}, {Member: "a", Score: 3}}
	if len(top) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), top)
	}
	for i := range want {
		if top[i] != want[i] {
			t.Errorf("top[%d]: expected %v, got %v", i, want[i], top[i])
		}
	}

	all, _ = h.Store.ZAll(ctx, "z")
	if len(all) != 3 || all[2] != (store.ScoredMember{Member: "b", Score: 2}) {
		t.Errorf("unexpected ZAll result %v", all)
	}

	score, err = h.Store.ZScore(ctx, "z", "b")
	if err != nil || score != 2 {
		t.Errorf("expected b=2, got %v (%v)", score, err)
	}
}

func testWrongType(t *testing.T, h Harness) {
	ctx := context.Background()
	_, _ = h.Store.SAdd(ctx, "s", "x")
	if _, err := h.Store.Get(ctx, "s"); !errors.Is(err, store.ErrWrongType) {
		t.Errorf("expected ErrWrongType on Get of a set, got %v", err)
	}
	if _, err := h.Store.ZIncrBy(ctx, "s", "m", 1); !errors.Is(err, store.ErrWrongType) {
		t.Errorf("expected ErrWrongType on ZIncrBy of a set, got %v", err)
	}
}

func testPing(t *testing.T, h Harness) {
	if err := h.Store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

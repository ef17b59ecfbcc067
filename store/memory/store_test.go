package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/perk/store"
	"github.com/xraph/perk/store/memory"
	"github.com/xraph/perk/store/storetest"
)

func TestStoreSuite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Harness {
		clock := storetest.NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
		return storetest.Harness{
			Store:   memory.New(memory.WithClock(clock.Now)),
			Advance: clock.Advance,
		}
	})
}

func TestLazyExpiry(t *testing.T) {
	clock := storetest.NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	s := memory.New(memory.WithClock(clock.Now))
	ctx := context.Background()

	_ = s.Set(ctx, "short", "1", time.Second)
	_ = s.Set(ctx, "long", "1", time.Hour)
	if s.Len() != 2 {
		t.Fatalf("expected 2 live keys, got %d", s.Len())
	}

	clock.Advance(time.Second)
	if s.Len() != 1 {
		t.Errorf("expected 1 live key, got %d", s.Len())
	}
}

func TestClosed(t *testing.T) {
	s := memory.New()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ctx := context.Background()
	if err := s.Ping(ctx); !errors.Is(err, store.ErrClosed) {
		t.Errorf("expected ErrClosed from Ping, got %v", err)
	}
	if _, err := s.IncrBy(ctx, "c", 1); !store.IsUnavailable(err) {
		t.Errorf("expected unavailable error after close, got %v", err)
	}
}

func TestExtendSaturates(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	long := 200 * 365 * 24 * time.Hour

	if err := s.Set(ctx, "k", "1", long); err != nil {
		t.Fatal(err)
	}
	ttl, err := s.Extend(ctx, "k", "1", long)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if ttl < long {
		t.Errorf("extension must not shrink the key, got %v", ttl)
	}
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Errorf("expected key to survive, got %v", err)
	}
}

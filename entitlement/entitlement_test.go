package entitlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/perk/entitlement"
	"github.com/xraph/perk/store/memory"
	"github.com/xraph/perk/store/storetest"
	"github.com/xraph/perk/types"
)

const day = entitlement.Day

func newManager(t *testing.T) (*entitlement.Manager, *storetest.Clock) {
	t.Helper()
	clock := storetest.NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	return entitlement.New(memory.New(memory.WithClock(clock.Now))), clock
}

func TestNeverGranted(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	if m.IsPro(ctx, 1) {
		t.Error("expected user without grant to be non-Pro")
	}
	if days, ok := m.TTLDays(ctx, 1); ok {
		t.Errorf("expected no active grant, got %d days", days)
	}
}

func TestGrantLifecycle(t *testing.T) {
	m, clock := newManager(t)
	ctx := context.Background()
	user := types.UserID(100)

	if err := m.Grant(ctx, user, 7); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !m.IsPro(ctx, user) {
		t.Fatal("expected Pro after grant")
	}

	clock.Advance(day)
	days, ok := m.TTLDays(ctx, user)
	if !ok || days != 6 {
		t.Errorf("expected 6 days after one day, got %d (ok=%v)", days, ok)
	}

	clock.Advance(6*day + time.Second)
	if m.IsPro(ctx, user) {
		t.Error("expected grant to have lapsed")
	}
	if _, ok := m.TTLDays(ctx, user); ok {
		t.Error("expected no active grant after expiry")
	}
}

func TestGrantOverwrites(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_ = m.Grant(ctx, 1, 30)
	_ = m.Grant(ctx, 1, 7)

	days, ok := m.TTLDays(ctx, 1)
	if !ok || days != 7 {
		t.Errorf("expected second grant to replace the first (7 days), got %d", days)
	}
}

func TestExtendIsCumulative(t *testing.T) {
	m, clock := newManager(t)
	ctx := context.Background()

	_ = m.Grant(ctx, 1, 7)
	clock.Advance(time.Hour)

	ttl, err := m.Extend(ctx, 1, 30)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if want := 37*day - time.Hour; ttl != want {
		t.Errorf("expected %v remaining, got %v", want, ttl)
	}
	days, _ := m.TTLDays(ctx, 1)
	if days < 37 {
		t.Errorf("expected at least 37 days, got %d", days)
	}
}

func TestExtendWithoutGrant(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	ttl, err := m.Extend(ctx, 2, 7)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if ttl != 7*day {
		t.Errorf("expected 7d, got %v", ttl)
	}
	if !m.IsPro(ctx, 2) {
		t.Error("expected extend on a fresh user to grant Pro")
	}
}

func TestInvalidDays(t *testing.T) {
	tests := []struct {
		name string
		days int
	}{
		{"zero", 0},
		{"negative", -1},
		{"above max", entitlement.MaxDays + 1},
		{"overflows duration", 200000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newManager(t)
			ctx := context.Background()

			if err := m.Grant(ctx, 1, tt.days); !errors.Is(err, entitlement.ErrInvalidDays) {
				t.Errorf("Grant: expected ErrInvalidDays, got %v", err)
			}
			if m.IsPro(ctx, 1) {
				t.Error("rejected grant must not make the user Pro")
			}

			if err := m.Grant(ctx, 2, 5); err != nil {
				t.Fatalf("Grant: %v", err)
			}
			if _, err := m.Extend(ctx, 2, tt.days); !errors.Is(err, entitlement.ErrInvalidDays) {
				t.Errorf("Extend: expected ErrInvalidDays, got %v", err)
			}
			if d, ok := m.TTLDays(ctx, 2); !ok || d != 5 {
				t.Errorf("rejected extension must leave the grant intact, got %d (%v)", d, ok)
			}
		})
	}
}

func TestMaxDays(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	if err := m.Grant(ctx, 1, entitlement.MaxDays); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if d, ok := m.TTLDays(ctx, 1); !ok || d != entitlement.MaxDays {
		t.Errorf("expected %d days, got %d (%v)", entitlement.MaxDays, d, ok)
	}
	remaining, err := m.Extend(ctx, 1, entitlement.MaxDays)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if remaining != 2*entitlement.MaxDays*day {
		t.Errorf("expected %v, got %v", 2*entitlement.MaxDays*day, remaining)
	}
}

func TestRevoke(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_ = m.Grant(ctx, 1, 30)
	if err := m.Revoke(ctx, 1); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if m.IsPro(ctx, 1) {
		t.Error("expected non-Pro after revoke")
	}
	if err := m.Revoke(ctx, 1); err != nil {
		t.Errorf("revoking twice should succeed, got %v", err)
	}
}

func TestStoreDown(t *testing.T) {
	m := entitlement.New(storetest.Down{})
	ctx := context.Background()

	if m.IsPro(ctx, 1) {
		t.Error("expected non-Pro when the store is down")
	}
	if _, ok := m.TTLDays(ctx, 1); ok {
		t.Error("expected no grant when the store is down")
	}
	if err := m.Grant(ctx, 1, 7); err == nil {
		t.Error("expected grant to fail when the store is down")
	}
	if err := m.Revoke(ctx, 1); err == nil {
		t.Error("expected revoke to fail when the store is down")
	}
}

func TestCeilDays(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Second, 1},
		{day, 1},
		{day + time.Second, 2},
		{6 * day, 6},
	}

	for _, tt := range tests {
		if got := entitlement.CeilDays(tt.in); got != tt.want {
			t.Errorf("CeilDays(%v): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

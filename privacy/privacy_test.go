package privacy_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/perk/entitlement"
	"github.com/xraph/perk/meter"
	"github.com/xraph/perk/privacy"
	"github.com/xraph/perk/quota"
	"github.com/xraph/perk/referral"
	"github.com/xraph/perk/store/memory"
	"github.com/xraph/perk/store/storetest"
)

func TestErase(t *testing.T) {
	clock := storetest.NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	s := memory.New(memory.WithClock(clock.Now))
	ctx := context.Background()

	refs := referral.New(s)
	quotas := quota.New(s, quota.WithClock(clock.Now))
	pro := entitlement.New(s)
	metrics := meter.New(s, meter.WithClock(clock.Now))
	eraser := privacy.New(s, privacy.WithClock(clock.Now))

	if _, err := refs.SetReferrer(ctx, 11, 22); err != nil {
		t.Fatalf("set referrer: %v", err)
	}
	quotas.Take(ctx, 11, quota.KindWriting, 1)
	_ = pro.Grant(ctx, 11, 7)
	_, _ = metrics.MarkUserSeenToday(ctx, 11)

	n := eraser.Erase(ctx, 11)
	if n < 2 {
		t.Errorf("expected at least 2 keys removed, got %d", n)
	}
	if _, found := refs.Referrer(ctx, 11); found {
		t.Error("expected referral link to be erased")
	}
	if got := quotas.RemainingToday(ctx, 11, quota.KindWriting, 1); got != 1 {
		t.Errorf("expected quota reset, got %d remaining", got)
	}
	if !pro.IsPro(ctx, 11) {
		t.Error("expected entitlement to survive erasure")
	}
	if got := metrics.DAUToday(ctx); got != 1 {
		t.Errorf("expected aggregate metrics to survive erasure, got dau %d", got)
	}

	if n := eraser.Erase(ctx, 11); n != 0 {
		t.Errorf("expected nothing left to erase, got %d", n)
	}
}

func TestEraseStoreDown(t *testing.T) {
	if n := privacy.New(storetest.Down{}).Erase(context.Background(), 1); n != 0 {
		t.Errorf("expected 0 when the store is down, got %d", n)
	}
}

func TestKeys(t *testing.T) {
	clock := storetest.NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	keys := privacy.New(memory.New(), privacy.WithClock(clock.Now)).Keys(3)
	want := []string{"ref_by:3", "ref_rewarded:3", "quota:writing:3:20240301", "quota:speaking:3:20240301"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: expected %q, got %q", i, want[i], keys[i])
		}
	}
}

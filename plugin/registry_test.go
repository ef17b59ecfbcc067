package plugin_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/xraph/perk/plugin"
	"github.com/xraph/perk/quota"
	"github.com/xraph/perk/referral"
	"github.com/xraph/perk/types"
)

type recorder struct {
	name string
	mu   sync.Mutex
	seen []string
	err  error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) add(ev string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, ev)
	return r.err
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.seen)
}

func (r *recorder) OnProGranted(_ context.Context, _ types.UserID, _ int) error {
	return r.add("granted")
}

func (r *recorder) OnQuotaExceeded(_ context.Context, _ types.UserID, _ quota.Kind, _, _ int64) error {
	return r.add("quota")
}

func (r *recorder) OnReferralRewarded(_ context.Context, _ *referral.Reward) error {
	return r.add("rewarded")
}

type slow struct{}

func (slow) Name() string { return "slow" }

func (slow) OnRateLimited(ctx context.Context, _ types.UserID) error {
	time.Sleep(time.Second)
	return nil
}

func TestRegisterAndDispatch(t *testing.T) {
	r := plugin.NewRegistry()
	rec := &recorder{name: "rec"}
	if err := r.Register(rec); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx := context.Background()
	r.EmitProGranted(ctx, 1, 30)
	r.EmitQuotaExceeded(ctx, 1, quota.KindWriting, 2, 1)
	r.EmitReferralRewarded(ctx, &referral.Reward{Referrer: 2, Buyer: 1, BonusDays: 7})
	r.EmitProRevoked(ctx, 1) // not implemented by rec

	want := []string{"granted", "quota", "rewarded"}
	if got := rec.events(); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	r := plugin.NewRegistry()
	_ = r.Register(&recorder{name: "a"})
	if err := r.Register(&recorder{name: "a"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 plugin, got %d", r.Count())
	}
	if r.Get("a") == nil || r.Get("b") != nil {
		t.Error("unexpected Get result")
	}
}

func TestFailingHookDoesNotStopOthers(t *testing.T) {
	r := plugin.NewRegistry()
	bad := &recorder{name: "bad", err: errors.New("boom")}
	good := &recorder{name: "good"}
	_ = r.Register(bad)
	_ = r.Register(good)

	r.EmitProGranted(context.Background(), 1, 7)

	if len(bad.events()) != 1 || len(good.events()) != 1 {
		t.Errorf("expected both hooks called, got bad=%v good=%v", bad.events(), good.events())
	}
}

func TestHookTimeout(t *testing.T) {
	r := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	_ = r.Register(slow{})

	start := time.Now()
	r.EmitRateLimited(context.Background(), 1)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("expected emit to return after the timeout, took %v", elapsed)
	}
}

func TestInterfaces(t *testing.T) {
	got := plugin.Interfaces(&recorder{name: "rec"})
	want := []string{"OnProGranted", "OnQuotaExceeded", "OnReferralRewarded"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
